package database

import "database/sql"

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateSlip inserts a new slip record and returns its assigned id.
	// House/month/year are stored as given (empty at image-ingestion time).
	CreateSlip(record *SlipRecord) (int64, error)
	// LatestSlipID returns the highest id belonging to the sender.
	// found is false when the sender has no records.
	LatestSlipID(senderID string) (id int64, found bool, err error)
	// SetSlipDetail fills in the house/month/year fields of a record.
	SetSlipDetail(id int64, houseNo, month, year string) error
	// GetAllSlips returns every record ordered by id descending.
	GetAllSlips() ([]*SlipRecord, error)
}
