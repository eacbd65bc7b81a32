package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// sqlite handles a single writer; this also keeps in-memory
	// databases on one connection so the schema stays visible.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS slip_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id TEXT NOT NULL,
		house_no TEXT NOT NULL DEFAULT '',
		month TEXT NOT NULL DEFAULT '',
		year TEXT NOT NULL DEFAULT '',
		has_marker INTEGER NOT NULL DEFAULT 0,
		image_path TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_slip_records_sender_id ON slip_records(sender_id, id)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateSlip(record *SlipRecord) (int64, error) {
	hasMarker := 0
	if record.HasMarker {
		hasMarker = 1
	}

	result, err := s.db.Exec(
		"INSERT INTO slip_records (sender_id, house_no, month, year, has_marker, image_path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		record.SenderID, record.HouseNo, record.Month, record.Year, hasMarker, record.ImagePath, record.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	record.ID = id
	return id, nil
}

func (s *SQLiteDatabase) LatestSlipID(senderID string) (int64, bool, error) {
	row := s.db.QueryRow("SELECT id FROM slip_records WHERE sender_id = ? ORDER BY id DESC LIMIT 1", senderID)
	var id int64
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (s *SQLiteDatabase) SetSlipDetail(id int64, houseNo, month, year string) error {
	result, err := s.db.Exec("UPDATE slip_records SET house_no = ?, month = ?, year = ? WHERE id = ?", houseNo, month, year, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no slip record with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) GetAllSlips() ([]*SlipRecord, error) {
	rows, err := s.db.Query("SELECT id, sender_id, house_no, month, year, has_marker, image_path, created_at FROM slip_records ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var records []*SlipRecord
	for rows.Next() {
		record, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanSlip(rows *sql.Rows) (*SlipRecord, error) {
	var record SlipRecord
	var hasMarker int
	var createdAt string
	if err := rows.Scan(&record.ID, &record.SenderID, &record.HouseNo, &record.Month, &record.Year, &hasMarker, &record.ImagePath, &createdAt); err != nil {
		return nil, err
	}
	record.HasMarker = hasMarker != 0

	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q on record %d: %w", createdAt, record.ID, err)
	}
	record.CreatedAt = parsed
	return &record, nil
}
