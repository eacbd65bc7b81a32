package database

import "time"

// SlipRecord is one submitted payment slip. A record is created only by an
// image event; a later text event may fill in HouseNo/Month/Year on the
// sender's most recent record. Records are never deleted.
type SlipRecord struct {
	ID        int64     `json:"id"`
	SenderID  string    `json:"senderId"`
	HouseNo   string    `json:"houseNo"`
	Month     string    `json:"month"`
	Year      string    `json:"year"`
	HasMarker bool      `json:"hasMarker"`
	ImagePath string    `json:"imagePath"`
	CreatedAt time.Time `json:"createdAt"`
}
