package model

import "time"

// Subject is a user-defined study subject ("Math", "English", ...).
//
// Subjects are soft deleted: Deleted flips to true and DeletedAt is stamped,
// but the row stays so historical study logs keep their meaning.
// The `json:"-"` tag keeps the bookkeeping columns out of API responses.
type Subject struct {
	ID        string     `json:"id"`
	UserUID   string     `json:"-"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	CreatedAt time.Time  `json:"createdAt"`
	Deleted   bool       `json:"-"`
	DeletedAt *time.Time `json:"-"`
}
