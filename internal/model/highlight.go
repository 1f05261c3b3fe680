package model

import "time"

// Highlight is a user's mark on a single word.
// There is at most one Highlight per (UserID, Surah, Ayah, Position).
type Highlight struct {
	UserID    string    `json:"userId"`
	Surah     int       `json:"surah"`
	Ayah      int       `json:"ayah"`
	Position  int       `json:"position"`
	Color     string    `json:"color"`
	Note      string    `json:"note"`
	UpdatedAt time.Time `json:"updatedAt"`
}
