package model

// Sequence backs the numbering service: one row per (prefix, year) holding the
// last issued value. Incremented with a single atomic upsert — never by
// counting existing rows, which races under concurrency.
type Sequence struct {
	Prefix    string `gorm:"primaryKey"`
	Year      int    `gorm:"primaryKey"`
	LastValue int64  `gorm:"not null;default:0"`
}

func (Sequence) TableName() string { return "sequences" }
