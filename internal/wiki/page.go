package wiki

import "time"

// Page is a named wiki document. Contents hold the markup source; HTML is produced at render time.
type Page struct {
	ID       uint       `gorm:"primaryKey"`
	Name     string     `gorm:"size:255;uniqueIndex:idx_pages_name;not null"`
	Contents string     `gorm:"type:text;not null"`
	Created  time.Time  `gorm:"not null"`
	Edited   *time.Time
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}
