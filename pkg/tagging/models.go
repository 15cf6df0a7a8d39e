package tagging

import "time"

// TaggedFile is the GORM model tracking one converted artifact and its
// bibliographic state. file_path is unique: re-registering the same path is
// an idempotent no-op.
type TaggedFile struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	FilePath    string    `gorm:"column:file_path;uniqueIndex;not null"`
	ASIN        string    `gorm:"column:asin"`
	Title       string    `gorm:"column:title"`
	Author      string    `gorm:"column:author"`
	Narrator    string    `gorm:"column:narrator"`
	Series      string    `gorm:"column:series"`
	SeriesPart  string    `gorm:"column:series_part"`
	Description string    `gorm:"column:description"`
	CoverURL    string    `gorm:"column:cover_url"`
	CoverPath   string    `gorm:"column:cover_path"`
	IsTagged    bool      `gorm:"column:is_tagged;index;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

// TableName returns the GORM table name.
func (TaggedFile) TableName() string { return "tagged_files" }

// SearchResult is one candidate from a catalog search.
type SearchResult struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Narrator string `json:"narrator,omitempty"`
	Series   string `json:"series,omitempty"`
	ASIN     string `json:"asin"`
	Locale   string `json:"locale"`
}

// Metadata is the full bibliographic record fetched for one catalog ID.
type Metadata struct {
	ASIN        string   `json:"asin"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Author      string   `json:"author"`
	Narrator    string   `json:"narrator,omitempty"`
	Series      string   `json:"series,omitempty"`
	SeriesPart  string   `json:"seriesPart,omitempty"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Language    string   `json:"language,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
	Locale      string   `json:"locale,omitempty"`
}
