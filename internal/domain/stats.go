package domain

import "time"

// FileStatus is the outcome of processing one file.
type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileFailed    FileStatus = "failed"
	FileSkipped   FileStatus = "skipped"
)

// FileProvenance describes what one input file contributed.
type FileProvenance struct {
	FileID          string     `json:"file_id"`
	FileName        string     `json:"file_name"`
	Status          FileStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
	Rows            int        `json:"rows"`
	Duplicates      int        `json:"duplicates"`
	Accounts        int        `json:"accounts"`
	MissingRequired []Field    `json:"missing_required,omitempty"`
	UnknownColumns  []string   `json:"unknown_columns,omitempty"`
	Warnings        int        `json:"warnings"`
	ProcessedAt     time.Time  `json:"processed_at"`
}

// DateRange is the observed span of publish times.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Stats is the block returned next to the summaries and posts.
type Stats struct {
	TotalRows     int                  `json:"total_rows"`
	Duplicates    int                  `json:"duplicates"`
	DuplicateIDs  []string             `json:"duplicate_ids"`
	UniquePostIDs int                  `json:"unique_post_ids"`
	UniquePosts   int                  `json:"unique_posts"`
	Accounts      int                  `json:"accounts"`
	DateRange     DateRange            `json:"date_range"`
	Files         []FileProvenance     `json:"files"`
	Warnings      []DataQualityWarning `json:"warnings,omitempty"`
	Flagged       int                  `json:"flagged_rows"`
}
