package types

import "time"

// FileType classifies a file by its extension.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeOther    FileType = "other"
)

// FileRecord is one row of the files_metadata table. ID, Owner and Size are
// fixed at upload time; Name, Type and URL change together on rename, and
// SharedWith changes on share.
type FileRecord struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Type       FileType  `json:"type" db:"type"`
	Size       int64     `json:"size" db:"size"`
	URL        string    `json:"url" db:"url"`
	Owner      string    `json:"owner" db:"owner"`
	SharedWith []string  `json:"shared_with" db:"shared_with"`
	DateAdded  time.Time `json:"date_added" db:"date_added"`
	LastEdited time.Time `json:"last_edited" db:"last_edited"`
}

// SharedWithContains reports whether the record is shared with the given email.
func (r *FileRecord) SharedWithContains(email string) bool {
	if email == "" {
		return false
	}
	for _, e := range r.SharedWith {
		if e == email {
			return true
		}
	}
	return false
}

// CategoryUsage is one dashboard summary row. Latest is the newest
// last-edited timestamp among the category's records, zero when the
// category is empty.
type CategoryUsage struct {
	Category   string    `json:"category"`
	TotalBytes int64     `json:"total_bytes"`
	Latest     time.Time `json:"latest"`
}

// UsageReport is the full dashboard usage view for one owner.
type UsageReport struct {
	Categories []CategoryUsage `json:"categories"`
	Used       int64           `json:"used"`
	Remaining  int64           `json:"remaining"`
	Limit      int64           `json:"limit"`
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UploadResult reports the outcome of one file in a batch upload.
type UploadResult struct {
	Name    string      `json:"name"`
	Success bool        `json:"success"`
	Record  *FileRecord `json:"record,omitempty"`
	Error   string      `json:"error,omitempty"`
}
