package books

import "github.com/shelfmark/shelfmark/pkg/models"

// BookCandidatePayload is one entry in the ingestion request body.
type BookCandidatePayload struct {
	Title       string  `json:"title" validate:"required,max=500"`
	Author      string  `json:"author" validate:"required,max=255"`
	CoverPath   string  `json:"cover_path" validate:"omitempty,max=1000"`
	ISBN        *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	FileURI     string  `json:"file_uri" validate:"omitempty,max=1000"`
	FileType    string  `json:"file_type" validate:"omitempty,oneof=pdf epub mobi cbz txt"`
	FileSize    *int64  `json:"file_size,omitempty" validate:"omitempty,gte=0"`
	CategoryID  *int    `json:"category_id,omitempty" validate:"omitempty,gte=1"`
}

// IngestPayload represents the ingestion request body.
type IngestPayload struct {
	Books []BookCandidatePayload `json:"books" validate:"required,min=1,max=100,dive"`
}

// UpdateProgressPayload represents the progress update request body.
type UpdateProgressPayload struct {
	Progress *int `json:"progress" validate:"required,gte=0,lte=100"`
}

// SetReadPayload represents the read-flag update request body.
type SetReadPayload struct {
	Read *bool `json:"read" validate:"required"`
}

// IngestResponse wraps an ingestion result.
type IngestResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Result  *IngestResult `json:"result"`
}

// BookResponse wraps a single book.
type BookResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Book    *models.Book `json:"book"`
}

// BooksResponse wraps a book listing.
type BooksResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Books   []*models.Book `json:"books"`
	Count   int            `json:"count"`
}

// StatsResponse wraps a stats aggregation.
type StatsResponse struct {
	Success bool   `json:"success"`
	Stats   *Stats `json:"stats"`
}
