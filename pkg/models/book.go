package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     int       `bun:",nullzero" json:"user_id"`
	CategoryID *int      `json:"category_id"`
	Category   *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`

	Title       string  `bun:",nullzero" json:"title"`
	Author      string  `bun:",nullzero" json:"author"`
	CoverPath   string  `json:"cover_path"`
	ISBN        *string `json:"isbn,omitempty"`
	Description *string `json:"description,omitempty"`
	FileURI     string  `bun:"file_uri" json:"file_uri"`
	FileType    string  `bun:",nullzero" json:"file_type"`
	FileSize    *int64  `json:"file_size,omitempty"`
	Progress    int     `json:"progress"`
	Read        bool    `json:"read"`

	// Fingerprint is the per-user duplicate key. It is internal and never
	// serialized in responses.
	Fingerprint string `bun:",nullzero" json:"-"`
}

// BookSummary is the subset of book fields embedded in category listings.
type BookSummary struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID         int    `bun:",pk" json:"id"`
	CategoryID *int   `json:"-"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	CoverPath  string `json:"cover_path"`
	Progress   int    `json:"progress"`
	Read       bool   `json:"read"`
}
