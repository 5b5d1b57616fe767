package books

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/categories"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/fingerprint"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/uptrace/bun"
)

// IngestCandidate is one book in an ingestion batch.
type IngestCandidate struct {
	Title       string
	Author      string
	CoverPath   string
	ISBN        *string
	Description *string
	FileURI     string
	FileType    string
	FileSize    *int64
	CategoryID  *int
}

// DuplicateCandidate identifies a skipped candidate by the fields the caller
// sent, since no book row exists for it.
type DuplicateCandidate struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// IngestResult reports what an ingestion batch did. Duplicates are a normal
// outcome, not an error.
type IngestResult struct {
	Added      []*models.Book       `json:"added"`
	Duplicates []DuplicateCandidate `json:"duplicates"`
}

// CategoryStat is one group in the per-category stats breakdown.
type CategoryStat struct {
	CategoryID *int   `json:"category_id,omitempty"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Read       int    `json:"read"`
	Unread     int    `json:"unread"`
}

// Stats is a fresh aggregation over the user's books, never cached.
type Stats struct {
	TotalBooks           int             `json:"total_books"`
	TotalBooksRead       int             `json:"total_books_read"`
	TotalUnread          int             `json:"total_unread"`
	StorageUsed          int64           `json:"storage_used"`
	StorageUsedFormatted string          `json:"storage_used_formatted"`
	PerCategory          []*CategoryStat `json:"per_category"`
}

// Service orchestrates book CRUD: ingestion with fingerprint dedup, progress
// tracking, deletion, and stats.
type Service struct {
	db              *bun.DB
	categoryService *categories.Service
}

func NewService(db *bun.DB, categoryService *categories.Service) *Service {
	return &Service{
		db:              db,
		categoryService: categoryService,
	}
}

// Ingest adds a batch of books, skipping any candidate whose fingerprint the
// user's library already contains. Candidates are processed in input order,
// and the duplicate check observes additions made earlier in the same batch.
// Candidates without an explicit category land in the lazily-created default
// bucket. An explicit category that doesn't belong to the caller fails the
// whole batch.
func (svc *Service) Ingest(ctx context.Context, userID int, candidates []IngestCandidate) (*IngestResult, error) {
	result := &IngestResult{
		Added:      []*models.Book{},
		Duplicates: []DuplicateCandidate{},
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Validate explicit categories up front so a bad id fails the batch
		// before anything is written.
		validated := map[int]bool{}
		for _, candidate := range candidates {
			if candidate.CategoryID == nil || validated[*candidate.CategoryID] {
				continue
			}
			exists, err := tx.
				NewSelect().
				Model((*models.Category)(nil)).
				Where("c.user_id = ?", userID).
				Where("c.id = ?", *candidate.CategoryID).
				Exists(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			if !exists {
				return errcodes.NotFound("Category")
			}
			validated[*candidate.CategoryID] = true
		}

		var bucket *models.Category
		seen := map[string]bool{}
		var addedBytes int64

		now := time.Now()
		for _, candidate := range candidates {
			fp := fingerprint.Fingerprint(candidate.Title, candidate.Author)
			if seen[fp] {
				result.Duplicates = append(result.Duplicates, DuplicateCandidate{
					Title:  candidate.Title,
					Author: candidate.Author,
				})
				continue
			}
			seen[fp] = true

			categoryID := candidate.CategoryID
			if categoryID == nil {
				if bucket == nil {
					var err error
					bucket, err = svc.categoryService.EnsureDefault(ctx, tx, userID)
					if err != nil {
						return err
					}
				}
				categoryID = &bucket.ID
			}

			fileType := candidate.FileType
			if fileType == "" {
				fileType = "pdf"
			}

			book := &models.Book{
				CreatedAt:   now,
				UpdatedAt:   now,
				UserID:      userID,
				CategoryID:  categoryID,
				Title:       strings.TrimSpace(candidate.Title),
				Author:      strings.TrimSpace(candidate.Author),
				CoverPath:   candidate.CoverPath,
				ISBN:        candidate.ISBN,
				Description: candidate.Description,
				FileURI:     candidate.FileURI,
				FileType:    fileType,
				FileSize:    candidate.FileSize,
				Fingerprint: fp,
			}

			// The unique index on (user_id, fingerprint) is the authority on
			// duplicates; a concurrent request that won the race shows up
			// here as zero affected rows.
			res, err := tx.
				NewInsert().
				Model(book).
				On("CONFLICT (user_id, fingerprint) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return errors.WithStack(err)
			}
			if affected == 0 {
				result.Duplicates = append(result.Duplicates, DuplicateCandidate{
					Title:  candidate.Title,
					Author: candidate.Author,
				})
				continue
			}

			result.Added = append(result.Added, book)
			if candidate.FileSize != nil {
				addedBytes += *candidate.FileSize
			}
		}

		if addedBytes > 0 {
			// Best-effort accounting; not part of the dedup contract.
			_, err := tx.
				NewUpdate().
				Model((*models.User)(nil)).
				Set("storage_used = storage_used + ?", addedBytes).
				Where("id = ?", userID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateProgress sets a book's reading progress percentage.
func (svc *Service) UpdateProgress(ctx context.Context, userID, bookID, progress int) (*models.Book, error) {
	if progress < 0 || progress > 100 {
		return nil, errcodes.ValidationError("Progress must be between 0 and 100")
	}

	res, err := svc.db.
		NewUpdate().
		Model((*models.Book)(nil)).
		Set("progress = ?", progress).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("user_id = ?", userID).
		Where("id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, errors.WithStack(err)
	} else if affected == 0 {
		return nil, errcodes.NotFound("Book")
	}

	return svc.retrieveOwned(ctx, userID, bookID)
}

// SetRead sets a book's read flag.
func (svc *Service) SetRead(ctx context.Context, userID, bookID int, read bool) (*models.Book, error) {
	res, err := svc.db.
		NewUpdate().
		Model((*models.Book)(nil)).
		Set("read = ?", read).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("user_id = ?", userID).
		Where("id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, errors.WithStack(err)
	} else if affected == 0 {
		return nil, errcodes.NotFound("Book")
	}

	return svc.retrieveOwned(ctx, userID, bookID)
}

// DeleteBook removes a book and returns it. Category membership lives on the
// book row, so nothing else needs cleanup.
func (svc *Service) DeleteBook(ctx context.Context, userID, bookID int) (*models.Book, error) {
	var deleted *models.Book

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.
			NewSelect().
			Model(book).
			Relation("Category").
			Where("b.user_id = ?", userID).
			Where("b.id = ?", bookID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model(book).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		if book.FileSize != nil && *book.FileSize > 0 {
			_, err = tx.
				NewUpdate().
				Model((*models.User)(nil)).
				Set("storage_used = MAX(0, storage_used - ?)", *book.FileSize).
				Where("id = ?", userID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		deleted = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// ListBooks returns the user's books newest-first, each with its category
// populated. The fingerprint column stays internal.
func (svc *Service) ListBooks(ctx context.Context, userID int) ([]*models.Book, int, error) {
	books := []*models.Book{}
	count, err := svc.db.
		NewSelect().
		Model(&books).
		Relation("Category").
		Where("b.user_id = ?", userID).
		Order("b.created_at DESC", "b.id DESC").
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return books, count, nil
}

// Stats aggregates the user's library: overall counts, storage, and a
// per-category breakdown. Books with no category are grouped under the
// default bucket's display name.
func (svc *Service) Stats(ctx context.Context, userID int) (*Stats, error) {
	perCategory := []*CategoryStat{}
	err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("b.category_id AS category_id").
		ColumnExpr("COALESCE(c.name, ?) AS name", models.DefaultCategoryName).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("SUM(CASE WHEN b.read THEN 1 ELSE 0 END) AS read").
		ColumnExpr("SUM(CASE WHEN b.read THEN 0 ELSE 1 END) AS unread").
		Join("LEFT JOIN categories AS c ON c.id = b.category_id").
		Where("b.user_id = ?", userID).
		GroupExpr("b.category_id, c.name").
		OrderExpr("name ASC").
		Scan(ctx, &perCategory)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats := &Stats{PerCategory: perCategory}
	for _, group := range perCategory {
		stats.TotalBooks += group.Total
		stats.TotalBooksRead += group.Read
		stats.TotalUnread += group.Unread
	}

	err = svc.db.
		NewSelect().
		Model((*models.User)(nil)).
		Column("storage_used").
		Where("id = ?", userID).
		Scan(ctx, &stats.StorageUsed)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	stats.StorageUsedFormatted = formatBytes(stats.StorageUsed)

	return stats, nil
}

func (svc *Service) retrieveOwned(ctx context.Context, userID, bookID int) (*models.Book, error) {
	book := &models.Book{}
	err := svc.db.
		NewSelect().
		Model(book).
		Relation("Category").
		Where("b.user_id = ?", userID).
		Where("b.id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// formatBytes renders a byte count in the largest sensible unit.
func formatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", trimDecimal(value), units[i])
}

// trimDecimal drops trailing zeros from a two-decimal rendering so sizes read
// as 1.5 MB, not 1.50 MB.
func trimDecimal(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
