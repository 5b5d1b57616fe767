package categories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/database"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/uptrace/bun"
)

type CreateCategoryOptions struct {
	Name        string
	Description *string
	ParentID    *int
}

type UpdateCategoryOptions struct {
	Name        *string
	Description *string
	ParentID    *int
	MoveToRoot  bool
}

type ListCategoriesOptions struct {
	IncludeBooks bool
}

// Service maintains the per-user category tree: materialized paths, sibling
// name uniqueness, the lazily-created default bucket, and the book→category
// association.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// CreateCategory creates a category under the given parent (or at the root).
// The materialized path and level are derived from the parent at creation
// time.
func (svc *Service) CreateCategory(ctx context.Context, userID int, opts CreateCategoryOptions) (*models.Category, error) {
	now := time.Now()
	category := &models.Category{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		ParentID:    opts.ParentID,
		Path:        models.IDPath{},
	}

	if opts.ParentID != nil {
		parent, err := svc.retrieveOwned(ctx, svc.db, userID, *opts.ParentID)
		if err != nil {
			return nil, err
		}
		category.Path = parent.ChildPath()
		category.Level = parent.Level + 1
	}

	_, err := svc.db.
		NewInsert().
		Model(category).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.Conflict("category_exists", "A category with this name already exists at this level.")
		}
		return nil, errors.WithStack(err)
	}

	return category, nil
}

// EnsureDefault returns the user's default bucket, creating it if it doesn't
// exist yet. It accepts a bun.IDB so callers can run it inside their own
// transaction. The bucket is looked up by the is_default flag; the name is
// only a display default and may be changed later without breaking lookup.
func (svc *Service) EnsureDefault(ctx context.Context, idb bun.IDB, userID int) (*models.Category, error) {
	category := &models.Category{}
	err := idb.
		NewSelect().
		Model(category).
		Where("c.user_id = ?", userID).
		Where("c.is_default").
		Scan(ctx)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	category = &models.Category{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    userID,
		Name:      models.DefaultCategoryName,
		Path:      models.IDPath{},
		IsDefault: true,
	}
	_, err = idb.
		NewInsert().
		Model(category).
		Returning("*").
		Exec(ctx)
	if err != nil {
		// Two requests can race to create the bucket; the partial unique
		// index on (user_id) WHERE is_default picks the winner, and the loser
		// reads it back.
		if database.IsUniqueViolation(err) {
			category = &models.Category{}
			err = idb.
				NewSelect().
				Model(category).
				Where("c.user_id = ?", userID).
				Where("c.is_default").
				Scan(ctx)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			return category, nil
		}
		return nil, errors.WithStack(err)
	}

	return category, nil
}

// ListCategories returns all of the user's categories ordered by (level,
// name). With IncludeBooks, each category carries its member books' summary
// fields as a read-side join.
func (svc *Service) ListCategories(ctx context.Context, userID int, opts ListCategoriesOptions) ([]*models.Category, error) {
	categories := []*models.Category{}
	q := svc.db.
		NewSelect().
		Model(&categories).
		Where("c.user_id = ?", userID).
		Order("c.level ASC", "c.name ASC")
	if opts.IncludeBooks {
		q = q.Relation("Books", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("title ASC")
		})
	}
	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return categories, nil
}

// RetrieveCategory returns one of the user's categories by id.
func (svc *Service) RetrieveCategory(ctx context.Context, userID, id int, opts ListCategoriesOptions) (*models.Category, error) {
	category := &models.Category{}
	q := svc.db.
		NewSelect().
		Model(category).
		Where("c.user_id = ?", userID).
		Where("c.id = ?", id)
	if opts.IncludeBooks {
		q = q.Relation("Books", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("title ASC")
		})
	}
	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Category")
		}
		return nil, errors.WithStack(err)
	}
	return category, nil
}

// Children returns the direct children of a category.
func (svc *Service) Children(ctx context.Context, userID, id int) ([]*models.Category, error) {
	if _, err := svc.retrieveOwned(ctx, svc.db, userID, id); err != nil {
		return nil, err
	}

	children := []*models.Category{}
	err := svc.db.
		NewSelect().
		Model(&children).
		Where("c.user_id = ?", userID).
		Where("c.parent_id = ?", id).
		Order("c.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return children, nil
}

// Subtree returns every descendant of a category: every node whose
// materialized path contains its id.
func (svc *Service) Subtree(ctx context.Context, userID, id int) ([]*models.Category, error) {
	if _, err := svc.retrieveOwned(ctx, svc.db, userID, id); err != nil {
		return nil, err
	}

	descendants, err := svc.descendants(ctx, svc.db, userID, id)
	if err != nil {
		return nil, err
	}
	return descendants, nil
}

// UpdateCategory renames, re-describes, or moves a category. A parent change
// recomputes the materialized path and level for the node and its entire
// subtree in one transaction.
func (svc *Service) UpdateCategory(ctx context.Context, userID, id int, opts UpdateCategoryOptions) (*models.Category, error) {
	var updated *models.Category

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		category, err := svc.retrieveOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if category.IsDefault {
			return errcodes.ValidationError("The default category cannot be renamed or moved")
		}

		if opts.Name != nil {
			category.Name = strings.TrimSpace(*opts.Name)
		}
		if opts.Description != nil {
			category.Description = opts.Description
		}

		if opts.MoveToRoot || opts.ParentID != nil {
			if opts.MoveToRoot {
				category.ParentID = nil
				category.Path = models.IDPath{}
				category.Level = 0
			} else {
				if *opts.ParentID == category.ID {
					return errcodes.ValidationError("A category cannot be moved under itself")
				}
				parent, err := svc.retrieveOwned(ctx, tx, userID, *opts.ParentID)
				if err != nil {
					return err
				}
				if parent.Path.Contains(category.ID) {
					return errcodes.ValidationError("A category cannot be moved under one of its own descendants")
				}
				category.ParentID = opts.ParentID
				category.Path = parent.ChildPath()
				category.Level = parent.Level + 1
			}

			if err := svc.recomputeSubtree(ctx, tx, userID, category); err != nil {
				return err
			}
		}

		category.UpdatedAt = time.Now()
		_, err = tx.
			NewUpdate().
			Model(category).
			WherePK().
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.Conflict("category_exists", "A category with this name already exists at this level.")
			}
			return errors.WithStack(err)
		}

		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteCategory removes a category. Its books survive with no category (they
// show up as Uncategorized in stats), and its direct children are promoted to
// the deleted node's parent with their subtree paths recomputed.
func (svc *Service) DeleteCategory(ctx context.Context, userID, id int) (*models.Category, error) {
	var deleted *models.Category

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		category, err := svc.retrieveOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if category.IsDefault {
			return errcodes.ValidationError("The default category cannot be deleted")
		}

		_, err = tx.
			NewUpdate().
			Model((*models.Book)(nil)).
			Set("category_id = NULL").
			Where("user_id = ?", userID).
			Where("category_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		descendants, err := svc.descendants(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		for _, desc := range descendants {
			if desc.ParentID != nil && *desc.ParentID == id {
				desc.ParentID = category.ParentID
			}
			desc.Path = removeFromPath(desc.Path, id)
			desc.Level = len(desc.Path)
			desc.UpdatedAt = time.Now()
			_, err = tx.
				NewUpdate().
				Model(desc).
				WherePK().
				Exec(ctx)
			if err != nil {
				// A promoted child can collide with an existing sibling under
				// the new parent.
				if database.IsUniqueViolation(err) {
					return errcodes.Conflict("category_exists", "A category with this name already exists at this level.")
				}
				return errors.WithStack(err)
			}
		}

		_, err = tx.
			NewDelete().
			Model(category).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		deleted = category
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// ReassignBook moves a book to the given category, or to the user's default
// bucket when categoryID is nil. Membership lives solely on the book row, so
// the move is a single UPDATE with nothing else to keep in sync.
func (svc *Service) ReassignBook(ctx context.Context, userID, bookID int, categoryID *int) (*models.Book, error) {
	var book *models.Book

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.
			NewSelect().
			Model((*models.Book)(nil)).
			Where("b.user_id = ?", userID).
			Where("b.id = ?", bookID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Book")
		}

		var targetID int
		if categoryID != nil {
			if _, err := svc.retrieveOwned(ctx, tx, userID, *categoryID); err != nil {
				return err
			}
			targetID = *categoryID
		} else {
			bucket, err := svc.EnsureDefault(ctx, tx, userID)
			if err != nil {
				return err
			}
			targetID = bucket.ID
		}

		_, err = tx.
			NewUpdate().
			Model((*models.Book)(nil)).
			Set("category_id = ?", targetID).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("user_id = ?", userID).
			Where("id = ?", bookID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		book = &models.Book{}
		err = tx.
			NewSelect().
			Model(book).
			Relation("Category").
			Where("b.user_id = ?", userID).
			Where("b.id = ?", bookID).
			Scan(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	return book, nil
}

// retrieveOwned loads a category scoped to its owner. Absent and not-owned
// are the same NotFound so callers can't probe other users' ids.
func (svc *Service) retrieveOwned(ctx context.Context, idb bun.IDB, userID, id int) (*models.Category, error) {
	category := &models.Category{}
	err := idb.
		NewSelect().
		Model(category).
		Where("c.user_id = ?", userID).
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Category")
		}
		return nil, errors.WithStack(err)
	}
	return category, nil
}

// descendants returns every category whose materialized path contains id,
// ordered by (level, name). The per-user tree is small, so filtering in
// memory beats teaching SQLite to parse the path column.
func (svc *Service) descendants(ctx context.Context, idb bun.IDB, userID, id int) ([]*models.Category, error) {
	all := []*models.Category{}
	err := idb.
		NewSelect().
		Model(&all).
		Where("c.user_id = ?", userID).
		Order("c.level ASC", "c.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	descendants := make([]*models.Category, 0, len(all))
	for _, category := range all {
		if category.Path.Contains(id) {
			descendants = append(descendants, category)
		}
	}
	return descendants, nil
}

// recomputeSubtree rewrites the materialized paths of every descendant of
// moved, splicing the segment of each path below the moved node onto the
// moved node's new path.
func (svc *Service) recomputeSubtree(ctx context.Context, tx bun.Tx, userID int, moved *models.Category) error {
	descendants, err := svc.descendants(ctx, tx, userID, moved.ID)
	if err != nil {
		return err
	}

	for _, desc := range descendants {
		idx := indexInPath(desc.Path, moved.ID)
		if idx < 0 {
			continue
		}
		newPath := moved.ChildPath()
		newPath = append(newPath, desc.Path[idx+1:]...)
		desc.Path = newPath
		desc.Level = len(newPath)
		desc.UpdatedAt = time.Now()

		_, err = tx.
			NewUpdate().
			Model(desc).
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

func indexInPath(path models.IDPath, id int) int {
	for i, a := range path {
		if a == id {
			return i
		}
	}
	return -1
}

func removeFromPath(path models.IDPath, id int) models.IDPath {
	out := make(models.IDPath, 0, len(path))
	for _, a := range path {
		if a != id {
			out = append(out, a)
		}
	}
	return out
}
