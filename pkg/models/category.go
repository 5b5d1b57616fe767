package models

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// DefaultCategoryName is the display name of the lazily-created per-user
// default bucket. The bucket is identified by the IsDefault flag, never by
// this name, which is only cosmetic and rename-safe.
const DefaultCategoryName = "Uncategorized"

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      int       `bun:",nullzero" json:"user_id"`
	Name        string    `bun:",nullzero" json:"name"`
	Description *string   `json:"description,omitempty"`

	// ParentID, Path, and Level describe the node's position in the tree.
	// Path holds the ancestor ids from the root down to (and excluding) this
	// node; Level is len(Path), 0 for roots. Both are recomputed whenever the
	// parent changes.
	ParentID *int   `json:"parent_id"`
	Path     IDPath `json:"path"`
	Level    int    `json:"level"`

	IsDefault bool `json:"is_default"`

	// Books is a read-side join, populated on demand. The book's category_id
	// column is the single source of truth for membership.
	Books []*BookSummary `bun:"rel:has-many,join:id=category_id" json:"books,omitempty"`
}

// IDPath is an ordered sequence of ancestor category ids, materialized in the
// database as a slash-delimited string ("", "3", "3/7").
type IDPath []int

var _ driver.Valuer = IDPath(nil)

func (p IDPath) Value() (driver.Value, error) {
	return p.String(), nil
}

func (p *IDPath) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.Errorf("cannot scan %T into IDPath", src)
	}

	if raw == "" {
		*p = IDPath{}
		return nil
	}

	parts := strings.Split(raw, "/")
	ids := make(IDPath, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return errors.Wrapf(err, "malformed category path %q", raw)
		}
		ids = append(ids, id)
	}
	*p = ids
	return nil
}

func (p IDPath) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "/")
}

// Contains reports whether id appears among the ancestors.
func (p IDPath) Contains(id int) bool {
	for _, a := range p {
		if a == id {
			return true
		}
	}
	return false
}

// ChildPath returns the path a direct child of this category would carry.
func (c *Category) ChildPath() IDPath {
	child := make(IDPath, 0, len(c.Path)+1)
	child = append(child, c.Path...)
	return append(child, c.ID)
}
