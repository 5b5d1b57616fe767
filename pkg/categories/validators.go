package categories

import "github.com/shelfmark/shelfmark/pkg/models"

// CreateCategoryPayload represents the category creation request body.
type CreateCategoryPayload struct {
	Name        string  `json:"name" mod:"trim" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	ParentID    *int    `json:"parent_id" validate:"omitempty,gte=1"`
}

// UpdateCategoryPayload represents the category update request body. Setting
// move_to_root detaches the category from its parent; it wins over parent_id.
type UpdateCategoryPayload struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	ParentID    *int    `json:"parent_id" validate:"omitempty,gte=1"`
	MoveToRoot  bool    `json:"move_to_root"`
}

// ReassignBookPayload represents the book reassignment request body. A null
// or omitted category_id moves the book to the default bucket.
type ReassignBookPayload struct {
	CategoryID *int `json:"category_id" validate:"omitempty,gte=1"`
}

// ListCategoriesQuery represents the category listing query parameters.
type ListCategoriesQuery struct {
	IncludeBooks bool `query:"include_books"`
}

// CategoryResponse wraps a single category.
type CategoryResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message,omitempty"`
	Category *models.Category `json:"category"`
}

// CategoriesResponse wraps a category listing.
type CategoriesResponse struct {
	Success    bool               `json:"success"`
	Categories []*models.Category `json:"categories"`
	Count      int                `json:"count"`
}

// BookResponse wraps the book returned by a reassignment.
type BookResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Book    *models.Book `json:"book"`
}
