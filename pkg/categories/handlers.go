package categories

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
)

type handler struct {
	categoryService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateCategoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("create category handler called without authentication")
	}

	category, err := h.categoryService.CreateCategory(ctx, userID, CreateCategoryOptions{
		Name:        params.Name,
		Description: params.Description,
		ParentID:    params.ParentID,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, CategoryResponse{
		Success:  true,
		Message:  "Category created successfully",
		Category: category,
	}))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	query := ListCategoriesQuery{}
	if err := c.Bind(&query); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("list categories handler called without authentication")
	}

	categories, err := h.categoryService.ListCategories(ctx, userID, ListCategoriesOptions{
		IncludeBooks: query.IncludeBooks,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoriesResponse{
		Success:    true,
		Categories: categories,
		Count:      len(categories),
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Category")
	}

	query := ListCategoriesQuery{}
	if err := c.Bind(&query); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("retrieve category handler called without authentication")
	}

	category, err := h.categoryService.RetrieveCategory(ctx, userID, id, ListCategoriesOptions{
		IncludeBooks: query.IncludeBooks,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoryResponse{
		Success:  true,
		Category: category,
	}))
}

func (h *handler) children(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Category")
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("category children handler called without authentication")
	}

	children, err := h.categoryService.Children(ctx, userID, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoriesResponse{
		Success:    true,
		Categories: children,
		Count:      len(children),
	}))
}

func (h *handler) subtree(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Category")
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("category subtree handler called without authentication")
	}

	descendants, err := h.categoryService.Subtree(ctx, userID, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoriesResponse{
		Success:    true,
		Categories: descendants,
		Count:      len(descendants),
	}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Category")
	}

	// Bind params.
	params := UpdateCategoryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("update category handler called without authentication")
	}

	category, err := h.categoryService.UpdateCategory(ctx, userID, id, UpdateCategoryOptions{
		Name:        params.Name,
		Description: params.Description,
		ParentID:    params.ParentID,
		MoveToRoot:  params.MoveToRoot,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoryResponse{
		Success:  true,
		Message:  "Category updated successfully",
		Category: category,
	}))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Category")
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("delete category handler called without authentication")
	}

	category, err := h.categoryService.DeleteCategory(ctx, userID, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, CategoryResponse{
		Success:  true,
		Message:  "Category deleted successfully",
		Category: category,
	}))
}

func (h *handler) reassignBook(c echo.Context) error {
	ctx := c.Request().Context()
	bookID, err := strconv.Atoi(c.Param("bookID"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// Bind params.
	params := ReassignBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("reassign book handler called without authentication")
	}

	book, err := h.categoryService.ReassignBook(ctx, userID, bookID, params.CategoryID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, BookResponse{
		Success: true,
		Message: "Book reassigned successfully",
		Book:    book,
	}))
}
