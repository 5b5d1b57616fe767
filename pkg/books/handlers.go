package books

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
)

type handler struct {
	bookService *Service
}

func (h *handler) ingest(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := IngestPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("ingest handler called without authentication")
	}

	candidates := make([]IngestCandidate, 0, len(params.Books))
	for _, book := range params.Books {
		candidates = append(candidates, IngestCandidate{
			Title:       book.Title,
			Author:      book.Author,
			CoverPath:   book.CoverPath,
			ISBN:        book.ISBN,
			Description: book.Description,
			FileURI:     book.FileURI,
			FileType:    book.FileType,
			FileSize:    book.FileSize,
			CategoryID:  book.CategoryID,
		})
	}

	result, err := h.bookService.Ingest(ctx, userID, candidates)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, IngestResponse{
		Success: true,
		Message: fmt.Sprintf("Added %d books. %d duplicates found.", len(result.Added), len(result.Duplicates)),
		Result:  result,
	}))
}

func (h *handler) updateProgress(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// Bind params.
	params := UpdateProgressPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("update progress handler called without authentication")
	}

	book, err := h.bookService.UpdateProgress(ctx, userID, id, *params.Progress)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, BookResponse{
		Success: true,
		Message: "Progress updated successfully",
		Book:    book,
	}))
}

func (h *handler) setRead(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// Bind params.
	params := SetReadPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("set read handler called without authentication")
	}

	book, err := h.bookService.SetRead(ctx, userID, id, *params.Read)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, BookResponse{
		Success: true,
		Message: "Book updated successfully",
		Book:    book,
	}))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("delete book handler called without authentication")
	}

	book, err := h.bookService.DeleteBook(ctx, userID, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, BookResponse{
		Success: true,
		Message: "Book deleted successfully",
		Book:    book,
	}))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("list books handler called without authentication")
	}

	books, count, err := h.bookService.ListBooks(ctx, userID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, BooksResponse{
		Success: true,
		Message: fmt.Sprintf("Found %d books", count),
		Books:   books,
		Count:   count,
	}))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return errors.New("stats handler called without authentication")
	}

	stats, err := h.bookService.Stats(ctx, userID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, StatsResponse{
		Success: true,
		Stats:   stats,
	}))
}
