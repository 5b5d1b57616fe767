package categories

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	categoryService := NewService(db)

	h := &handler{
		categoryService: categoryService,
	}

	g := e.Group("/categories", authMiddleware.Authenticate)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/children", h.children)
	g.GET("/:id/subtree", h.subtree)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.PUT("/books/:bookID", h.reassignBook)

	return categoryService
}
