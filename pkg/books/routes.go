package books

import (
	"github.com/labstack/echo/v4"
	"github.com/shelfmark/shelfmark/pkg/auth"
	"github.com/shelfmark/shelfmark/pkg/categories"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware, categoryService *categories.Service) *Service {
	bookService := NewService(db, categoryService)

	h := &handler{
		bookService: bookService,
	}

	g := e.Group("/books", authMiddleware.Authenticate)
	g.POST("", h.ingest)
	g.GET("", h.list)
	g.GET("/stats", h.stats)
	g.PUT("/:id/progress", h.updateProgress)
	g.PUT("/:id/read", h.setRead)
	g.DELETE("/:id", h.delete)

	return bookService
}
