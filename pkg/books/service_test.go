package books

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shelfmark/shelfmark/pkg/categories"
	"github.com/shelfmark/shelfmark/pkg/errcodes"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	createSchema(t, db)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createSchema(t *testing.T, db *bun.DB) {
	t.Helper()

	_, err := db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			storage_used INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT,
			parent_id INTEGER REFERENCES categories (id),
			path TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE UNIQUE INDEX ux_categories_user_parent_name ON categories (user_id, COALESCE(parent_id, 0), name COLLATE NOCASE);
		CREATE UNIQUE INDEX ux_categories_user_default ON categories (user_id) WHERE is_default;

		CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			category_id INTEGER REFERENCES categories (id),
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			cover_path TEXT NOT NULL DEFAULT '',
			isbn TEXT,
			description TEXT,
			file_uri TEXT NOT NULL DEFAULT '',
			file_type TEXT NOT NULL DEFAULT 'pdf',
			file_size INTEGER,
			progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
			read BOOLEAN NOT NULL DEFAULT FALSE,
			fingerprint TEXT NOT NULL
		);
		CREATE UNIQUE INDEX ux_books_user_fingerprint ON books (user_id, fingerprint);
	`)
	require.NoError(t, err)
}

type testEnv struct {
	db          *bun.DB
	bookService *Service
	categorySvc *categories.Service
	user        *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	categorySvc := categories.NewService(db)

	user := &models.User{Email: "reader@example.com", PasswordHash: "x"}
	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)

	return &testEnv{
		db:          db,
		bookService: NewService(db, categorySvc),
		categorySvc: categorySvc,
		user:        user,
	}
}

func TestIngest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "Blindsight", Author: "Peter Watts"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 2)
	assert.Empty(t, result.Duplicates)
	assert.Equal(t, "Dune", result.Added[0].Title)
	assert.Equal(t, "dune-frankherbert", result.Added[0].Fingerprint)

	// Without an explicit category both books land in the default bucket.
	require.NotNil(t, result.Added[0].CategoryID)
	bucket, err := env.categorySvc.EnsureDefault(ctx, env.db, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, bucket.ID, *result.Added[0].CategoryID)
	assert.Equal(t, bucket.ID, *result.Added[1].CategoryID)
}

func TestIngest_ReingestIsDuplicate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	// Identical candidate.
	result, err = env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "Dune", result.Duplicates[0].Title)

	// Near-identical candidate normalizing to the same fingerprint.
	result, err = env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "  DUNE!! ", Author: "frank herbert"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Len(t, result.Duplicates, 1)

	books, count, err := env.bookService.ListBooks(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, books, 1)
}

func TestIngest_InBatchDuplicate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// The later candidate collides with one added earlier in the same batch.
	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "Blindsight", Author: "Peter Watts"},
		{Title: "DUNE", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 2)
	assert.Equal(t, "Dune", result.Added[0].Title)
	assert.Equal(t, "Blindsight", result.Added[1].Title)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "DUNE", result.Duplicates[0].Title)
}

func TestIngest_SameFingerprintAcrossUsers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	other := &models.User{Email: "other@example.com", PasswordHash: "x"}
	_, err := env.db.NewInsert().Model(other).Exec(ctx)
	require.NoError(t, err)

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	// The same fingerprint is fine in another user's library.
	result, err = env.bookService.Ingest(ctx, other.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Added, 1)
	assert.Empty(t, result.Duplicates)
}

func TestIngest_ExplicitCategory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	fiction, err := env.categorySvc.CreateCategory(ctx, env.user.ID, categories.CreateCategoryOptions{Name: "Fiction"})
	require.NoError(t, err)

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert", CategoryID: &fiction.ID},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.Equal(t, fiction.ID, *result.Added[0].CategoryID)
}

func TestIngest_BadCategoryFailsBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	missing := 9999
	_, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
		{Title: "Blindsight", Author: "Peter Watts", CategoryID: &missing},
	})
	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 404, codeErr.HTTPCode)

	// Nothing was written.
	_, count, err := env.bookService.ListBooks(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIngest_StorageAccounting(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	size1, size2 := int64(1024), int64(2048)
	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert", FileSize: &size1},
		{Title: "Blindsight", Author: "Peter Watts", FileSize: &size2},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 2)

	stats, err := env.bookService.Stats(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3072), stats.StorageUsed)
	assert.Equal(t, "3 KB", stats.StorageUsedFormatted)

	_, err = env.bookService.DeleteBook(ctx, env.user.ID, result.Added[0].ID)
	require.NoError(t, err)

	stats, err = env.bookService.Stats(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), stats.StorageUsed)
}

func TestUpdateProgress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	book := result.Added[0]

	var codeErr *errcodes.Error

	// Out-of-range values are rejected before touching the store.
	_, err = env.bookService.UpdateProgress(ctx, env.user.ID, book.ID, -1)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 400, codeErr.HTTPCode)
	_, err = env.bookService.UpdateProgress(ctx, env.user.ID, book.ID, 101)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 400, codeErr.HTTPCode)

	// Boundary values are fine.
	updated, err := env.bookService.UpdateProgress(ctx, env.user.ID, book.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Progress)
	updated, err = env.bookService.UpdateProgress(ctx, env.user.ID, book.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progress)
	assert.NotNil(t, updated.Category)

	// Unknown book and another user's book collapse to the same 404.
	_, err = env.bookService.UpdateProgress(ctx, env.user.ID, 9999, 50)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 404, codeErr.HTTPCode)
	_, err = env.bookService.UpdateProgress(ctx, env.user.ID+1, book.ID, 50)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 404, codeErr.HTTPCode)
}

func TestSetRead(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	book := result.Added[0]

	updated, err := env.bookService.SetRead(ctx, env.user.ID, book.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Read)

	updated, err = env.bookService.SetRead(ctx, env.user.ID, book.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Read)

	var codeErr *errcodes.Error
	_, err = env.bookService.SetRead(ctx, env.user.ID, 9999, true)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 404, codeErr.HTTPCode)
}

func TestDeleteBook(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	book := result.Added[0]

	deleted, err := env.bookService.DeleteBook(ctx, env.user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, deleted.ID)
	assert.Equal(t, "Dune", deleted.Title)

	var codeErr *errcodes.Error
	_, err = env.bookService.DeleteBook(ctx, env.user.ID, book.ID)
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, 404, codeErr.HTTPCode)

	// Deleting frees the fingerprint for re-ingestion.
	result, err = env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Added, 1)
}

func TestListBooks_NewestFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"First", "Second", "Third"} {
		result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
			{Title: title, Author: "Author"},
		})
		require.NoError(t, err)
		require.Len(t, result.Added, 1)
	}

	books, count, err := env.bookService.ListBooks(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, books, 3)
	assert.Equal(t, "Third", books[0].Title)
	assert.Equal(t, "Second", books[1].Title)
	assert.Equal(t, "First", books[2].Title)
	assert.NotNil(t, books[0].Category)
}

func TestStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	fiction, err := env.categorySvc.CreateCategory(ctx, env.user.ID, categories.CreateCategoryOptions{Name: "Fiction"})
	require.NoError(t, err)

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert", CategoryID: &fiction.ID},
		{Title: "Blindsight", Author: "Peter Watts", CategoryID: &fiction.ID},
		{Title: "Cosmos", Author: "Carl Sagan"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 3)

	_, err = env.bookService.SetRead(ctx, env.user.ID, result.Added[0].ID, true)
	require.NoError(t, err)

	stats, err := env.bookService.Stats(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBooks)
	assert.Equal(t, 1, stats.TotalBooksRead)
	assert.Equal(t, 2, stats.TotalUnread)
	require.Len(t, stats.PerCategory, 2)

	byName := map[string]*CategoryStat{}
	for _, group := range stats.PerCategory {
		byName[group.Name] = group
	}
	require.Contains(t, byName, "Fiction")
	assert.Equal(t, 2, byName["Fiction"].Total)
	assert.Equal(t, 1, byName["Fiction"].Read)
	assert.Equal(t, 1, byName["Fiction"].Unread)
	require.Contains(t, byName, models.DefaultCategoryName)
	assert.Equal(t, 1, byName[models.DefaultCategoryName].Total)
}

func TestStats_AfterCategoryDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	fiction, err := env.categorySvc.CreateCategory(ctx, env.user.ID, categories.CreateCategoryOptions{Name: "Fiction"})
	require.NoError(t, err)

	result, err := env.bookService.Ingest(ctx, env.user.ID, []IngestCandidate{
		{Title: "Dune", Author: "Frank Herbert", CategoryID: &fiction.ID},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	_, err = env.categorySvc.DeleteCategory(ctx, env.user.ID, fiction.ID)
	require.NoError(t, err)

	// The book survives and is counted as Uncategorized.
	stats, err := env.bookService.Stats(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBooks)
	require.Len(t, stats.PerCategory, 1)
	assert.Equal(t, models.DefaultCategoryName, stats.PerCategory[0].Name)
	assert.Nil(t, stats.PerCategory[0].CategoryID)
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1572864, "1.5 MB"},
		{1073741824, "1 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatBytes(tt.bytes))
	}
}
