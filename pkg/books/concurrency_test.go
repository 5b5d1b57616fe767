package books

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shelfmark/shelfmark/pkg/categories"
	"github.com/shelfmark/shelfmark/pkg/config"
	"github.com/shelfmark/shelfmark/pkg/database"
	"github.com/shelfmark/shelfmark/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIngest_Concurrent races identical candidates for one user against a
// file-backed store opened through database.New, so the retry connector and
// per-connection pragmas are in the path the same way they are for the API
// process. Exactly one row per fingerprint may survive.
func TestIngest_Concurrent(t *testing.T) {
	t.Parallel()

	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(t.TempDir(), "test.db")

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	createSchema(t, db)

	ctx := context.Background()
	svc := NewService(db, categories.NewService(db))

	user := &models.User{Email: "reader@example.com", PasswordHash: "x"}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	added := make(chan int, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Ingest(ctx, user.ID, []IngestCandidate{
				{Title: "Dune", Author: "Frank Herbert"},
			})
			if err != nil {
				errs <- err
				return
			}
			added <- len(result.Added)
		}()
	}

	wg.Wait()
	close(errs)
	close(added)

	for err := range errs {
		assert.NoError(t, err)
	}

	// Every racer either inserted the book or reported it as a duplicate.
	totalAdded := 0
	for n := range added {
		totalAdded += n
	}
	assert.Equal(t, 1, totalAdded, "exactly one ingest should win the insert")

	count, err := db.NewSelect().
		Model((*models.Book)(nil)).
		Where("b.user_id = ?", user.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one row per (user, fingerprint)")

	// The default bucket is created once even when all racers reach for it.
	bucketCount, err := db.NewSelect().
		Model((*models.Category)(nil)).
		Where("c.user_id = ?", user.ID).
		Where("c.is_default").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, bucketCount)
}
