package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefork/recipebox/pkg/recipebox"
	repomemory "github.com/platefork/recipebox/pkg/recipebox/repo/memory"
	storagememory "github.com/platefork/recipebox/pkg/recipebox/storage/memory"
)

func seed(t *testing.T) (*repomemory.Repository, *storagememory.Store, string, string) {
	t.Helper()
	ctx := context.Background()
	repo := repomemory.New()
	store := storagememory.New()

	referenced, err := store.Upload(ctx, recipebox.FolderRecipeImages, recipebox.UploadFile{Data: []byte("kept")})
	require.NoError(t, err)
	leaked, err := store.Upload(ctx, recipebox.FolderRecipeImages, recipebox.UploadFile{Data: []byte("leaked")})
	require.NoError(t, err)

	owner := &recipebox.User{ID: uuid.New(), Email: "a@example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateUser(ctx, owner))
	require.NoError(t, repo.CreateRecipe(ctx, &recipebox.Recipe{
		ID:            uuid.New(),
		OwnerID:       owner.ID,
		Title:         "soup",
		Category:      recipebox.CategoryMain,
		TitleAssetRef: &referenced,
		Version:       1,
	}))

	return repo, store, referenced, leaked
}

func TestRunDeletesLeakedAssets(t *testing.T) {
	repo, store, referenced, leaked := seed(t)

	report, err := New(repo, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, []string{leaked}, report.Leaked)
	assert.Equal(t, 1, report.Deleted)

	_, ok := store.Get(referenced)
	assert.True(t, ok, "referenced asset survives")
	_, ok = store.Get(leaked)
	assert.False(t, ok, "leaked asset is reclaimed")
}

func TestRunDryRunKeepsAssets(t *testing.T) {
	repo, store, _, leaked := seed(t)

	report, err := New(repo, store, WithDryRun(true)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{leaked}, report.Leaked)
	assert.Zero(t, report.Deleted)
	_, ok := store.Get(leaked)
	assert.True(t, ok, "dry run deletes nothing")
}

func TestRunNothingLeaked(t *testing.T) {
	repo, store, _, leaked := seed(t)
	require.NoError(t, store.Delete(context.Background(), []string{leaked}))

	report, err := New(repo, store).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Leaked)
	assert.Zero(t, report.Deleted)
}
