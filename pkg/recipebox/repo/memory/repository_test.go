package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefork/recipebox/pkg/recipebox"
)

func newUser(t *testing.T, repo *Repository, email string) *recipebox.User {
	t.Helper()
	u := &recipebox.User{
		ID:        uuid.New(),
		Email:     email,
		UserName:  "tester",
		Role:      recipebox.RoleUser,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func newRecipe(t *testing.T, repo *Repository, ownerID uuid.UUID, title string) *recipebox.Recipe {
	t.Helper()
	r := &recipebox.Recipe{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Category:    recipebox.CategoryMain,
		Ingredients: []string{"salt"},
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.CreateRecipe(context.Background(), r))
	return r
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := New()

	u := newUser(t, repo, "a@example.com")

	got, err := repo.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	byEmail, err := repo.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, recipebox.ErrUserNotFound)

	err = repo.CreateUser(ctx, &recipebox.User{ID: uuid.New(), Email: "a@example.com"})
	assert.Error(t, err, "duplicate email must be rejected")

	require.NoError(t, repo.DeleteUser(ctx, u.ID))
	_, err = repo.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, recipebox.ErrUserNotFound)
}

func TestDeleteUserCascadesRecipes(t *testing.T) {
	ctx := context.Background()
	repo := New()

	u := newUser(t, repo, "a@example.com")
	other := newUser(t, repo, "b@example.com")
	r1 := newRecipe(t, repo, u.ID, "soup")
	newRecipe(t, repo, u.ID, "stew")
	kept := newRecipe(t, repo, other.ID, "pie")

	require.NoError(t, repo.DeleteUser(ctx, u.ID))

	_, err := repo.GetRecipe(ctx, u.ID, r1.ID)
	assert.ErrorIs(t, err, recipebox.ErrRecipeNotFound)

	_, err = repo.GetRecipe(ctx, other.ID, kept.ID)
	assert.NoError(t, err, "other owner's recipes survive the cascade")
}

func TestRecipeOwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	stranger := newUser(t, repo, "b@example.com")
	r := newRecipe(t, repo, owner.ID, "soup")

	_, err := repo.GetRecipe(ctx, stranger.ID, r.ID)
	assert.ErrorIs(t, err, recipebox.ErrRecipeNotFound)

	err = repo.DeleteRecipe(ctx, stranger.ID, r.ID)
	assert.ErrorIs(t, err, recipebox.ErrRecipeNotFound)

	_, err = repo.GetRecipe(ctx, owner.ID, r.ID)
	assert.NoError(t, err)
}

func TestUpdateRecipeVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	r := newRecipe(t, repo, owner.ID, "soup")

	first, err := repo.GetRecipe(ctx, owner.ID, r.ID)
	require.NoError(t, err)
	second, err := repo.GetRecipe(ctx, owner.ID, r.ID)
	require.NoError(t, err)

	first.Title = "onion soup"
	require.NoError(t, repo.UpdateRecipe(ctx, first))
	assert.Equal(t, 2, first.Version, "version bumps on successful update")

	second.Title = "miso soup"
	err = repo.UpdateRecipe(ctx, second)
	assert.ErrorIs(t, err, recipebox.ErrVersionConflict)

	got, err := repo.GetRecipe(ctx, owner.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "onion soup", got.Title)
}

func TestListRecipesPagination(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	for i := 0; i < 5; i++ {
		r := &recipebox.Recipe{
			ID:        uuid.New(),
			OwnerID:   owner.ID,
			Title:     "r",
			Category:  recipebox.CategoryMain,
			Version:   1,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.CreateRecipe(ctx, r))
	}

	page, err := repo.ListRecipes(ctx, owner.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	count, err := repo.CountRecipes(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	all, err := repo.ListRecipesByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "newest first")
	}

	empty, err := repo.ListRecipes(ctx, owner.ID, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListAssetRefs(t *testing.T) {
	ctx := context.Background()
	repo := New()

	avatar := "user-images/av1"
	u := &recipebox.User{ID: uuid.New(), Email: "a@example.com", AvatarRef: &avatar}
	require.NoError(t, repo.CreateUser(ctx, u))

	title := "recipe-images/t1"
	stageRef := "recipe-images/s1"
	r := &recipebox.Recipe{
		ID:            uuid.New(),
		OwnerID:       u.ID,
		Title:         "soup",
		Category:      recipebox.CategoryMain,
		TitleAssetRef: &title,
		Stages: []recipebox.Stage{
			{StageNumber: 1, AssetRef: &stageRef},
			{StageNumber: 2},
		},
		Version: 1,
	}
	require.NoError(t, repo.CreateRecipe(ctx, r))

	refs, err := repo.ListAssetRefs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{avatar, title, stageRef}, refs)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx recipebox.Repository) error {
		r := &recipebox.Recipe{
			ID:       uuid.New(),
			OwnerID:  owner.ID,
			Title:    "soup",
			Category: recipebox.CategoryMain,
			Version:  1,
		}
		if err := tx.CreateRecipe(ctx, r); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := repo.CountRecipes(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "failed transaction leaves no rows")
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	id := uuid.New()

	err := repo.InTx(ctx, func(tx recipebox.Repository) error {
		return tx.CreateRecipe(ctx, &recipebox.Recipe{
			ID:       id,
			OwnerID:  owner.ID,
			Title:    "soup",
			Category: recipebox.CategoryMain,
			Version:  1,
		})
	})
	require.NoError(t, err)

	got, err := repo.GetRecipe(ctx, owner.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "soup", got.Title)
}

func TestClonesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := New()

	owner := newUser(t, repo, "a@example.com")
	r := newRecipe(t, repo, owner.ID, "soup")

	got, err := repo.GetRecipe(ctx, owner.ID, r.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Ingredients[0] = "mutated"

	again, err := repo.GetRecipe(ctx, owner.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "soup", again.Title)
	assert.Equal(t, "salt", again.Ingredients[0])
}
