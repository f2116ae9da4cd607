package recipebox

import (
	"context"

	"github.com/google/uuid"
)

// BlobStore is the external asset store. Operations are independent and
// non-transactional: there is no multi-object atomicity, and a batch delete
// may partially fail.
type BlobStore interface {
	// Upload stores one binary asset under the given folder and returns an
	// opaque reference for it.
	Upload(ctx context.Context, folder string, file UploadFile) (string, error)

	// Delete removes the given assets, best effort. Some refs may be gone
	// even when an error is returned; deleting an absent ref is not an error.
	Delete(ctx context.Context, refs []string) error

	// List returns every stored reference under folder. Used by out-of-band
	// reconciliation, not by request handling.
	List(ctx context.Context, folder string) ([]string, error)
}

// Repository provides transactional CRUD over users and recipes.
//
// GetRecipe, UpdateRecipe and DeleteRecipe are scoped to an owner: a recipe
// that exists but belongs to someone else behaves as absent.
type Repository interface {
	// User operations
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	// DeleteUser removes the user row; owned recipes go with it (relational
	// cascade). The cascade knows nothing about asset references, so callers
	// must collect the reclaim set before invoking it.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// Recipe operations
	CreateRecipe(ctx context.Context, recipe *Recipe) error
	GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*Recipe, error)
	// UpdateRecipe applies the update only when recipe.Version matches the
	// stored row, bumping Version on success. A stale version yields
	// ErrVersionConflict.
	UpdateRecipe(ctx context.Context, recipe *Recipe) error
	DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error
	ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*Recipe, error)
	CountRecipes(ctx context.Context, ownerID uuid.UUID) (int, error)
	ListRecipesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Recipe, error)

	// ListAssetRefs returns every asset reference stored on any committed
	// record (avatars, title images, stage images). Reconciliation support.
	ListAssetRefs(ctx context.Context) ([]string, error)

	// InTx runs fn inside one unit of work. fn receives a Repository bound
	// to the transaction; returning an error rolls the transaction back.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}

// EventSink receives lifecycle notifications. Sink errors never fail the
// triggering operation.
type EventSink interface {
	RecipeCreated(ctx context.Context, recipe *Recipe) error
	RecipeUpdated(ctx context.Context, recipe *Recipe) error
	RecipeDeleted(ctx context.Context, recipeID uuid.UUID) error
	UserUpdated(ctx context.Context, user *User) error
	UserDeleted(ctx context.Context, userID uuid.UUID) error

	// CleanupFailed reports asset references that should have been deleted
	// after a successful commit but were not. The refs are unreferenced by
	// any record (harmless leaks) and must be reconciled out of band.
	CleanupFailed(ctx context.Context, refs []string, cause error) error
}
