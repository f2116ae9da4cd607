package recipebox

import (
	"context"

	"github.com/google/uuid"
)

// Service is the synchronization orchestrator: every mutation sequences
// asset uploads, the relational transaction and post-commit asset deletion
// so that committed rows only ever reference assets that exist.
//
// Concurrent mutations of the same record are not serialized here. The
// repository's version check rejects stale recipe updates, but two
// overlapping updates can still race at the blob layer when both compute
// orphan sets from the same snapshot; the loser's cleanup is best effort.
type Service interface {
	// Recipe operations
	CreateRecipe(ctx context.Context, req CreateRecipeRequest) (*Recipe, error)
	GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*Recipe, error)
	ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) (*RecipePage, error)
	UpdateRecipe(ctx context.Context, req UpdateRecipeRequest) (*Recipe, error)
	DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error

	// User profile operations
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}
