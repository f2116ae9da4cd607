package recipebox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobStore  BlobStore
	events     EventSink
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the asset store for the service
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.events = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Recipe operations

func (s *service) CreateRecipe(ctx context.Context, req CreateRecipeRequest) (*Recipe, error) {
	// Owning-record precondition: fail before any side effect.
	if _, err := s.repository.GetUser(ctx, req.OwnerID); err != nil {
		return nil, err
	}

	plan, err := BuildAssetPlan(nil, nil, req.TitleImage, req.Stages, req.Files)
	if err != nil {
		return nil, err
	}

	refs, uploaded, err := s.uploadAll(ctx, FolderRecipeImages, plan.Uploads)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	titleRef, stages, err := plan.Resolve(refs)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	now := time.Now().UTC()
	recipe := &Recipe{
		ID:            uuid.New(),
		OwnerID:       req.OwnerID,
		Title:         req.Title,
		Category:      req.Category,
		Description:   req.Description,
		IsVegan:       req.IsVegan,
		Ingredients:   req.Ingredients,
		TitleAssetRef: titleRef,
		Stages:        stages,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repository.InTx(ctx, func(tx Repository) error {
		return tx.CreateRecipe(ctx, recipe)
	})
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, &RecordError{RecordID: recipe.ID, Op: "create", Err: err}
	}

	if s.events != nil {
		_ = s.events.RecipeCreated(ctx, recipe)
	}

	return recipe, nil
}

func (s *service) GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*Recipe, error) {
	return s.repository.GetRecipe(ctx, ownerID, recipeID)
}

func (s *service) ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) (*RecipePage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 20
	}

	total, err := s.repository.CountRecipes(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	results, err := s.repository.ListRecipes(ctx, ownerID, skip, limit)
	if err != nil {
		return nil, err
	}

	return &RecipePage{Total: total, Skip: skip, Limit: limit, Results: results}, nil
}

func (s *service) UpdateRecipe(ctx context.Context, req UpdateRecipeRequest) (*Recipe, error) {
	recipe, err := s.repository.GetRecipe(ctx, req.OwnerID, req.RecipeID)
	if err != nil {
		return nil, err
	}

	plan, err := BuildAssetPlan(recipe.TitleAssetRef, recipe.Stages, req.TitleImage, req.Stages, req.Files)
	if err != nil {
		return nil, err
	}

	// Uploads happen ahead of the transaction; new bytes must exist before a
	// committed row can reference them.
	refs, uploaded, err := s.uploadAll(ctx, FolderRecipeImages, plan.Uploads)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	titleRef, stages, err := plan.Resolve(refs)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	if req.Title != nil {
		recipe.Title = *req.Title
	}
	if req.Category != nil {
		recipe.Category = *req.Category
	}
	if req.Description != nil {
		recipe.Description = *req.Description
	}
	if req.IsVegan != nil {
		recipe.IsVegan = *req.IsVegan
	}
	if req.Ingredients != nil {
		recipe.Ingredients = req.Ingredients
	}
	recipe.TitleAssetRef = titleRef
	recipe.Stages = stages
	recipe.UpdatedAt = time.Now().UTC()

	err = s.repository.InTx(ctx, func(tx Repository) error {
		return tx.UpdateRecipe(ctx, recipe)
	})
	if err != nil {
		// The stored row is untouched, so its old references stay live; only
		// this operation's uploads are compensated.
		s.compensate(ctx, uploaded)
		if errors.Is(err, ErrRecipeNotFound) || errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, &RecordError{RecordID: recipe.ID, Op: "update", Err: err}
	}

	s.reclaim(ctx, plan.Orphans)

	if s.events != nil {
		_ = s.events.RecipeUpdated(ctx, recipe)
	}

	return recipe, nil
}

func (s *service) DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error {
	recipe, err := s.repository.GetRecipe(ctx, ownerID, recipeID)
	if err != nil {
		return err
	}

	// Collect the reclaim set before the row disappears.
	reclaim := recipe.AssetRefs()

	err = s.repository.InTx(ctx, func(tx Repository) error {
		return tx.DeleteRecipe(ctx, ownerID, recipeID)
	})
	if err != nil {
		if errors.Is(err, ErrRecipeNotFound) {
			return err
		}
		return &RecordError{RecordID: recipeID, Op: "delete", Err: err}
	}

	s.reclaim(ctx, reclaim)

	if s.events != nil {
		_ = s.events.RecipeDeleted(ctx, recipeID)
	}

	return nil
}

// User profile operations

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repository.GetUser(ctx, id)
}

func (s *service) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	user, err := s.repository.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	plan, err := BuildAssetPlan(user.AvatarRef, nil, req.Avatar, nil, req.Files)
	if err != nil {
		return nil, err
	}

	refs, uploaded, err := s.uploadAll(ctx, FolderUserImages, plan.Uploads)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	avatarRef, _, err := plan.Resolve(refs)
	if err != nil {
		s.compensate(ctx, uploaded)
		return nil, err
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.UserName != nil {
		user.UserName = *req.UserName
	}
	user.AvatarRef = avatarRef
	user.UpdatedAt = time.Now().UTC()

	err = s.repository.InTx(ctx, func(tx Repository) error {
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		s.compensate(ctx, uploaded)
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, &RecordError{RecordID: user.ID, Op: "update", Err: err}
	}

	s.reclaim(ctx, plan.Orphans)

	if s.events != nil {
		_ = s.events.UserUpdated(ctx, user)
	}

	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.repository.GetUser(ctx, id)
	if err != nil {
		return err
	}

	// The relational cascade removes owned recipes but knows nothing about
	// their asset references, so the reclaim set is folded together first.
	recipes, err := s.repository.ListRecipesByOwner(ctx, id)
	if err != nil {
		return err
	}
	var reclaim []string
	if user.AvatarRef != nil {
		reclaim = append(reclaim, *user.AvatarRef)
	}
	for _, r := range recipes {
		reclaim = append(reclaim, r.AssetRefs()...)
	}

	err = s.repository.InTx(ctx, func(tx Repository) error {
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return &RecordError{RecordID: id, Op: "delete", Err: err}
	}

	s.reclaim(ctx, reclaim)

	if s.events != nil {
		_ = s.events.UserDeleted(ctx, id)
	}

	return nil
}

// Helper methods

// uploadAll writes the planned files to the blob store in slot order. It
// returns the reference for each upload key plus the ordered list of
// references written so far; on failure the caller compensates that list.
func (s *service) uploadAll(ctx context.Context, folder string, files []UploadFile) (map[string]string, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	refs := make(map[string]string, len(files))
	var uploaded []string
	for _, f := range files {
		ref, err := s.blobStore.Upload(ctx, folder, f)
		if err != nil {
			return nil, uploaded, &StorageError{
				Folder: folder,
				Op:     "upload",
				Err:    errors.Join(ErrUploadFailed, err),
			}
		}
		refs[f.Key] = ref
		uploaded = append(uploaded, ref)
	}

	return refs, uploaded, nil
}

// compensate deletes assets uploaded by an operation that failed before its
// commit. Nothing references them; failure here leaves harmless leaks for
// out-of-band reconciliation.
func (s *service) compensate(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	if err := s.blobStore.Delete(ctx, refs); err != nil {
		s.logger.Warn("compensating asset delete failed", "refs", refs, "err", err)
		if s.events != nil {
			_ = s.events.CleanupFailed(ctx, refs, err)
		}
	}
}

// reclaim deletes orphaned or reclaimed assets after a successful commit.
// Best effort: the operation already succeeded, so failure is reported
// through the event sink instead of to the caller.
func (s *service) reclaim(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	if err := s.blobStore.Delete(ctx, refs); err != nil {
		s.logger.Warn("post-commit asset delete failed", "refs", refs, "err", err)
		if s.events != nil {
			_ = s.events.CleanupFailed(ctx, refs, err)
		}
	}
}
