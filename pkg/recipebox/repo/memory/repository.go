// Package memory provides an in-memory recipebox.Repository, used in tests
// and for running the server without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/platefork/recipebox/pkg/recipebox"
)

// store holds the record maps and implements the operations without
// locking; Repository and txRepository layer locking and transaction
// semantics on top of it.
type store struct {
	users   map[uuid.UUID]*recipebox.User
	recipes map[uuid.UUID]*recipebox.Recipe
}

// Repository implements recipebox.Repository using in-memory maps.
type Repository struct {
	mu sync.RWMutex
	s  store
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		s: store{
			users:   make(map[uuid.UUID]*recipebox.User),
			recipes: make(map[uuid.UUID]*recipebox.Recipe),
		},
	}
}

func cloneUser(u *recipebox.User) *recipebox.User {
	c := *u
	if u.AvatarRef != nil {
		ref := *u.AvatarRef
		c.AvatarRef = &ref
	}
	return &c
}

func cloneRecipe(r *recipebox.Recipe) *recipebox.Recipe {
	c := *r
	if r.TitleAssetRef != nil {
		ref := *r.TitleAssetRef
		c.TitleAssetRef = &ref
	}
	c.Ingredients = append([]string(nil), r.Ingredients...)
	c.Stages = make([]recipebox.Stage, len(r.Stages))
	for i, st := range r.Stages {
		c.Stages[i] = st
		if st.AssetRef != nil {
			ref := *st.AssetRef
			c.Stages[i].AssetRef = &ref
		}
	}
	return &c
}

func (s *store) clone() store {
	users := make(map[uuid.UUID]*recipebox.User, len(s.users))
	for id, u := range s.users {
		users[id] = cloneUser(u)
	}
	recipes := make(map[uuid.UUID]*recipebox.Recipe, len(s.recipes))
	for id, r := range s.recipes {
		recipes[id] = cloneRecipe(r)
	}
	return store{users: users, recipes: recipes}
}

// User operations

func (s *store) getUser(id uuid.UUID) (*recipebox.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, recipebox.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *store) getUserByEmail(email string) (*recipebox.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, recipebox.ErrUserNotFound
}

func (s *store) createUser(user *recipebox.User) error {
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s already in use", user.Email)
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *store) updateUser(user *recipebox.User) error {
	if _, exists := s.users[user.ID]; !exists {
		return recipebox.ErrUserNotFound
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *store) deleteUser(id uuid.UUID) error {
	if _, exists := s.users[id]; !exists {
		return recipebox.ErrUserNotFound
	}
	delete(s.users, id)
	// Cascade: owned recipes go with the user row.
	for rid, r := range s.recipes {
		if r.OwnerID == id {
			delete(s.recipes, rid)
		}
	}
	return nil
}

// Recipe operations

func (s *store) createRecipe(recipe *recipebox.Recipe) error {
	if _, exists := s.recipes[recipe.ID]; exists {
		return fmt.Errorf("recipe %s already exists", recipe.ID)
	}
	if _, exists := s.users[recipe.OwnerID]; !exists {
		return recipebox.ErrUserNotFound
	}
	s.recipes[recipe.ID] = cloneRecipe(recipe)
	return nil
}

func (s *store) getRecipe(ownerID, recipeID uuid.UUID) (*recipebox.Recipe, error) {
	r, ok := s.recipes[recipeID]
	if !ok || r.OwnerID != ownerID {
		return nil, recipebox.ErrRecipeNotFound
	}
	return cloneRecipe(r), nil
}

func (s *store) updateRecipe(recipe *recipebox.Recipe) error {
	stored, ok := s.recipes[recipe.ID]
	if !ok || stored.OwnerID != recipe.OwnerID {
		return recipebox.ErrRecipeNotFound
	}
	if stored.Version != recipe.Version {
		return recipebox.ErrVersionConflict
	}
	recipe.Version++
	s.recipes[recipe.ID] = cloneRecipe(recipe)
	return nil
}

func (s *store) deleteRecipe(ownerID, recipeID uuid.UUID) error {
	r, ok := s.recipes[recipeID]
	if !ok || r.OwnerID != ownerID {
		return recipebox.ErrRecipeNotFound
	}
	delete(s.recipes, recipeID)
	return nil
}

func (s *store) listByOwner(ownerID uuid.UUID) []*recipebox.Recipe {
	var result []*recipebox.Recipe
	for _, r := range s.recipes {
		if r.OwnerID == ownerID {
			result = append(result, cloneRecipe(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *store) listRecipes(ownerID uuid.UUID, skip, limit int) []*recipebox.Recipe {
	all := s.listByOwner(ownerID)
	if skip >= len(all) {
		return nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (s *store) listAssetRefs() []string {
	var refs []string
	for _, u := range s.users {
		if u.AvatarRef != nil {
			refs = append(refs, *u.AvatarRef)
		}
	}
	for _, r := range s.recipes {
		refs = append(refs, r.AssetRefs()...)
	}
	return refs
}

// Repository methods (locking wrappers)

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*recipebox.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.getUser(id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*recipebox.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.getUserByEmail(email)
}

func (r *Repository) CreateUser(ctx context.Context, user *recipebox.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.createUser(user)
}

func (r *Repository) UpdateUser(ctx context.Context, user *recipebox.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.updateUser(user)
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.deleteUser(id)
}

func (r *Repository) CreateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.createRecipe(recipe)
}

func (r *Repository) GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*recipebox.Recipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.getRecipe(ownerID, recipeID)
}

func (r *Repository) UpdateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.updateRecipe(recipe)
}

func (r *Repository) DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.deleteRecipe(ownerID, recipeID)
}

func (r *Repository) ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*recipebox.Recipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.listRecipes(ownerID, skip, limit), nil
}

func (r *Repository) CountRecipes(ctx context.Context, ownerID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, rec := range r.s.recipes {
		if rec.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *Repository) ListRecipesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*recipebox.Recipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.listByOwner(ownerID), nil
}

func (r *Repository) ListAssetRefs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.listAssetRefs(), nil
}

// InTx runs fn against a snapshot of the repository state. The snapshot is
// only published when fn succeeds, giving rollback semantics; the whole
// repository is locked for the duration, which is fine for tests and
// single-process use.
func (r *Repository) InTx(ctx context.Context, fn func(tx recipebox.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.s.clone()
	tx := &txRepository{s: &snapshot}
	if err := fn(tx); err != nil {
		return err
	}

	r.s = snapshot
	return nil
}

// txRepository is the transaction-bound view handed to InTx callbacks. The
// outer Repository holds its lock while this is alive.
type txRepository struct {
	s *store
}

func (t *txRepository) GetUser(ctx context.Context, id uuid.UUID) (*recipebox.User, error) {
	return t.s.getUser(id)
}

func (t *txRepository) GetUserByEmail(ctx context.Context, email string) (*recipebox.User, error) {
	return t.s.getUserByEmail(email)
}

func (t *txRepository) CreateUser(ctx context.Context, user *recipebox.User) error {
	return t.s.createUser(user)
}

func (t *txRepository) UpdateUser(ctx context.Context, user *recipebox.User) error {
	return t.s.updateUser(user)
}

func (t *txRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return t.s.deleteUser(id)
}

func (t *txRepository) CreateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	return t.s.createRecipe(recipe)
}

func (t *txRepository) GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*recipebox.Recipe, error) {
	return t.s.getRecipe(ownerID, recipeID)
}

func (t *txRepository) UpdateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	return t.s.updateRecipe(recipe)
}

func (t *txRepository) DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error {
	return t.s.deleteRecipe(ownerID, recipeID)
}

func (t *txRepository) ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*recipebox.Recipe, error) {
	return t.s.listRecipes(ownerID, skip, limit), nil
}

func (t *txRepository) CountRecipes(ctx context.Context, ownerID uuid.UUID) (int, error) {
	count := 0
	for _, rec := range t.s.recipes {
		if rec.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (t *txRepository) ListRecipesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*recipebox.Recipe, error) {
	return t.s.listByOwner(ownerID), nil
}

func (t *txRepository) ListAssetRefs(ctx context.Context) ([]string, error) {
	return t.s.listAssetRefs(), nil
}

// InTx on a transaction view runs fn against the same transaction.
func (t *txRepository) InTx(ctx context.Context, fn func(tx recipebox.Repository) error) error {
	return fn(t)
}
