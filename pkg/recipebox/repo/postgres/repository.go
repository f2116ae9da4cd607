// Package postgres implements recipebox.Repository using PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platefork/recipebox/pkg/recipebox"
)

// DBTX is an interface that allows us to use either a connection pool or a
// transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements recipebox.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "email") {
				return fmt.Errorf("email already in use")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// User operations

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*recipebox.User, error) {
	query := `
		SELECT id, email, user_name, role, password_hash, avatar_ref, created_at, updated_at
		FROM users WHERE id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, id), "get user")
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*recipebox.User, error) {
	query := `
		SELECT id, email, user_name, role, password_hash, avatar_ref, created_at, updated_at
		FROM users WHERE email = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, email), "get user by email")
}

func (r *Repository) scanUser(row pgx.Row, operation string) (*recipebox.User, error) {
	var u recipebox.User
	err := row.Scan(&u.ID, &u.Email, &u.UserName, &u.Role, &u.PasswordHash,
		&u.AvatarRef, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recipebox.ErrUserNotFound
	}
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	return &u, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *recipebox.User) error {
	query := `
		INSERT INTO users (id, email, user_name, role, password_hash, avatar_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.UserName, user.Role, user.PasswordHash,
		user.AvatarRef, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create user", err)
	}
	return nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *recipebox.User) error {
	query := `
		UPDATE users
		SET email = $2, user_name = $3, role = $4, password_hash = $5, avatar_ref = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.UserName, user.Role, user.PasswordHash,
		user.AvatarRef, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return recipebox.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user row; owned recipes go with it through the
// ON DELETE CASCADE constraint.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return recipebox.ErrUserNotFound
	}
	return nil
}

// Recipe operations

func (r *Repository) CreateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	stages, err := json.Marshal(recipe.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		INSERT INTO recipes (
			id, owner_id, title, category, description, is_vegan,
			ingredients, title_asset_ref, stages, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		recipe.ID, recipe.OwnerID, recipe.Title, recipe.Category,
		recipe.Description, recipe.IsVegan, recipe.Ingredients,
		recipe.TitleAssetRef, stages, recipe.Version,
		recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create recipe", err)
	}
	return nil
}

const recipeColumns = `
	id, owner_id, title, category, description, is_vegan,
	ingredients, title_asset_ref, stages, version, created_at, updated_at`

func (r *Repository) GetRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) (*recipebox.Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE id = $1 AND owner_id = $2`

	recipe, err := scanRecipe(r.db.QueryRow(ctx, query, recipeID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recipebox.ErrRecipeNotFound
	}
	if err != nil {
		return nil, r.handlePostgresError("get recipe", err)
	}
	return recipe, nil
}

func scanRecipe(row pgx.Row) (*recipebox.Recipe, error) {
	var rec recipebox.Recipe
	var stages []byte

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Category,
		&rec.Description, &rec.IsVegan, &rec.Ingredients,
		&rec.TitleAssetRef, &stages, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &rec.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode stages: %w", err)
		}
	}
	return &rec, nil
}

// UpdateRecipe writes the recipe guarded by its version. A zero row count
// means either the row is gone or another writer got there first; a probe
// by id tells the two apart. The version bump is reflected back into recipe.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe *recipebox.Recipe) error {
	stages, err := json.Marshal(recipe.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		UPDATE recipes
		SET title = $3, category = $4, description = $5, is_vegan = $6,
		    ingredients = $7, title_asset_ref = $8, stages = $9,
		    version = version + 1, updated_at = $10
		WHERE id = $1 AND owner_id = $2 AND version = $11`

	tag, err := r.db.Exec(ctx, query,
		recipe.ID, recipe.OwnerID, recipe.Title, recipe.Category,
		recipe.Description, recipe.IsVegan, recipe.Ingredients,
		recipe.TitleAssetRef, stages, recipe.UpdatedAt, recipe.Version)
	if err != nil {
		return r.handlePostgresError("update recipe", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		probe := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1 AND owner_id = $2)`,
			recipe.ID, recipe.OwnerID)
		if err := probe.Scan(&exists); err != nil {
			return r.handlePostgresError("update recipe", err)
		}
		if exists {
			return recipebox.ErrVersionConflict
		}
		return recipebox.ErrRecipeNotFound
	}

	recipe.Version++
	return nil
}

func (r *Repository) DeleteRecipe(ctx context.Context, ownerID, recipeID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM recipes WHERE id = $1 AND owner_id = $2`, recipeID, ownerID)
	if err != nil {
		return r.handlePostgresError("delete recipe", err)
	}
	if tag.RowsAffected() == 0 {
		return recipebox.ErrRecipeNotFound
	}
	return nil
}

func (r *Repository) ListRecipes(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*recipebox.Recipe, error) {
	query := `SELECT ` + recipeColumns + `
		FROM recipes WHERE owner_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`

	rows, err := r.db.Query(ctx, query, ownerID, skip, limit)
	if err != nil {
		return nil, r.handlePostgresError("list recipes", err)
	}
	defer rows.Close()

	return collectRecipes(rows, r)
}

func (r *Repository) ListRecipesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*recipebox.Recipe, error) {
	query := `SELECT ` + recipeColumns + `
		FROM recipes WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, r.handlePostgresError("list recipes by owner", err)
	}
	defer rows.Close()

	return collectRecipes(rows, r)
}

func collectRecipes(rows pgx.Rows, r *Repository) ([]*recipebox.Recipe, error) {
	var recipes []*recipebox.Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan recipe", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate recipe rows", err)
	}
	return recipes, nil
}

func (r *Repository) CountRecipes(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM recipes WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, r.handlePostgresError("count recipes", err)
	}
	return count, nil
}

// ListAssetRefs returns every blob ref the relational store still points at:
// avatar refs plus title and stage refs across all recipes.
func (r *Repository) ListAssetRefs(ctx context.Context) ([]string, error) {
	var refs []string

	rows, err := r.db.Query(ctx,
		`SELECT avatar_ref FROM users WHERE avatar_ref IS NOT NULL`)
	if err != nil {
		return nil, r.handlePostgresError("list avatar refs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, r.handlePostgresError("scan avatar ref", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate avatar refs", err)
	}

	recipeRows, err := r.db.Query(ctx,
		`SELECT title_asset_ref, stages FROM recipes`)
	if err != nil {
		return nil, r.handlePostgresError("list recipe refs", err)
	}
	defer recipeRows.Close()
	for recipeRows.Next() {
		var titleRef *string
		var stagesJSON []byte
		if err := recipeRows.Scan(&titleRef, &stagesJSON); err != nil {
			return nil, r.handlePostgresError("scan recipe refs", err)
		}
		if titleRef != nil {
			refs = append(refs, *titleRef)
		}
		if len(stagesJSON) > 0 {
			var stages []recipebox.Stage
			if err := json.Unmarshal(stagesJSON, &stages); err != nil {
				return nil, fmt.Errorf("failed to decode stages: %w", err)
			}
			for _, st := range stages {
				if st.AssetRef != nil {
					refs = append(refs, *st.AssetRef)
				}
			}
		}
	}
	if err := recipeRows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate recipe refs", err)
	}

	return refs, nil
}

// InTx runs fn inside a database transaction. The callback gets a Repository
// bound to the transaction; rollback on error, commit on success.
func (r *Repository) InTx(ctx context.Context, fn func(tx recipebox.Repository) error) error {
	dbTx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("begin transaction", err)
	}

	if err := fn(&Repository{db: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return r.handlePostgresError("commit transaction", err)
	}
	return nil
}
