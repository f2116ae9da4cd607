package recipebox

import (
	"time"

	"github.com/google/uuid"
)

// User role constants.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Blob store folders. Every asset reference is prefixed with the folder it
// was uploaded to, mirroring how references are grouped in the store.
const (
	FolderUserImages   = "user-images"
	FolderRecipeImages = "recipe-images"
)

// RecipeCategory is the domain type for recipe categories.
type RecipeCategory string

// Recipe category constants (typed).
const (
	CategoryBreakfast RecipeCategory = "breakfast"
	CategorySoup      RecipeCategory = "soup"
	CategoryMain      RecipeCategory = "main"
	CategorySalad     RecipeCategory = "salad"
	CategoryDessert   RecipeCategory = "dessert"
	CategoryDrink     RecipeCategory = "drink"
)

// User represents a registered account and its profile. AvatarRef is a weak
// link: it names an asset in the blob store but does not own the bytes.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	UserName     string    `json:"user_name,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	AvatarRef    *string   `json:"avatar_ref,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Stage is one step of a recipe. StageNumber is the stable identity key used
// to match stages across updates; it is not a positional index, because
// stages may be reordered, inserted or removed between updates.
type Stage struct {
	StageNumber int     `json:"stage_number"`
	AssetRef    *string `json:"asset_ref,omitempty"`
	Description string  `json:"description"`
}

// Recipe is a content record owned by a user. It holds at most one title
// asset reference plus one optional reference per stage.
//
// Version guards concurrent updates: the repository only applies an update
// whose Version matches the stored row and bumps it on success.
type Recipe struct {
	ID            uuid.UUID      `json:"id"`
	OwnerID       uuid.UUID      `json:"owner_id"`
	Title         string         `json:"title"`
	Category      RecipeCategory `json:"category"`
	Description   string         `json:"description"`
	IsVegan       bool           `json:"is_vegan"`
	Ingredients   []string       `json:"ingredients"`
	TitleAssetRef *string        `json:"title_asset_ref,omitempty"`
	Stages        []Stage        `json:"stages"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AssetRefs collects every asset reference held by the recipe: the title
// reference plus each stage reference. This is the reclaim set for a delete.
func (r *Recipe) AssetRefs() []string {
	var refs []string
	if r.TitleAssetRef != nil {
		refs = append(refs, *r.TitleAssetRef)
	}
	for _, st := range r.Stages {
		if st.AssetRef != nil {
			refs = append(refs, *st.AssetRef)
		}
	}
	return refs
}

// RecipePage is one page of an owner-scoped recipe listing.
type RecipePage struct {
	Total   int       `json:"total"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
	Results []*Recipe `json:"results"`
}
