package recipebox

import "github.com/google/uuid"

// Request DTOs

// UploadFile is one raw asset submitted alongside a record mutation. Key
// names the file inside its batch; asset patches reference it explicitly, so
// there is no positional coupling between batch order and slot order.
type UploadFile struct {
	Key      string
	FileName string
	MimeType string
	Data     []byte
}

// UploadBatch is the set of files submitted with one request.
type UploadBatch []UploadFile

// AssetOp declares what should happen to a single asset slot.
type AssetOp string

const (
	// AssetOpKeep leaves the slot's stored reference untouched.
	AssetOpKeep AssetOp = "keep"
	// AssetOpClear empties the slot; a previously stored reference becomes
	// an orphan.
	AssetOpClear AssetOp = "clear"
	// AssetOpUpload fills the slot from the batch entry named by UploadKey.
	AssetOpUpload AssetOp = "upload"
)

// AssetPatch is the per-slot asset declaration of a mutation request. The
// zero value keeps the slot unchanged.
type AssetPatch struct {
	Op        AssetOp `json:"op,omitempty"`
	UploadKey string  `json:"upload_key,omitempty"`
}

// KeepAsset leaves a slot unchanged.
func KeepAsset() AssetPatch { return AssetPatch{Op: AssetOpKeep} }

// ClearAsset empties a slot.
func ClearAsset() AssetPatch { return AssetPatch{Op: AssetOpClear} }

// UploadAsset fills a slot from the named upload batch entry.
func UploadAsset(key string) AssetPatch {
	return AssetPatch{Op: AssetOpUpload, UploadKey: key}
}

// StagePatch declares one stage of the recipe as the client wants it after
// the mutation. Stages are matched to stored ones by StageNumber.
type StagePatch struct {
	StageNumber int        `json:"stage_number"`
	Description string     `json:"description"`
	Image       AssetPatch `json:"image"`
}

// CreateRecipeRequest contains parameters for creating a recipe.
type CreateRecipeRequest struct {
	OwnerID     uuid.UUID
	Title       string
	Category    RecipeCategory
	Description string
	IsVegan     bool
	Ingredients []string
	TitleImage  AssetPatch
	Stages      []StagePatch
	Files       UploadBatch
}

// UpdateRecipeRequest contains parameters for updating a recipe in place.
// Nil field pointers leave the field unchanged. A nil Stages slice keeps the
// stored stages verbatim; a non-nil slice is the full declared stage list,
// and stored stages missing from it are deleted.
type UpdateRecipeRequest struct {
	OwnerID     uuid.UUID
	RecipeID    uuid.UUID
	Title       *string
	Category    *RecipeCategory
	Description *string
	IsVegan     *bool
	Ingredients []string
	TitleImage  AssetPatch
	Stages      []StagePatch
	Files       UploadBatch
}

// UpdateUserRequest contains parameters for updating a user profile.
type UpdateUserRequest struct {
	UserID   uuid.UUID
	Email    *string
	UserName *string
	Avatar   AssetPatch
	Files    UploadBatch
}
