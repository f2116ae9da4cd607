package recipebox

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUserNotFound indicates the principal or profile does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrRecipeNotFound indicates a recipe is absent or not owned by the caller
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrAssetCountMismatch indicates the upload batch and the declared asset
	// changes do not correlate one-to-one
	ErrAssetCountMismatch = errors.New("upload batch does not match declared asset changes")

	// ErrDuplicateStageNumber indicates two declared stages share a stage number
	ErrDuplicateStageNumber = errors.New("duplicate stage number")

	// ErrUploadFailed indicates the blob store rejected or failed a write
	ErrUploadFailed = errors.New("asset upload failed")

	// ErrVersionConflict indicates a concurrent update won the row
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// RecordError represents a failure of a relational record operation.
type RecordError struct {
	RecordID uuid.UUID
	Op       string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure of a blob store operation.
type StorageError struct {
	Folder string
	Ref    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("storage operation %s failed for %s: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed in folder %s: %v", e.Op, e.Folder, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
