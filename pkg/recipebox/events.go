package recipebox

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink, for callers
// that do not need lifecycle notifications.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) RecipeCreated(ctx context.Context, recipe *Recipe) error { return nil }

func (n *NoopEventSink) RecipeUpdated(ctx context.Context, recipe *Recipe) error { return nil }

func (n *NoopEventSink) RecipeDeleted(ctx context.Context, recipeID uuid.UUID) error { return nil }

func (n *NoopEventSink) UserUpdated(ctx context.Context, user *User) error { return nil }

func (n *NoopEventSink) UserDeleted(ctx context.Context, userID uuid.UUID) error { return nil }

func (n *NoopEventSink) CleanupFailed(ctx context.Context, refs []string, cause error) error {
	return nil
}

// SlogEventSink logs lifecycle events through a structured logger. Cleanup
// failures are logged at error level so leaked references show up in
// monitoring and can be reconciled out of band.
type SlogEventSink struct {
	logger *slog.Logger
}

// NewSlogEventSink creates an event sink backed by the given logger.
func NewSlogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEventSink{logger: logger}
}

func (s *SlogEventSink) RecipeCreated(ctx context.Context, recipe *Recipe) error {
	s.logger.Info("recipe created", "recipe_id", recipe.ID, "owner_id", recipe.OwnerID)
	return nil
}

func (s *SlogEventSink) RecipeUpdated(ctx context.Context, recipe *Recipe) error {
	s.logger.Info("recipe updated", "recipe_id", recipe.ID, "version", recipe.Version)
	return nil
}

func (s *SlogEventSink) RecipeDeleted(ctx context.Context, recipeID uuid.UUID) error {
	s.logger.Info("recipe deleted", "recipe_id", recipeID)
	return nil
}

func (s *SlogEventSink) UserUpdated(ctx context.Context, user *User) error {
	s.logger.Info("user updated", "user_id", user.ID)
	return nil
}

func (s *SlogEventSink) UserDeleted(ctx context.Context, userID uuid.UUID) error {
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

func (s *SlogEventSink) CleanupFailed(ctx context.Context, refs []string, cause error) error {
	s.logger.Error("asset cleanup failed, refs leaked until reconciliation",
		"refs", refs, "err", cause)
	return nil
}
