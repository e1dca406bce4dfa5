package store

import (
	"context"
	"time"

	"github.com/pidebot/engine/internal/domain"
)

// Store owns persisted conversation rows and every mutation applied to
// them. It is the sole (de)serialization point for drafts and history;
// callers never patch rows in place.
type Store interface {
	// GetOrCreate returns the active conversation for the pair, creating
	// one at the greeting step when none exists. An active row idle longer
	// than maxAge is abandoned synchronously and replaced with a fresh
	// conversation. The boolean reports whether a new row was created.
	GetOrCreate(ctx context.Context, restaurantID, customerPhone string, deliveryFee float64, maxAge time.Duration) (*domain.Conversation, bool, error)

	// AppendMessage appends one transcript entry, truncates history to the
	// trailing bound and refreshes last_interaction_at.
	AppendMessage(ctx context.Context, id string, role domain.Role, content string) (*domain.Conversation, error)

	// ReplaceOrderDraft swaps the whole draft after validating that its
	// totals reconcile.
	ReplaceOrderDraft(ctx context.Context, id string, draft domain.OrderDraft) (*domain.Conversation, error)

	// Transition moves the conversation to a new step. Steps are forward
	// only, except the sanctioned fallback from address or confirming back
	// to ordering.
	Transition(ctx context.Context, id string, step domain.Step) (*domain.Conversation, error)

	// SetStatus applies one of the terminal statuses and records an
	// optional closing summary. Terminal rows reject all further mutation.
	SetStatus(ctx context.Context, id string, status domain.Status, summary string) (*domain.Conversation, error)

	// Complete stores the external order reference inside the draft and
	// marks the conversation completed.
	Complete(ctx context.Context, id string, orderReference string) (*domain.Conversation, error)

	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindActive(ctx context.Context, restaurantID, customerPhone string) (*domain.Conversation, error)

	// ExpireStale abandons every active conversation idle longer than
	// threshold and returns how many rows it closed. The periodic sweep
	// and the inline check in GetOrCreate share these semantics.
	ExpireStale(ctx context.Context, threshold time.Duration) (int64, error)
}
