package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	errx "github.com/pidebot/engine/internal/core/error"
	"github.com/pidebot/engine/internal/domain"
	logx "github.com/pidebot/engine/pkg/logger"
)

// record is the gorm row shape. Draft and history are JSON columns so the
// store stays the single owner of their encoding.
type record struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RestaurantID      string         `gorm:"size:64;not null;index:idx_conversations_pair"`
	CustomerPhone     string         `gorm:"size:32;not null;index:idx_conversations_pair"`
	Status            string         `gorm:"size:16;not null;index"`
	CurrentStep       string         `gorm:"size:16;not null"`
	OrderDraft        datatypes.JSON `gorm:"not null"`
	MessageHistory    datatypes.JSON `gorm:"not null"`
	Summary           string
	LastInteractionAt time.Time `gorm:"not null;index"`
	CreatedAt         time.Time `gorm:"not null"`
}

func (record) TableName() string { return "conversations" }

// GormStore is the relational Store implementation.
type GormStore struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewGormStore wraps the given connection. The connection must have been
// opened with TranslateError so duplicate-key violations are detectable
// across drivers.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, nowFunc: time.Now}
}

// Migrate creates the conversations table and the partial unique index
// that enforces at most one active conversation per (restaurant, phone).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migrate conversations: %w", err)
	}
	// Partial index: uniqueness applies to active rows only, so closed
	// conversations accumulate freely. Supported by postgres and sqlite.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active_pair
		ON conversations (restaurant_id, customer_phone)
		WHERE status = 'active'
	`).Error; err != nil {
		return fmt.Errorf("create active-pair index: %w", err)
	}
	return nil
}

func (s *GormStore) toDomain(r *record) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:              r.ID,
		RestaurantID:    r.RestaurantID,
		CustomerPhone:   r.CustomerPhone,
		Status:          domain.Status(r.Status),
		CurrentStep:     domain.Step(r.CurrentStep),
		Summary:         r.Summary,
		LastInteraction: r.LastInteractionAt,
		CreatedAt:       r.CreatedAt,
	}
	if err := json.Unmarshal(r.OrderDraft, &c.OrderDraft); err != nil {
		return nil, errx.Database(fmt.Errorf("decode order draft %s: %w", r.ID, err))
	}
	if err := json.Unmarshal(r.MessageHistory, &c.MessageHistory); err != nil {
		return nil, errx.Database(fmt.Errorf("decode message history %s: %w", r.ID, err))
	}
	return c, nil
}

func encodeDraft(d domain.OrderDraft) (datatypes.JSON, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errx.Database(fmt.Errorf("encode order draft: %w", err))
	}
	return b, nil
}

func encodeHistory(h []domain.Message) (datatypes.JSON, error) {
	if h == nil {
		h = []domain.Message{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, errx.Database(fmt.Errorf("encode message history: %w", err))
	}
	return b, nil
}

func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errx.Validation("invalid conversation id %q", id)
	}
	return u, nil
}

func (s *GormStore) findRecord(ctx context.Context, tx *gorm.DB, id string) (*record, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		tx = s.db
	}
	var r record
	if err := tx.WithContext(ctx).First(&r, "id = ?", u).Error; err != nil {
		return nil, errx.WrapDB(err, "conversation")
	}
	return &r, nil
}

func (s *GormStore) create(ctx context.Context, restaurantID, customerPhone string, deliveryFee float64) (*domain.Conversation, error) {
	now := s.nowFunc().UTC()
	draft, err := encodeDraft(domain.NewOrderDraft(deliveryFee))
	if err != nil {
		return nil, err
	}
	history, err := encodeHistory(nil)
	if err != nil {
		return nil, err
	}
	r := record{
		ID:                uuid.New(),
		RestaurantID:      restaurantID,
		CustomerPhone:     customerPhone,
		Status:            string(domain.StatusActive),
		CurrentStep:       string(domain.StepGreeting),
		OrderDraft:        draft,
		MessageHistory:    history,
		LastInteractionAt: now,
		CreatedAt:         now,
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race: another writer inserted the active
			// row between our read and write. Re-read it instead of
			// duplicating.
			return nil, gorm.ErrDuplicatedKey
		}
		return nil, errx.Database(err)
	}
	return s.toDomain(&r)
}

func (s *GormStore) GetOrCreate(ctx context.Context, restaurantID, customerPhone string, deliveryFee float64, maxAge time.Duration) (*domain.Conversation, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.FindActive(ctx, restaurantID, customerPhone)
		switch {
		case err == nil:
			if !existing.Expired(s.nowFunc().UTC(), maxAge) {
				return existing, false, nil
			}
			// Idle past the threshold: close it now rather than waiting
			// for the sweep, then fall through to create a replacement.
			if _, err := s.SetStatus(ctx, existing.ID.String(), domain.StatusAbandoned, "expired after inactivity"); err != nil {
				return nil, false, err
			}
			logx.Info().
				Str("conversation_id", existing.ID.String()).
				Str("restaurant_id", restaurantID).
				Msg("abandoned expired conversation on inbound message")
		case errx.IsNotFound(err):
			// no active row, create below
		default:
			return nil, false, err
		}

		created, err := s.create(ctx, restaurantID, customerPhone, deliveryFee)
		if err == nil {
			return created, true, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, false, err
	}
	// Two straight duplicate-key losses means a concurrent writer keeps
	// beating us; surface whatever row it left behind.
	existing, err := s.FindActive(ctx, restaurantID, customerPhone)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, id string, role domain.Role, content string) (*domain.Conversation, error) {
	if !role.Valid() {
		return nil, errx.Validation("invalid message role %q", role)
	}
	var out *domain.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.findRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		c, err := s.toDomain(r)
		if err != nil {
			return err
		}
		now := s.nowFunc().UTC()
		c.MessageHistory = domain.TrimHistory(append(c.MessageHistory, domain.Message{
			Role:      role,
			Content:   content,
			Timestamp: now,
		}))
		history, err := encodeHistory(c.MessageHistory)
		if err != nil {
			return err
		}
		c.LastInteraction = now
		if err := tx.Model(&record{}).Where("id = ?", r.ID).Updates(map[string]any{
			"message_history":     history,
			"last_interaction_at": now,
		}).Error; err != nil {
			return errx.Database(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ReplaceOrderDraft(ctx context.Context, id string, draft domain.OrderDraft) (*domain.Conversation, error) {
	if !draft.Reconciled() {
		return nil, errx.Validation("order draft totals do not reconcile: subtotal=%.2f fee=%.2f total=%.2f",
			draft.Subtotal, draft.DeliveryFee, draft.Total)
	}
	if draft.SchemaVersion == 0 {
		draft.SchemaVersion = domain.DraftSchemaVersion
	}
	encoded, err := encodeDraft(draft)
	if err != nil {
		return nil, err
	}
	var out *domain.Conversation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.findRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if domain.Status(r.Status).Terminal() {
			return errx.Validation("conversation %s is %s and immutable", id, r.Status)
		}
		if err := tx.Model(&record{}).Where("id = ?", r.ID).
			Update("order_draft", encoded).Error; err != nil {
			return errx.Database(err)
		}
		r.OrderDraft = encoded
		out, err = s.toDomain(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Transition(ctx context.Context, id string, step domain.Step) (*domain.Conversation, error) {
	if !step.Known() {
		return nil, errx.Validation("unknown step %q", step)
	}
	var out *domain.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.findRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if domain.Status(r.Status).Terminal() {
			return errx.Validation("conversation %s is %s and immutable", id, r.Status)
		}
		cur := domain.Step(r.CurrentStep)
		if !cur.CanTransitionTo(step) {
			return errx.Validation("cannot transition step %s -> %s", cur, step)
		}
		if err := tx.Model(&record{}).Where("id = ?", r.ID).
			Update("current_step", string(step)).Error; err != nil {
			return errx.Database(err)
		}
		r.CurrentStep = string(step)
		out, err = s.toDomain(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) SetStatus(ctx context.Context, id string, status domain.Status, summary string) (*domain.Conversation, error) {
	if !status.Terminal() {
		return nil, errx.Validation("status %q is not a terminal status", status)
	}
	var out *domain.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.findRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if domain.Status(r.Status).Terminal() {
			return errx.Validation("conversation %s is already %s", id, r.Status)
		}
		updates := map[string]any{"status": string(status)}
		if summary != "" {
			updates["summary"] = summary
		}
		if status == domain.StatusCompleted {
			updates["current_step"] = string(domain.StepCompleted)
			r.CurrentStep = string(domain.StepCompleted)
		}
		if err := tx.Model(&record{}).Where("id = ?", r.ID).Updates(updates).Error; err != nil {
			return errx.Database(err)
		}
		r.Status = string(status)
		if summary != "" {
			r.Summary = summary
		}
		out, err = s.toDomain(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Complete(ctx context.Context, id string, orderReference string) (*domain.Conversation, error) {
	var out *domain.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.findRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if domain.Status(r.Status).Terminal() {
			return errx.Validation("conversation %s is already %s", id, r.Status)
		}
		c, err := s.toDomain(r)
		if err != nil {
			return err
		}
		c.OrderDraft.OrderReference = orderReference
		encoded, err := encodeDraft(c.OrderDraft)
		if err != nil {
			return err
		}
		if err := tx.Model(&record{}).Where("id = ?", r.ID).Updates(map[string]any{
			"status":       string(domain.StatusCompleted),
			"current_step": string(domain.StepCompleted),
			"order_draft":  encoded,
		}).Error; err != nil {
			return errx.Database(err)
		}
		c.Status = domain.StatusCompleted
		c.CurrentStep = domain.StepCompleted
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	r, err := s.findRecord(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return s.toDomain(r)
}

func (s *GormStore) FindActive(ctx context.Context, restaurantID, customerPhone string) (*domain.Conversation, error) {
	var r record
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND customer_phone = ? AND status = ?",
			restaurantID, customerPhone, string(domain.StatusActive)).
		First(&r).Error
	if err != nil {
		return nil, errx.WrapDB(err, "active conversation")
	}
	return s.toDomain(&r)
}

func (s *GormStore) ExpireStale(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := s.nowFunc().UTC().Add(-threshold)
	res := s.db.WithContext(ctx).Model(&record{}).
		Where("status = ? AND last_interaction_at < ?", string(domain.StatusActive), cutoff).
		Updates(map[string]any{
			"status":  string(domain.StatusAbandoned),
			"summary": "expired after inactivity",
		})
	if res.Error != nil {
		return 0, errx.Database(res.Error)
	}
	if res.RowsAffected > 0 {
		logx.Info().Int64("count", res.RowsAffected).Msg("abandoned stale conversations")
	}
	return res.RowsAffected, nil
}

var _ Store = (*GormStore)(nil)
