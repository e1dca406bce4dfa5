package engine

import (
	"context"
	"strings"
	"time"

	"github.com/pidebot/engine/internal/analyzer"
	errx "github.com/pidebot/engine/internal/core/error"
	"github.com/pidebot/engine/internal/domain"
	"github.com/pidebot/engine/internal/gateway"
	"github.com/pidebot/engine/internal/mutator"
	"github.com/pidebot/engine/internal/prompt"
	"github.com/pidebot/engine/internal/store"
	logx "github.com/pidebot/engine/pkg/logger"
)

// TurnResult is what the channel adapter gets back for one inbound message.
type TurnResult struct {
	ReplyText      string
	Conversation   *domain.Conversation
	ActionsApplied []analyzer.Action
}

// Engine owns the conversation lifecycle: it fetches or creates the
// conversation, runs the prompt/completion/analysis/mutation pipeline for
// each inbound message and decides step transitions.
type Engine struct {
	store    store.Store
	gw       *gateway.Gateway
	analyzer analyzer.Analyzer
	locker   Locker

	// turnLockTTL caps how long one turn may hold the per-customer lock;
	// it must exceed the completion timeout, so it is derived from it.
	turnLockTTL time.Duration
}

// turnLockSlack covers the storage work around the completion call.
const turnLockSlack = 15 * time.Second

func New(st store.Store, gw *gateway.Gateway, an analyzer.Analyzer, locker Locker) *Engine {
	if locker == nil {
		locker = NoopLocker{}
	}
	if an == nil {
		an = analyzer.NewKeywordAnalyzer()
	}
	return &Engine{
		store:       st,
		gw:          gw,
		analyzer:    an,
		locker:      locker,
		turnLockTTL: gw.Timeout() + turnLockSlack,
	}
}

var restartKeywords = []string{
	"reiniciar", "empezar de nuevo", "comenzar de nuevo", "borrar mi pedido y empezar",
}

func isRestartRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range restartKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// HandleTurn is the single entry point the channel adapter invokes per
// inbound message. Storage failures abort the turn (the adapter redelivers
// the message); completion failures never do.
func (e *Engine) HandleTurn(ctx context.Context, rc domain.RestaurantContext, customerPhone, userText string) (*TurnResult, error) {
	lockKey := "turn:" + rc.Profile.ID + ":" + customerPhone
	release, ok := e.locker.Acquire(ctx, lockKey, e.turnLockTTL)
	if !ok {
		// The adapter should not dispatch concurrent turns for one
		// customer; if it does anyway, the store operations below are
		// still safe, so proceed rather than dropping the message.
		logx.Warn().Str("key", lockKey).Msg("concurrent turn for same customer, proceeding without lock")
	}
	defer release()

	if isRestartRequest(userText) {
		if err := e.abandonActive(ctx, rc.Profile.ID, customerPhone, "restarted by customer"); err != nil {
			return nil, err
		}
	}

	conv, created, err := e.store.GetOrCreate(ctx, rc.Profile.ID, customerPhone, rc.Profile.DeliveryFee, rc.Profile.ConversationMaxAge())
	if err != nil {
		return nil, err
	}
	if created {
		logx.Info().
			Str("conversation_id", conv.ID.String()).
			Str("restaurant_id", rc.Profile.ID).
			Msg("started conversation")
	}
	id := conv.ID.String()

	// History as it stood before this turn goes into the prompt; the new
	// message travels separately as the user turn.
	priorHistory := conv.MessageHistory

	conv, err = e.store.AppendMessage(ctx, id, domain.RoleUser, userText)
	if err != nil {
		return nil, err
	}

	contextText := prompt.Build(rc, conv.OrderDraft, priorHistory, conv.CurrentStep)
	reply := e.gw.Complete(ctx, contextText, userText)

	an := e.analyzer.Classify(reply.Text)

	draft := conv.OrderDraft
	res := mutator.Apply(&draft, an, reply.Text, rc.Catalog)
	if len(res.Applied) > 0 {
		updated, uerr := e.store.ReplaceOrderDraft(ctx, id, draft)
		switch {
		case uerr == nil:
			conv = updated
		case errx.IsValidation(uerr):
			// A single bad mutation degrades to a skipped action, never
			// a failed turn. conv keeps its pre-mutation state.
			res.Applied = nil
			logx.Warn().Err(uerr).Str("conversation_id", id).Msg("skipping draft replacement")
		default:
			return nil, uerr
		}
	}

	if next := nextStep(conv.CurrentStep, an, &conv.OrderDraft); next != conv.CurrentStep {
		updated, terr := e.store.Transition(ctx, id, next)
		switch {
		case terr == nil:
			conv = updated
		case errx.IsValidation(terr):
			logx.Warn().Err(terr).Str("conversation_id", id).Msg("skipping step transition")
		default:
			return nil, terr
		}
	}

	conv, err = e.store.AppendMessage(ctx, id, domain.RoleAssistant, reply.Text)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		ReplyText:      reply.Text,
		Conversation:   conv,
		ActionsApplied: res.Applied,
	}, nil
}

// nextStep decides where the conversation moves after this turn. Steps only
// advance, with one sanctioned exception: an add/remove action detected at
// address or confirming drops back to ordering.
func nextStep(cur domain.Step, an analyzer.Analysis, draft *domain.OrderDraft) domain.Step {
	if cur == domain.StepAddress || cur == domain.StepConfirming {
		for _, a := range an.Actions {
			if a == analyzer.ActionAddItems || a == analyzer.ActionRemoveItems || a == analyzer.ActionModifyOrder {
				return domain.StepOrdering
			}
		}
	}

	hasItems := len(draft.Items) > 0
	addressDone := draft.DeliveryAddress.Complete()

	switch cur {
	case domain.StepGreeting:
		if hasItems || an.Intent == analyzer.IntentOrdering {
			return domain.StepOrdering
		}
	case domain.StepOrdering:
		if hasItems && addressDone {
			return domain.StepConfirming
		}
		if hasItems && (an.Intent == analyzer.IntentAddress || an.Intent == analyzer.IntentConfirmation) {
			return domain.StepAddress
		}
	case domain.StepAddress:
		if addressDone {
			return domain.StepConfirming
		}
	}
	return cur
}

func (e *Engine) abandonActive(ctx context.Context, restaurantID, customerPhone, summary string) error {
	conv, err := e.store.FindActive(ctx, restaurantID, customerPhone)
	if err != nil {
		if errx.IsNotFound(err) {
			return nil
		}
		return err
	}
	_, err = e.store.SetStatus(ctx, conv.ID.String(), domain.StatusAbandoned, summary)
	return err
}

// Restart abandons any active conversation for the pair and creates a
// fresh one. Same effect as expiry, different trigger.
func (e *Engine) Restart(ctx context.Context, rc domain.RestaurantContext, customerPhone string) (*domain.Conversation, error) {
	if err := e.abandonActive(ctx, rc.Profile.ID, customerPhone, "restarted"); err != nil {
		return nil, err
	}
	conv, _, err := e.store.GetOrCreate(ctx, rc.Profile.ID, customerPhone, rc.Profile.DeliveryFee, rc.Profile.ConversationMaxAge())
	return conv, err
}

// Complete is invoked by the order-finalization collaborator once the
// external order exists; the reference is kept in the draft for
// traceability.
func (e *Engine) Complete(ctx context.Context, conversationID, orderReference string) (*domain.Conversation, error) {
	return e.store.Complete(ctx, conversationID, orderReference)
}
