package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a conversation. Terminal statuses are
// irreversible; historical rows persist after closure.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Step is the position of a conversation inside the ordering flow.
type Step string

const (
	StepGreeting   Step = "greeting"
	StepOrdering   Step = "ordering"
	StepAddress    Step = "address"
	StepConfirming Step = "confirming"
	StepCompleted  Step = "completed"
)

var stepOrder = map[Step]int{
	StepGreeting:   0,
	StepOrdering:   1,
	StepAddress:    2,
	StepConfirming: 3,
	StepCompleted:  4,
}

// Known reports whether s is one of the defined steps.
func (s Step) Known() bool {
	_, ok := stepOrder[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is sanctioned.
// Steps move forward only, with one exception: address and confirming may
// fall back to ordering when the customer adds or removes items. The
// completed step is terminal and refuses every move, itself included.
func (s Step) CanTransitionTo(next Step) bool {
	cur, ok := stepOrder[s]
	if !ok {
		return false
	}
	nxt, ok := stepOrder[next]
	if !ok {
		return false
	}
	if s == StepCompleted {
		return false
	}
	if next == StepOrdering && (s == StepAddress || s == StepConfirming) {
		return true
	}
	return nxt >= cur
}

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the history accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// MaxHistoryEntries bounds message history to the most recent 6 exchanges.
// Older entries are dropped, never archived here.
const MaxHistoryEntries = 12

// Message is a single entry of the conversation transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TrimHistory returns history bounded to the trailing MaxHistoryEntries,
// preserving append order.
func TrimHistory(history []Message) []Message {
	if len(history) <= MaxHistoryEntries {
		return history
	}
	return history[len(history)-MaxHistoryEntries:]
}

// DraftSchemaVersion is stored inside every serialized draft so future
// readers can migrate old rows.
const DraftSchemaVersion = 1

// Customization is a priced modifier on an order line.
type Customization struct {
	Name      string  `json:"name"`
	ExtraCost float64 `json:"extra_cost"`
}

// OrderItem is one line of the order draft. Each add is its own line;
// duplicate catalog items are not merged.
type OrderItem struct {
	CatalogItemID  string          `json:"catalog_item_id"`
	Name           string          `json:"name"`
	UnitPrice      float64         `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Customizations []Customization `json:"customizations,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ItemTotal      float64         `json:"item_total"`
}

// ComputeTotal derives ItemTotal from the line's own fields.
func (i *OrderItem) ComputeTotal() float64 {
	extras := 0.0
	for _, c := range i.Customizations {
		extras += c.ExtraCost
	}
	return (i.UnitPrice + extras) * float64(i.Quantity)
}

// DeliveryAddress may be populated a field at a time across turns.
type DeliveryAddress struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	References   string `json:"references,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

// Complete reports whether the address is sufficient to confirm an order.
func (a *DeliveryAddress) Complete() bool {
	if a == nil {
		return false
	}
	return a.Street != "" && a.Number != "" && a.Neighborhood != ""
}

// Merge overlays the non-empty fields of patch onto a, field by field.
// Fields absent from the patch are retained.
func (a *DeliveryAddress) Merge(patch *DeliveryAddress) {
	if patch == nil {
		return
	}
	if patch.Street != "" {
		a.Street = patch.Street
	}
	if patch.Number != "" {
		a.Number = patch.Number
	}
	if patch.Neighborhood != "" {
		a.Neighborhood = patch.Neighborhood
	}
	if patch.References != "" {
		a.References = patch.References
	}
	if patch.PostalCode != "" {
		a.PostalCode = patch.PostalCode
	}
}

// OrderDraft is the running structured order being assembled by the
// conversation. Totals are always recomputed from scratch, never adjusted
// incrementally.
type OrderDraft struct {
	SchemaVersion       int              `json:"schema_version"`
	Items               []OrderItem      `json:"items"`
	Subtotal            float64          `json:"subtotal"`
	DeliveryFee         float64          `json:"delivery_fee"`
	Total               float64          `json:"total"`
	DeliveryAddress     *DeliveryAddress `json:"delivery_address,omitempty"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
	// OrderReference links the finalized external order back to this
	// conversation once it completes.
	OrderReference string `json:"order_reference,omitempty"`
}

// NewOrderDraft returns an empty draft at the current schema version.
func NewOrderDraft(deliveryFee float64) OrderDraft {
	d := OrderDraft{
		SchemaVersion: DraftSchemaVersion,
		Items:         []OrderItem{},
		DeliveryFee:   deliveryFee,
	}
	d.Recompute()
	return d
}

// Recompute rebuilds every derived amount from the item lines.
func (d *OrderDraft) Recompute() {
	subtotal := 0.0
	for i := range d.Items {
		d.Items[i].ItemTotal = d.Items[i].ComputeTotal()
		subtotal += d.Items[i].ItemTotal
	}
	d.Subtotal = subtotal
	d.Total = d.Subtotal + d.DeliveryFee
}

// moneyEpsilon absorbs float drift when reconciling totals on write.
const moneyEpsilon = 1e-6

// Reconciled reports whether the draft's stored totals match what its item
// lines imply.
func (d *OrderDraft) Reconciled() bool {
	subtotal := 0.0
	for i := range d.Items {
		if math.Abs(d.Items[i].ItemTotal-d.Items[i].ComputeTotal()) > moneyEpsilon {
			return false
		}
		subtotal += d.Items[i].ItemTotal
	}
	if math.Abs(d.Subtotal-subtotal) > moneyEpsilon {
		return false
	}
	return math.Abs(d.Total-(d.Subtotal+d.DeliveryFee)) <= moneyEpsilon
}

// Conversation is one ordering session between a restaurant and a customer
// phone number. At most one active conversation exists per pair.
type Conversation struct {
	ID              uuid.UUID  `json:"id"`
	RestaurantID    string     `json:"restaurant_id"`
	CustomerPhone   string     `json:"customer_phone"`
	Status          Status     `json:"status"`
	CurrentStep     Step       `json:"current_step"`
	OrderDraft      OrderDraft `json:"order_draft"`
	MessageHistory  []Message  `json:"message_history"`
	Summary         string     `json:"summary,omitempty"`
	LastInteraction time.Time  `json:"last_interaction_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Expired reports whether the conversation has been idle longer than maxAge.
func (c *Conversation) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(c.LastInteraction) > maxAge
}
