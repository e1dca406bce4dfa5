package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderDraftRecompute(t *testing.T) {
	d := NewOrderDraft(25)
	assert.Equal(t, 0.0, d.Subtotal)
	assert.Equal(t, 25.0, d.Total)
	assert.True(t, d.Reconciled())

	d.Items = append(d.Items,
		OrderItem{Name: "Pizza Hawaiana", UnitPrice: 120, Quantity: 2},
		OrderItem{
			Name: "Hamburguesa", UnitPrice: 80, Quantity: 1,
			Customizations: []Customization{{Name: "extra queso", ExtraCost: 15}},
		},
	)
	d.Recompute()

	assert.InDelta(t, 240.0, d.Items[0].ItemTotal, 1e-9)
	assert.InDelta(t, 95.0, d.Items[1].ItemTotal, 1e-9)
	assert.InDelta(t, 335.0, d.Subtotal, 1e-9)
	assert.InDelta(t, 360.0, d.Total, 1e-9)
	assert.True(t, d.Reconciled())
}

func TestOrderDraftReconciledDetectsDrift(t *testing.T) {
	d := NewOrderDraft(10)
	d.Items = append(d.Items, OrderItem{Name: "Tacos", UnitPrice: 15, Quantity: 3})
	d.Recompute()
	require.True(t, d.Reconciled())

	d.Total += 5
	assert.False(t, d.Reconciled())

	d.Recompute()
	assert.True(t, d.Reconciled())

	d.Items[0].ItemTotal = 999
	assert.False(t, d.Reconciled())
}

func TestTrimHistory(t *testing.T) {
	var history []Message
	for i := 0; i < 13; i++ {
		history = append(history, Message{
			Role:    RoleUser,
			Content: string(rune('a' + i)),
		})
	}

	trimmed := TrimHistory(history)
	require.Len(t, trimmed, MaxHistoryEntries)
	// the first entry is evicted, the remaining 12 keep their order
	assert.Equal(t, "b", trimmed[0].Content)
	assert.Equal(t, "m", trimmed[len(trimmed)-1].Content)

	short := []Message{{Role: RoleUser, Content: "hola"}}
	assert.Equal(t, short, TrimHistory(short))
}

func TestAddressMergeRetainsExistingFields(t *testing.T) {
	addr := &DeliveryAddress{Street: "Reforma"}
	addr.Merge(&DeliveryAddress{Number: "123", Neighborhood: "Centro"})

	assert.Equal(t, "Reforma", addr.Street)
	assert.Equal(t, "123", addr.Number)
	assert.Equal(t, "Centro", addr.Neighborhood)

	addr.Merge(&DeliveryAddress{Street: "Juárez"})
	assert.Equal(t, "Juárez", addr.Street)
	assert.Equal(t, "123", addr.Number)

	addr.Merge(nil)
	assert.Equal(t, "Juárez", addr.Street)
}

func TestAddressComplete(t *testing.T) {
	var nilAddr *DeliveryAddress
	assert.False(t, nilAddr.Complete())
	assert.False(t, (&DeliveryAddress{Street: "Reforma", Number: "123"}).Complete())
	assert.True(t, (&DeliveryAddress{Street: "Reforma", Number: "123", Neighborhood: "Centro"}).Complete())
}

func TestStepTransitions(t *testing.T) {
	cases := []struct {
		from, to Step
		ok       bool
	}{
		{StepGreeting, StepOrdering, true},
		{StepOrdering, StepAddress, true},
		{StepAddress, StepConfirming, true},
		{StepConfirming, StepCompleted, true},
		{StepGreeting, StepConfirming, true}, // forward jumps allowed
		{StepAddress, StepOrdering, true},    // sanctioned fallback
		{StepConfirming, StepOrdering, true}, // sanctioned fallback
		{StepOrdering, StepGreeting, false},
		{StepConfirming, StepAddress, false},
		{StepCompleted, StepOrdering, false},
		{StepCompleted, StepCompleted, false}, // terminal, no self-moves
		{StepCompleted, StepConfirming, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestConversationExpired(t *testing.T) {
	now := time.Now()
	c := &Conversation{LastInteraction: now.Add(-31 * time.Minute)}
	assert.True(t, c.Expired(now, 30*time.Minute))
	assert.False(t, c.Expired(now, 45*time.Minute))
	assert.False(t, c.Expired(now, 0))
}
