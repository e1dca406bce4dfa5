package mutator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidebot/engine/internal/analyzer"
	"github.com/pidebot/engine/internal/domain"
)

var testCatalog = []domain.CatalogItem{
	{ID: "c1", Category: "Pizzas", Name: "Pizza Hawaiana", Price: 120},
	{ID: "c2", Category: "Pizzas", Name: "Pizza Pepperoni", Price: 110},
	{ID: "c3", Category: "Tacos", Name: "Tacos de Pastor", Price: 15, Keywords: []string{"pastor", "taco"}},
	{ID: "c4", Category: "Bebidas", Name: "Refresco", Price: 25},
}

func draftWith(items ...domain.OrderItem) domain.OrderDraft {
	d := domain.NewOrderDraft(30)
	d.Items = append(d.Items, items...)
	d.Recompute()
	return d
}

func TestAddItemsExactMatch(t *testing.T) {
	d := domain.NewOrderDraft(30)
	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionAddItems},
		Items:   []analyzer.ExtractedItem{{Name: "pizza hawaiana", Quantity: 2, Confidence: 0.6}},
	}

	res := Apply(&d, an, "quiero 2 pizza hawaiana", testCatalog)

	require.Len(t, d.Items, 1)
	assert.Equal(t, "c1", d.Items[0].CatalogItemID)
	assert.Equal(t, "Pizza Hawaiana", d.Items[0].Name)
	assert.Equal(t, 2, d.Items[0].Quantity)
	assert.InDelta(t, 240.0, d.Items[0].ItemTotal, 1e-9)
	assert.Equal(t, []analyzer.Action{analyzer.ActionAddItems}, res.Applied)
	assert.True(t, d.Reconciled())
}

func TestAddItemsSubstringAndKeywordMatch(t *testing.T) {
	d := domain.NewOrderDraft(30)
	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionAddItems},
		Items: []analyzer.ExtractedItem{
			{Name: "hawaiana", Quantity: 1, Confidence: 0.6},         // substring of catalog name
			{Name: "unos tacos ricos", Quantity: 3, Confidence: 0.6}, // shared keyword
		},
	}

	Apply(&d, an, "", testCatalog)

	require.Len(t, d.Items, 2)
	assert.Equal(t, "c1", d.Items[0].CatalogItemID)
	assert.Equal(t, "c3", d.Items[1].CatalogItemID)
	assert.Equal(t, 3, d.Items[1].Quantity)
	assert.True(t, d.Reconciled())
}

func TestAddItemsUnresolvedDropped(t *testing.T) {
	d := domain.NewOrderDraft(30)
	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionAddItems},
		Items:   []analyzer.ExtractedItem{{Name: "sushi especial", Quantity: 1, Confidence: 0.6}},
	}

	res := Apply(&d, an, "", testCatalog)

	assert.Empty(t, d.Items)
	assert.Empty(t, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "sushi especial")
}

func TestAddItemsAlwaysAppendsOwnLine(t *testing.T) {
	d := draftWith(domain.OrderItem{CatalogItemID: "c4", Name: "Refresco", UnitPrice: 25, Quantity: 1})
	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionAddItems},
		Items:   []analyzer.ExtractedItem{{Name: "refresco", Quantity: 1, Confidence: 0.6}},
	}

	Apply(&d, an, "", testCatalog)

	// duplicate catalog items are separate lines, never merged
	require.Len(t, d.Items, 2)
	assert.True(t, d.Reconciled())
}

func TestRemoveByOrdinal(t *testing.T) {
	d := draftWith(
		domain.OrderItem{CatalogItemID: "c1", Name: "A", UnitPrice: 10, Quantity: 1},
		domain.OrderItem{CatalogItemID: "c2", Name: "B", UnitPrice: 20, Quantity: 1},
		domain.OrderItem{CatalogItemID: "c3", Name: "C", UnitPrice: 30, Quantity: 1},
	)
	an := analyzer.Analysis{Actions: []analyzer.Action{analyzer.ActionRemoveItems}}

	res := Apply(&d, an, "quita el 2", testCatalog)

	require.Len(t, d.Items, 2)
	assert.Equal(t, "A", d.Items[0].Name)
	assert.Equal(t, "C", d.Items[1].Name)
	assert.Equal(t, []analyzer.Action{analyzer.ActionRemoveItems}, res.Applied)
	assert.True(t, d.Reconciled())
}

func TestRemoveByOrdinalOutOfRangeIsNoOp(t *testing.T) {
	d := draftWith(domain.OrderItem{CatalogItemID: "c1", Name: "A", UnitPrice: 10, Quantity: 1})
	an := analyzer.Analysis{Actions: []analyzer.Action{analyzer.ActionRemoveItems}}

	res := Apply(&d, an, "quita el 5", testCatalog)

	assert.Len(t, d.Items, 1)
	assert.Empty(t, res.Applied)
	assert.True(t, d.Reconciled())
}

func TestRemoveByNameContainment(t *testing.T) {
	d := draftWith(
		domain.OrderItem{CatalogItemID: "c1", Name: "Pizza Hawaiana", UnitPrice: 120, Quantity: 1},
		domain.OrderItem{CatalogItemID: "c4", Name: "Refresco", UnitPrice: 25, Quantity: 1},
	)
	an := analyzer.Analysis{Actions: []analyzer.Action{analyzer.ActionModifyOrder}}

	Apply(&d, an, "mejor quita la pizza hawaiana", testCatalog)

	require.Len(t, d.Items, 1)
	assert.Equal(t, "Refresco", d.Items[0].Name)
	assert.True(t, d.Reconciled())
}

func TestModifyOrderCancelAll(t *testing.T) {
	d := draftWith(
		domain.OrderItem{CatalogItemID: "c1", Name: "Pizza Hawaiana", UnitPrice: 120, Quantity: 1},
		domain.OrderItem{CatalogItemID: "c4", Name: "Refresco", UnitPrice: 25, Quantity: 2},
	)
	an := analyzer.Analysis{Actions: []analyzer.Action{analyzer.ActionModifyOrder}}

	Apply(&d, an, "cancela todo por favor", testCatalog)

	assert.Empty(t, d.Items)
	assert.InDelta(t, 0.0, d.Subtotal, 1e-9)
	assert.True(t, d.Reconciled())
}

func TestSaveAddressMergesFields(t *testing.T) {
	d := domain.NewOrderDraft(30)
	d.DeliveryAddress = &domain.DeliveryAddress{Street: "Reforma"}
	before := d.Total

	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionSaveAddress},
		Address: &domain.DeliveryAddress{Number: "123", Neighborhood: "Centro"},
	}
	Apply(&d, an, "", testCatalog)

	assert.Equal(t, "Reforma", d.DeliveryAddress.Street)
	assert.Equal(t, "123", d.DeliveryAddress.Number)
	assert.Equal(t, "Centro", d.DeliveryAddress.Neighborhood)
	// address changes never touch totals
	assert.Equal(t, before, d.Total)
}

func TestActionsApplyInListedOrder(t *testing.T) {
	d := domain.NewOrderDraft(30)
	an := analyzer.Analysis{
		Actions: []analyzer.Action{analyzer.ActionAddItems, analyzer.ActionModifyOrder},
		Items:   []analyzer.ExtractedItem{{Name: "pizza pepperoni", Quantity: 1, Confidence: 0.6}},
	}

	// add lands first, then the modification removes it again
	res := Apply(&d, an, "mejor no, quita la pizza pepperoni", testCatalog)

	assert.Empty(t, d.Items)
	assert.Equal(t, []analyzer.Action{analyzer.ActionAddItems, analyzer.ActionModifyOrder}, res.Applied)
	assert.True(t, d.Reconciled())
}

func TestTotalsInvariantAcrossMutationSequence(t *testing.T) {
	d := domain.NewOrderDraft(35)

	steps := []analyzer.Analysis{
		{Actions: []analyzer.Action{analyzer.ActionAddItems},
			Items: []analyzer.ExtractedItem{{Name: "pizza hawaiana", Quantity: 2, Confidence: 0.6}}},
		{Actions: []analyzer.Action{analyzer.ActionAddItems},
			Items: []analyzer.ExtractedItem{{Name: "refresco", Quantity: 3, Confidence: 0.6}}},
		{Actions: []analyzer.Action{analyzer.ActionRemoveItems}},
		{Actions: []analyzer.Action{analyzer.ActionAddItems},
			Items: []analyzer.ExtractedItem{{Name: "tacos de pastor", Quantity: 4, Confidence: 0.6}}},
	}
	texts := []string{"", "", "quita el 1", ""}

	for i, an := range steps {
		Apply(&d, an, texts[i], testCatalog)
		assert.Truef(t, d.Reconciled(), "totals drifted after step %d", i)
	}

	require.Len(t, d.Items, 2)
	assert.InDelta(t, d.Subtotal+d.DeliveryFee, d.Total, 1e-9)
}
