package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidebot/engine/internal/domain"
)

func TestClassifyIntentPriority(t *testing.T) {
	a := NewKeywordAnalyzer()

	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"ordering", "quiero ver el menú por favor", IntentOrdering},
		{"address", "mi domicilio es calle reforma", IntentAddress},
		{"confirmation", "así está bien, es todo", IntentConfirmation},
		{"modification", "mejor quita las alitas", IntentModification},
		{"none", "hola buenas tardes", IntentUnknown},
		// the checks run ordering, address, confirmation, modification;
		// the last matching category wins when several match
		{"ordering then address", "quiero que lo entreguen en calle reforma", IntentAddress},
		{"address then modification", "cambia la dirección, ya no es calle reforma", IntentModification},
		{"confirmation then modification", "está bien pero quita el refresco", IntentModification},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, a.Classify(c.text).Intent)
		})
	}
}

func TestClassifyDerivedActions(t *testing.T) {
	a := NewKeywordAnalyzer()

	an := a.Classify("quiero 2 tacos de pastor")
	assert.Contains(t, an.Actions, ActionAddItems)
	assert.NotContains(t, an.Actions, ActionSaveAddress)
	assert.NotContains(t, an.Actions, ActionModifyOrder)

	an = a.Classify("vivo en calle reforma número 123")
	assert.Contains(t, an.Actions, ActionSaveAddress)

	an = a.Classify("quita el refresco por favor")
	assert.Contains(t, an.Actions, ActionModifyOrder)

	an = a.Classify("hola buenas tardes")
	assert.Empty(t, an.Actions)
}

func TestExtractAddress(t *testing.T) {
	addr := ExtractAddress("vivo en calle reforma número 123, colonia centro, entre juárez y morelos")
	require.NotNil(t, addr)
	assert.Equal(t, "reforma", addr.Street)
	assert.Equal(t, "123", addr.Number)
	assert.Equal(t, "centro", addr.Neighborhood)
	assert.Equal(t, "juárez y morelos", addr.References)
}

func TestExtractAddressPartialFields(t *testing.T) {
	addr := ExtractAddress("es en la colonia roma norte")
	require.NotNil(t, addr)
	assert.Equal(t, "roma norte", addr.Neighborhood)
	assert.Empty(t, addr.Street)
	assert.Empty(t, addr.Number)
}

func TestExtractAddressRunOnWithoutCommas(t *testing.T) {
	addr := ExtractAddress("calle reforma número 123 colonia centro")
	require.NotNil(t, addr)
	assert.Equal(t, "reforma", addr.Street)
	assert.Equal(t, "123", addr.Number)
	assert.Equal(t, "centro", addr.Neighborhood)
}

func TestExtractAddressNilWhenNothingMatched(t *testing.T) {
	assert.Nil(t, ExtractAddress("quiero una pizza grande"))
	assert.Nil(t, ExtractAddress(""))
}

func TestExtractItemsQuantityUnit(t *testing.T) {
	a := NewKeywordAnalyzer()
	an := a.Classify("me mandas 2 tacos de pastor y 1 refresco")

	require.NotEmpty(t, an.Items)
	assert.Equal(t, "tacos de pastor", an.Items[0].Name)
	assert.Equal(t, 2, an.Items[0].Quantity)
	assert.Equal(t, 0.6, an.Items[0].Confidence)
}

func TestExtractItemsWantPhrase(t *testing.T) {
	a := NewKeywordAnalyzer()
	an := a.Classify("quiero una hamburguesa doble")

	require.NotEmpty(t, an.Items)
	found := false
	for _, it := range an.Items {
		if it.Name == "hamburguesa doble" && it.Quantity == 1 {
			found = true
		}
	}
	assert.True(t, found, "expected hamburguesa doble in %v", an.Items)
}

func TestExtractItemsWordQuantity(t *testing.T) {
	a := NewKeywordAnalyzer()
	an := a.Classify("dos quesadillas de flor y tres tamales")

	var names []string
	for _, it := range an.Items {
		names = append(names, it.Name)
	}
	assert.Contains(t, names, "quesadillas de flor")
	assert.Contains(t, names, "tamales")
}

func TestExtractItemsKeepsDuplicatesAcrossPatterns(t *testing.T) {
	// "quiero 2 tacos" matches both the digit-quantity pattern and the
	// want-phrase pattern; the analyzer does not de-duplicate
	a := NewKeywordAnalyzer()
	an := a.Classify("quiero 2 tacos de pastor")
	assert.GreaterOrEqual(t, len(an.Items), 1)
}

func TestNextStepHint(t *testing.T) {
	a := NewKeywordAnalyzer()
	assert.Equal(t, domain.StepOrdering, a.Classify("quiero pedir").NextStepHint)
	assert.Equal(t, domain.StepConfirming, a.Classify("confirmo mi pedido").NextStepHint)
	assert.Equal(t, domain.StepOrdering, a.Classify("cambia mi pedido").NextStepHint)
}
