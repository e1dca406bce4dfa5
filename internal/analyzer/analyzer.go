package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pidebot/engine/internal/domain"
)

// Intent is the best-effort classification of one turn.
type Intent string

const (
	IntentUnknown      Intent = "unknown"
	IntentOrdering     Intent = "ordering"
	IntentAddress      Intent = "address"
	IntentConfirmation Intent = "confirmation"
	IntentModification Intent = "modification"
)

// Action is a mutation the order mutator knows how to apply.
type Action string

const (
	ActionAddItems    Action = "add_items"
	ActionRemoveItems Action = "remove_items"
	ActionModifyOrder Action = "modify_order"
	ActionSaveAddress Action = "save_address"
)

// ExtractedItem is a raw item mention before catalog resolution. Duplicates
// across patterns are kept; de-duplication is the mutator's problem.
type ExtractedItem struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the structured read of one free-text turn.
type Analysis struct {
	Intent       Intent
	Confidence   float64
	NextStepHint domain.Step
	Actions      []Action
	Items        []ExtractedItem
	Address      *domain.DeliveryAddress
}

// Analyzer classifies free text into an Analysis. The keyword heuristic is
// the shipping implementation; the interface keeps it swappable for a
// model-based classifier without touching the engine or mutator contracts.
type Analyzer interface {
	Classify(text string) Analysis
}

// Fixed per-category confidences. Relative signals for logging only, never
// a hard gate.
const (
	confOrdering     = 0.8
	confAddress      = 0.7
	confConfirmation = 0.9
	confModification = 0.6
	confItem         = 0.6
)

var orderingKeywords = []string{
	"quiero", "quisiera", "pedir", "ordenar", "antojo", "hambre",
	"menu", "menú", "carta", "me das", "me pones", "tráeme", "traeme",
	"para llevar", "mi pedido",
}

var addressKeywords = []string{
	"calle", "avenida", "colonia", "dirección", "direccion", "domicilio",
	"entregar en", "envío a", "envio a", "vivo en", "código postal",
	"codigo postal", "entre ",
}

var confirmationKeywords = []string{
	"confirmo", "confirmar", "correcto", "es todo", "sería todo",
	"seria todo", "así está bien", "asi esta bien", "está bien",
	"esta bien", "de acuerdo", "sale pues",
}

var modificationKeywords = []string{
	"cambiar", "cambia", "quitar", "quita", "elimina", "eliminar",
	"cancelar", "cancela", "borra", "mejor no", "ya no quiero", "sin el",
	"sin la",
}

// KeywordAnalyzer is the heuristic Analyzer implementation.
type KeywordAnalyzer struct{}

func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Classify runs the category checks in fixed order: ordering, address,
// confirmation, modification. Later matches overwrite earlier ones, so the
// last matching category wins when several match. That ordering is load
// bearing for downstream behavior; do not reorder the checks.
func (a *KeywordAnalyzer) Classify(text string) Analysis {
	lower := strings.ToLower(text)

	out := Analysis{
		Intent:       IntentUnknown,
		NextStepHint: "",
	}

	if containsAny(lower, orderingKeywords) {
		out.Intent = IntentOrdering
		out.Confidence = confOrdering
		out.NextStepHint = domain.StepOrdering
	}
	if containsAny(lower, addressKeywords) {
		out.Intent = IntentAddress
		out.Confidence = confAddress
		out.NextStepHint = domain.StepAddress
	}
	if containsAny(lower, confirmationKeywords) {
		out.Intent = IntentConfirmation
		out.Confidence = confConfirmation
		out.NextStepHint = domain.StepConfirming
	}
	modification := containsAny(lower, modificationKeywords)
	if modification {
		out.Intent = IntentModification
		out.Confidence = confModification
		out.NextStepHint = domain.StepOrdering
	}

	out.Items = extractItems(lower)
	out.Address = ExtractAddress(lower)

	// Actions are derived from the extractions, not detected separately.
	if len(out.Items) > 0 {
		out.Actions = append(out.Actions, ActionAddItems)
	}
	if out.Address != nil {
		out.Actions = append(out.Actions, ActionSaveAddress)
	}
	if modification {
		out.Actions = append(out.Actions, ActionModifyOrder)
	}

	return out
}

var _ Analyzer = (*KeywordAnalyzer)(nil)

// ---- item extraction ----

var quantityWords = map[string]int{
	"un": 1, "una": 1, "uno": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
}

var (
	// pattern 1: digit quantity followed by a unit phrase
	reQuantityUnit = regexp.MustCompile(`\b(\d{1,2})\s+(?:orden(?:es)?\s+de\s+|porci(?:ón|on|ones)\s+de\s+)?([a-záéíóúüñ]+(?:\s+(?:de|con|al|a la)\s+[a-záéíóúüñ]+|\s+[a-záéíóúüñ]+)?)`)
	// pattern 2: "quiero/ordena X" style requests, quantity defaults to 1
	reWantPhrase = regexp.MustCompile(`(?:quiero|quisiera|me das|me pones|ordenar|pedir|tráeme|traeme)\s+(?:un[ao]?\s+)?([a-záéíóúüñ]+(?:\s+(?:de|con|al|a la)\s+[a-záéíóúüñ]+|\s+[a-záéíóúüñ]+)?)`)
	// pattern 3: spelled-out quantity followed by a common dish word
	reWordQuantity = regexp.MustCompile(`\b(un|una|uno|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez)\s+((?:taco|pizza|hamburguesa|torta|quesadilla|burrito|refresco|agua|pollo|alita|sope|tamal|pozole|enchilada|gringa|empanada)[a-z]*(?:\s+(?:de|con|al|a la)\s+[a-záéíóúüñ]+)?)`)
)

// extractItems evaluates the three alternative patterns in sequence against
// the lowercased text. Every hit is emitted; overlapping hits across
// patterns are intentionally kept.
func extractItems(lower string) []ExtractedItem {
	var items []ExtractedItem

	for _, m := range reQuantityUnit.FindAllStringSubmatch(lower, -1) {
		qty, err := strconv.Atoi(m[1])
		if err != nil || qty <= 0 {
			continue
		}
		items = append(items, ExtractedItem{
			Name:       strings.TrimSpace(m[2]),
			Quantity:   qty,
			Confidence: confItem,
		})
	}

	for _, m := range reWantPhrase.FindAllStringSubmatch(lower, -1) {
		items = append(items, ExtractedItem{
			Name:       strings.TrimSpace(m[1]),
			Quantity:   1,
			Confidence: confItem,
		})
	}

	for _, m := range reWordQuantity.FindAllStringSubmatch(lower, -1) {
		items = append(items, ExtractedItem{
			Name:       strings.TrimSpace(m[2]),
			Quantity:   quantityWords[m[1]],
			Confidence: confItem,
		})
	}

	return items
}

// ---- address extraction ----

var (
	reStreet       = regexp.MustCompile(`(?:calle|avenida|av\.|blvd\.?|boulevard|privada)\s+([^,.\n]+)`)
	reNumber       = regexp.MustCompile(`(?:n[úu]mero|n[úu]m\.?|#|no\.)\s*(\d{1,6}(?:\s?[a-z])?)\b`)
	reNeighborhood = regexp.MustCompile(`(?:colonia|col\.|fracc(?:ionamiento)?\.?|barrio)\s+([^,.\n]+)`)
	reReferences   = regexp.MustCompile(`(?:entre|esquina con|frente a|cerca de|referencias?:?)\s+([^.\n]+)`)
)

// stop tokens that end a street or neighborhood capture when the customer
// runs the whole address together without punctuation
var fieldStops = []string{
	" número ", " numero ", " núm ", " num ", " no. ", " #",
	" colonia ", " col. ", " entre ", " esquina ", " código postal",
	" codigo postal", " cp ",
}

func cutAtStops(s string) string {
	cut := len(s)
	for _, stop := range fieldStops {
		if i := strings.Index(s, stop); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

// ExtractAddress runs four independent field extractions over the
// lowercased text. Each field is present only when its pattern matched; the
// result is nil, not an empty struct, when nothing matched.
func ExtractAddress(lower string) *domain.DeliveryAddress {
	addr := &domain.DeliveryAddress{}
	matched := false

	if m := reStreet.FindStringSubmatch(lower); m != nil {
		if v := cutAtStops(m[1]); v != "" {
			addr.Street = v
			matched = true
		}
	}
	if m := reNumber.FindStringSubmatch(lower); m != nil {
		addr.Number = strings.TrimSpace(m[1])
		matched = true
	}
	if m := reNeighborhood.FindStringSubmatch(lower); m != nil {
		if v := cutAtStops(m[1]); v != "" {
			addr.Neighborhood = v
			matched = true
		}
	}
	if m := reReferences.FindStringSubmatch(lower); m != nil {
		addr.References = strings.TrimSpace(m[1])
		matched = true
	}

	if !matched {
		return nil
	}
	return addr
}
