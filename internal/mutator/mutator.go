package mutator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pidebot/engine/internal/analyzer"
	"github.com/pidebot/engine/internal/domain"
	logx "github.com/pidebot/engine/pkg/logger"
)

// Result reports which actions actually changed the draft. Warnings carry
// the extractions that were dropped (unresolvable items and the like);
// nothing in here ever aborts a turn.
type Result struct {
	Applied  []analyzer.Action
	Warnings []string
}

// Apply runs every action of the analysis, in the order listed, against the
// draft. The catalog is the restaurant's flattened menu; text is the free
// text the analysis came from, used for remove targeting. Totals are
// recomputed from scratch after each mutation so they can never drift.
func Apply(draft *domain.OrderDraft, an analyzer.Analysis, text string, catalog []domain.CatalogItem) Result {
	var res Result
	lower := strings.ToLower(text)

	for _, action := range an.Actions {
		switch action {
		case analyzer.ActionAddItems:
			if addItems(draft, an.Items, catalog, &res) {
				res.Applied = append(res.Applied, action)
			}
		case analyzer.ActionRemoveItems:
			if removeItems(draft, lower) {
				res.Applied = append(res.Applied, action)
			}
		case analyzer.ActionModifyOrder:
			if modifyOrder(draft, lower) {
				res.Applied = append(res.Applied, action)
			}
		case analyzer.ActionSaveAddress:
			saveAddress(draft, an.Address)
			res.Applied = append(res.Applied, action)
		default:
			logx.Warn().Str("action", string(action)).Msg("skipping unknown action")
		}
	}

	return res
}

// addItems resolves each extracted mention against the catalog and appends
// the hits as their own lines. Unresolved mentions are dropped with a
// warning, never invented.
func addItems(draft *domain.OrderDraft, items []analyzer.ExtractedItem, catalog []domain.CatalogItem, res *Result) bool {
	changed := false
	for _, it := range items {
		match := resolve(it.Name, catalog)
		if match == nil {
			logx.Warn().Str("item", it.Name).Msg("dropping unresolvable item mention")
			res.Warnings = append(res.Warnings, "unresolved item: "+it.Name)
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		line := domain.OrderItem{
			CatalogItemID: match.ID,
			Name:          match.Name,
			UnitPrice:     match.Price,
			Quantity:      qty,
		}
		line.ItemTotal = line.ComputeTotal()
		draft.Items = append(draft.Items, line)
		changed = true
	}
	if changed {
		draft.Recompute()
	}
	return changed
}

// resolve finds a catalog entry for a free-text mention: exact
// case-insensitive name first, then substring containment either direction,
// then shared-keyword overlap.
func resolve(name string, catalog []domain.CatalogItem) *domain.CatalogItem {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil
	}

	for i := range catalog {
		if strings.EqualFold(catalog[i].Name, name) {
			return &catalog[i]
		}
	}

	for i := range catalog {
		itemName := strings.ToLower(catalog[i].Name)
		if strings.Contains(itemName, name) || strings.Contains(name, itemName) {
			return &catalog[i]
		}
	}

	mentionTokens := tokens(name)
	for i := range catalog {
		known := tokens(strings.ToLower(catalog[i].Name))
		for _, k := range catalog[i].Keywords {
			known = append(known, singular(strings.ToLower(k)))
		}
		for _, t := range mentionTokens {
			for _, k := range known {
				if t == k {
					return &catalog[i]
				}
			}
		}
	}

	return nil
}

// tokens splits a mention into comparable words, skipping short filler.
func tokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		w = singular(w)
		if len(w) >= 4 {
			out = append(out, w)
		}
	}
	return out
}

func singular(w string) string {
	return strings.TrimSuffix(w, "s")
}

var reOrdinal = regexp.MustCompile(`\b(\d{1,2})\b`)

// removeItems drops lines targeted by the text: literal name containment
// first, then a 1-based ordinal reference ("quita el 2" removes the second
// line). An out-of-range ordinal is a no-op.
func removeItems(draft *domain.OrderDraft, lower string) bool {
	if len(draft.Items) == 0 {
		return false
	}

	kept := draft.Items[:0:0]
	removed := false
	for _, line := range draft.Items {
		if matchesRemoval(lower, line.Name) {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if removed {
		draft.Items = kept
		draft.Recompute()
		return true
	}

	if m := reOrdinal.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(draft.Items) {
			draft.Items = append(draft.Items[:n-1], draft.Items[n:]...)
			draft.Recompute()
			return true
		}
	}
	return false
}

// matchesRemoval reports whether the text names the given line, either by
// full containment or by one of the line's significant words. Names shorter
// than three runes are left to the ordinal path; they match almost any text.
func matchesRemoval(lower, lineName string) bool {
	ln := strings.ToLower(lineName)
	if len([]rune(ln)) >= 3 && strings.Contains(lower, ln) {
		return true
	}
	for _, t := range tokens(ln) {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

var cancelAllKeywords = []string{
	"cancelar pedido", "cancela el pedido", "cancela todo", "borra todo",
	"ya no quiero nada", "olvídalo", "olvidalo",
}

// modifyOrder routes free-form change/cancel phrasing: cancel-everything
// wording clears the draft, removal wording goes through removeItems. The
// optional re-add is handled by the separate add_items action; no in-place
// field edits are attempted.
func modifyOrder(draft *domain.OrderDraft, lower string) bool {
	for _, k := range cancelAllKeywords {
		if strings.Contains(lower, k) {
			if len(draft.Items) == 0 {
				return false
			}
			draft.Items = []domain.OrderItem{}
			draft.Recompute()
			return true
		}
	}
	return removeItems(draft, lower)
}

// saveAddress merges the extracted fields into the draft address, field by
// field. Address changes never touch totals.
func saveAddress(draft *domain.OrderDraft, patch *domain.DeliveryAddress) {
	if patch == nil {
		return
	}
	if draft.DeliveryAddress == nil {
		draft.DeliveryAddress = &domain.DeliveryAddress{}
	}
	draft.DeliveryAddress.Merge(patch)
}
