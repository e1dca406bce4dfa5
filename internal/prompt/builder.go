package prompt

import (
	"fmt"
	"strings"

	"github.com/pidebot/engine/internal/domain"
)

// Build assembles the full text block sent to the completion service. It is
// a pure function of its inputs: same restaurant, catalog, rules, draft,
// history and step always produce the same prompt, byte for byte, which is
// what makes the analyzer and the prompt itself unit-testable without a
// live model.
//
// Section order is fixed: persona, restaurant info, catalog, business
// rules, order summary, recent history, step instructions.
func Build(rc domain.RestaurantContext, draft domain.OrderDraft, history []domain.Message, step domain.Step) string {
	var b strings.Builder

	writePersona(&b, rc.Profile)
	writeRestaurantInfo(&b, rc.Profile)
	writeCatalog(&b, rc.Catalog)
	writeRules(&b, rc.Rules)
	writeOrderSummary(&b, draft)
	writeHistory(&b, history)
	writeStepInstructions(&b, step)

	return b.String()
}

func writePersona(b *strings.Builder, p domain.RestaurantProfile) {
	fmt.Fprintf(b, "Eres el asistente de pedidos de %s.\n", p.Name)
	b.WriteString("Atiende al cliente por chat, en español, con respuestas breves y amables.\n")
	b.WriteString("Solo ofrece platillos que aparezcan en el menú. Nunca inventes precios.\n")
	b.WriteString("Cuando el cliente agregue o quite algo, repite el pedido actualizado con nombres exactos del menú.\n\n")
}

func writeRestaurantInfo(b *strings.Builder, p domain.RestaurantProfile) {
	b.WriteString("== Restaurante ==\n")
	fmt.Fprintf(b, "Nombre: %s\n", p.Name)
	if p.Hours != "" {
		fmt.Fprintf(b, "Horario: %s\n", p.Hours)
	}
	fmt.Fprintf(b, "Costo de envío: $%.2f\n", p.DeliveryFee)
	if p.MinimumOrder > 0 {
		fmt.Fprintf(b, "Pedido mínimo: $%.2f\n", p.MinimumOrder)
	}
	b.WriteString("\n")
}

func writeCatalog(b *strings.Builder, catalog []domain.CatalogItem) {
	b.WriteString("== Menú ==\n")
	if len(catalog) == 0 {
		b.WriteString("(no hay platillos disponibles)\n\n")
		return
	}

	// group by category, preserving first-appearance order so the prompt
	// stays deterministic for a given catalog slice
	var categories []string
	grouped := map[string][]domain.CatalogItem{}
	for _, item := range catalog {
		cat := item.Category
		if cat == "" {
			cat = "Otros"
		}
		if _, seen := grouped[cat]; !seen {
			categories = append(categories, cat)
		}
		grouped[cat] = append(grouped[cat], item)
	}

	for _, cat := range categories {
		fmt.Fprintf(b, "%s:\n", cat)
		for _, item := range grouped[cat] {
			if item.Description != "" {
				fmt.Fprintf(b, "- %s — $%.2f (%s)\n", item.Name, item.Price, item.Description)
			} else {
				fmt.Fprintf(b, "- %s — $%.2f\n", item.Name, item.Price)
			}
		}
	}
	b.WriteString("\n")
}

func writeRules(b *strings.Builder, rules []domain.BusinessRule) {
	// no rules, no section; an empty header would read as a broken prompt
	if len(rules) == 0 {
		return
	}
	b.WriteString("== Reglas del negocio ==\n")
	for _, r := range rules {
		fmt.Fprintf(b, "- %s\n", r.Text)
	}
	b.WriteString("\n")
}

func writeOrderSummary(b *strings.Builder, draft domain.OrderDraft) {
	b.WriteString("== Pedido actual ==\n")
	if len(draft.Items) == 0 {
		b.WriteString("(carrito vacío)\n\n")
		return
	}
	for i, item := range draft.Items {
		fmt.Fprintf(b, "%d. %dx %s — $%.2f\n", i+1, item.Quantity, item.Name, item.ItemTotal)
		for _, c := range item.Customizations {
			fmt.Fprintf(b, "   + %s ($%.2f)\n", c.Name, c.ExtraCost)
		}
		if item.Notes != "" {
			fmt.Fprintf(b, "   nota: %s\n", item.Notes)
		}
	}
	fmt.Fprintf(b, "Subtotal: $%.2f\n", draft.Subtotal)
	fmt.Fprintf(b, "Envío: $%.2f\n", draft.DeliveryFee)
	fmt.Fprintf(b, "Total: $%.2f\n", draft.Total)
	if addr := draft.DeliveryAddress; addr != nil {
		fmt.Fprintf(b, "Dirección: %s\n", formatAddress(addr))
	}
	if draft.SpecialInstructions != "" {
		fmt.Fprintf(b, "Instrucciones: %s\n", draft.SpecialInstructions)
	}
	b.WriteString("\n")
}

func formatAddress(a *domain.DeliveryAddress) string {
	var parts []string
	if a.Street != "" {
		s := a.Street
		if a.Number != "" {
			s += " " + a.Number
		}
		parts = append(parts, s)
	} else if a.Number != "" {
		parts = append(parts, "#"+a.Number)
	}
	if a.Neighborhood != "" {
		parts = append(parts, "col. "+a.Neighborhood)
	}
	if a.PostalCode != "" {
		parts = append(parts, "CP "+a.PostalCode)
	}
	if a.References != "" {
		parts = append(parts, "ref: "+a.References)
	}
	return strings.Join(parts, ", ")
}

func writeHistory(b *strings.Builder, history []domain.Message) {
	b.WriteString("== Conversación reciente ==\n")
	if len(history) == 0 {
		b.WriteString("(sin mensajes previos)\n\n")
		return
	}
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			fmt.Fprintf(b, "Cliente: %s\n", m.Content)
		case domain.RoleAssistant:
			fmt.Fprintf(b, "Asistente: %s\n", m.Content)
		}
	}
	b.WriteString("\n")
}

var stepInstructions = map[domain.Step]string{
	domain.StepGreeting:   "Saluda al cliente, preséntate y pregunta qué le gustaría ordenar.",
	domain.StepOrdering:   "Ayuda al cliente a armar su pedido. Confirma cada platillo agregado y pregunta si desea algo más.",
	domain.StepAddress:    "El pedido está armado. Pide la dirección de entrega completa: calle, número y colonia.",
	domain.StepConfirming: "Repite el pedido completo con el total y la dirección, y pide al cliente que confirme.",
	domain.StepCompleted:  "El pedido ya fue confirmado. Agradece al cliente e indícale el tiempo estimado de entrega.",
}

func writeStepInstructions(b *strings.Builder, step domain.Step) {
	b.WriteString("== Instrucciones para este paso ==\n")
	if text, ok := stepInstructions[step]; ok {
		b.WriteString(text)
	} else {
		b.WriteString(stepInstructions[domain.StepGreeting])
	}
	b.WriteString("\n")
}
