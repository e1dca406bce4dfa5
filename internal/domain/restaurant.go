package domain

import "time"

// DefaultMaxConversationAge is how long a conversation may sit idle before
// it is considered abandoned, unless the restaurant overrides it.
const DefaultMaxConversationAge = 1800 * time.Second

// RestaurantProfile is the read-only restaurant context supplied per call
// by the external CRUD collaborator.
type RestaurantProfile struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Hours              string        `json:"hours"`
	DeliveryFee        float64       `json:"delivery_fee"`
	MinimumOrder       float64       `json:"minimum_order"`
	MaxConversationAge time.Duration `json:"max_conversation_age"`
	// ErrorMessage is shown to the customer when a turn fails
	// unrecoverably; raw errors never reach the chat.
	ErrorMessage string `json:"error_message"`
}

// ConversationMaxAge returns the configured idle limit, falling back to the
// default when unset.
func (r *RestaurantProfile) ConversationMaxAge() time.Duration {
	if r.MaxConversationAge > 0 {
		return r.MaxConversationAge
	}
	return DefaultMaxConversationAge
}

// CatalogItem is one sellable entry of the flattened menu.
type CatalogItem struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Keywords    []string `json:"keywords,omitempty"`
}

// BusinessRule is a free-text rule template the restaurant wants the
// assistant to enforce, e.g. sauce limits.
type BusinessRule struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// RestaurantContext bundles everything the engine reads about a restaurant
// for one turn.
type RestaurantContext struct {
	Profile RestaurantProfile
	Catalog []CatalogItem
	Rules   []BusinessRule
}
