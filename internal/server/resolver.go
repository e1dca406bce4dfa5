package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	errx "github.com/pidebot/engine/internal/core/error"
	"github.com/pidebot/engine/internal/domain"
)

// fileRestaurant is the on-disk shape of one restaurant entry.
type fileRestaurant struct {
	Profile struct {
		ID                  string  `json:"id"`
		Name                string  `json:"name"`
		Hours               string  `json:"hours"`
		DeliveryFee         float64 `json:"delivery_fee"`
		MinimumOrder        float64 `json:"minimum_order"`
		MaxConversationSecs int     `json:"max_conversation_seconds"`
		ErrorMessage        string  `json:"error_message"`
	} `json:"profile"`
	Catalog []domain.CatalogItem  `json:"catalog"`
	Rules   []domain.BusinessRule `json:"rules"`
}

// FileResolver loads restaurant contexts from a JSON file at startup. It
// stands in for the external restaurant/catalog service in deployments that
// have not wired one yet.
type FileResolver struct {
	byID map[string]domain.RestaurantContext
}

func NewFileResolver(path string) (*FileResolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read restaurants file: %w", err)
	}
	var entries []fileRestaurant
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode restaurants file: %w", err)
	}

	byID := make(map[string]domain.RestaurantContext, len(entries))
	for _, e := range entries {
		byID[e.Profile.ID] = domain.RestaurantContext{
			Profile: domain.RestaurantProfile{
				ID:                 e.Profile.ID,
				Name:               e.Profile.Name,
				Hours:              e.Profile.Hours,
				DeliveryFee:        e.Profile.DeliveryFee,
				MinimumOrder:       e.Profile.MinimumOrder,
				MaxConversationAge: time.Duration(e.Profile.MaxConversationSecs) * time.Second,
				ErrorMessage:       e.Profile.ErrorMessage,
			},
			Catalog: e.Catalog,
			Rules:   e.Rules,
		}
	}
	return &FileResolver{byID: byID}, nil
}

func (f *FileResolver) Resolve(ctx context.Context, restaurantID string) (domain.RestaurantContext, error) {
	rc, ok := f.byID[restaurantID]
	if !ok {
		return domain.RestaurantContext{}, errx.NotFound(fmt.Errorf("restaurant %q", restaurantID), "restaurant")
	}
	return rc, nil
}

var _ RestaurantResolver = (*FileResolver)(nil)
