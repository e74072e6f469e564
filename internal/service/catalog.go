package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
	"github.com/set-night/chatapp/internal/llm"
)

type SortType string

const (
	SortDefault   SortType = ""
	SortPriceAsc  SortType = "price_asc"
	SortPriceDesc SortType = "price_desc"
	SortPopular   SortType = "popular"
	SortContext   SortType = "context"
	SortFreeOnly  SortType = "free"
	SortName      SortType = "name"
)

// UsageCounter reports exchange counts per model id.
type UsageCounter interface {
	CountByModel(ctx context.Context) (map[string]int64, error)
}

// DefaultModels is the built-in catalog offered by the web client.
func DefaultModels() []domain.AIModel {
	return []domain.AIModel{
		{
			ID:              "claude-sonnet-4-5-20250929",
			Name:            "Claude Sonnet 4.5",
			Description:     "Best balance of speed and intelligence",
			PromptPrice:     decimal.NewFromInt(3),
			CompletionPrice: decimal.NewFromInt(15),
			ContextLength:   200_000,
		},
		{
			ID:              "claude-sonnet-4-20250514",
			Name:            "Claude Sonnet 4",
			Description:     "High performance for everyday tasks",
			PromptPrice:     decimal.NewFromInt(3),
			CompletionPrice: decimal.NewFromInt(15),
			ContextLength:   200_000,
		},
		{
			ID:              "claude-haiku-4-20250417",
			Name:            "Claude Haiku 4",
			Description:     "Fastest model for quick answers",
			PromptPrice:     decimal.NewFromInt(1),
			CompletionPrice: decimal.NewFromInt(5),
			ContextLength:   200_000,
		},
		{
			ID:              "claude-opus-4-20250514",
			Name:            "Claude Opus 4",
			Description:     "Most capable model for complex work",
			PromptPrice:     decimal.NewFromInt(15),
			CompletionPrice: decimal.NewFromInt(75),
			ContextLength:   200_000,
		},
	}
}

// Catalog lists selectable models. Providers that can enumerate models are
// queried and cached; otherwise the built-in list is served.
type Catalog struct {
	lister llm.ModelLister
	usage  UsageCounter
	cache  *ModelsCache
}

func NewCatalog(provider llm.Provider, usage UsageCounter) *Catalog {
	c := &Catalog{
		usage: usage,
		cache: NewModelsCache(config.ModelCacheDuration),
	}
	if lister, ok := provider.(llm.ModelLister); ok {
		c.lister = lister
	}
	return c
}

// Models returns the full catalog without usage counts.
func (c *Catalog) Models(ctx context.Context) []domain.AIModel {
	if cached := c.cache.Get(); cached != nil {
		return cached
	}
	if c.lister == nil {
		return DefaultModels()
	}

	models, err := c.lister.ListModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			slog.Warn("list provider models, using defaults", "error", err)
		}
		return DefaultModels()
	}
	c.cache.Set(models)
	return c.cache.Get()
}

// Lookup finds a model by id.
func (c *Catalog) Lookup(ctx context.Context, id string) (*domain.AIModel, error) {
	for _, m := range c.Models(ctx) {
		if m.ID == id {
			return &m, nil
		}
	}
	for _, m := range DefaultModels() {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, domain.ErrModelNotFound
}

// List returns models matching query, ordered by sortBy, with usage counts.
func (c *Catalog) List(ctx context.Context, query string, sortBy SortType) []domain.AIModel {
	models := c.Models(ctx)

	if c.usage != nil {
		counts, err := c.usage.CountByModel(ctx)
		if err != nil {
			slog.Error("count model usage", "error", err)
		}
		for i := range models {
			models[i].UsageCount = counts[models[i].ID]
		}
	}

	if query = strings.TrimSpace(query); query != "" {
		models = filterModels(models, query)
	}
	return sortModels(models, sortBy)
}

func filterModels(models []domain.AIModel, query string) []domain.AIModel {
	query = strings.ToLower(query)
	filtered := []domain.AIModel{}
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.Name), query) ||
			strings.Contains(strings.ToLower(m.ID), query) ||
			strings.Contains(strings.ToLower(m.Description), query) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func totalPrice(m domain.AIModel) decimal.Decimal {
	return m.PromptPrice.Add(m.CompletionPrice)
}

func sortModels(models []domain.AIModel, s SortType) []domain.AIModel {
	switch s {
	case SortPriceAsc:
		sort.SliceStable(models, func(i, j int) bool {
			return totalPrice(models[i]).LessThan(totalPrice(models[j]))
		})
	case SortPriceDesc:
		sort.SliceStable(models, func(i, j int) bool {
			return totalPrice(models[i]).GreaterThan(totalPrice(models[j]))
		})
	case SortPopular:
		sort.SliceStable(models, func(i, j int) bool {
			return models[i].UsageCount > models[j].UsageCount
		})
	case SortContext:
		sort.SliceStable(models, func(i, j int) bool {
			return models[i].ContextLength > models[j].ContextLength
		})
	case SortName:
		sort.SliceStable(models, func(i, j int) bool {
			return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
		})
	case SortFreeOnly:
		free := []domain.AIModel{}
		for _, m := range models {
			if m.IsFree() {
				free = append(free, m)
			}
		}
		return free
	}
	return models
}
