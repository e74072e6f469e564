package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/set-night/chatapp/internal/domain"
)

type UsageRepository struct {
	store *Store
	now   func() time.Time
}

func NewUsageRepository(store *Store) *UsageRepository {
	return &UsageRepository{store: store, now: time.Now}
}

func (r *UsageRepository) Record(ctx context.Context, rec *domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	_, err := r.store.exec(ctx, `INSERT INTO usage_tracking
		(id, user_id, conversation_id, message_id, model, input_tokens, output_tokens, cost_estimate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, stringToNullString(rec.ConversationID), stringToNullString(rec.MessageID),
		rec.Model, rec.InputTokens, rec.OutputTokens, rec.CostEstimate.String(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Summary aggregates the user's usage rows. Costs are summed as decimals in
// Go so both dialects agree on precision.
func (r *UsageRepository) Summary(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	rows, err := r.store.query(ctx, `SELECT model, input_tokens, output_tokens, cost_estimate
		FROM usage_tracking WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	summary := &domain.UsageSummary{UserID: userID, ByModel: []domain.ModelUsage{}}
	byModel := map[string]*domain.ModelUsage{}
	for rows.Next() {
		var (
			model         sql.NullString
			input, output int64
			cost          sql.NullString
		)
		if err := rows.Scan(&model, &input, &output, &cost); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		c := decimal.Zero
		if cost.Valid && cost.String != "" {
			if parsed, err := decimal.NewFromString(cost.String); err == nil {
				c = parsed
			}
		}

		mu, ok := byModel[model.String]
		if !ok {
			mu = &domain.ModelUsage{Model: model.String}
			byModel[model.String] = mu
		}
		mu.Exchanges++
		mu.InputTokens += input
		mu.OutputTokens += output
		mu.CostEstimate = mu.CostEstimate.Add(c)

		summary.Exchanges++
		summary.InputTokens += input
		summary.OutputTokens += output
		summary.CostEstimate = summary.CostEstimate.Add(c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}

	for _, mu := range byModel {
		summary.ByModel = append(summary.ByModel, *mu)
	}
	sort.Slice(summary.ByModel, func(i, j int) bool {
		return summary.ByModel[i].Model < summary.ByModel[j].Model
	})
	return summary, nil
}

// CountByModel returns how many exchanges used each model.
func (r *UsageRepository) CountByModel(ctx context.Context) (map[string]int64, error) {
	rows, err := r.store.query(ctx, `SELECT model, COUNT(*) FROM usage_tracking GROUP BY model`)
	if err != nil {
		return nil, fmt.Errorf("count usage by model: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			model sql.NullString
			n     int64
		)
		if err := rows.Scan(&model, &n); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		counts[model.String] = n
	}
	return counts, rows.Err()
}
