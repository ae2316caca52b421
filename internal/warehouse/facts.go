package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-insights/internal/models"
	"go.uber.org/zap"
)

// PostgresFactStore implements FactStore using PostgreSQL.
//
// Fact inserts use ON CONFLICT DO NOTHING: re-loading the same day is
// harmless, and the attempted/inserted delta surfaces conflicts without
// treating them as errors. Each Insert* call runs in one transaction, so a
// failing chunk rolls back alone.
type PostgresFactStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresFactStore creates a fact store.
func NewPostgresFactStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresFactStore {
	return &PostgresFactStore{pool: pool, logger: logger}
}

// factTables lists every fact table touched by ReplaceDays.
var factTables = []string{
	"fact_core_metrics",
	"fact_placement_metrics",
	"fact_demo_metrics",
	"fact_country_metrics",
	"fact_action_metrics",
}

// ReplaceDays deletes the given accounts' fact rows for the given days ahead
// of a re-pull. The delete is account-scoped so one account's re-pull never
// touches another account's rows for the same days.
func (s *PostgresFactStore) ReplaceDays(ctx context.Context, days []models.DateKey, accountKeys []int64) error {
	if len(days) == 0 || len(accountKeys) == 0 {
		return nil
	}

	keys := make([]int, len(days))
	for i, d := range days {
		keys[i] = int(d)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range factTables {
		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE date_key = ANY($1) AND account_key = ANY($2)`, table),
			keys, accountKeys)
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		if tag.RowsAffected() > 0 {
			s.logger.Debug("cleared fact rows for re-pull",
				zap.String("table", table),
				zap.Int64("rows", tag.RowsAffected()),
			)
		}
	}

	return tx.Commit(ctx)
}

// InsertCoreFacts inserts core metric rows, skipping conflicts.
func (s *PostgresFactStore) InsertCoreFacts(ctx context.Context, rows []models.CoreFact) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO fact_core_metrics (
				date_key, account_key, campaign_key, adset_key, ad_key, creative_key,
				spend, impressions, clicks,
				purchases, leads, add_to_cart, conversion_value
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT DO NOTHING
		`,
			int(r.DateKey), r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey, r.CreativeKey,
			r.Spend, r.Impressions, r.Clicks,
			r.Purchases, r.Leads, r.AddToCart, r.ConversionValue,
		)
	}

	inserted, err := s.sendBatch(ctx, batch)
	if err != nil {
		return int64(len(rows)), 0, fmt.Errorf("failed to insert core facts: %w", err)
	}
	return int64(len(rows)), inserted, nil
}

// InsertBreakdownFacts inserts breakdown metric rows, routing each row to
// its breakdown's table.
func (s *PostgresFactStore) InsertBreakdownFacts(ctx context.Context, rows []models.BreakdownFact) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		switch r.Kind {
		case models.BreakdownPlacement:
			batch.Queue(`
				INSERT INTO fact_placement_metrics (
					date_key, account_key, campaign_key, adset_key, ad_key, placement_key,
					spend, impressions, clicks
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT DO NOTHING
			`, int(r.DateKey), r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey, r.PlacementKey,
				r.Spend, r.Impressions, r.Clicks)
		case models.BreakdownAgeGender:
			batch.Queue(`
				INSERT INTO fact_demo_metrics (
					date_key, account_key, campaign_key, adset_key, ad_key, age_key, gender_key,
					spend, impressions, clicks
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT DO NOTHING
			`, int(r.DateKey), r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey, r.AgeKey, r.GenderKey,
				r.Spend, r.Impressions, r.Clicks)
		case models.BreakdownCountry:
			batch.Queue(`
				INSERT INTO fact_country_metrics (
					date_key, account_key, campaign_key, adset_key, ad_key, country_key,
					spend, impressions, clicks
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT DO NOTHING
			`, int(r.DateKey), r.AccountKey, r.CampaignKey, r.AdSetKey, r.AdKey, r.CountryKey,
				r.Spend, r.Impressions, r.Clicks)
		default:
			return 0, 0, fmt.Errorf("breakdown fact with unknown kind %q", r.Kind)
		}
	}

	inserted, err := s.sendBatch(ctx, batch)
	if err != nil {
		return int64(len(rows)), 0, fmt.Errorf("failed to insert breakdown facts: %w", err)
	}
	return int64(len(rows)), inserted, nil
}

// InsertActionFacts inserts action ledger rows, skipping conflicts and
// all-zero rows.
func (s *PostgresFactStore) InsertActionFacts(ctx context.Context, rows []models.ActionFactRow) (int64, int64, error) {
	batch := &pgx.Batch{}
	var attempted int64
	for _, r := range rows {
		if r.Count == 0 && r.Value == 0 {
			continue
		}
		attempted++
		batch.Queue(`
			INSERT INTO fact_action_metrics (
				date_key, account_key, ad_key, action_type_key, attribution_window,
				action_count, action_value
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING
		`, int(r.DateKey), r.AccountKey, r.AdKey, r.ActionTypeKey, string(r.Window),
			r.Count, r.Value)
	}
	if attempted == 0 {
		return 0, 0, nil
	}

	inserted, err := s.sendBatch(ctx, batch)
	if err != nil {
		return attempted, 0, fmt.Errorf("failed to insert action facts: %w", err)
	}
	return attempted, inserted, nil
}

// sendBatch executes a batch inside one transaction and sums inserted rows.
func (s *PostgresFactStore) sendBatch(ctx context.Context, batch *pgx.Batch) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)

	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, err
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, err
	}

	return inserted, tx.Commit(ctx)
}
