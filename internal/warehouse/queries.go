package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-insights/internal/models"
)

// PostgresReader implements Reader against the core fact table.
//
// Aggregates return raw summed numerators and denominators only. Ratio
// metrics are computed downstream from the sums, never averaged from daily
// ratios.
type PostgresReader struct {
	pool *pgxpool.Pool
}

// NewPostgresReader creates a reader.
func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

// DailyStats returns one summed row per day in the query range.
func (r *PostgresReader) DailyStats(ctx context.Context, q StatsQuery) ([]models.DailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.full_date,
		       COALESCE(SUM(f.spend), 0),
		       COALESCE(SUM(f.impressions), 0),
		       COALESCE(SUM(f.clicks), 0),
		       COALESCE(SUM(f.purchases + f.leads + f.add_to_cart), 0),
		       COALESCE(SUM(f.conversion_value), 0)
		FROM fact_core_metrics f
		JOIN dim_date d ON d.date_key = f.date_key
		JOIN dim_account a ON a.account_key = f.account_key
		JOIN dim_campaign c ON c.campaign_key = f.campaign_key
		WHERE a.account_id = $1
		  AND d.full_date BETWEEN $2 AND $3
		  AND ($4 = '' OR c.campaign_id = $4)
		GROUP BY d.full_date
		ORDER BY d.full_date
	`, q.AccountID, q.Since, q.Until, q.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var s models.DailyStat
		if err := rows.Scan(&s.Date, &s.Spend, &s.Impressions, &s.Clicks,
			&s.Conversions, &s.ConversionValue); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CreativeDailyStats returns one summed row per (creative, day) in the
// query range, with the creative's text and format attributes attached.
func (r *PostgresReader) CreativeDailyStats(ctx context.Context, q StatsQuery) ([]models.CreativeDailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cr.creative_id, ad.ad_id,
		       cr.title, cr.body, cr.call_to_action, cr.is_video, cr.is_carousel,
		       d.full_date,
		       COALESCE(SUM(f.spend), 0),
		       COALESCE(SUM(f.impressions), 0),
		       COALESCE(SUM(f.clicks), 0),
		       COALESCE(SUM(f.purchases + f.leads + f.add_to_cart), 0),
		       COALESCE(SUM(f.conversion_value), 0)
		FROM fact_core_metrics f
		JOIN dim_date d ON d.date_key = f.date_key
		JOIN dim_account a ON a.account_key = f.account_key
		JOIN dim_campaign c ON c.campaign_key = f.campaign_key
		JOIN dim_ad ad ON ad.ad_key = f.ad_key
		JOIN dim_creative cr ON cr.creative_key = f.creative_key
		WHERE a.account_id = $1
		  AND d.full_date BETWEEN $2 AND $3
		  AND ($4 = '' OR c.campaign_id = $4)
		GROUP BY cr.creative_id, ad.ad_id, cr.title, cr.body, cr.call_to_action,
		         cr.is_video, cr.is_carousel, d.full_date
		ORDER BY cr.creative_id, d.full_date
	`, q.AccountID, q.Since, q.Until, q.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query creative daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.CreativeDailyStat
	for rows.Next() {
		var s models.CreativeDailyStat
		if err := rows.Scan(&s.CreativeID, &s.AdID,
			&s.Title, &s.Body, &s.CallToAction, &s.IsVideo, &s.IsCarousel,
			&s.Date, &s.Spend, &s.Impressions, &s.Clicks,
			&s.Conversions, &s.ConversionValue); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
