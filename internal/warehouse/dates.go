package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-insights/internal/models"
	"go.uber.org/zap"
)

// SeedDateDimension pre-populates dim_date for the given calendar range.
// The date dimension is never resolved from records: every load assumes its
// days already exist.
func SeedDateDimension(ctx context.Context, pool *pgxpool.Pool, start, end time.Time, logger *zap.Logger) error {
	if end.Before(start) {
		return fmt.Errorf("calendar end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	batch := &pgx.Batch{}
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		batch.Queue(`
			INSERT INTO dim_date (
				date_key, full_date, year, quarter, month, day,
				day_of_week, week_of_year, day_name, month_name, is_weekend
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (date_key) DO NOTHING
		`,
			int(models.NewDateKey(d)), d, d.Year(), (int(d.Month())-1)/3+1, int(d.Month()), d.Day(),
			int(d.Weekday()), isoWeek(d), d.Weekday().String(), d.Month().String(),
			d.Weekday() == time.Saturday || d.Weekday() == time.Sunday,
		)
		days++
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to seed date dimension: %w", err)
		}
	}

	logger.Info("date dimension seeded",
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
		zap.Int("days", days),
	)
	return nil
}

func isoWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}
