package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// schemaStatements creates the dimensional model. Dimension tables carry a
// surrogate key and a unique natural key; fact tables carry a composite
// primary key over their full surrogate-key tuple so duplicate loads are
// rejected by the store itself.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_account (
		account_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		account_id  TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_campaign (
		campaign_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		campaign_id  TEXT NOT NULL UNIQUE,
		name         TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_adset (
		adset_key  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		adset_id   TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_ad (
		ad_key     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		ad_id      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_creative (
		creative_key         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		creative_id          TEXT NOT NULL UNIQUE,
		title                TEXT NOT NULL DEFAULT '',
		body                 TEXT NOT NULL DEFAULT '',
		call_to_action       TEXT NOT NULL DEFAULT '',
		is_video             BOOLEAN NOT NULL DEFAULT FALSE,
		is_carousel          BOOLEAN NOT NULL DEFAULT FALSE,
		video_length_seconds INT NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dim_placement (
		placement_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name          TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_country (
		country_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		code        TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_age (
		age_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		bucket  TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_gender (
		gender_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		value      TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_action_type (
		action_type_key BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name            TEXT NOT NULL UNIQUE,
		is_conversion   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_date (
		date_key     INT PRIMARY KEY,
		full_date    DATE NOT NULL UNIQUE,
		year         INT NOT NULL,
		quarter      INT NOT NULL,
		month        INT NOT NULL,
		day          INT NOT NULL,
		day_of_week  INT NOT NULL,
		week_of_year INT NOT NULL,
		day_name     TEXT NOT NULL,
		month_name   TEXT NOT NULL,
		is_weekend   BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fact_core_metrics (
		date_key         INT NOT NULL REFERENCES dim_date (date_key),
		account_key      BIGINT NOT NULL REFERENCES dim_account (account_key),
		campaign_key     BIGINT NOT NULL REFERENCES dim_campaign (campaign_key),
		adset_key        BIGINT NOT NULL REFERENCES dim_adset (adset_key),
		ad_key           BIGINT NOT NULL REFERENCES dim_ad (ad_key),
		creative_key     BIGINT NOT NULL REFERENCES dim_creative (creative_key),
		spend            DOUBLE PRECISION NOT NULL DEFAULT 0,
		impressions      BIGINT NOT NULL DEFAULT 0,
		clicks           BIGINT NOT NULL DEFAULT 0,
		purchases        DOUBLE PRECISION NOT NULL DEFAULT 0,
		leads            DOUBLE PRECISION NOT NULL DEFAULT 0,
		add_to_cart      DOUBLE PRECISION NOT NULL DEFAULT 0,
		conversion_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (date_key, account_key, campaign_key, adset_key, ad_key, creative_key)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_placement_metrics (
		date_key      INT NOT NULL REFERENCES dim_date (date_key),
		account_key   BIGINT NOT NULL REFERENCES dim_account (account_key),
		campaign_key  BIGINT NOT NULL REFERENCES dim_campaign (campaign_key),
		adset_key     BIGINT NOT NULL REFERENCES dim_adset (adset_key),
		ad_key        BIGINT NOT NULL REFERENCES dim_ad (ad_key),
		placement_key BIGINT NOT NULL REFERENCES dim_placement (placement_key),
		spend         DOUBLE PRECISION NOT NULL DEFAULT 0,
		impressions   BIGINT NOT NULL DEFAULT 0,
		clicks        BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (date_key, account_key, campaign_key, adset_key, ad_key, placement_key)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_demo_metrics (
		date_key     INT NOT NULL REFERENCES dim_date (date_key),
		account_key  BIGINT NOT NULL REFERENCES dim_account (account_key),
		campaign_key BIGINT NOT NULL REFERENCES dim_campaign (campaign_key),
		adset_key    BIGINT NOT NULL REFERENCES dim_adset (adset_key),
		ad_key       BIGINT NOT NULL REFERENCES dim_ad (ad_key),
		age_key      BIGINT NOT NULL REFERENCES dim_age (age_key),
		gender_key   BIGINT NOT NULL REFERENCES dim_gender (gender_key),
		spend        DOUBLE PRECISION NOT NULL DEFAULT 0,
		impressions  BIGINT NOT NULL DEFAULT 0,
		clicks       BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (date_key, account_key, campaign_key, adset_key, ad_key, age_key, gender_key)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_country_metrics (
		date_key     INT NOT NULL REFERENCES dim_date (date_key),
		account_key  BIGINT NOT NULL REFERENCES dim_account (account_key),
		campaign_key BIGINT NOT NULL REFERENCES dim_campaign (campaign_key),
		adset_key    BIGINT NOT NULL REFERENCES dim_adset (adset_key),
		ad_key       BIGINT NOT NULL REFERENCES dim_ad (ad_key),
		country_key  BIGINT NOT NULL REFERENCES dim_country (country_key),
		spend        DOUBLE PRECISION NOT NULL DEFAULT 0,
		impressions  BIGINT NOT NULL DEFAULT 0,
		clicks       BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (date_key, account_key, campaign_key, adset_key, ad_key, country_key)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_action_metrics (
		date_key           INT NOT NULL REFERENCES dim_date (date_key),
		account_key        BIGINT NOT NULL REFERENCES dim_account (account_key),
		ad_key             BIGINT NOT NULL REFERENCES dim_ad (ad_key),
		action_type_key    BIGINT NOT NULL REFERENCES dim_action_type (action_type_key),
		attribution_window TEXT NOT NULL,
		action_count       DOUBLE PRECISION NOT NULL DEFAULT 0,
		action_value       DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (date_key, account_key, ad_key, action_type_key, attribution_window)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_core_account_date
		ON fact_core_metrics (account_key, date_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_core_creative
		ON fact_core_metrics (creative_key, date_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_action_ad_date
		ON fact_action_metrics (ad_key, date_key)`,
}

// Migrate creates the warehouse schema. Statements are idempotent so Migrate
// is safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	logger.Info("warehouse schema up to date", zap.Int("statements", len(schemaStatements)))
	return nil
}
