package warehouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/vector-insights/internal/models"
	"go.uber.org/zap"
)

// PostgresDimensionStore implements DimensionStore using PostgreSQL.
//
// Resolution is two-phase: a bulk lookup of natural keys already cached or
// present in the store, then insert-or-update of the remainder. Conflicts
// update mutable display attributes only; the surrogate key never changes,
// so existing fact references stay valid across re-pulls.
type PostgresDimensionStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]map[string]int64 // dimension -> natural key -> surrogate key
}

// NewPostgresDimensionStore creates a dimension store with an empty
// natural-key cache.
func NewPostgresDimensionStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresDimensionStore {
	return &PostgresDimensionStore{
		pool:   pool,
		logger: logger,
		cache:  make(map[string]map[string]int64),
	}
}

// ResolveDimensions resolves every dimension in the batch and returns the
// combined natural-to-surrogate key mapping.
func (s *PostgresDimensionStore) ResolveDimensions(ctx context.Context, batch *DimensionBatch) (*DimensionKeys, error) {
	keys := &DimensionKeys{}
	var err error

	if keys.Accounts, err = s.resolveAccounts(ctx, batch.Accounts); err != nil {
		return nil, err
	}
	if keys.Campaigns, err = s.resolveCampaigns(ctx, batch.Campaigns); err != nil {
		return nil, err
	}
	if keys.AdSets, err = s.resolveAdSets(ctx, batch.AdSets); err != nil {
		return nil, err
	}
	if keys.Ads, err = s.resolveAds(ctx, batch.Ads); err != nil {
		return nil, err
	}
	if keys.Creatives, err = s.resolveCreatives(ctx, batch.Creatives); err != nil {
		return nil, err
	}
	if keys.ActionTypes, err = s.resolveActionTypes(ctx, batch.ActionTypes); err != nil {
		return nil, err
	}
	if keys.Placements, err = s.resolveSimple(ctx, "dim_placement", "placement_key", "name", keysOf(batch.Placements)); err != nil {
		return nil, err
	}
	if keys.Countries, err = s.resolveSimple(ctx, "dim_country", "country_key", "code", keysOf(batch.Countries)); err != nil {
		return nil, err
	}
	if keys.Ages, err = s.resolveSimple(ctx, "dim_age", "age_key", "bucket", keysOf(batch.Ages)); err != nil {
		return nil, err
	}
	if keys.Genders, err = s.resolveSimple(ctx, "dim_gender", "gender_key", "value", keysOf(batch.Genders)); err != nil {
		return nil, err
	}

	return keys, nil
}

// SetConversionFlag toggles the is_conversion flag on an action type.
func (s *PostgresDimensionStore) SetConversionFlag(ctx context.Context, actionType string, isConversion bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dim_action_type SET is_conversion = $2 WHERE name = $1
	`, actionType, isConversion)
	if err != nil {
		return fmt.Errorf("failed to update action type %q: %w", actionType, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown action type %q", actionType)
	}
	return nil
}

func (s *PostgresDimensionStore) resolveAccounts(ctx context.Context, attrs map[string]models.AccountAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("account", keysOf(attrs))
	for _, id := range missing {
		a := attrs[id]
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_account (account_id, name)
			VALUES ($1, $2)
			ON CONFLICT (account_id) DO UPDATE SET
				name = EXCLUDED.name,
				updated_at = now()
			RETURNING account_key
		`, a.AccountID, a.Name).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert account %q: %w", a.AccountID, err)
		}
		resolved[id] = key
	}
	s.remember("account", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveCampaigns(ctx context.Context, attrs map[string]models.CampaignAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("campaign", keysOf(attrs))
	for _, id := range missing {
		c := attrs[id]
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_campaign (campaign_id, name, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (campaign_id) DO UPDATE SET
				name = EXCLUDED.name,
				status = EXCLUDED.status,
				updated_at = now()
			RETURNING campaign_key
		`, c.CampaignID, c.Name, c.Status).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert campaign %q: %w", c.CampaignID, err)
		}
		resolved[id] = key
	}
	s.remember("campaign", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveAdSets(ctx context.Context, attrs map[string]models.AdSetAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("adset", keysOf(attrs))
	for _, id := range missing {
		a := attrs[id]
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_adset (adset_id, name, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (adset_id) DO UPDATE SET
				name = EXCLUDED.name,
				status = EXCLUDED.status,
				updated_at = now()
			RETURNING adset_key
		`, a.AdSetID, a.Name, a.Status).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert ad set %q: %w", a.AdSetID, err)
		}
		resolved[id] = key
	}
	s.remember("adset", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveAds(ctx context.Context, attrs map[string]models.AdAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("ad", keysOf(attrs))
	for _, id := range missing {
		a := attrs[id]
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_ad (ad_id, name, status)
			VALUES ($1, $2, $3)
			ON CONFLICT (ad_id) DO UPDATE SET
				name = EXCLUDED.name,
				status = EXCLUDED.status,
				updated_at = now()
			RETURNING ad_key
		`, a.AdID, a.Name, a.Status).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert ad %q: %w", a.AdID, err)
		}
		resolved[id] = key
	}
	s.remember("ad", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveCreatives(ctx context.Context, attrs map[string]models.CreativeAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("creative", keysOf(attrs))
	for _, id := range missing {
		c := attrs[id]
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_creative (creative_id, title, body, call_to_action, is_video, is_carousel, video_length_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (creative_id) DO UPDATE SET
				title = EXCLUDED.title,
				body = EXCLUDED.body,
				call_to_action = EXCLUDED.call_to_action,
				is_video = EXCLUDED.is_video,
				is_carousel = EXCLUDED.is_carousel,
				video_length_seconds = EXCLUDED.video_length_seconds,
				updated_at = now()
			RETURNING creative_key
		`, c.CreativeID, c.Title, c.Body, c.CallToAction, c.IsVideo, c.IsCarousel, c.VideoLength).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert creative %q: %w", c.CreativeID, err)
		}
		resolved[id] = key
	}
	s.remember("creative", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveActionTypes(ctx context.Context, attrs map[string]models.ActionTypeAttrs) (map[string]int64, error) {
	resolved, missing := s.cached("action_type", keysOf(attrs))
	for _, name := range missing {
		a := attrs[name]
		// The no-op name update makes the conflict arm return the existing
		// key without touching a user-toggled is_conversion flag.
		var key int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO dim_action_type (name, is_conversion)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING action_type_key
		`, a.Name, a.IsConversion).Scan(&key)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert action type %q: %w", a.Name, err)
		}
		resolved[name] = key
	}
	s.remember("action_type", resolved)
	return resolved, nil
}

func (s *PostgresDimensionStore) resolveSimple(ctx context.Context, table, keyCol, natCol string, natural []string) (map[string]int64, error) {
	resolved, missing := s.cached(table, natural)
	for _, v := range missing {
		var key int64
		query := fmt.Sprintf(`
			INSERT INTO %s (%s) VALUES ($1)
			ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s
			RETURNING %s
		`, table, natCol, natCol, natCol, natCol, keyCol)
		if err := s.pool.QueryRow(ctx, query, v).Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to upsert %s %q: %w", table, v, err)
		}
		resolved[v] = key
	}
	s.remember(table, resolved)
	return resolved, nil
}

// cached splits natural keys into already-resolved and missing.
func (s *PostgresDimensionStore) cached(dim string, natural []string) (map[string]int64, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resolved := make(map[string]int64, len(natural))
	var missing []string
	known := s.cache[dim]
	for _, k := range natural {
		if key, ok := known[k]; ok {
			resolved[k] = key
		} else {
			missing = append(missing, k)
		}
	}
	return resolved, missing
}

// remember stores resolved keys in the in-memory cache.
func (s *PostgresDimensionStore) remember(dim string, resolved map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, ok := s.cache[dim]
	if !ok {
		known = make(map[string]int64, len(resolved))
		s.cache[dim] = known
	}
	for k, v := range resolved {
		known[k] = v
	}
}

func keysOf[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
