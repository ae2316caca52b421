// Package pipeline orchestrates batch loads: record validation, action
// normalization, dimension resolution and chunked idempotent fact loading.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"go.uber.org/zap"
)

// Mode selects between append-only backfill and day-replacing incremental
// loads.
type Mode string

const (
	// ModeBackfill appends historical days; duplicate rows are dropped by
	// the store's conflict handling.
	ModeBackfill Mode = "backfill"
	// ModeIncremental re-pulls recent days: the targeted days' fact rows
	// are deleted and reloaded so late attribution overwrites them.
	ModeIncremental Mode = "incremental"
)

// ChunkResult reports one chunk's outcome.
type ChunkResult struct {
	Chunk     int    `json:"chunk"`
	Rows      int    `json:"rows"`
	Attempts  int    `json:"attempts"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// RunReport summarizes one pipeline run. Attempted/inserted deltas are the
// expected conflict signal, not an error.
type RunReport struct {
	JobID     string    `json:"job_id"`
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	Records   int `json:"records"`
	Malformed int `json:"malformed"`

	CoreAttempted      int64 `json:"core_attempted"`
	CoreInserted       int64 `json:"core_inserted"`
	BreakdownAttempted int64 `json:"breakdown_attempted"`
	BreakdownInserted  int64 `json:"breakdown_inserted"`
	ActionAttempted    int64 `json:"action_attempted"`
	ActionInserted     int64 `json:"action_inserted"`

	Chunks       []ChunkResult `json:"chunks"`
	FailedChunks int           `json:"failed_chunks"`
}

// Loader runs batch loads against the warehouse.
type Loader struct {
	dims       warehouse.DimensionStore
	facts      warehouse.FactStore
	normalizer *warehouse.Normalizer
	cfg        config.LoadConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics

	conversionTypes map[string]bool
}

// NewLoader creates a Loader.
func NewLoader(dims warehouse.DimensionStore, facts warehouse.FactStore, cfg config.LoadConfig, logger *zap.Logger, m *metrics.Metrics) *Loader {
	conv := make(map[string]bool, len(cfg.ConversionActionTypes))
	for _, t := range cfg.ConversionActionTypes {
		conv[t] = true
	}
	return &Loader{
		dims:            dims,
		facts:           facts,
		normalizer:      warehouse.NewNormalizer(logger),
		cfg:             cfg,
		logger:          logger,
		metrics:         m,
		conversionTypes: conv,
	}
}

// normalized is one validated record with its flattened actions.
type normalized struct {
	rec     *models.PlatformRecord
	date    models.DateKey
	actions []models.ActionFact
}

// Run executes one load. A chunk failure after retries is reported, not
// fatal: committed chunks stay committed and the report names the failures.
func (l *Loader) Run(ctx context.Context, mode Mode, records []models.PlatformRecord) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{
		JobID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: started,
		Records:   len(records),
	}
	log := l.logger.With(zap.String("job_id", report.JobID), zap.String("mode", string(mode)))

	rows, days := l.prepare(records, report, log)

	batch := l.collectDimensions(rows)
	keys, err := l.dims.ResolveDimensions(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("failed to resolve dimensions: %w", err)
	}

	if mode == ModeIncremental && len(days) > 0 {
		// Scoped to the batch's accounts: a one-account re-pull must not
		// delete other accounts' rows for the same days.
		accountKeys := make([]int64, 0, len(keys.Accounts))
		for _, k := range keys.Accounts {
			accountKeys = append(accountKeys, k)
		}
		if err := l.facts.ReplaceDays(ctx, days, accountKeys); err != nil {
			return report, fmt.Errorf("failed to clear days for re-pull: %w", err)
		}
		log.Info("cleared fact rows for re-pull",
			zap.Int("days", len(days)),
			zap.Int("accounts", len(accountKeys)),
		)
	}

	core, breakdown, actions := l.buildFacts(rows, keys, log)

	l.loadChunks(ctx, report, log, core, breakdown, actions)

	report.Duration = time.Since(started).String()
	log.Info("load finished",
		zap.Int("records", report.Records),
		zap.Int("malformed", report.Malformed),
		zap.Int64("core_attempted", report.CoreAttempted),
		zap.Int64("core_inserted", report.CoreInserted),
		zap.Int("failed_chunks", report.FailedChunks),
		zap.String("duration", report.Duration),
	)
	return report, nil
}

// prepare validates records, normalizes actions and collects the distinct
// days touched. Malformed records are skipped and logged, never fatal.
func (l *Loader) prepare(records []models.PlatformRecord, report *RunReport, log *zap.Logger) ([]normalized, []models.DateKey) {
	rows := make([]normalized, 0, len(records))
	daySet := make(map[models.DateKey]bool)

	for i := range records {
		rec := &records[i]
		day, err := validate(rec)
		if err != nil {
			report.Malformed++
			l.metrics.RecordMalformed()
			log.Warn("skipping malformed record",
				zap.String("ad_id", rec.AdID),
				zap.String("date", rec.Date),
				zap.Error(err),
			)
			continue
		}
		daySet[day] = true
		rows = append(rows, normalized{
			rec:     rec,
			date:    day,
			actions: l.normalizer.NormalizeActions(rec),
		})
	}

	days := make([]models.DateKey, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return rows, days
}

// validate checks a record's required fields and parses its date.
func validate(rec *models.PlatformRecord) (models.DateKey, error) {
	t, err := time.Parse("2006-01-02", rec.Date)
	if err != nil {
		return 0, fmt.Errorf("invalid date_start %q: %w", rec.Date, err)
	}
	switch {
	case rec.AccountID == "":
		return 0, fmt.Errorf("missing account_id")
	case rec.CampaignID == "":
		return 0, fmt.Errorf("missing campaign_id")
	case rec.AdSetID == "":
		return 0, fmt.Errorf("missing adset_id")
	case rec.AdID == "":
		return 0, fmt.Errorf("missing ad_id")
	}
	if rec.Breakdown() == models.BreakdownNone && rec.Creative.ID == "" {
		return 0, fmt.Errorf("missing creative id on core record")
	}
	return models.NewDateKey(t), nil
}

// collectDimensions gathers every dimension attribute in the batch,
// deduplicated by natural key.
func (l *Loader) collectDimensions(rows []normalized) *warehouse.DimensionBatch {
	batch := warehouse.NewDimensionBatch()
	for _, row := range rows {
		rec := row.rec
		batch.Accounts[rec.AccountID] = models.AccountAttrs{AccountID: rec.AccountID}
		batch.Campaigns[rec.CampaignID] = models.CampaignAttrs{
			CampaignID: rec.CampaignID, Name: rec.CampaignName, Status: rec.CampaignStatus,
		}
		batch.AdSets[rec.AdSetID] = models.AdSetAttrs{
			AdSetID: rec.AdSetID, Name: rec.AdSetName, Status: rec.AdSetStatus,
		}
		batch.Ads[rec.AdID] = models.AdAttrs{
			AdID: rec.AdID, Name: rec.AdName, Status: rec.AdStatus,
		}
		if rec.Creative.ID != "" {
			batch.Creatives[rec.Creative.ID] = models.CreativeAttrs{
				CreativeID:   rec.Creative.ID,
				Title:        rec.Creative.Title,
				Body:         rec.Creative.Body,
				CallToAction: rec.Creative.CallToAction,
				IsVideo:      rec.Creative.IsVideo,
				IsCarousel:   rec.Creative.IsCarousel,
				VideoLength:  rec.Creative.VideoLength,
			}
		}
		for _, a := range row.actions {
			batch.ActionTypes[a.ActionType] = models.ActionTypeAttrs{
				Name:         a.ActionType,
				IsConversion: l.conversionTypes[a.ActionType],
			}
		}
		switch rec.Breakdown() {
		case models.BreakdownPlacement:
			batch.Placements[*rec.Placement] = models.PlacementAttrs{Name: *rec.Placement}
		case models.BreakdownCountry:
			batch.Countries[*rec.Country] = models.CountryAttrs{Code: *rec.Country}
		case models.BreakdownAgeGender:
			age, gender := demoKeys(rec)
			batch.Ages[age] = models.AgeAttrs{Bucket: age}
			batch.Genders[gender] = models.GenderAttrs{Value: gender}
		}
	}
	return batch
}

// demoKeys returns the age bucket and gender value of an age/gender
// breakdown record, defaulting the absent half to "unknown".
func demoKeys(rec *models.PlatformRecord) (string, string) {
	age, gender := "unknown", "unknown"
	if rec.Age != nil && *rec.Age != "" {
		age = *rec.Age
	}
	if rec.Gender != nil && *rec.Gender != "" {
		gender = *rec.Gender
	}
	return age, gender
}

// buildFacts turns validated records into surrogate-keyed fact rows.
func (l *Loader) buildFacts(rows []normalized, keys *warehouse.DimensionKeys, log *zap.Logger) ([]models.CoreFact, []models.BreakdownFact, []models.ActionFactRow) {
	var core []models.CoreFact
	var breakdown []models.BreakdownFact
	var actions []models.ActionFactRow

	for _, row := range rows {
		rec := row.rec
		accountKey := keys.Accounts[rec.AccountID]
		campaignKey := keys.Campaigns[rec.CampaignID]
		adSetKey := keys.AdSets[rec.AdSetID]
		adKey := keys.Ads[rec.AdID]

		switch rec.Breakdown() {
		case models.BreakdownNone:
			totals := warehouse.SumConversions(row.actions)
			core = append(core, models.CoreFact{
				DateKey:         row.date,
				AccountKey:      accountKey,
				CampaignKey:     campaignKey,
				AdSetKey:        adSetKey,
				AdKey:           adKey,
				CreativeKey:     keys.Creatives[rec.Creative.ID],
				Spend:           rec.Spend,
				Impressions:     rec.Impressions,
				Clicks:          rec.Clicks,
				Purchases:       totals.Purchases,
				Leads:           totals.Leads,
				AddToCart:       totals.AddToCart,
				ConversionValue: totals.ConversionValue,
			})
			for _, a := range row.actions {
				actions = append(actions, models.ActionFactRow{
					DateKey:       row.date,
					AccountKey:    accountKey,
					AdKey:         adKey,
					ActionTypeKey: keys.ActionTypes[a.ActionType],
					Window:        a.Window,
					Count:         a.Count,
					Value:         a.Value,
				})
			}
		case models.BreakdownPlacement:
			breakdown = append(breakdown, models.BreakdownFact{
				Kind:         models.BreakdownPlacement,
				DateKey:      row.date,
				AccountKey:   accountKey,
				CampaignKey:  campaignKey,
				AdSetKey:     adSetKey,
				AdKey:        adKey,
				PlacementKey: keys.Placements[*rec.Placement],
				Spend:        rec.Spend,
				Impressions:  rec.Impressions,
				Clicks:       rec.Clicks,
			})
		case models.BreakdownAgeGender:
			age, gender := demoKeys(rec)
			breakdown = append(breakdown, models.BreakdownFact{
				Kind:        models.BreakdownAgeGender,
				DateKey:     row.date,
				AccountKey:  accountKey,
				CampaignKey: campaignKey,
				AdSetKey:    adSetKey,
				AdKey:       adKey,
				AgeKey:      keys.Ages[age],
				GenderKey:   keys.Genders[gender],
				Spend:       rec.Spend,
				Impressions: rec.Impressions,
				Clicks:      rec.Clicks,
			})
		case models.BreakdownCountry:
			breakdown = append(breakdown, models.BreakdownFact{
				Kind:        models.BreakdownCountry,
				DateKey:     row.date,
				AccountKey:  accountKey,
				CampaignKey: campaignKey,
				AdSetKey:    adSetKey,
				AdKey:       adKey,
				CountryKey:  keys.Countries[*rec.Country],
				Spend:       rec.Spend,
				Impressions: rec.Impressions,
				Clicks:      rec.Clicks,
			})
		}
	}

	log.Debug("built fact rows",
		zap.Int("core", len(core)),
		zap.Int("breakdown", len(breakdown)),
		zap.Int("action", len(actions)),
	)
	return core, breakdown, actions
}

// loadChunks persists fact rows in bounded chunks with per-chunk retry.
func (l *Loader) loadChunks(ctx context.Context, report *RunReport, log *zap.Logger,
	core []models.CoreFact, breakdown []models.BreakdownFact, actions []models.ActionFactRow) {

	chunkIdx := 0

	for _, rows := range chunk(core, l.cfg.ChunkSize) {
		rows := rows
		attempted, inserted := l.runChunk(ctx, report, log, chunkIdx, len(rows), "fact_core_metrics",
			func() (int64, int64, error) { return l.facts.InsertCoreFacts(ctx, rows) })
		report.CoreAttempted += attempted
		report.CoreInserted += inserted
		chunkIdx++
	}
	for _, rows := range chunk(breakdown, l.cfg.ChunkSize) {
		rows := rows
		attempted, inserted := l.runChunk(ctx, report, log, chunkIdx, len(rows), "fact_breakdown_metrics",
			func() (int64, int64, error) { return l.facts.InsertBreakdownFacts(ctx, rows) })
		report.BreakdownAttempted += attempted
		report.BreakdownInserted += inserted
		chunkIdx++
	}
	for _, rows := range chunk(actions, l.cfg.ChunkSize) {
		rows := rows
		attempted, inserted := l.runChunk(ctx, report, log, chunkIdx, len(rows), "fact_action_metrics",
			func() (int64, int64, error) { return l.facts.InsertActionFacts(ctx, rows) })
		report.ActionAttempted += attempted
		report.ActionInserted += inserted
		chunkIdx++
	}
}

// runChunk executes one chunk insert with bounded retries. The returned
// counts are zero when the chunk ultimately failed.
func (l *Loader) runChunk(ctx context.Context, report *RunReport, log *zap.Logger,
	idx, rows int, table string, insert func() (int64, int64, error)) (int64, int64) {

	result := ChunkResult{Chunk: idx, Rows: rows}
	started := time.Now()

	var attempted, inserted int64
	var err error
	for attempt := 0; attempt <= l.cfg.ChunkRetries; attempt++ {
		if attempt > 0 {
			l.metrics.RecordChunkRetry()
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
			if err != nil {
				break
			}
		}
		result.Attempts = attempt + 1
		attempted, inserted, err = insert()
		if err == nil {
			break
		}
		log.Warn("chunk load failed",
			zap.Int("chunk", idx),
			zap.String("table", table),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	if err != nil {
		result.Error = err.Error()
		report.FailedChunks++
		l.metrics.RecordChunkFailure()
		l.metrics.RecordChunk("failed", time.Since(started))
		report.Chunks = append(report.Chunks, result)
		return 0, 0
	}

	result.Succeeded = true
	report.Chunks = append(report.Chunks, result)
	l.metrics.RecordChunk("ok", time.Since(started))
	l.metrics.RecordLoad(table, attempted, inserted)
	return attempted, inserted
}

// chunk splits rows into slices of at most size elements.
func chunk[T any](rows []T, size int) [][]T {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
