package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/vector-insights/internal/analytics"
	"github.com/radiusdt/vector-insights/internal/config"
	"github.com/radiusdt/vector-insights/internal/database"
	"github.com/radiusdt/vector-insights/internal/logging"
	"github.com/radiusdt/vector-insights/internal/metrics"
	"github.com/radiusdt/vector-insights/internal/models"
	"github.com/radiusdt/vector-insights/internal/pipeline"
	"github.com/radiusdt/vector-insights/internal/warehouse"
	"go.uber.org/zap"
)

const usage = `usage: vector-insights <command> [flags]

commands:
  migrate         create the warehouse schema and seed the date dimension
  load            incremental load: re-pull the input's days, then insert
  backfill        append-only historical load
  trends          weekly trends, seasonality and trend metrics
  fatigue         creative fatigue detection
  patterns        creative pattern classification
  set-conversion  toggle an action type's conversion flag
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

// app wires the warehouse, pipeline and analytics services behind the CLI.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	db     *database.PostgresDB
	dims   warehouse.DimensionStore
	facts  warehouse.FactStore
	reader warehouse.Reader
	cache  analytics.Cache
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewMetrics("vector_insights"),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, using in-memory warehouse", zap.Error(err))
		mem := warehouse.NewMemoryWarehouse()
		a.dims, a.facts, a.reader = mem, mem, mem
	} else {
		closers = append(closers, db.Close)
		a.db = db
		a.dims = warehouse.NewPostgresDimensionStore(db.Pool, logger)
		a.facts = warehouse.NewPostgresFactStore(db.Pool, logger)
		a.reader = warehouse.NewPostgresReader(db.Pool)
	}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, using in-memory result cache", zap.Error(err))
			a.cache = analytics.NewMemoryCache()
		} else {
			closers = append(closers, func() { rdb.Close() })
			a.cache = analytics.NewRedisCache(rdb.Client)
		}
	} else {
		a.cache = analytics.NewMemoryCache()
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		})
	}

	return a, cleanup, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "migrate":
		return a.migrate(ctx, args)
	case "load":
		return a.load(ctx, pipeline.ModeIncremental, args)
	case "backfill":
		return a.load(ctx, pipeline.ModeBackfill, args)
	case "trends":
		return a.trends(ctx, args)
	case "fatigue":
		return a.fatigue(ctx, args)
	case "patterns":
		return a.patterns(ctx, args)
	case "set-conversion":
		return a.setConversion(ctx, args)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}

func (a *app) migrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.db == nil {
		return fmt.Errorf("migrate requires a PostgreSQL connection")
	}
	if err := warehouse.Migrate(ctx, a.db.Pool, a.logger); err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", a.cfg.Load.CalendarStart)
	if err != nil {
		return fmt.Errorf("invalid calendar start %q: %w", a.cfg.Load.CalendarStart, err)
	}
	end, err := time.Parse("2006-01-02", a.cfg.Load.CalendarEnd)
	if err != nil {
		return fmt.Errorf("invalid calendar end %q: %w", a.cfg.Load.CalendarEnd, err)
	}
	return warehouse.SeedDateDimension(ctx, a.db.Pool, start, end, a.logger)
}

func (a *app) load(ctx context.Context, mode pipeline.Mode, args []string) error {
	fs := flag.NewFlagSet(string(mode), flag.ExitOnError)
	input := fs.String("input", "-", "NDJSON records file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := readRecords(*input)
	if err != nil {
		return err
	}
	a.logger.Info("read input records", zap.Int("records", len(records)), zap.String("input", *input))

	loader := pipeline.NewLoader(a.dims, a.facts, a.cfg.Load, a.logger, a.metrics)
	report, err := loader.Run(ctx, mode, records)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func (a *app) trends(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	account := fs.String("account", "", "account ID (required)")
	campaign := fs.String("campaign", "", "optional campaign ID filter")
	lookback := fs.Int("lookback", 0, "lookback days, 0 for the default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		return fmt.Errorf("-account is required")
	}

	svc := analytics.NewTrendService(a.reader, a.cache, a.cfg.Analytics, a.logger, a.metrics)
	result, err := svc.Analyze(ctx, analytics.TrendQuery{
		AccountID:    *account,
		CampaignID:   *campaign,
		LookbackDays: *lookback,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) fatigue(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fatigue", flag.ExitOnError)
	account := fs.String("account", "", "account ID (required)")
	campaign := fs.String("campaign", "", "optional campaign ID filter")
	lookback := fs.Int("lookback", 0, "lookback days, 0 for the default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		return fmt.Errorf("-account is required")
	}

	svc := analytics.NewFatigueService(a.reader, a.cache, a.cfg.Fatigue, a.cfg.Analytics, a.logger, a.metrics)
	result, err := svc.Analyze(ctx, analytics.FatigueQuery{
		AccountID:    *account,
		CampaignID:   *campaign,
		LookbackDays: *lookback,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) patterns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
	account := fs.String("account", "", "account ID (required)")
	campaign := fs.String("campaign", "", "optional campaign ID filter")
	lookback := fs.Int("lookback", 0, "lookback days, 0 for the default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *account == "" {
		return fmt.Errorf("-account is required")
	}

	svc := analytics.NewPatternService(a.reader, a.cache, nil, a.cfg.Analytics, a.logger, a.metrics)
	result, err := svc.Analyze(ctx, analytics.PatternQuery{
		AccountID:    *account,
		CampaignID:   *campaign,
		LookbackDays: *lookback,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (a *app) setConversion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-conversion", flag.ExitOnError)
	actionType := fs.String("action-type", "", "action type name (required)")
	value := fs.Bool("value", true, "conversion flag value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *actionType == "" {
		return fmt.Errorf("-action-type is required")
	}

	if err := a.dims.SetConversionFlag(ctx, *actionType, *value); err != nil {
		return err
	}
	a.logger.Info("conversion flag updated",
		zap.String("action_type", *actionType),
		zap.Bool("is_conversion", *value),
	)
	return nil
}

// readRecords decodes a stream of newline-delimited JSON records.
func readRecords(path string) ([]models.PlatformRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []models.PlatformRecord
	dec := json.NewDecoder(r)
	for {
		var rec models.PlatformRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
