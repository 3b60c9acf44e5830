package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"octopyenergy/internal/config"
	"octopyenergy/internal/model"
	"octopyenergy/internal/output"
	"octopyenergy/internal/providers"
	"octopyenergy/internal/providers/graphql"
	"octopyenergy/internal/providers/rest"
	"octopyenergy/internal/store"
	"octopyenergy/internal/store/sqlite"
)

const saveBatchSize = 1000

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "readings":
		err = readings(os.Args[2:])
	case "tariffs":
		err = tariffs(os.Args[2:])
	case "current":
		err = current(os.Args[2:])
	case "help", "-h", "-help", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: octopus <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  readings   print consumption readings of one meter (REST)")
	fmt.Fprintln(os.Stderr, "  tariffs    print the active tariff of each meter point (GraphQL);")
	fmt.Fprintln(os.Stderr, "             fails if a meter point has more than one active agreement")
	fmt.Fprintln(os.Stderr, "  current    print latest quarterly consumption and tariff (GraphQL)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "common options:")
	fmt.Fprintln(os.Stderr, "  -config    config file (default: octopus.yaml in ., ./configs, ~/.config/octopus)")
	fmt.Fprintln(os.Stderr, "  -apikey    API key (default: $OCTOPUS_API_KEY)")
	fmt.Fprintln(os.Stderr, "  -format    text, csv or json")
	fmt.Fprintln(os.Stderr, "  -db        sqlite database path (empty disables persistence)")
	fmt.Fprintln(os.Stderr, "  -metrics-addr  serve Prometheus metrics on this address while running")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "run 'octopus <command> -h' for command options")
}

type commonFlags struct {
	configPath  *string
	apiKey      *string
	format      *string
	dbPath      *string
	metricsAddr *string
}

func registerCommon(fs *flag.FlagSet, defaultFormat string) commonFlags {
	return commonFlags{
		configPath:  fs.String("config", "", "config file path"),
		apiKey:      fs.String("apikey", "", "API key"),
		format:      fs.String("format", defaultFormat, "output format: text, csv or json"),
		dbPath:      fs.String("db", "", "sqlite database path (overrides store.path)"),
		metricsAddr: fs.String("metrics-addr", "", "serve /metrics on this address, e.g. :9090 (empty disables)"),
	}
}

// environment is what every command needs once flags and config are merged.
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	format  output.Format
	store   store.Store
	metrics *providers.Metrics
	server  *metricsServer
}

func setup(flags commonFlags) (*environment, error) {
	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(*flags.apiKey); key != "" {
		cfg.APIKey = key
	}
	if path := strings.TrimSpace(*flags.dbPath); path != "" {
		cfg.Store.Path = path
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("an API key is required (-apikey or OCTOPUS_API_KEY)")
	}

	format, err := output.ParseFormat(*flags.format)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg.Store.Path)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	reg := newMetricsRegistry()
	env := &environment{cfg: cfg, logger: logger, format: format, store: st, metrics: providers.NewMetrics(reg)}
	if addr := strings.TrimSpace(*flags.metricsAddr); addr != "" {
		server, err := startMetricsServer(addr, reg, logger)
		if err != nil {
			_ = st.Close()
			_ = logger.Sync()
			return nil, fmt.Errorf("metrics listener: %w", err)
		}
		env.server = server
	}
	return env, nil
}

func (e *environment) Close() {
	if e.server != nil {
		e.server.Close()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

func (e *environment) restSession() (*rest.Session, error) {
	return rest.NewWithConfig(rest.Config{
		BaseURL:   e.cfg.REST.BaseURL,
		APIKey:    e.cfg.APIKey,
		Timeout:   e.cfg.REST.Timeout,
		UserAgent: e.cfg.UserAgent,
	}, rest.WithLogger(e.logger), rest.WithMetrics(e.metrics))
}

func (e *environment) graphqlConfig() graphql.Config {
	return graphql.Config{
		URL:       e.cfg.GraphQL.URL,
		APIKey:    e.cfg.APIKey,
		Timeout:   e.cfg.GraphQL.Timeout,
		UserAgent: e.cfg.UserAgent,
		Lookback:  e.cfg.GraphQL.Lookback,
	}
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func readings(args []string) error {
	fs := flag.NewFlagSet("readings", flag.ExitOnError)
	common := registerCommon(fs, string(output.FormatText))
	mpan := fs.String("mpan", "", "meter point administration number")
	meter := fs.String("meter", "", "meter serial number")
	from := fs.String("from", "", "period start, RFC 3339 or YYYY-MM-DD (inclusive)")
	to := fs.String("to", "", "period end, RFC 3339 or YYYY-MM-DD (exclusive, default: now)")
	groupBy := fs.String("group-by", "half-hour", "half-hour, hour, day, week, month or quarter")
	incremental := fs.Bool("incremental", false, "start after the newest reading stored in -db")
	fs.Parse(args)

	if strings.TrimSpace(*mpan) == "" || strings.TrimSpace(*meter) == "" {
		return errors.New("-mpan and -meter are required")
	}
	grouping, err := model.ParseGrouping(*groupBy)
	if err != nil {
		return err
	}

	env, err := setup(common)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	key := store.MeterKey{MPAN: *mpan, SerialNumber: *meter, Grouping: grouping}
	var latest *time.Time
	if *incremental {
		end, ok, err := env.store.LatestIntervalEnd(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			latest = &end
			env.logger.Info("resuming after stored readings", zap.Time("interval_end", end))
		}
	}
	period, err := resolvePeriod(*from, *to, latest, time.Now().UTC())
	if err != nil {
		return err
	}

	session, err := env.restSession()
	if err != nil {
		return err
	}
	defer session.Close()

	opts := []rest.ConsumptionOption{rest.WithGrouping(grouping)}
	if period != nil {
		if !period.from.Before(period.to) {
			env.logger.Info("nothing to fetch", zap.Time("from", period.from), zap.Time("to", period.to))
			return nil
		}
		opts = append(opts, rest.WithPeriod(period.from, period.to))
	}
	reader, err := session.ElectricityMeterConsumption(*mpan, *meter, opts...)
	if err != nil {
		return err
	}

	writer, err := output.NewReadingWriter(os.Stdout, env.format)
	if err != nil {
		return err
	}

	batch := make([]model.ConsumptionReading, 0, saveBatchSize)
	count := 0
	for reading, err := range reader.All(ctx) {
		if err != nil {
			_ = writer.Close()
			return err
		}
		if err := writer.Write(reading); err != nil {
			return err
		}
		count++
		batch = append(batch, reading)
		if len(batch) == saveBatchSize {
			if err := env.store.SaveReadings(ctx, key, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := env.store.SaveReadings(ctx, key, batch); err != nil {
		return err
	}
	env.logger.Debug("readings complete", zap.Int("readings", count))
	return writer.Close()
}

func tariffs(args []string) error {
	fs := flag.NewFlagSet("tariffs", flag.ExitOnError)
	common := registerCommon(fs, string(output.FormatCSV))
	accountNumber := fs.String("account-number", "", "account number (default: account_number from config)")
	fs.Parse(args)

	env, err := setup(common)
	if err != nil {
		return err
	}
	defer env.Close()
	account, err := resolveAccount(*accountNumber, env.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return graphql.WithSession(ctx, env.graphqlConfig(), func(session *graphql.Session) error {
		result, err := session.ActiveElectricityTariffs(ctx, account)
		if err != nil {
			return err
		}
		if err := env.store.SaveTariffs(ctx, account, result); err != nil {
			return err
		}
		return output.WriteTariffs(os.Stdout, env.format, result)
	}, graphql.WithLogger(env.logger), graphql.WithMetrics(env.metrics))
}

func current(args []string) error {
	fs := flag.NewFlagSet("current", flag.ExitOnError)
	common := registerCommon(fs, string(output.FormatText))
	accountNumber := fs.String("account-number", "", "account number (default: account_number from config)")
	fs.Parse(args)

	env, err := setup(common)
	if err != nil {
		return err
	}
	defer env.Close()
	account, err := resolveAccount(*accountNumber, env.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return graphql.WithSession(ctx, env.graphqlConfig(), func(session *graphql.Session) error {
		snapshots, err := session.CurrentElectricityConsumptionAndTariff(ctx, account)
		if err != nil {
			return err
		}
		if err := saveSnapshots(ctx, env.store, account, snapshots); err != nil {
			return err
		}
		return output.WriteSnapshots(os.Stdout, env.format, snapshots)
	}, graphql.WithLogger(env.logger), graphql.WithMetrics(env.metrics))
}

func saveSnapshots(ctx context.Context, st store.Store, account string, snapshots map[string]model.MeterPointSnapshot) error {
	tariffs := make(map[string]model.Tariff, len(snapshots))
	for mpan, snapshot := range snapshots {
		tariffs[mpan] = snapshot.Tariff
		for serial, reading := range snapshot.Consumption {
			key := store.MeterKey{MPAN: mpan, SerialNumber: serial, Grouping: model.GroupingQuarter}
			if err := st.SaveReadings(ctx, key, []model.ConsumptionReading{reading}); err != nil {
				return err
			}
		}
	}
	return st.SaveTariffs(ctx, account, tariffs)
}
