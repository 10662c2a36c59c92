// Command aggieauth runs the aggie-auth credential broker: it opens the
// database, applies migrations and serves the HTTP API. The purge subcommand
// removes verification credentials that expired longer than --grace ago, or
// with --queue schedules that purge on the job queue drained by work.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/spf13/pflag"
	"github.com/usufslc/aggie-auth/adapters/gocommand"
	"github.com/usufslc/aggie-auth/adapters/gojob"
	"github.com/usufslc/aggie-auth/adapters/gologger"
	"github.com/usufslc/aggie-auth/command"
	"github.com/usufslc/aggie-auth/core"
	"github.com/usufslc/aggie-auth/httpapi"
	sqlstore "github.com/usufslc/aggie-auth/store/sql"
	"github.com/usufslc/aggie-auth/transport"
)

const (
	commandServe   = "serve"
	commandMigrate = "migrate"
	commandPurge   = "purge"
	commandWork    = "work"

	defaultPollInterval = 30 * time.Second
	purgeMaxAttempts    = 5
)

type options struct {
	configPath  string
	addr        string
	migrateOnly bool
	grace       time.Duration
	queue       bool
	poll        time.Duration
	command     string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	root := newLogger(settings, os.Stderr)
	provider, logger := gologger.Resolve("aggieauth", root, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := settings.DatabaseConfig()
	client, err := sqlstore.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close database", "error", closeErr)
		}
	}()

	if err := sqlstore.Migrate(ctx, client, dbConfig.Driver); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", dbConfig.Driver)
	if opts.migrateOnly || opts.command == commandMigrate {
		return nil
	}

	service, err := buildService(settings, opts, client, provider)
	if err != nil {
		return err
	}

	switch opts.command {
	case commandPurge:
		if opts.queue {
			return enqueuePurge(ctx, client, dbConfig.Driver, opts.grace, logger)
		}
		return purge(ctx, service, opts.grace, logger)
	case commandWork:
		return work(ctx, service, client, dbConfig.Driver, opts.poll, provider)
	default:
		return serve(ctx, service, settings, opts, provider)
	}
}

func parseOptions(args []string) (options, error) {
	opts := options{command: commandServe}
	flagSet := pflag.NewFlagSet("aggieauth", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML file with broker settings")
	flagSet.StringVar(&opts.addr, "addr", "", "listen address (default :$PORT)")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply migrations and exit")
	flagSet.DurationVar(&opts.grace, "grace", 0, "purge: keep credentials expired less than this long ago")
	flagSet.BoolVar(&opts.queue, "queue", false, "purge: enqueue the purge job instead of running it")
	flagSet.DurationVar(&opts.poll, "poll", defaultPollInterval, "work: interval between queue drains")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: aggieauth [flags] [%s|%s|%s|%s]\n\nTransports: %s\n\nFlags:\n",
			commandServe, commandMigrate, commandPurge, commandWork, transportKinds())
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}

	rest := flagSet.Args()
	if len(rest) > 1 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[1])
	}
	if len(rest) == 1 {
		switch name := strings.ToLower(strings.TrimSpace(rest[0])); name {
		case commandServe, commandMigrate, commandPurge, commandWork:
			opts.command = name
		default:
			return options{}, fmt.Errorf("unknown command %q", rest[0])
		}
	}
	if opts.grace < 0 {
		return options{}, fmt.Errorf("--grace must not be negative")
	}
	if opts.poll <= 0 {
		return options{}, fmt.Errorf("--poll must be positive")
	}
	return opts, nil
}

// newLogger builds the root logger. LOG_FORMAT selects json (default),
// console or pretty output.
func newLogger(settings Settings, out io.Writer) *glog.BaseLogger {
	opts := []glog.Option{
		glog.WithLevel(strings.ToUpper(strings.TrimSpace(settings.LogLevel))),
		glog.WithWriter(out),
	}
	switch strings.ToLower(strings.TrimSpace(settings.LogFormat)) {
	case "console", "text":
		opts = append(opts, glog.WithLoggerTypeConsole())
	case "pretty":
		opts = append(opts, glog.WithLoggerTypePretty())
	default:
		opts = append(opts, glog.WithLoggerTypeJSON())
	}
	return glog.NewLogger(opts...)
}

func buildService(settings Settings, opts options, client any, provider glog.LoggerProvider) (*core.Service, error) {
	cacheConfig := repositorycache.DefaultConfig()
	if settings.CacheTTL > 0 {
		cacheConfig.TTL = settings.CacheTTL
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("api credential cache: %w", err)
	}
	factory := sqlstore.NewRepositoryFactory(sqlstore.WithAPICredentialCache(cacheService))

	registry := transport.NewDefaultRegistry(provider.GetLogger("transport"))
	notifier, err := registry.Build(settings.Transport.Kind, settings.TransportConfig())
	if err != nil {
		return nil, err
	}

	return core.NewService(settings.RuntimeConfig(),
		core.WithLoggerProvider(provider),
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(factory),
		core.WithConfigProvider(core.NewCfgxConfigProvider(newYAMLConfigLoader(opts.configPath))),
		core.WithNotifier(notifier),
	)
}

func serve(ctx context.Context, service *core.Service, settings Settings, opts options, provider glog.LoggerProvider) error {
	logger := provider.GetLogger("httpapi")
	server, err := httpapi.NewServer(service, httpapi.WithLogger(logger))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              settings.Addr(opts.addr),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// purge drives the purge command through the go-command dispatcher.
func purge(ctx context.Context, service *core.Service, grace time.Duration, logger core.Logger) error {
	adapter := gocommand.NewRegistryAdapter(nil)
	subscriptions, err := gocommand.RegisterBroker(adapter, service)
	if err != nil {
		return err
	}
	defer subscriptions.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		return err
	}

	purged, err := gocommand.DispatchWithResult[command.PurgeExpiredMessage, int64](ctx, command.PurgeExpiredMessage{
		GraceSeconds: int(grace / time.Second),
	})
	if err != nil {
		return err
	}
	logger.Info("purged expired verification credentials", "purged", purged, "grace", grace.String())
	return nil
}

func enqueuePurge(ctx context.Context, client *persistence.Client, driver string, grace time.Duration, logger core.Logger) error {
	queue, err := gojob.OpenSQLQueue(ctx, client.DB().DB, driver)
	if err != nil {
		return err
	}
	receipt, err := gojob.EnqueuePurge(ctx, queue, grace, "")
	if err != nil {
		return err
	}
	logger.Info("purge job enqueued", "dispatch_id", receipt.DispatchID, "grace", grace.String())
	return nil
}

// work drains the purge queue every poll interval until ctx is cancelled.
func work(ctx context.Context, service *core.Service, client *persistence.Client, driver string, poll time.Duration, provider glog.LoggerProvider) error {
	queue, err := gojob.OpenSQLQueue(ctx, client.DB().DB, driver)
	if err != nil {
		return err
	}
	_, logger, _, jobLogger := gologger.ResolveForJob("purge", provider, nil)
	runner := gojob.NewPurgeRunner(queue, command.NewPurgeExpiredCommand(service), gojob.RetryPolicy{
		MaxAttempts:     purgeMaxAttempts,
		DeadLetterOnMax: true,
	}, gojob.WithLogger(jobLogger))

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	logger.Info("draining purge queue", "poll", poll.String())
	for {
		if _, err := runner.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("purge queue drain finished with errors", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
