package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kunthar/zops-audience/internal/audience"
	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/push"
	"github.com/kunthar/zops-audience/pkg/server"
	"github.com/kunthar/zops-audience/pkg/setstore"
	"github.com/kunthar/zops-audience/pkg/storage"
	"github.com/kunthar/zops-audience/pkg/storage/memory"
	"github.com/kunthar/zops-audience/pkg/storage/postgres"
	"github.com/kunthar/zops-audience/pkg/storage/sqlite"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the zops-audience worker",
		Long:  "Run the worker that answers audience-resolution RPC calls over the local HTTP bridge.",
		RunE:  runWorker,
		Args:  cobra.NoArgs,
	}

	bindRunFlags(cmd)

	return cmd
}

func bindRunFlags(command *cobra.Command) {
	defaultConfig := DefaultConfig()
	flags := command.Flags()

	flags.String("http-addr", defaultConfig.HTTPAddr, "the host:port address the RPC bridge listens on")
	mustBindPFlag("http.addr", flags.Lookup("http-addr"))

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine ('memory', 'sqlite' or 'postgres')")
	mustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri of the datastore")
	mustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))

	flags.String("redis-addrs", defaultConfig.Redis.Addrs, "comma separated redis addresses; empty selects the in-process set store")
	mustBindPFlag("redis.addrs", flags.Lookup("redis-addrs"))

	flags.String("redis-username", defaultConfig.Redis.Username, "redis username")
	mustBindPFlag("redis.username", flags.Lookup("redis-username"))

	flags.String("redis-password", defaultConfig.Redis.Password, "redis password")
	mustBindPFlag("redis.password", flags.Lookup("redis-password"))

	flags.Int("redis-db", defaultConfig.Redis.DB, "redis logical database")
	mustBindPFlag("redis.db", flags.Lookup("redis-db"))

	flags.Duration("cache-ttl", defaultConfig.CacheTTL, "lifetime of cached per-filter audience sets")
	mustBindPFlag("cache.ttl", flags.Lookup("cache-ttl"))

	flags.StringToString("push-endpoints", defaultConfig.PushEndpoints, "device-type to provider webhook mapping (e.g. 'ios=https://...,android=https://...')")
	mustBindPFlag("push.endpoints", flags.Lookup("push-endpoints"))

	flags.String("log-format", defaultConfig.LogFormat, "the log format ('text' or 'json')")
	mustBindPFlag("log.format", flags.Lookup("log-format"))

	flags.String("log-level", defaultConfig.LogLevel, "the log level ('none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal')")
	mustBindPFlag("log.level", flags.Lookup("log-level"))

	// NOTE: if you add a new flag here, add the binding right below it
}

func configFromViper() *Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = viper.GetString("http.addr")
	cfg.Datastore.Engine = viper.GetString("datastore.engine")
	cfg.Datastore.URI = viper.GetString("datastore.uri")
	cfg.Redis.Addrs = viper.GetString("redis.addrs")
	cfg.Redis.Username = viper.GetString("redis.username")
	cfg.Redis.Password = viper.GetString("redis.password")
	cfg.Redis.DB = viper.GetInt("redis.db")
	cfg.CacheTTL = viper.GetDuration("cache.ttl")
	cfg.PushEndpoints = viper.GetStringMapString("push.endpoints")
	cfg.LogFormat = viper.GetString("log.format")
	cfg.LogLevel = viper.GetString("log.level")

	return cfg
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg := configFromViper()

	log, err := logger.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	docs, err := buildDatastore(cfg, log)
	if err != nil {
		return err
	}
	defer docs.Close()

	sets, cleanup, err := buildSetStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	dispatcher := push.NewDispatcher(cfg.PushEndpoints, log)

	srv := server.New(sets, docs, dispatcher, log,
		server.WithResolverOpts(audience.WithCacheTTL(cfg.CacheTTL)))
	defer srv.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", func(w http.ResponseWriter, r *http.Request) {
		frame, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(srv.Handle(r.Context(), frame))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if ok, err := docs.Ready(r.Context()); err != nil || !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting rpc bridge", zap.String("addr", cfg.HTTPAddr), zap.Strings("methods", srv.Methods()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildDatastore(cfg *Config, log logger.Logger) (storage.DocumentStore, error) {
	switch cfg.Datastore.Engine {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.Datastore.URI, log)
	case "postgres":
		return postgres.New(cfg.Datastore.URI, log)
	default:
		return nil, fmt.Errorf("unknown datastore engine type: %s", cfg.Datastore.Engine)
	}
}

func buildSetStore(ctx context.Context, cfg *Config, log logger.Logger) (setstore.SetStore, func(), error) {
	if cfg.Redis.Addrs == "" {
		log.Warn("no redis addresses configured, using the in-process set store")
		return setstore.NewMemoryStore(), func() {}, nil
	}

	store, err := setstore.NewRedisStore(
		setstore.WithAddr(cfg.Redis.Addrs),
		setstore.WithUserCredential(cfg.Redis.Username),
		setstore.WithPassCredential(cfg.Redis.Password),
		setstore.WithDatabase(cfg.Redis.DB),
	)
	if err != nil {
		return nil, nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		return store.Ping(ctx)
	}, backoff.WithContext(policy, ctx)); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("redis is unreachable: %w", err)
	}

	return store, func() { _ = store.Close() }, nil
}
