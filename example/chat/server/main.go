// Command server runs the example chat service: the GraphQL endpoint on
// /graphql, subscriptions on /graphql/ws, and Prometheus metrics on /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shaipe/async-graphql/example/chat"
	"github.com/shaipe/async-graphql/internal/eventbus"
	"github.com/shaipe/async-graphql/internal/events"
	"github.com/shaipe/async-graphql/internal/metrics"
	"github.com/shaipe/async-graphql/internal/otel"
	"github.com/shaipe/async-graphql/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timeout", 10*time.Second)
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.graphiql", true)
	v.SetDefault("server.cors-origins", []string{})
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "chat")

	pflag.String("config", "", "Path to config file")
	pflag.String("server.addr", ":8080", "HTTP listen address")
	pflag.Duration("server.timeout", 10*time.Second, "Per-request timeout")
	pflag.Bool("server.pretty", false, "Pretty-print JSON responses")
	pflag.Bool("server.graphiql", true, "Serve the in-browser IDE")
	pflag.StringSlice("server.cors-origins", nil, "Allowed CORS origins")
	pflag.String("otel.endpoint", "", "OTLP collector endpoint")
	pflag.String("otel.service", "chat", "OpenTelemetry service name")
	pflag.Parse()

	if cfgPath, _ := pflag.CommandLine.GetString("config"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}
	return v, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	eventbus.Use(eventbus.New())
	registerLogging(logger)

	shutdownTracing, err := otel.Setup(cfg.GetString("otel.endpoint"), cfg.GetString("otel.service"))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	metricsHandler, err := metrics.Setup(cfg.GetString("otel.service"))
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	service := chat.NewService()
	sch, err := service.Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	opts := []server.Option{
		server.WithTimeout(cfg.GetDuration("server.timeout")),
		server.WithGraphiQL(cfg.GetBool("server.graphiql")),
	}
	if cfg.GetBool("server.pretty") {
		opts = append(opts, server.WithPretty())
	}
	if origins := cfg.GetStringSlice("server.cors-origins"); len(origins) > 0 {
		opts = append(opts, server.WithCORS(origins...))
	}

	handler := server.New(sch, opts...)

	mux := http.NewServeMux()
	mux.Handle("/graphql", handler)
	mux.Handle("/graphql/ws", server.NewWebsocket(handler))
	mux.Handle("/metrics", metricsHandler)

	srv := &http.Server{
		Addr:    cfg.GetString("server.addr"),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// registerLogging attaches eventbus subscribers that mirror request activity
// into the structured log.
func registerLogging(logger *slog.Logger) {
	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		logger.Info("graphql request",
			slog.String("operation", e.OperationName),
			slog.String("type", e.OperationType),
			slog.Int("errors", len(e.Errors)),
			slog.Duration("duration", e.Duration),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionStart) {
		logger.Info("subscription started",
			slog.String("field", e.Field),
			slog.String("operation", e.OperationName),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.SubscriptionFinish) {
		logger.Info("subscription finished",
			slog.String("field", e.Field),
			slog.Int64("events", e.Events),
		)
	})
	eventbus.Subscribe(func(ctx context.Context, e events.BrokerDrop) {
		logger.Warn("subscriber queue overflow",
			slog.String("subscriber", e.SubscriberID),
			slog.String("topic", e.Topic),
		)
	})
}
