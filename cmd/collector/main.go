package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"capteur/internal/config"
	"capteur/internal/handlers"
	"capteur/internal/logger"
	"capteur/internal/repository"
	"capteur/internal/repository/db"
	"capteur/internal/server"
	"capteur/internal/service"
	"capteur/internal/sink"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateCollector(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, dialect, err := openDB(cfg.Collector.DB)
	if err != nil {
		log.Fatalw("failed to init database", "driver", cfg.Collector.DB.Driver, "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close database", "err", cerr)
		}
	}()

	sinks, closeSinks := openSinks(ctx, cfg.Collector, log)
	defer closeSinks()

	// wire dependencies
	repos := repository.NewRepository(conn, dialect)
	services := service.NewService(repos, service.Options{
		LatestTTL: cfg.Collector.LatestTTL,
		Sinks:     sinks,
		Log:       log.Named("service"),
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Collector.Port, apiHandler, log)

	waitForShutdown(cancel, srv, cfg.Collector, log)
}

func openDB(c config.DBConfig) (*sql.DB, db.Dialect, error) {
	dialect, err := db.ParseDialect(c.Driver)
	if err != nil {
		return nil, "", err
	}
	conn, err := db.InitDB(dialect, c.DSN)
	return conn, dialect, err
}

// openSinks connects the configured mirrors. A mirror that cannot be reached
// at startup is skipped.
func openSinks(ctx context.Context, c config.CollectorConfig, log *logger.Logger) ([]service.Sink, func()) {
	var (
		sinks   []service.Sink
		closers []func()
	)
	if c.MQTT.Broker != "" {
		m, err := sink.NewMQTT(ctx, sink.MQTTConfig{
			Broker:      c.MQTT.Broker,
			ClientID:    c.MQTT.ClientID,
			TopicPrefix: c.MQTT.TopicPrefix,
		}, log.Named("mqtt"))
		if err != nil {
			log.Errorw("mqtt mirror disabled", "err", err)
		} else {
			sinks = append(sinks, sink.NewBreaker(m, sink.BreakerSettings{}))
			closers = append(closers, m.Close)
		}
	}
	if c.Influx.URL != "" {
		w := sink.NewInflux(sink.InfluxConfig{
			URL:    c.Influx.URL,
			Token:  c.Influx.Token,
			Org:    c.Influx.Org,
			Bucket: c.Influx.Bucket,
		})
		if err := w.Health(ctx); err != nil {
			log.Warnw("influx health check failed", "url", c.Influx.URL, "err", err)
		}
		sinks = append(sinks, sink.NewBreaker(w, sink.BreakerSettings{}))
		closers = append(closers, w.Close)
	}
	return sinks, func() {
		for _, closeSink := range closers {
			closeSink()
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("collector listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, c config.CollectorConfig, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
