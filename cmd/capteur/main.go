package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capteur/internal/client"
	"capteur/internal/config"
	"capteur/internal/logger"
	"capteur/internal/metrics"
	"capteur/internal/network"
	"capteur/internal/node"
	"capteur/internal/rtc"
	"capteur/internal/sensor"
	"capteur/internal/server"

	_ "github.com/joho/godotenv/autoload"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatalw("invalid config", "err", err)
	}

	s, err := buildSensor(cfg.Drivers)
	if err != nil {
		log.Fatalw("sensor driver", "err", err)
	}
	radio, stack, err := buildNetwork(cfg.Drivers)
	if err != nil {
		log.Fatalw("network driver", "err", err)
	}

	n := node.New(node.Deps{
		Sensor: s,
		Radio:  radio,
		Stack:  stack,
		Clock:  rtc.NewSoft(),
		API:    client.New(cfg.ClientOptions()),
	}, cfg.NodeOptions(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := startMetricsServer(cfg.Metrics.Addr, log)

	log.Infow("capteur starting",
		"device_id", cfg.Node.DeviceID,
		"api", cfg.API.BaseURL,
		"sensor", cfg.Drivers.Sensor,
		"network", cfg.Drivers.Network,
	)
	runErr := n.Run(ctx)
	log.Infow("shutting down...", "state", n.State().String())

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("metrics server shutdown", "err", err)
		}
	}
	if runErr != nil {
		log.Errorw("node stopped", "err", runErr)
		_ = log.Sync()
		os.Exit(1)
	}
}

func buildSensor(d config.DriversConfig) (sensor.Sensor, error) {
	switch d.Sensor {
	case "sim":
		return sensor.NewSimulated(sensor.SimulatedConfig{FaultRate: d.FaultRate}), nil
	case "iio":
		return sensor.NewIIO(d.IIODir), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", d.Sensor)
	}
}

func buildNetwork(d config.DriversConfig) (network.Radio, network.Stack, error) {
	switch d.Network {
	case "sim":
		radio, stack := network.NewSimulated(network.SimConfig{FailJoins: d.FailJoins, DHCPDelay: d.DHCPDelay})
		return radio, stack, nil
	case "host":
		return network.HostRadio{}, network.NewHostStack(d.Interface), nil
	default:
		return nil, nil, fmt.Errorf("unknown network driver %q", d.Network)
	}
}

// startMetricsServer serves /metrics on addr when set.
func startMetricsServer(addr string, log *logger.Logger) *server.Server {
	if addr == "" {
		return nil
	}
	srv := &server.Server{}
	go func() {
		if err := srv.Run(addr, metrics.Handler()); err != nil {
			log.Errorw("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	log.Infow("metrics endpoint enabled", "addr", addr)
	return srv
}
