package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/pda"
	"github.com/shimmeringbee/pda/config"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/shimmeringbee/pda/mqttbridge"
	"github.com/shimmeringbee/pda/rules"
	"github.com/shimmeringbee/pda/simulator"
	"github.com/shimmeringbee/persistence/impl/memory"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", os.Getenv("PDA_CONFIG"), "path to yaml configuration")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	l := logwrap.New(golog.Wrap(log.New(os.Stderr, "", log.LstdFlags)))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	power, err := cfg.Simulator.PowerStatus()
	if err != nil {
		return err
	}

	sim := simulator.New(cfg.Simulator.Model, simulator.WithPower(power))
	defer sim.Close()

	c := coordinator.New(sim, cfg.Device.ID,
		coordinator.WithLogger(l),
		coordinator.WithInterval(cfg.Polling.Interval),
		coordinator.WithRetries(cfg.Polling.Retries))

	engine, err := loadRules(cfg.Rules)
	if err != nil {
		return err
	}

	gw := pda.New(ctx, memory.New(), c, engine)
	gw.WithLogWrapLogger(l)

	if err := gw.Start(ctx); err != nil {
		return err
	}
	defer gw.Stop()

	if !cfg.MQTT.Enabled {
		l.Info(ctx, "MQTT disabled, logging events only.")
		drainEvents(ctx, l, gw)
		return nil
	}

	client, err := mqttbridge.Connect(cfg.MQTT, mqttbridge.Will{
		Topic:   mqttbridge.StatusTopic(cfg.MQTT.Prefix, cfg.Device.ID),
		Payload: mqttbridge.PayloadOffline,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect()

	bridge := mqttbridge.New(client, gw, cfg.MQTT.Prefix, byte(cfg.MQTT.QoS))
	bridge.WithLogWrapLogger(l)

	if err := bridge.Start(ctx); err != nil {
		return err
	}
	defer bridge.Stop()

	<-ctx.Done()
	l.Info(context.Background(), "Shutting down.")

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if len(path) == 0 {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}

	return config.Load(path)
}

func loadRules(rc config.RulesConfig) (*rules.Engine, error) {
	e := rules.New()

	if rc.Embedded {
		if err := e.LoadFS(rules.Embedded); err != nil {
			return nil, fmt.Errorf("loading embedded rules: %w", err)
		}
	}

	if len(rc.Path) > 0 {
		if err := e.LoadFS(os.DirFS(rc.Path)); err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", rc.Path, err)
		}
	}

	if err := e.CompileRules(); err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	return e, nil
}

func drainEvents(ctx context.Context, l logwrap.Logger, gw *pda.Gateway) {
	for {
		e, err := gw.ReadEvent(ctx)
		if errors.Is(err, context.Canceled) {
			return
		} else if err != nil {
			l.Error(ctx, "Failed to read event.", logwrap.Err(err))
			return
		}

		l.Debug(ctx, "Gateway event.", logwrap.Datum("Event", e))
	}
}
