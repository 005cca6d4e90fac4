// Command lockline-controller runs the controller node: it keeps the
// credential, drives the door motor and sounds the alarm.
//
// Usage:
//
//	lockline-controller [flags]
//
// Flags:
//
//	-config string        Configuration file (.yaml, .yml or .toml)
//	-link string          Link kind: serial, tcp
//	-device string        Serial device
//	-listen string        TCP listen address (tcp link)
//	-advertise            Advertise the TCP link over mDNS
//	-store string         Credential store path
//	-store-kind string    Store kind: file, sqlite, memory
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a CBOR protocol trace to this file
//	-erase                Erase the stored credential before starting
//
// Examples:
//
//	# Appliance: 9600 8N1 on the first USB serial adapter
//	lockline-controller -device /dev/ttyUSB0 -store /var/lib/lockline/controller.img
//
//	# Bench: accept the panel over TCP and advertise it
//	lockline-controller -link tcp -listen :7420 -advertise -store-kind sqlite -store controller.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lockline/lockline-go/internal/config"
	"github.com/lockline/lockline-go/pkg/actuation"
	"github.com/lockline/lockline-go/pkg/controller"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
)

var (
	configFile  = flag.String("config", "", "Configuration file (.yaml, .yml or .toml)")
	linkKind    = flag.String("link", "", "Link kind: serial, tcp")
	device      = flag.String("device", "", "Serial device")
	listenAddr  = flag.String("listen", ":7420", "TCP listen address (tcp link)")
	advertise   = flag.Bool("advertise", false, "Advertise the TCP link over mDNS")
	storePath   = flag.String("store", "controller.img", "Credential store path")
	storeKind   = flag.String("store-kind", "", "Store kind: file, sqlite, memory")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "Write a CBOR protocol trace to this file")
	erase       = flag.Bool("erase", false, "Erase the stored credential before starting")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

// loadConfig applies explicitly set flags over the file and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return cfg, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = *storePath
	}
	if cfg.Link.Address == "" {
		cfg.Link.Address = *listenAddr
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "link":
			cfg.Link.Kind = *linkKind
		case "device":
			cfg.Link.Device = *device
		case "listen":
			cfg.Link.Address = *listenAddr
		case "advertise":
			cfg.Link.Advertise = *advertise
		case "store":
			cfg.Store.Path = *storePath
		case "store-kind":
			cfg.Store.Kind = *storeKind
		case "log-level":
			cfg.Log.Level = *logLevel
		case "protocol-log":
			cfg.Log.ProtocolFile = *protocolLog
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	mem, storeCloser, err := cfg.Store.Open()
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	if *erase {
		if err := persistence.NewCredentialSlot(mem, cfg.Store.CredentialAddr).Erase(); err != nil {
			return err
		}
		logger.Info("credential erased")
	}

	plog, plogCloser, err := cfg.Log.ProtocolLogger(logger)
	if err != nil {
		return err
	}
	defer plogCloser.Close()

	ctrl, err := controller.New(controller.Config{
		Store:          mem,
		CredentialAddr: cfg.Store.CredentialAddr,
		Actuator:       actuation.NewLogActuator(logger),
		Ticks:          tick.NewTicker(cfg.Timing.TickPeriod),
		Timing:         cfg.Timing.Timing,
		Threshold:      cfg.Lockout.Threshold,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	if err != nil {
		return err
	}

	logger.Info("lockline controller",
		"link", cfg.Link.Kind,
		"store", cfg.Store.Kind,
		"tick", cfg.Timing.TickPeriod)

	if cfg.Link.Kind == config.LinkSerial {
		link, err := cfg.Link.OpenSerial()
		if err != nil {
			return err
		}
		defer link.Close()
		logger.Info("serial link open", "device", cfg.Link.Device, "baud", cfg.Link.Baud)
		return ctrl.Serve(ctx, link)
	}
	return serveTCP(ctx, cfg.Link, ctrl, logger)
}

// serveTCP serves one panel at a time until ctx ends or a store fault.
func serveTCP(ctx context.Context, lc config.LinkConfig, ctrl *controller.Controller, logger *slog.Logger) error {
	ln, err := transport.Listen(lc.Address)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info("listening", "addr", ln.Addr().String())

	if lc.Advertise {
		adv, err := transport.Advertise(lc.Instance, ln.Port(), []string{"role=controller"})
		if err != nil {
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Shutdown()
			logger.Info("advertising", "instance", lc.Instance, "service", transport.ServiceType)
		}
	}

	for {
		link, err := ln.Accept(ctx)
		if err != nil {
			return err
		}
		logger.Info("panel connected", "link", link.ID())
		err = ctrl.Serve(ctx, link)
		_ = link.Close()
		if err != nil {
			return err
		}
		logger.Info("panel disconnected", "link", link.ID())
	}
}
