// Command lockline-panel runs the panel node with the terminal as keypad
// and display.
//
// Usage:
//
//	lockline-panel [flags]
//
// Flags:
//
//	-config string        Configuration file (.yaml, .yml or .toml)
//	-link string          Link kind: serial, tcp
//	-device string        Serial device
//	-connect string       Controller address (tcp link; empty browses mDNS)
//	-store string         Panel store path
//	-store-kind string    Store kind: file, sqlite, memory
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Write a CBOR protocol trace to this file
//	-reset                Return the panel to first boot
//
// Examples:
//
//	# Bench: find the controller over mDNS
//	lockline-panel -link tcp
//
//	# Appliance
//	lockline-panel -device /dev/ttyUSB1 -store /var/lib/lockline/panel.img
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
	"time"

	"github.com/lockline/lockline-go/internal/config"
	"github.com/lockline/lockline-go/internal/console"
	"github.com/lockline/lockline-go/pkg/panel"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
)

var (
	configFile  = flag.String("config", "", "Configuration file (.yaml, .yml or .toml)")
	linkKind    = flag.String("link", "", "Link kind: serial, tcp")
	device      = flag.String("device", "", "Serial device")
	connectAddr = flag.String("connect", "", "Controller address (tcp link; empty browses mDNS)")
	storePath   = flag.String("store", "panel.img", "Panel store path")
	storeKind   = flag.String("store-kind", "", "Store kind: file, sqlite, memory")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "Write a CBOR protocol trace to this file")
	reset       = flag.Bool("reset", false, "Return the panel to first boot")
)

const browseTimeout = 10 * time.Second

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	con, err := console.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(con.Stdout())
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfg, con, logger); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, panel.ErrKeypadClosed) {
		logger.Error("panel stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return cfg, err
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = *storePath
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "link":
			cfg.Link.Kind = *linkKind
		case "device":
			cfg.Link.Device = *device
		case "connect":
			cfg.Link.Address = *connectAddr
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

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, con *console.Console, logger *slog.Logger) error {
	mem, storeCloser, err := cfg.Store.Open()
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	if *reset {
		if err := persistence.NewProvisionFlag(mem, cfg.Store.FlagAddr).Clear(); err != nil {
			return err
		}
		logger.Info("panel reset to first boot")
	}

	plog, plogCloser, err := cfg.Log.ProtocolLogger(logger)
	if err != nil {
		return err
	}
	defer plogCloser.Close()

	link, err := openLink(ctx, cfg.Link, logger)
	if err != nil {
		return err
	}
	defer link.Close()

	p, err := panel.New(panel.Config{
		Store:          mem,
		FlagAddr:       cfg.Store.FlagAddr,
		Keypad:         con,
		Display:        con,
		Ticks:          tick.NewTicker(cfg.Timing.TickPeriod),
		Timing:         cfg.Timing.Timing,
		Threshold:      cfg.Lockout.Threshold,
		WrongHold:      cfg.Timing.WrongHold,
		SetHold:        cfg.Timing.SetHold,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	if err != nil {
		return err
	}
	con.Status = func() string {
		st, reason := p.State()
		if st == panel.StateAwaitingReply {
			return fmt.Sprintf("state=%s(%s) failures=%d", st, reason, p.Failures())
		}
		return fmt.Sprintf("state=%s failures=%d", st, p.Failures())
	}

	go con.Run(ctx, cancel)
	return p.Run(ctx, link)
}

func openLink(ctx context.Context, lc config.LinkConfig, logger *slog.Logger) (transport.Link, error) {
	if lc.Kind == config.LinkSerial {
		logger.Info("opening serial link", "device", lc.Device, "baud", lc.Baud)
		return lc.OpenSerial()
	}
	if lc.Address == "" {
		logger.Info("browsing for controller", "service", transport.ServiceType)
	}
	dctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()
	link, err := lc.DialPanel(dctx)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to controller", "link", link.ID())
	return link, nil
}
