// Command lockline-sim runs the panel and the controller in one process,
// joined by an in-memory link.
//
// Usage:
//
//	lockline-sim [flags]
//
// Flags:
//
//	-script string        Keys to press, then exit ('#' presses Enter, spaces are ignored)
//	-interactive          Read keys from the terminal instead of a script
//	-tick duration        Tick period; 0 ticks as fast as the nodes consume (default 0)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write a CBOR protocol trace to this file
//
// Examples:
//
//	# Provision 12345, open the door, change the code to 99999
//	lockline-sim -script "12345 12345 -12345 +12345 99999 99999"
//
//	# Three wrong attempts trip the alarm
//	lockline-sim -script "12345 12345 -11111 -22222 -33333" -protocol-log alarm.llog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lockline/lockline-go/internal/config"
	"github.com/lockline/lockline-go/internal/console"
	"github.com/lockline/lockline-go/pkg/actuation"
	"github.com/lockline/lockline-go/pkg/controller"
	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/panel"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/tick"
	"github.com/lockline/lockline-go/pkg/transport"
)

var (
	script      = flag.String("script", "", "Keys to press, then exit ('#' presses Enter, spaces are ignored)")
	interactive = flag.Bool("interactive", false, "Read keys from the terminal instead of a script")
	tickPeriod  = flag.Duration("tick", 0, "Tick period; 0 ticks as fast as the nodes consume")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog = flag.String("protocol-log", "", "Write a CBOR protocol trace to this file")
)

// errScriptDone ends the group once the script has played out.
var errScriptDone = errors.New("script done")

// printDisplay renders each screen to w and remembers whether the menu is
// the screen currently shown.
type printDisplay struct {
	w io.Writer

	mu     sync.Mutex
	atMenu bool
}

func (d *printDisplay) Show(top, bottom string) {
	d.mu.Lock()
	d.atMenu = top == panel.TextMenuChange && bottom == panel.TextMenuOpen
	d.mu.Unlock()
	fmt.Fprint(d.w, console.Render(top, bottom))
}

func (d *printDisplay) AtMenu() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.atMenu
}

func newTicks() tick.Source {
	if *tickPeriod <= 0 {
		return tick.NewFree()
	}
	return tick.NewTicker(*tickPeriod)
}

func main() {
	flag.Parse()
	if *script == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "one of -script or -interactive is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc) error {
	var (
		out    io.Writer = os.Stdout
		keypad panel.Keypad
		keys   *panel.KeyQueue
		con    *console.Console
	)
	if *interactive {
		c, err := console.New()
		if err != nil {
			return err
		}
		con, keypad, out = c, c, c.Stdout()
	} else {
		keys = panel.NewKeyQueue(len(*script) + 1)
		keypad = keys
	}

	logCfg := config.LogConfig{Level: *logLevel, Format: "text", ProtocolFile: *protocolLog}
	logger := logCfg.NewLogger(out)
	trace, closer, err := logCfg.ProtocolLogger(logger)
	if err != nil {
		return err
	}
	defer closer.Close()
	prog := &progress{}
	plog := log.NewMultiLogger(trace, prog)

	ctrl, err := controller.New(controller.Config{
		Store:          persistence.NewMemMemory(0),
		Actuator:       actuation.NewLogActuator(logger.With("node", "controller")),
		Ticks:          newTicks(),
		Logger:         logger.With("node", "controller"),
		ProtocolLogger: plog,
	})
	if err != nil {
		return err
	}

	screen := &printDisplay{w: out}
	var display panel.Display = screen
	if con != nil {
		display = con
	}
	p, err := panel.New(panel.Config{
		Store:          persistence.NewMemMemory(0),
		Keypad:         keypad,
		Display:        display,
		Ticks:          newTicks(),
		WrongHold:      -1,
		SetHold:        -1,
		Logger:         logger.With("node", "panel"),
		ProtocolLogger: plog,
	})
	if err != nil {
		return err
	}

	panelEnd, ctrlEnd := transport.Pipe()
	defer panelEnd.Close()
	defer ctrlEnd.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Serve(gctx, ctrlEnd) })
	g.Go(func() error { return p.Run(gctx, panelEnd) })
	if con != nil {
		g.Go(func() error {
			con.Run(gctx, cancel)
			return context.Canceled
		})
	} else {
		g.Go(func() error { return play(gctx, keys, screen, prog, p, ctrl) })
	}

	err = g.Wait()
	summarize(logger, ctrl, p)
	if errors.Is(err, errScriptDone) || errors.Is(err, context.Canceled) || errors.Is(err, panel.ErrKeypadClosed) {
		return nil
	}
	return err
}

// play types the script and returns errScriptDone once both nodes are idle
// with every key consumed and every request handled.
func play(ctx context.Context, keys *panel.KeyQueue, screen *printDisplay, prog *progress, p *panel.Panel, ctrl *controller.Controller) error {
	keys.Type(strings.ReplaceAll(*script, "#", "\r"))

	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		st, _ := p.State()
		if keys.Pending() == 0 && st == panel.StateMainMenu && screen.AtMenu() && prog.Settled() &&
			ctrl.State() == controller.StateIdle && ctrl.Phase() == actuation.PhaseIdle {
			return errScriptDone
		}
	}
}

func summarize(logger *slog.Logger, ctrl *controller.Controller, p *panel.Panel) {
	last := ctrl.LastSession()
	logger.Info("simulation finished",
		"last_request", last.Reason,
		"last_outcome", last.Outcome,
		"controller_failures", ctrl.Failures(),
		"panel_failures", p.Failures())
}
