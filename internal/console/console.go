// Package console puts the panel's keypad and display on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/lockline/lockline-go/pkg/panel"
)

const displayWidth = 16

// Console is a panel.Keypad and panel.Display on the terminal. Each input
// line is typed key by key; an empty line presses Enter.
type Console struct {
	rl   *readline.Instance
	keys *panel.KeyQueue

	// Status, when set, is printed by the /status command.
	Status func() string
}

// New creates a console reading from the terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "keys> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, keys: panel.NewKeyQueue(64)}, nil
}

// Stdout returns a writer that coordinates with the input line. Use it for
// log output.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// ReadKey implements panel.Keypad.
func (c *Console) ReadKey(ctx context.Context) (panel.Key, error) {
	return c.keys.ReadKey(ctx)
}

// Show implements panel.Display.
func (c *Console) Show(top, bottom string) {
	fmt.Fprint(c.rl.Stdout(), Render(top, bottom))
}

// Render draws a two-line display frame.
func Render(top, bottom string) string {
	line := strings.Repeat("-", displayWidth+2)
	return fmt.Sprintf("+%s+\n| %-*s |\n| %-*s |\n+%s+\n",
		line, displayWidth, clip(top), displayWidth, clip(bottom), line)
}

func clip(s string) string {
	if len(s) > displayWidth {
		return s[:displayWidth]
	}
	return s
}

// Keys returns the key presses for one input line.
func Keys(line string) []panel.Key {
	if strings.TrimSpace(line) == "" {
		return []panel.Key{panel.KeyEnter}
	}
	var keys []panel.Key
	for _, r := range line {
		if k, ok := panel.ParseKey(r); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Run reads input until EOF, /quit or ctx ends, then calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.keys.Close()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		switch strings.TrimSpace(line) {
		case "/help", "/?":
			c.printHelp()
			continue
		case "/status":
			if c.Status != nil {
				fmt.Fprintln(c.rl.Stdout(), c.Status())
			}
			continue
		case "/quit", "/exit":
			cancel()
			return
		}
		c.keys.Press(Keys(line)...)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `Keypad:
  0-9      digits
  +        change code (menu)
  -        open door (menu)
  <empty>  Enter: restart the current entry
Commands:
  /status  show panel state
  /quit    exit`)
}
