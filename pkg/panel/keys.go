package panel

import (
	"context"
	"errors"
	"strconv"
)

// Key is a keypad key. Digit keys have the values 0-9.
type Key uint8

// Function keys.
const (
	KeyEnter  Key = 13
	KeyChange Key = '+'
	KeyOpen   Key = '-'
)

// IsDigit reports whether k is a digit key.
func (k Key) IsDigit() bool {
	return k <= 9
}

// String returns the key label.
func (k Key) String() string {
	switch {
	case k.IsDigit():
		return strconv.Itoa(int(k))
	case k == KeyEnter:
		return "ENTER"
	default:
		return string(rune(k))
	}
}

// ParseKey maps a typed character to a key. '\r' and '\n' are Enter.
// Characters with no key report false.
func ParseKey(r rune) (Key, bool) {
	switch {
	case r >= '0' && r <= '9':
		return Key(r - '0'), true
	case r == '\r' || r == '\n':
		return KeyEnter, true
	case r == '+' || r == '-' || r == '*' || r == '/' || r == '=':
		return Key(r), true
	}
	return 0, false
}

// Keypad delivers key presses.
type Keypad interface {
	// ReadKey blocks until a key is pressed or ctx is done.
	ReadKey(ctx context.Context) (Key, error)
}

// Display is a two-line character display.
type Display interface {
	Show(top, bottom string)
}

// ErrKeypadClosed is returned by KeyQueue.ReadKey after Close.
var ErrKeypadClosed = errors.New("panel: keypad closed")

// KeyQueue is a Keypad fed by Press.
type KeyQueue struct {
	keys chan Key
	done chan struct{}
}

// NewKeyQueue returns a queue holding up to size unread presses.
func NewKeyQueue(size int) *KeyQueue {
	if size <= 0 {
		size = 16
	}
	return &KeyQueue{keys: make(chan Key, size), done: make(chan struct{})}
}

// Press queues keys, blocking while the queue is full.
func (q *KeyQueue) Press(keys ...Key) {
	for _, k := range keys {
		select {
		case q.keys <- k:
		case <-q.done:
			return
		}
	}
}

// Type queues the keys for each character of s that maps to one.
func (q *KeyQueue) Type(s string) {
	for _, r := range s {
		if k, ok := ParseKey(r); ok {
			q.Press(k)
		}
	}
}

// Pending returns the number of queued presses not yet read.
func (q *KeyQueue) Pending() int {
	return len(q.keys)
}

// ReadKey implements Keypad.
func (q *KeyQueue) ReadKey(ctx context.Context) (Key, error) {
	select {
	case k := <-q.keys:
		return k, nil
	case <-q.done:
		return 0, ErrKeypadClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close releases blocked readers and writers.
func (q *KeyQueue) Close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

var _ Keypad = (*KeyQueue)(nil)
