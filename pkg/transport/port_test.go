package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDevice replays reads and records writes.
type scriptedDevice struct {
	mu      sync.Mutex
	reads   []readStep
	written []byte
	closed  chan struct{}
	once    sync.Once
}

type readStep struct {
	data []byte
	err  error
}

func newScriptedDevice(steps ...readStep) *scriptedDevice {
	return &scriptedDevice{reads: steps, closed: make(chan struct{})}
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	if len(d.reads) == 0 {
		d.mu.Unlock()
		<-d.closed
		return 0, io.EOF
	}
	step := d.reads[0]
	d.reads = d.reads[1:]
	d.mu.Unlock()
	return copy(p, step.data), step.err
}

func (d *scriptedDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.written = append(d.written, p...)
	return len(p), nil
}

func (d *scriptedDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func receiveN(t *testing.T, l Link, n int) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := l.Receive(ctx)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestPipeCarriesBytesInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = a.Send(context.Background(), []byte{0x0D, 1, 2, 3, 4, 5})
	}()
	assert.Equal(t, []byte{0x0D, 1, 2, 3, 4, 5}, receiveN(t, b, 6))

	go func() {
		_ = b.Send(context.Background(), []byte{0x0E})
	}()
	assert.Equal(t, []byte{0x0E}, receiveN(t, a, 1))
}

func TestLineErrorBecomesFaultByte(t *testing.T) {
	dev := newScriptedDevice(
		readStep{data: []byte{0x0D, 1}},
		readStep{err: &LineError{Reason: "parity"}},
		readStep{data: []byte{2}},
	)
	p := NewPort(dev)
	defer p.Close()

	assert.Equal(t, []byte{0x0D, 1, FaultByte, 2}, receiveN(t, p, 4))
}

func TestPeerCloseDrainsThenReportsClosed(t *testing.T) {
	dev := newScriptedDevice(readStep{data: []byte{7, 8}, err: io.EOF})
	p := NewPort(dev)
	defer p.Close()

	assert.Equal(t, []byte{7, 8}, receiveN(t, p, 2))
	_, err := p.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDeviceErrorIsWrapped(t *testing.T) {
	boom := errors.New("usb unplugged")
	p := NewPort(newScriptedDevice(readStep{err: boom}))
	defer p.Close()

	_, err := p.Receive(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.Contains(t, err.Error(), "usb unplugged")
}

func TestReceiveHonoursContext(t *testing.T) {
	dev := newScriptedDevice()
	p := NewPort(dev)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendAfterClose(t *testing.T) {
	dev := newScriptedDevice()
	p := NewPort(dev)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Send(context.Background(), []byte{1}), ErrClosed)
	_, err := p.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendRejectsEmpty(t *testing.T) {
	p := NewPort(newScriptedDevice())
	defer p.Close()
	assert.ErrorIs(t, p.Send(context.Background(), nil), ErrEmptyWrite)
}

func TestSendWritesThrough(t *testing.T) {
	dev := newScriptedDevice()
	p := NewPort(dev, WithID("bench"), WithQueueSize(4))
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), []byte{0x0A, 1, 2, 3, 4, 5}))
	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, []byte{0x0A, 1, 2, 3, 4, 5}, dev.written)
	assert.Equal(t, "bench", p.ID())
}

func TestPortIDsAreUnique(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEmpty(t, a.ID())
}

func TestTCPBenchLink(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	require.NotZero(t, ln.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	accepted := make(chan *Port, 1)
	go func() {
		p, err := ln.Accept(ctx)
		if err == nil {
			accepted <- p
		}
		close(accepted)
	}()

	client, err := Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	require.NoError(t, client.Send(ctx, []byte{0x0C, 9, 9, 9, 9, 9}))
	assert.Equal(t, []byte{0x0C, 9, 9, 9, 9, 9}, receiveN(t, server, 6))
}

func TestAcceptCancelled(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ln.Accept(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerialConfigMode(t *testing.T) {
	m, err := DefaultSerialConfig("/dev/ttyS0").mode()
	require.NoError(t, err)
	assert.Equal(t, 9600, m.BaudRate)
	assert.Equal(t, 8, m.DataBits)

	_, err = SerialConfig{Parity: "mark"}.mode()
	assert.Error(t, err)
	_, err = SerialConfig{StopBits: 3}.mode()
	assert.Error(t, err)
	_, err = OpenSerial(SerialConfig{})
	assert.Error(t, err)
}

func TestEntryAddr(t *testing.T) {
	e := &zeroconf.ServiceEntry{}
	e.Port = 7000
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	assert.Equal(t, "192.168.1.20:7000", entryAddr(e))

	e.AddrIPv4 = nil
	e.HostName = "bench.local."
	assert.Equal(t, "bench.local.:7000", entryAddr(e))

	assert.Equal(t, "", entryAddr(nil))
	assert.Equal(t, "", entryAddr(&zeroconf.ServiceEntry{}))
}
