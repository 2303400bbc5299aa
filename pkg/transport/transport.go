// Package transport owns the MIDI connection to the accordion controller
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/logging"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned when the output port is not open
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("transport closed")
)

const sysExBufferSize = 4096

// KeyboardHandler receives keyboards pushed by the device
type KeyboardHandler func(k *keyboard.Keyboard, origin codec.Origin)

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		t.log = logging.OrNop(l)
	}
}

// Transport frames payloads as SysEx and paces large sends with the
// announce/ack handshake: a payload leaves the queue only when the device
// acknowledges, and the next one is announced after it.
type Transport struct {
	log *zap.Logger

	// flowMu orders announces and payload writes. Held across port I/O
	// so an enqueue cannot announce between an ack and its payload.
	flowMu sync.Mutex

	// mu guards the send queue. It is never held during port I/O.
	mu        sync.Mutex
	queue     [][]byte
	announced bool
	closed    bool

	// connMu guards the ports and serializes writes
	connMu sync.Mutex
	in     drivers.In
	out    drivers.Out
	send   func(midi.Message) error
	stop   func()

	handlerMu  sync.RWMutex
	onKeyboard KeyboardHandler
	onFetchAck func()
}

// New creates an unconnected Transport
func New(opts ...Option) *Transport {
	t := &Transport{log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnKeyboard sets the handler for inbound keyboards. It runs on the driver's
// callback goroutine and must not block.
func (t *Transport) OnKeyboard(fn KeyboardHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.onKeyboard = fn
}

// OnFetchAck sets the handler called when the device acknowledges a fetch
func (t *Transport) OnFetchAck(fn func()) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.onFetchAck = fn
}

// Connect opens the given ports and starts listening. Either may be nil.
// Previously connected ports are closed first.
func (t *Transport) Connect(in drivers.In, out drivers.Out) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.disconnect()

	var (
		send func(midi.Message) error
		stop func()
	)
	if out != nil {
		if err := out.Open(); err != nil {
			return fmt.Errorf("failed to open output %s: %w", out, err)
		}
		s, err := midi.SendTo(out)
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to open output %s: %w", out, err)
		}
		send = s
	}
	if in != nil {
		if err := in.Open(); err != nil {
			if out != nil {
				out.Close()
			}
			return fmt.Errorf("failed to open input %s: %w", in, err)
		}
		s, err := midi.ListenTo(in, t.receive, midi.UseSysEx(), midi.SysExBufferSize(sysExBufferSize))
		if err != nil {
			in.Close()
			if out != nil {
				out.Close()
			}
			return fmt.Errorf("failed to start listening on %s: %w", in, err)
		}
		stop = s
	}

	t.connMu.Lock()
	t.in, t.out, t.send, t.stop = in, out, send, stop
	t.connMu.Unlock()

	t.log.Info("midi connected", zap.Stringer("in", portName{in}), zap.Stringer("out", portName{out}))
	return nil
}

// ConnectPorts connects by port name. An empty name picks the first port.
func (t *Transport) ConnectPorts(inName, outName string) error {
	in, err := findInPort(inName)
	if err != nil {
		return err
	}
	out, err := findOutPort(outName)
	if err != nil {
		return err
	}
	return t.Connect(in, out)
}

// disconnect stops listening and closes both ports. Stopping happens
// outside connMu since the driver may wait for a running callback.
func (t *Transport) disconnect() {
	t.connMu.Lock()
	in, out, stop := t.in, t.out, t.stop
	t.in, t.out, t.send, t.stop = nil, nil, nil, nil
	t.connMu.Unlock()

	if stop != nil {
		stop()
	}
	if in != nil {
		if err := in.Close(); err != nil {
			t.log.Warn("closing input failed", zap.Error(err))
		}
	}
	if out != nil {
		if err := out.Close(); err != nil {
			t.log.Warn("closing output failed", zap.Error(err))
		}
	}
}

// Close stops future dequeues, drops pending payloads and closes the ports
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	dropped := len(t.queue)
	t.queue = nil
	t.announced = false
	t.mu.Unlock()

	t.disconnect()
	t.log.Info("midi transport closed", zap.Int("dropped", dropped))
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// InputReady reports whether the input port is open
func (t *Transport) InputReady() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.in != nil && t.in.IsOpen()
}

// OutputReady reports whether the output port is open
func (t *Transport) OutputReady() bool {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.out != nil && t.out.IsOpen()
}

// Ready reports whether both ports are open
func (t *Transport) Ready() bool {
	return t.InputReady() && t.OutputReady()
}

// Pending returns the number of payloads waiting for an ack
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Fetch asks the device to resend every stored keyboard. It bypasses the queue.
func (t *Transport) Fetch() error {
	if t.isClosed() {
		return ErrClosed
	}
	return t.write(codec.Frame(codec.FetchRequest()))
}

// Store queues a store of k into the device's persistent memory
func (t *Transport) Store(k *keyboard.Keyboard) error {
	payload, err := codec.StoreRequest(k)
	if err != nil {
		return err
	}
	return t.Enqueue(payload)
}

// SetCurrent queues k as the active keyboard of its side
func (t *Transport) SetCurrent(k *keyboard.Keyboard) error {
	payload, err := codec.SetCurrentRequest(k)
	if err != nil {
		return err
	}
	return t.Enqueue(payload)
}

// Delete queues removal of the stored keyboard (layout, name)
func (t *Transport) Delete(layout keyboard.Layout, name string) error {
	return t.Enqueue(codec.DeleteRequest(layout, name))
}

// Rename queues a rename of the stored keyboard (layout, oldName)
func (t *Transport) Rename(layout keyboard.Layout, oldName, newName string) error {
	return t.Enqueue(codec.RenameRequest(layout, oldName, newName))
}

// Enqueue frames payload and appends it to the send queue. An unannounced
// head is announced right away. When that announce fails the payload is
// taken back out of the queue and the error returned.
func (t *Transport) Enqueue(payload []byte) error {
	if !t.OutputReady() {
		return ErrNotConnected
	}
	msg := codec.Frame(payload)

	t.flowMu.Lock()
	defer t.flowMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.queue = append(t.queue, msg)
	needAnnounce := !t.announced
	pending := len(t.queue)
	t.mu.Unlock()

	t.log.Debug("payload queued", zap.Int("bytes", len(msg)), zap.Int("pending", pending))
	if !needAnnounce {
		return nil
	}
	if err := t.announce(); err != nil {
		t.mu.Lock()
		if n := len(t.queue); n > 0 && !t.closed {
			t.queue[n-1] = nil
			t.queue = t.queue[:n-1]
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Reannounce repeats the announce for a stalled queue. It does nothing when the queue is empty.
func (t *Transport) Reannounce() error {
	t.flowMu.Lock()
	defer t.flowMu.Unlock()
	if t.Pending() == 0 {
		return nil
	}
	return t.announce()
}

// announce sends the flow-control tag and marks the head announced.
// Callers hold flowMu.
func (t *Transport) announce() error {
	if err := t.write(codec.Frame(codec.Announce())); err != nil {
		return fmt.Errorf("announce failed: %w", err)
	}
	t.mu.Lock()
	t.announced = len(t.queue) > 0
	t.mu.Unlock()
	return nil
}

// advance sends the head of the queue after an ack and announces the next item
func (t *Transport) advance() {
	t.flowMu.Lock()
	defer t.flowMu.Unlock()

	t.mu.Lock()
	if t.closed || len(t.queue) == 0 {
		t.mu.Unlock()
		t.log.Debug("ack with empty queue")
		return
	}
	head := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	t.announced = false
	remaining := len(t.queue)
	t.mu.Unlock()

	if err := t.write(head); err != nil {
		t.log.Error("sending queued payload failed", zap.Error(err))
		return
	}
	t.log.Debug("payload sent", zap.Int("bytes", len(head)), zap.Int("pending", remaining))

	if remaining > 0 {
		if err := t.announce(); err != nil {
			t.log.Error("re-announce failed", zap.Error(err))
		}
	}
}

func (t *Transport) write(msg []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.send == nil || !t.out.IsOpen() {
		return ErrNotConnected
	}
	return t.send(msg)
}

// receive runs on the driver's callback goroutine. Malformed messages are
// logged and dropped.
func (t *Transport) receive(msg midi.Message, _ int32) {
	payload, err := codec.Unframe(msg)
	if err != nil {
		if len(msg) > 0 && msg[0] == codec.SysExStart {
			t.log.Warn("dropping sysex", zap.Error(err), zap.Int("bytes", len(msg)))
		}
		return
	}

	m, err := codec.ParseMessage(payload)
	if err != nil {
		t.log.Warn("dropping malformed message", zap.Error(err), zap.Int("bytes", len(payload)))
		return
	}

	switch m.Kind {
	case codec.MessageAck:
		t.advance()
	case codec.MessageFetchAck:
		t.log.Debug("fetch acknowledged")
		t.handlerMu.RLock()
		fn := t.onFetchAck
		t.handlerMu.RUnlock()
		if fn != nil {
			fn()
		}
	case codec.MessageKeyboard:
		t.log.Debug("keyboard received",
			zap.Stringer("layout", m.Keyboard.Layout()),
			zap.String("name", m.Keyboard.Name),
			zap.Stringer("origin", m.Origin))
		t.handlerMu.RLock()
		fn := t.onKeyboard
		t.handlerMu.RUnlock()
		if fn != nil {
			fn(m.Keyboard, m.Origin)
		}
	}
}

// portName prints a possibly nil port
type portName struct {
	p drivers.Port
}

func (p portName) String() string {
	if p.p == nil {
		return "<none>"
	}
	return p.p.String()
}
