// Package transporttest provides in-memory MIDI ports for tests
package transporttest

import (
	"sync"

	"github.com/james-see/accordionctl/pkg/codec"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// In is a drivers.In whose messages are injected with Deliver
type In struct {
	Name string

	mu    sync.Mutex
	open  bool
	onMsg func(msg []byte, milliseconds int32)
}

var _ drivers.In = (*In)(nil)

func (p *In) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

func (p *In) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.onMsg = nil
	return nil
}

func (p *In) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *In) Number() int             { return 0 }
func (p *In) String() string          { return p.Name }
func (p *In) Underlying() interface{} { return nil }

func (p *In) Listen(onMsg func(msg []byte, milliseconds int32), _ drivers.ListenConfig) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMsg = onMsg
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.onMsg = nil
	}, nil
}

// Deliver passes msg to the listener, as the driver callback would
func (p *In) Deliver(msg []byte) {
	p.mu.Lock()
	fn := p.onMsg
	p.mu.Unlock()
	if fn != nil {
		fn(msg, 0)
	}
}

// DeliverPayload frames payload and delivers it
func (p *In) DeliverPayload(payload []byte) {
	p.Deliver(codec.Frame(payload))
}

// Ack delivers a flow-control acknowledgement
func (p *In) Ack() {
	p.DeliverPayload(codec.Announce())
}

// Out is a drivers.Out recording every message sent
type Out struct {
	Name string
	// SendErr is returned by Send when set
	SendErr error

	mu       sync.Mutex
	open     bool
	sent     [][]byte
	okLeft   int
	laterErr error
}

var _ drivers.Out = (*Out)(nil)

func (p *Out) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

func (p *Out) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *Out) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *Out) Number() int             { return 0 }
func (p *Out) String() string          { return p.Name }
func (p *Out) Underlying() interface{} { return nil }

func (p *Out) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SendErr != nil {
		return p.SendErr
	}
	if p.laterErr != nil {
		if p.okLeft == 0 {
			return p.laterErr
		}
		p.okLeft--
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

// FailAfter lets the next n sends through and fails every later one with
// err. A nil err turns this off.
func (p *Out) FailAfter(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.okLeft, p.laterErr = n, err
}

// Sent returns copies of every message sent so far
func (p *Out) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.sent))
	for i, m := range p.sent {
		out[i] = append([]byte(nil), m...)
	}
	return out
}

// Payloads returns the sent messages without SysEx envelope and protocol id.
// Messages that are not ours are skipped.
func (p *Out) Payloads() [][]byte {
	var out [][]byte
	for _, m := range p.Sent() {
		if payload, err := codec.Unframe(m); err == nil {
			out = append(out, payload)
		}
	}
	return out
}

// Reset forgets recorded messages
func (p *Out) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}
