// Package mirror keeps the last known state of the accordion controller
package mirror

import (
	"sync"

	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/logging"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/transport"
	"go.uber.org/zap"
)

// Remote is the device connection used by the mirror. *transport.Transport implements it.
type Remote interface {
	Fetch() error
	Store(k *keyboard.Keyboard) error
	SetCurrent(k *keyboard.Keyboard) error
	Delete(layout keyboard.Layout, name string) error
	Rename(layout keyboard.Layout, oldName, newName string) error
	OnKeyboard(fn transport.KeyboardHandler)
}

var _ Remote = (*transport.Transport)(nil)

// Option configures a Mirror
type Option func(*Mirror)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Mirror) {
		m.log = logging.OrNop(l)
	}
}

// WithNotifier sets the notifier receiving change events
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Mirror) {
		if n != nil {
			m.notifier = n
		}
	}
}

// Mirror holds the stored keyboards and the current keyboard of each side.
// Each of the three is guarded by its own lock and no lock is held while
// another is taken, while encoding, or while notifying. Readers only ever get
// deep copies.
type Mirror struct {
	log      *zap.Logger
	remote   Remote
	notifier *notify.Notifier

	storedMu sync.Mutex
	stored   []*keyboard.Keyboard

	leftMu sync.Mutex
	left   *keyboard.Keyboard

	rightMu sync.Mutex
	right   *keyboard.Keyboard
}

// New creates a Mirror fed by remote's inbound keyboards
func New(remote Remote, opts ...Option) *Mirror {
	m := &Mirror{
		log:      zap.NewNop(),
		remote:   remote,
		notifier: &notify.Notifier{},
	}
	for _, opt := range opts {
		opt(m)
	}
	remote.OnKeyboard(m.receive)
	return m
}

// Notifier returns the notifier receiving change events
func (m *Mirror) Notifier() *notify.Notifier {
	return m.notifier
}

// FetchStored clears the stored list and asks the device to resend it.
// The list fills asynchronously as the device answers.
func (m *Mirror) FetchStored() error {
	m.storedMu.Lock()
	m.stored = nil
	m.storedMu.Unlock()
	m.notifier.Notify(notify.Event{Topic: notify.TopicStored})

	m.log.Info("fetching stored keyboards")
	return m.remote.Fetch()
}

// Stored returns a copy of the stored keyboards
func (m *Mirror) Stored() []*keyboard.Keyboard {
	m.storedMu.Lock()
	defer m.storedMu.Unlock()
	return cloneAll(m.stored)
}

// Current returns a copy of the active keyboard of side, nil if unknown
func (m *Mirror) Current(side keyboard.Side) *keyboard.Keyboard {
	mu, cur := m.side(side)
	mu.Lock()
	defer mu.Unlock()
	return (*cur).Clone()
}

// Known returns copies of every keyboard the mirror knows: stored ones
// followed by the current left and right keyboards
func (m *Mirror) Known() []*keyboard.Keyboard {
	known := m.Stored()
	for _, side := range []keyboard.Side{keyboard.SideLeft, keyboard.SideRight} {
		if k := m.Current(side); k != nil {
			known = append(known, k)
		}
	}
	return known
}

// PushCurrent makes k the active keyboard of its side on the device and in the mirror
func (m *Mirror) PushCurrent(k *keyboard.Keyboard) error {
	c := k.Clone()
	if err := m.remote.SetCurrent(c); err != nil {
		return err
	}
	m.setCurrent(c)
	return nil
}

// Store saves k on the device, replacing the stored keyboard with the same layout and name
func (m *Mirror) Store(k *keyboard.Keyboard) error {
	c := k.Clone()
	if err := m.remote.Store(c); err != nil {
		return err
	}
	m.putStored(c)
	return nil
}

// Delete removes the stored keyboard (layout, name)
func (m *Mirror) Delete(layout keyboard.Layout, name string) error {
	if err := m.remote.Delete(layout, name); err != nil {
		return err
	}

	m.storedMu.Lock()
	i := m.indexLocked(layout, name)
	if i >= 0 {
		m.stored = append(m.stored[:i], m.stored[i+1:]...)
	}
	m.storedMu.Unlock()

	if i >= 0 {
		m.notifier.Notify(notify.Event{Topic: notify.TopicStored})
	}
	return nil
}

// Rename renames the stored keyboard (layout, oldName). A stored keyboard
// already named newName in the same layout is replaced.
func (m *Mirror) Rename(layout keyboard.Layout, oldName, newName string) error {
	if err := m.remote.Rename(layout, oldName, newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	m.storedMu.Lock()
	i := m.indexLocked(layout, oldName)
	if i >= 0 {
		renamed := m.stored[i].Clone()
		renamed.Name = newName
		m.stored[i] = renamed
		if j := m.indexExceptLocked(layout, newName, i); j >= 0 {
			m.stored = append(m.stored[:j], m.stored[j+1:]...)
		}
	}
	m.storedMu.Unlock()

	if i >= 0 {
		m.notifier.Notify(notify.Event{Topic: notify.TopicStored})
	}
	return nil
}

// receive runs on the transport's callback goroutine
func (m *Mirror) receive(k *keyboard.Keyboard, origin codec.Origin) {
	switch origin {
	case codec.OriginStored:
		m.putStored(k)
	case codec.OriginActive:
		m.setCurrent(k)
	}
}

// putStored takes ownership of k
func (m *Mirror) putStored(k *keyboard.Keyboard) {
	m.storedMu.Lock()
	if i := m.indexLocked(k.Layout(), k.Name); i >= 0 {
		m.stored[i] = k
	} else {
		m.stored = append(m.stored, k)
	}
	m.storedMu.Unlock()

	m.notifier.Notify(notify.Event{Topic: notify.TopicStored})
}

// setCurrent takes ownership of k. Unchanged keyboards do not notify.
func (m *Mirror) setCurrent(k *keyboard.Keyboard) {
	side := k.Layout().Side()
	mu, cur := m.side(side)

	mu.Lock()
	changed := !(*cur).Equal(k)
	if changed {
		*cur = k
	}
	mu.Unlock()

	if changed {
		m.notifier.Notify(notify.Event{Topic: sideTopic(side)})
	}
}

func (m *Mirror) side(side keyboard.Side) (*sync.Mutex, **keyboard.Keyboard) {
	if side == keyboard.SideLeft {
		return &m.leftMu, &m.left
	}
	return &m.rightMu, &m.right
}

func sideTopic(side keyboard.Side) notify.Topic {
	if side == keyboard.SideLeft {
		return notify.TopicCurrentLeft
	}
	return notify.TopicCurrentRight
}

func (m *Mirror) indexLocked(layout keyboard.Layout, name string) int {
	return m.indexExceptLocked(layout, name, -1)
}

// indexExceptLocked finds (layout, name), ignoring position skip
func (m *Mirror) indexExceptLocked(layout keyboard.Layout, name string, skip int) int {
	for i, k := range m.stored {
		if i != skip && k.Layout() == layout && k.Name == name {
			return i
		}
	}
	return -1
}

func cloneAll(ks []*keyboard.Keyboard) []*keyboard.Keyboard {
	out := make([]*keyboard.Keyboard, len(ks))
	for i, k := range ks {
		out[i] = k.Clone()
	}
	return out
}
