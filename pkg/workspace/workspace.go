// Package workspace manages keyboards opened for local editing
package workspace

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/james-see/accordionctl/pkg/history"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/logging"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/storage"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoPath is returned by Save for sessions never saved or loaded
	ErrNoPath = errors.New("session has no file")
)

// Option configures a Workspace
type Option func(*Workspace)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) {
		w.log = logging.OrNop(l)
	}
}

// WithNotifier sets the notifier receiving session change events
func WithNotifier(n *notify.Notifier) Option {
	return func(w *Workspace) {
		if n != nil {
			w.notifier = n
		}
	}
}

// Workspace holds the open editing sessions
type Workspace struct {
	log      *zap.Logger
	notifier *notify.Notifier

	mu       sync.Mutex
	sessions []*Session
}

// New creates an empty Workspace
func New(opts ...Option) *Workspace {
	w := &Workspace{
		log:      zap.NewNop(),
		notifier: &notify.Notifier{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notifier returns the notifier receiving session change events
func (w *Workspace) Notifier() *notify.Notifier {
	return w.notifier
}

// Open loads the keyboard stored at path. Opening a file that already has
// a session returns that session.
func (w *Workspace) Open(path string) (*Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyboard: %w", err)
	}

	w.mu.Lock()
	for _, s := range w.sessions {
		if p := s.Path(); p != "" {
			if other, err := os.Stat(p); err == nil && os.SameFile(info, other) {
				w.mu.Unlock()
				return s, nil
			}
		}
	}
	w.mu.Unlock()

	s := w.newSession(nil)
	s.path = path
	if err := s.Load(); err != nil {
		return nil, err
	}
	w.add(s)
	w.log.Info("keyboard opened", zap.String("session", s.ID), zap.String("path", path))
	return s, nil
}

// OpenKeyboard starts a session on a copy of k, for example one fetched
// from the device. A session already holding an equal keyboard is returned instead.
func (w *Workspace) OpenKeyboard(k *keyboard.Keyboard) *Session {
	w.mu.Lock()
	for _, s := range w.sessions {
		if s.Keyboard().Equal(k) {
			w.mu.Unlock()
			return s
		}
	}
	w.mu.Unlock()

	s := w.newSession(k.Clone())
	w.add(s)
	return s
}

// Create starts a session on a new keyboard with every key unset
func (w *Workspace) Create(layout keyboard.Layout, name string) (*Session, error) {
	k, err := keyboard.New(layout, name)
	if err != nil {
		return nil, err
	}
	s := w.newSession(k)
	w.add(s)
	w.log.Info("keyboard created", zap.String("session", s.ID), zap.Stringer("layout", layout))
	return s, nil
}

// Get returns the session with the given ID
func (w *Workspace) Get(id string) (*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Sessions returns the open sessions in opening order
func (w *Workspace) Sessions() []*Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Session(nil), w.sessions...)
}

// Close forgets the session with the given ID. Unsaved edits are lost.
func (w *Workspace) Close(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.sessions {
		if s.ID == id {
			w.sessions = append(w.sessions[:i], w.sessions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func (w *Workspace) newSession(k *keyboard.Keyboard) *Session {
	return &Session{
		ID:       uuid.New().String(),
		kbd:      k,
		history:  history.New(),
		notifier: w.notifier,
	}
}

func (w *Workspace) add(s *Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions = append(w.sessions, s)
}

// Session is one keyboard open for editing, with its undo history and file.
// Every successful change fires exactly one notify.TopicSession event.
type Session struct {
	ID string

	notifier *notify.Notifier

	mu      sync.Mutex
	kbd     *keyboard.Keyboard
	history *history.History
	path    string
	saved   bool
}

// Keyboard returns a copy of the edited keyboard
func (s *Session) Keyboard() *keyboard.Keyboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kbd.Clone()
}

// Path returns the file backing the session, empty if none
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Saved reports whether the keyboard matches its file
func (s *Session) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// CanUndo reports whether Undo would succeed
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// SetKey assigns the action of the 1-based key index. Assigning the
// current value records nothing.
func (s *Session) SetKey(index int, a keyboard.KeyAction) error {
	s.mu.Lock()
	current, err := s.kbd.Get(index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if current == a {
		s.mu.Unlock()
		return nil
	}
	cmd, err := history.NewSetKeyData(s.kbd, index, a)
	if err == nil {
		err = s.history.Execute(cmd)
	}
	s.edited(err)
	s.mu.Unlock()

	return s.changed(err)
}

// Rename changes the keyboard name. Renaming to the current name records nothing.
func (s *Session) Rename(name string) error {
	s.mu.Lock()
	if s.kbd.Name == name {
		s.mu.Unlock()
		return nil
	}
	err := s.history.Execute(history.NewRename(s.kbd, name))
	s.edited(err)
	s.mu.Unlock()

	return s.changed(err)
}

// Undo reverts the last edit
func (s *Session) Undo() error {
	s.mu.Lock()
	err := s.history.Undo()
	s.edited(err)
	s.mu.Unlock()

	return s.changed(err)
}

// Redo re-applies the last undone edit
func (s *Session) Redo() error {
	s.mu.Lock()
	err := s.history.Redo()
	s.edited(err)
	s.mu.Unlock()

	return s.changed(err)
}

// Load replaces the keyboard with the content of the session's file
func (s *Session) Load() error {
	path := s.Path()
	if path == "" {
		return ErrNoPath
	}
	k, err := storage.Load(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.kbd = k
	s.history = history.New()
	s.saved = true
	s.mu.Unlock()

	return s.changed(nil)
}

// Save writes the keyboard to the session's file
func (s *Session) Save() error {
	path := s.Path()
	if path == "" {
		return ErrNoPath
	}
	return s.SaveAs(path)
}

// SaveAs writes the keyboard to path, which becomes the session's file
func (s *Session) SaveAs(path string) error {
	k := s.Keyboard()
	if err := storage.Save(path, k); err != nil {
		return err
	}

	s.mu.Lock()
	s.path = path
	s.saved = true
	s.mu.Unlock()

	return s.changed(nil)
}

// edited marks unsaved changes after a successful edit. Caller holds mu.
func (s *Session) edited(err error) {
	if err == nil {
		s.saved = false
	}
}

// changed notifies listeners when err is nil and returns err
func (s *Session) changed(err error) error {
	if err == nil {
		s.notifier.Notify(notify.Event{Topic: notify.TopicSession, ID: s.ID})
	}
	return err
}
