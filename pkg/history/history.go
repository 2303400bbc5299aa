// Package history implements undo/redo for edits of a local keyboard
package history

import (
	"errors"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Command is an edit that can be applied and reverted.
// It is implemented by *Rename and *SetKeyData.
type Command interface {
	Apply() error
	Revert() error
	command()
}

// Rename changes the name of a keyboard
type Rename struct {
	target  *keyboard.Keyboard
	oldName string
	newName string
}

// NewRename captures the current name of target
func NewRename(target *keyboard.Keyboard, newName string) *Rename {
	return &Rename{target: target, oldName: target.Name, newName: newName}
}

func (c *Rename) Apply() error {
	c.target.Name = c.newName
	return nil
}

func (c *Rename) Revert() error {
	c.target.Name = c.oldName
	return nil
}

func (c *Rename) command() {}

// SetKeyData changes the action of one key
type SetKeyData struct {
	target   *keyboard.Keyboard
	index    int
	oldValue keyboard.KeyAction
	newValue keyboard.KeyAction
}

// NewSetKeyData captures the current action of the 1-based key index and a
// copy of value
func NewSetKeyData(target *keyboard.Keyboard, index int, value keyboard.KeyAction) (*SetKeyData, error) {
	old, err := target.Get(index)
	if err != nil {
		return nil, err
	}
	return &SetKeyData{target: target, index: index, oldValue: old, newValue: keyboard.ValueOf(value)}, nil
}

func (c *SetKeyData) Apply() error {
	return c.target.Set(c.index, c.newValue)
}

func (c *SetKeyData) Revert() error {
	return c.target.Set(c.index, c.oldValue)
}

func (c *SetKeyData) command() {}

// History holds the undo and redo stacks. It is not safe for concurrent use.
type History struct {
	undo []Command
	redo []Command
}

// New returns an empty History
func New() *History {
	return &History{}
}

// Execute applies cmd and records it. Any redo lineage is dropped.
// A command that fails to apply is not recorded.
func (h *History) Execute(cmd Command) error {
	if err := cmd.Apply(); err != nil {
		return err
	}
	h.undo = append(h.undo, cmd)
	h.redo = nil
	return nil
}

// Undo reverts the last executed command
func (h *History) Undo() error {
	if len(h.undo) == 0 {
		return ErrNothingToUndo
	}
	cmd := h.undo[len(h.undo)-1]
	if err := cmd.Revert(); err != nil {
		return err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, cmd)
	return nil
}

// Redo re-applies the last undone command
func (h *History) Redo() error {
	if len(h.redo) == 0 {
		return ErrNothingToRedo
	}
	cmd := h.redo[len(h.redo)-1]
	if err := cmd.Apply(); err != nil {
		return err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, cmd)
	return nil
}

// CanUndo reports whether Undo would succeed
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would succeed
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
