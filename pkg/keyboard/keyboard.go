package keyboard

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned for key indices outside 1..Size()
var ErrIndexOutOfRange = errors.New("key index out of range")

// ErrUnknownLayout is returned when a layout tag is not one of the known layouts
var ErrUnknownLayout = errors.New("unknown keyboard layout")

// Layout identifies the physical button matrix. The values double as wire tags.
type Layout uint8

const (
	// LayoutRight81 is the right-hand side: 81 buttons in rows of 16, 17, 16, 16, 16
	LayoutRight81 Layout = 0x01
	// LayoutLeft96 is the left-hand side: 96 buttons in 6 rows of 16
	LayoutLeft96 Layout = 0x02
)

// Side is the device side a layout belongs to
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// ParseSide converts "left"/"right" to a Side
func ParseSide(s string) (Side, error) {
	switch s {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

var rowLengths = map[Layout][]int{
	LayoutRight81: {16, 17, 16, 16, 16},
	LayoutLeft96:  {16, 16, 16, 16, 16, 16},
}

// Valid reports whether l is a known layout
func (l Layout) Valid() bool {
	_, ok := rowLengths[l]
	return ok
}

// Size returns the number of keys
func (l Layout) Size() int {
	n := 0
	for _, r := range rowLengths[l] {
		n += r
	}
	return n
}

// Rows returns the number of buttons on each physical row, top to bottom
func (l Layout) Rows() []int {
	return append([]int(nil), rowLengths[l]...)
}

// Side returns the device side the layout is mounted on
func (l Layout) Side() Side {
	if l == LayoutLeft96 {
		return SideLeft
	}
	return SideRight
}

// Position returns the 0-based row and column of a 1-based key index
func (l Layout) Position(index int) (row, col int, err error) {
	if index < 1 || index > l.Size() {
		return 0, 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	i := index - 1
	for r, n := range rowLengths[l] {
		if i < n {
			return r, i, nil
		}
		i -= n
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
}

// Index returns the 1-based key index at a 0-based row and column
func (l Layout) Index(row, col int) (int, error) {
	rows := rowLengths[l]
	if row < 0 || row >= len(rows) || col < 0 || col >= rows[row] {
		return 0, fmt.Errorf("%w: row %d col %d", ErrIndexOutOfRange, row, col)
	}
	index := col + 1
	for _, n := range rows[:row] {
		index += n
	}
	return index, nil
}

func (l Layout) String() string {
	switch l {
	case LayoutRight81:
		return "right81"
	case LayoutLeft96:
		return "left96"
	}
	return fmt.Sprintf("layout(0x%02X)", uint8(l))
}

// ParseLayout converts a layout name to a Layout
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "right81", "right":
		return LayoutRight81, nil
	case "left96", "left":
		return LayoutLeft96, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
}

// Keyboard is the full set of key assignments for one device side
type Keyboard struct {
	Name   string
	layout Layout
	keys   []KeyAction
}

// New creates a keyboard with every key unset
func New(layout Layout, name string) (*Keyboard, error) {
	if !layout.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownLayout, uint8(layout))
	}
	return &Keyboard{
		Name:   name,
		layout: layout,
		keys:   make([]KeyAction, layout.Size()),
	}, nil
}

// NewFilled creates a keyboard with every key set to fill
func NewFilled(layout Layout, name string, fill KeyAction) (*Keyboard, error) {
	k, err := New(layout, name)
	if err != nil {
		return nil, err
	}
	for i := range k.keys {
		k.keys[i] = ValueOf(fill)
	}
	return k, nil
}

// Layout returns the keyboard layout
func (k *Keyboard) Layout() Layout {
	return k.layout
}

// Size returns the number of keys
func (k *Keyboard) Size() int {
	return len(k.keys)
}

// Get returns the action of the 1-based key index, nil if unset
func (k *Keyboard) Get(index int) (KeyAction, error) {
	if index < 1 || index > len(k.keys) {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrIndexOutOfRange, index, len(k.keys))
	}
	return k.keys[index-1], nil
}

// Set assigns the action of the 1-based key index. A nil action unsets the key.
func (k *Keyboard) Set(index int, action KeyAction) error {
	if index < 1 || index > len(k.keys) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrIndexOutOfRange, index, len(k.keys))
	}
	k.keys[index-1] = ValueOf(action)
	return nil
}

// ValueOf returns a by value. Pointer actions are dereferenced, a nil
// pointer becomes nil. Keys hold values only so they compare with ==.
func ValueOf(a KeyAction) KeyAction {
	switch v := a.(type) {
	case *Note:
		if v != nil {
			return *v
		}
		return nil
	case *Program:
		if v != nil {
			return *v
		}
		return nil
	case *Control:
		if v != nil {
			return *v
		}
		return nil
	}
	return a
}

// Complete reports whether every key holds an action
func (k *Keyboard) Complete() bool {
	for _, a := range k.keys {
		if a == nil {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (k *Keyboard) Clone() *Keyboard {
	if k == nil {
		return nil
	}
	keys := make([]KeyAction, len(k.keys))
	copy(keys, k.keys)
	return &Keyboard{Name: k.Name, layout: k.layout, keys: keys}
}

// Equal compares layout, name and every key
func (k *Keyboard) Equal(o *Keyboard) bool {
	if k == nil || o == nil {
		return k == o
	}
	if k.layout != o.layout || k.Name != o.Name || len(k.keys) != len(o.keys) {
		return false
	}
	for i := range k.keys {
		if k.keys[i] != o.keys[i] {
			return false
		}
	}
	return true
}

// SameIdentity reports whether two keyboards share layout and name
func (k *Keyboard) SameIdentity(o *Keyboard) bool {
	return k.layout == o.layout && k.Name == o.Name
}
