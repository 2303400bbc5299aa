// Package keyboard provides the configuration model mirrored from the accordion controller
package keyboard

import "fmt"

// MIDI value ranges
const (
	MaxChannel = 15
	MaxData    = 127
)

// ActionKind identifies the shape of a KeyAction. The values double as wire tags.
type ActionKind uint8

const (
	KindNote    ActionKind = 0x01
	KindProgram ActionKind = 0x02
	KindControl ActionKind = 0x03
)

// String returns the kind name
func (k ActionKind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindProgram:
		return "program"
	case KindControl:
		return "control"
	}
	return fmt.Sprintf("kind(0x%02X)", uint8(k))
}

// KeyAction is the MIDI event bound to one physical key.
// It is implemented only by Note, Program and Control; values compare with ==.
type KeyAction interface {
	Kind() ActionKind
	Channel() int
	keyAction()
}

// ValidationError reports a field value outside its MIDI range
type ValidationError struct {
	Field string
	Value int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between 0 and %d, got %d", e.Field, e.Max, e.Value)
}

func check(field string, value, max int) error {
	if value < 0 || value > max {
		return &ValidationError{Field: field, Value: value, Max: max}
	}
	return nil
}

// Note plays a note on a channel
type Note struct {
	channel  uint8
	pitch    uint8
	velocity uint8
}

// NewNote creates a Note, rejecting out-of-range values
func NewNote(channel, pitch, velocity int) (Note, error) {
	if err := check("channel", channel, MaxChannel); err != nil {
		return Note{}, err
	}
	if err := check("pitch", pitch, MaxData); err != nil {
		return Note{}, err
	}
	if err := check("velocity", velocity, MaxData); err != nil {
		return Note{}, err
	}
	return Note{channel: uint8(channel), pitch: uint8(pitch), velocity: uint8(velocity)}, nil
}

func (Note) keyAction() {}

// Kind returns KindNote
func (Note) Kind() ActionKind { return KindNote }

// Channel returns the MIDI channel (0-15)
func (n Note) Channel() int { return int(n.channel) }

// Pitch returns the note number
func (n Note) Pitch() int { return int(n.pitch) }

// Velocity returns the note velocity
func (n Note) Velocity() int { return int(n.velocity) }

// SetChannel changes the channel
func (n *Note) SetChannel(channel int) error {
	if err := check("channel", channel, MaxChannel); err != nil {
		return err
	}
	n.channel = uint8(channel)
	return nil
}

// SetPitch changes the note number
func (n *Note) SetPitch(pitch int) error {
	if err := check("pitch", pitch, MaxData); err != nil {
		return err
	}
	n.pitch = uint8(pitch)
	return nil
}

// SetVelocity changes the velocity
func (n *Note) SetVelocity(velocity int) error {
	if err := check("velocity", velocity, MaxData); err != nil {
		return err
	}
	n.velocity = uint8(velocity)
	return nil
}

func (n Note) String() string {
	return fmt.Sprintf("Note(channel=%d, pitch=%d, velocity=%d)", n.channel, n.pitch, n.velocity)
}

// Program sends a program change
type Program struct {
	channel uint8
	number  uint8
}

// NewProgram creates a Program, rejecting out-of-range values
func NewProgram(channel, number int) (Program, error) {
	if err := check("channel", channel, MaxChannel); err != nil {
		return Program{}, err
	}
	if err := check("number", number, MaxData); err != nil {
		return Program{}, err
	}
	return Program{channel: uint8(channel), number: uint8(number)}, nil
}

func (Program) keyAction() {}

// Kind returns KindProgram
func (Program) Kind() ActionKind { return KindProgram }

// Channel returns the MIDI channel (0-15)
func (p Program) Channel() int { return int(p.channel) }

// Number returns the program number
func (p Program) Number() int { return int(p.number) }

// SetChannel changes the channel
func (p *Program) SetChannel(channel int) error {
	if err := check("channel", channel, MaxChannel); err != nil {
		return err
	}
	p.channel = uint8(channel)
	return nil
}

// SetNumber changes the program number
func (p *Program) SetNumber(number int) error {
	if err := check("number", number, MaxData); err != nil {
		return err
	}
	p.number = uint8(number)
	return nil
}

func (p Program) String() string {
	return fmt.Sprintf("Program(channel=%d, number=%d)", p.channel, p.number)
}

// Control sends a control change
type Control struct {
	channel uint8
	number  uint8
	value   uint8
}

// NewControl creates a Control, rejecting out-of-range values
func NewControl(channel, number, value int) (Control, error) {
	if err := check("channel", channel, MaxChannel); err != nil {
		return Control{}, err
	}
	if err := check("number", number, MaxData); err != nil {
		return Control{}, err
	}
	if err := check("value", value, MaxData); err != nil {
		return Control{}, err
	}
	return Control{channel: uint8(channel), number: uint8(number), value: uint8(value)}, nil
}

func (Control) keyAction() {}

// Kind returns KindControl
func (Control) Kind() ActionKind { return KindControl }

// Channel returns the MIDI channel (0-15)
func (c Control) Channel() int { return int(c.channel) }

// Number returns the controller number
func (c Control) Number() int { return int(c.number) }

// Value returns the controller value
func (c Control) Value() int { return int(c.value) }

// SetChannel changes the channel
func (c *Control) SetChannel(channel int) error {
	if err := check("channel", channel, MaxChannel); err != nil {
		return err
	}
	c.channel = uint8(channel)
	return nil
}

// SetNumber changes the controller number
func (c *Control) SetNumber(number int) error {
	if err := check("number", number, MaxData); err != nil {
		return err
	}
	c.number = uint8(number)
	return nil
}

// SetValue changes the controller value
func (c *Control) SetValue(value int) error {
	if err := check("value", value, MaxData); err != nil {
		return err
	}
	c.value = uint8(value)
	return nil
}

func (c Control) String() string {
	return fmt.Sprintf("Control(channel=%d, number=%d, value=%d)", c.channel, c.number, c.value)
}
