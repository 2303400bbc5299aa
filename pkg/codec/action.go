package codec

import (
	"fmt"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

// Encoded sizes including the tag byte
const (
	NoteSize    = 4
	ProgramSize = 3
	ControlSize = 4
)

// EncodeKeyAction returns the tagged wire form of an action. a must be a
// non-nil Note, Program or Control, by value or by pointer.
func EncodeKeyAction(a keyboard.KeyAction) []byte {
	switch v := keyboard.ValueOf(a).(type) {
	case keyboard.Note:
		return []byte{byte(keyboard.KindNote), byte(v.Channel()), byte(v.Pitch()), byte(v.Velocity())}
	case keyboard.Program:
		return []byte{byte(keyboard.KindProgram), byte(v.Channel()), byte(v.Number())}
	case keyboard.Control:
		return []byte{byte(keyboard.KindControl), byte(v.Channel()), byte(v.Number()), byte(v.Value())}
	}
	panic(fmt.Sprintf("codec: unexpected key action %T", a))
}

// DecodeKeyAction reads one tagged action from the start of data and returns
// it with the number of bytes consumed. An unknown tag consumes nothing.
func DecodeKeyAction(data []byte) (keyboard.KeyAction, int, error) {
	if len(data) == 0 {
		return nil, 0, decodeErr(0, ErrShortBuffer)
	}

	var (
		action keyboard.KeyAction
		size   int
		err    error
	)
	switch keyboard.ActionKind(data[0]) {
	case keyboard.KindNote:
		size = NoteSize
		if len(data) < size {
			return nil, 0, decodeErr(len(data), ErrShortBuffer)
		}
		action, err = keyboard.NewNote(int(data[1]), int(data[2]), int(data[3]))
	case keyboard.KindProgram:
		size = ProgramSize
		if len(data) < size {
			return nil, 0, decodeErr(len(data), ErrShortBuffer)
		}
		action, err = keyboard.NewProgram(int(data[1]), int(data[2]))
	case keyboard.KindControl:
		size = ControlSize
		if len(data) < size {
			return nil, 0, decodeErr(len(data), ErrShortBuffer)
		}
		action, err = keyboard.NewControl(int(data[1]), int(data[2]), int(data[3]))
	default:
		return nil, 0, decodeErr(0, ErrUnknownTag)
	}

	if err != nil {
		return nil, 0, decodeErr(1, err)
	}
	return action, size, nil
}
