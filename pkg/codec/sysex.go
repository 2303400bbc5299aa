package codec

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// SysEx constants
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7

	// ProtocolID is the non-commercial manufacturer id leading every payload
	ProtocolID = 0x7D
)

// ErrForeignSysEx is returned for SysEx messages that do not carry ProtocolID
var ErrForeignSysEx = errors.New("sysex does not belong to this protocol")

// Frame wraps a payload into a complete SysEx message: F0 7D payload F7
func Frame(payload []byte) []byte {
	data := make([]byte, 0, len(payload)+1)
	data = append(data, ProtocolID)
	data = append(data, payload...)
	return midi.SysEx(data).Bytes()
}

// Unframe returns the payload of a SysEx message, without envelope and
// protocol id. The returned slice aliases msg.
func Unframe(msg []byte) ([]byte, error) {
	var data []byte
	if !midi.Message(msg).GetSysEx(&data) {
		return nil, errors.New("not a sysex message")
	}
	if len(data) == 0 || data[0] != ProtocolID {
		return nil, ErrForeignSysEx
	}
	return data[1:], nil
}

// ValidateSyx validates SysEx data structure
func ValidateSyx(data []byte) error {
	if len(data) < 3 {
		return errors.New("syx data too short")
	}

	if data[0] != SysExStart {
		return fmt.Errorf("invalid SysEx: expected start byte 0x%02X, got 0x%02X", SysExStart, data[0])
	}

	if data[len(data)-1] != SysExEnd {
		return fmt.Errorf("invalid SysEx: expected end byte 0x%02X, got 0x%02X", SysExEnd, data[len(data)-1])
	}

	for i := 1; i < len(data)-1; i++ {
		if data[i] > 127 {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i, data[i])
		}
	}

	if data[1] != ProtocolID {
		return fmt.Errorf("%w: id 0x%02X", ErrForeignSysEx, data[1])
	}
	return nil
}
