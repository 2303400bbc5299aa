package codec

import (
	"fmt"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

// Command is the first payload byte after the protocol id
type Command byte

// Outbound commands
const (
	CmdFetch       Command = 0x00
	CmdStore       Command = 0x01
	CmdSetCurrent  Command = 0x02
	CmdDelete      Command = 0x04
	CmdRename      Command = 0x08
	CmdFlowControl Command = 0x0F
)

// Origin bits of an inbound keyboard push
const (
	originStoredBit = 0x01
	originActiveBit = 0x02
)

// Origin tells where a reported keyboard lives on the device
type Origin int

const (
	// OriginStored is the device's persistent memory
	OriginStored Origin = iota
	// OriginActive is the keyboard currently in use on its side
	OriginActive
)

func (o Origin) String() string {
	if o == OriginStored {
		return "stored"
	}
	return "active"
}

// MessageKind classifies an inbound payload
type MessageKind int

const (
	MessageAck MessageKind = iota
	MessageFetchAck
	MessageKeyboard
)

func (k MessageKind) String() string {
	switch k {
	case MessageAck:
		return "ack"
	case MessageFetchAck:
		return "fetch-ack"
	case MessageKeyboard:
		return "keyboard"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is a decoded inbound payload. Origin and Keyboard are set for MessageKeyboard only.
type Message struct {
	Kind     MessageKind
	Origin   Origin
	Keyboard *keyboard.Keyboard
}

// FetchRequest asks the device to resend every stored keyboard
func FetchRequest() []byte {
	return []byte{byte(CmdFetch)}
}

// Announce tells the device a queued payload is waiting for its ack
func Announce() []byte {
	return []byte{byte(CmdFlowControl)}
}

// StoreRequest saves k into the device's persistent memory
func StoreRequest(k *keyboard.Keyboard) ([]byte, error) {
	return keyboardRequest(CmdStore, k)
}

// SetCurrentRequest makes k the active keyboard of its side
func SetCurrentRequest(k *keyboard.Keyboard) ([]byte, error) {
	return keyboardRequest(CmdSetCurrent, k)
}

func keyboardRequest(cmd Command, k *keyboard.Keyboard) ([]byte, error) {
	body, err := EncodeKeyboard(k)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(cmd)}, body...), nil
}

// DeleteRequest removes the stored keyboard (layout, name)
func DeleteRequest(layout keyboard.Layout, name string) []byte {
	out := []byte{byte(CmdDelete), byte(layout)}
	return append(out, EncodeName(name)...)
}

// RenameRequest renames the stored keyboard (layout, oldName)
func RenameRequest(layout keyboard.Layout, oldName, newName string) []byte {
	out := []byte{byte(CmdRename), byte(layout)}
	out = append(out, EncodeName(oldName)...)
	return append(out, EncodeName(newName)...)
}

// ParseMessage decodes an inbound payload (protocol id already stripped).
// The flow-control ack is recognized before origin bits are inspected.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, decodeErr(0, ErrShortBuffer)
	}

	head := payload[0]
	switch Command(head) {
	case CmdFlowControl:
		return Message{Kind: MessageAck}, nil
	case CmdFetch:
		return Message{Kind: MessageFetchAck}, nil
	}

	var origin Origin
	switch {
	case head == originStoredBit:
		origin = OriginStored
	case head&(originStoredBit|originActiveBit) != 0:
		origin = OriginActive
	default:
		return Message{}, decodeErr(0, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, head))
	}

	k, err := DecodeKeyboard(payload[1:])
	if err != nil {
		return Message{}, shift(err, 1)
	}
	return Message{Kind: MessageKeyboard, Origin: origin, Keyboard: k}, nil
}
