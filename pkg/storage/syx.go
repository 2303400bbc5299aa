package storage

import (
	"fmt"

	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/keyboard"
)

// marshalSyx writes the store message that would send k to the device
func marshalSyx(k *keyboard.Keyboard) ([]byte, error) {
	payload, err := codec.StoreRequest(k)
	if err != nil {
		return nil, err
	}
	return codec.Frame(payload), nil
}

func unmarshalSyx(data []byte) (*keyboard.Keyboard, error) {
	if err := codec.ValidateSyx(data); err != nil {
		return nil, err
	}
	payload, err := codec.Unframe(data)
	if err != nil {
		return nil, err
	}
	return keyboardFromPayload(payload)
}

// keyboardFromPayload accepts store, set-current and device push payloads
func keyboardFromPayload(payload []byte) (*keyboard.Keyboard, error) {
	msg, err := codec.ParseMessage(payload)
	if err != nil {
		return nil, err
	}
	if msg.Kind != codec.MessageKeyboard {
		return nil, fmt.Errorf("%w: %s message holds no keyboard", ErrUnknownFormat, msg.Kind)
	}
	return msg.Keyboard, nil
}
