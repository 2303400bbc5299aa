package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

// NameTerminator ends the Base64 name region of a keyboard payload
const NameTerminator = 0x00

// EncodeName returns Base64(name) followed by the terminator
func EncodeName(name string) []byte {
	out := make([]byte, 0, base64.StdEncoding.EncodedLen(len(name))+1)
	out = base64.StdEncoding.AppendEncode(out, []byte(name))
	return append(out, NameTerminator)
}

// DecodeName reads a terminated Base64 name from the start of data and
// returns it with the number of bytes consumed, terminator included.
func DecodeName(data []byte) (string, int, error) {
	end := bytes.IndexByte(data, NameTerminator)
	if end < 0 {
		return "", 0, decodeErr(len(data), ErrMissingTerminator)
	}
	raw, err := base64.StdEncoding.DecodeString(string(data[:end]))
	if err != nil {
		return "", 0, decodeErr(0, fmt.Errorf("%w: %v", ErrInvalidName, err))
	}
	if !utf8.Valid(raw) {
		return "", 0, decodeErr(0, fmt.Errorf("%w: not UTF-8", ErrInvalidName))
	}
	return string(raw), end + 1, nil
}

// EncodeKeyboard serializes a fully populated keyboard: layout tag, name,
// then every key action in wire order
func EncodeKeyboard(k *keyboard.Keyboard) ([]byte, error) {
	order := traversal[k.Layout()]
	if order == nil {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownLayout, uint8(k.Layout()))
	}

	out := make([]byte, 0, 1+len(k.Name)*2+k.Size()*NoteSize)
	out = append(out, byte(k.Layout()))
	out = append(out, EncodeName(k.Name)...)
	for _, slot := range order {
		a, err := k.Get(slot + 1)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("%w: key %d of %q", ErrIncomplete, slot+1, k.Name)
		}
		out = append(out, EncodeKeyAction(a)...)
	}
	return out, nil
}

// DecodeKeyboard parses a keyboard payload starting at the layout tag.
// Bytes after the last key action are ignored.
func DecodeKeyboard(data []byte) (*keyboard.Keyboard, error) {
	if len(data) == 0 {
		return nil, decodeErr(0, ErrShortBuffer)
	}
	layout := keyboard.Layout(data[0])
	order := traversal[layout]
	if order == nil {
		return nil, decodeErr(0, fmt.Errorf("%w: 0x%02X", ErrUnknownLayout, data[0]))
	}

	offset := 1
	name, n, err := DecodeName(data[offset:])
	if err != nil {
		return nil, shift(err, offset)
	}
	offset += n

	k, err := keyboard.New(layout, name)
	if err != nil {
		return nil, err
	}
	for _, slot := range order {
		a, n, err := DecodeKeyAction(data[offset:])
		if err != nil {
			return nil, shift(err, offset)
		}
		if err := k.Set(slot+1, a); err != nil {
			return nil, err
		}
		offset += n
	}
	return k, nil
}

// shift moves the offset of a nested DecodeError to be relative to the enclosing buffer
func shift(err error, by int) error {
	if de, ok := err.(*DecodeError); ok {
		return &DecodeError{Offset: de.Offset + by, Err: de.Err}
	}
	return err
}
