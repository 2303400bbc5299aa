package codec

import (
	"errors"
	"fmt"
)

// Decode failure causes
var (
	ErrUnknownTag        = errors.New("unknown action tag")
	ErrUnknownLayout     = errors.New("unknown layout tag")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrShortBuffer       = errors.New("buffer too short")
	ErrMissingTerminator = errors.New("missing name terminator")
	ErrInvalidName       = errors.New("invalid name encoding")
	ErrIncomplete        = errors.New("keyboard has unset keys")
)

// DecodeError is a malformed payload, located by byte offset
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(offset int, err error) error {
	return &DecodeError{Offset: offset, Err: err}
}
