package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const ticksPerQuarter = 480

// marshalMIDI writes a single-track Standard MIDI File whose only event is
// the store message, so any SMF player can send the keyboard to the device
func marshalMIDI(k *keyboard.Keyboard) ([]byte, error) {
	payload, err := codec.StoreRequest(k)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(payload)+1)
	data = append(data, codec.ProtocolID)
	data = append(data, payload...)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var track smf.Track
	track.Add(0, midi.SysEx(data))
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// unmarshalMIDI returns the first keyboard found in a SysEx event of any track
func unmarshalMIDI(data []byte) (*keyboard.Keyboard, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	var lastErr error
	for _, track := range s.Tracks {
		for _, ev := range track {
			payload, ok := sysExPayload(ev.Message)
			if !ok {
				continue
			}
			k, err := keyboardFromPayload(payload)
			if err != nil {
				lastErr = err
				continue
			}
			return k, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no keyboard sysex in MIDI file")
}

// sysExPayload extracts our payload from a SysEx event. The event may
// carry the SMF length prefix and the closing F7 or not.
func sysExPayload(msg []byte) ([]byte, bool) {
	if len(msg) < 2 || msg[0] != codec.SysExStart {
		return nil, false
	}
	body := msg[1:]
	if body[len(body)-1] == codec.SysExEnd {
		body = body[:len(body)-1]
	}
	if len(body) > 0 && body[0] != codec.ProtocolID {
		// skip a variable-length quantity
		i := 0
		for i < len(body) && body[i]&0x80 != 0 {
			i++
		}
		body = body[min(i+1, len(body)):]
	}
	if len(body) == 0 || body[0] != codec.ProtocolID {
		return nil, false
	}
	return body[1:], true
}
