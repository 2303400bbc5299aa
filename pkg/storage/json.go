package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

// Type tags of the JSON file format
const (
	typeLeft96  = "Left96ButtonKeyboard"
	typeRight81 = "Right81ButtonKeyboard"
	typeNote    = "NoteData"
	typeProgram = "ProgramData"
	typeControl = "ControlData"
)

type jsonKeyboard struct {
	Type string        `json:"__type__"`
	Name string        `json:"name"`
	Data []*jsonAction `json:"data"`
}

// jsonAction fields are pointers so missing keys can be told apart from zero
type jsonAction struct {
	Type     string `json:"__type__"`
	Channel  *int   `json:"channel"`
	Pitch    *int   `json:"pitch,omitempty"`
	Velocity *int   `json:"velocity,omitempty"`
	Number   *int   `json:"number,omitempty"`
	Value    *int   `json:"value,omitempty"`
}

func intp(v int) *int { return &v }

func marshalJSON(k *keyboard.Keyboard) ([]byte, error) {
	doc := jsonKeyboard{Name: k.Name, Data: make([]*jsonAction, k.Size())}
	switch k.Layout() {
	case keyboard.LayoutLeft96:
		doc.Type = typeLeft96
	case keyboard.LayoutRight81:
		doc.Type = typeRight81
	default:
		return nil, fmt.Errorf("%w: layout %s", ErrUnknownFormat, k.Layout())
	}

	for i := range doc.Data {
		a, err := k.Get(i + 1)
		if err != nil {
			return nil, err
		}
		switch v := a.(type) {
		case nil:
		case keyboard.Note:
			doc.Data[i] = &jsonAction{Type: typeNote, Channel: intp(v.Channel()), Pitch: intp(v.Pitch()), Velocity: intp(v.Velocity())}
		case keyboard.Program:
			doc.Data[i] = &jsonAction{Type: typeProgram, Channel: intp(v.Channel()), Number: intp(v.Number())}
		case keyboard.Control:
			doc.Data[i] = &jsonAction{Type: typeControl, Channel: intp(v.Channel()), Number: intp(v.Number()), Value: intp(v.Value())}
		default:
			return nil, fmt.Errorf("unexpected key action %T", a)
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func unmarshalJSON(data []byte) (*keyboard.Keyboard, error) {
	var doc jsonKeyboard
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var layout keyboard.Layout
	switch doc.Type {
	case typeLeft96:
		layout = keyboard.LayoutLeft96
	case typeRight81:
		layout = keyboard.LayoutRight81
	default:
		return nil, fmt.Errorf("%w: keyboard type %q", ErrUnknownFormat, doc.Type)
	}

	k, err := keyboard.New(layout, doc.Name)
	if err != nil {
		return nil, err
	}
	if len(doc.Data) != k.Size() {
		return nil, fmt.Errorf("%s holds %d keys, want %d", doc.Type, len(doc.Data), k.Size())
	}
	for i, d := range doc.Data {
		if d == nil {
			continue
		}
		a, err := d.action()
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i+1, err)
		}
		if err := k.Set(i+1, a); err != nil {
			return nil, err
		}
	}
	return k, nil
}

var errMissingField = errors.New("missing field")

func (d *jsonAction) action() (keyboard.KeyAction, error) {
	switch d.Type {
	case typeNote:
		if err := required(field{"channel", d.Channel}, field{"pitch", d.Pitch}, field{"velocity", d.Velocity}); err != nil {
			return nil, err
		}
		return keyboard.NewNote(*d.Channel, *d.Pitch, *d.Velocity)
	case typeProgram:
		if err := required(field{"channel", d.Channel}, field{"number", d.Number}); err != nil {
			return nil, err
		}
		return keyboard.NewProgram(*d.Channel, *d.Number)
	case typeControl:
		if err := required(field{"channel", d.Channel}, field{"number", d.Number}, field{"value", d.Value}); err != nil {
			return nil, err
		}
		return keyboard.NewControl(*d.Channel, *d.Number, *d.Value)
	}
	return nil, fmt.Errorf("%w: key action type %q", ErrUnknownFormat, d.Type)
}

type field struct {
	name  string
	value *int
}

func required(fields ...field) error {
	for _, f := range fields {
		if f.value == nil {
			return fmt.Errorf("%w %q", errMissingField, f.name)
		}
	}
	return nil
}
