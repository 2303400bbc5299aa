package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/james-see/accordionctl/pkg/keyboard"
)

func mustNote(t *testing.T, ch, pitch, vel int) keyboard.Note {
	t.Helper()
	n, err := keyboard.NewNote(ch, pitch, vel)
	if err != nil {
		t.Fatalf("NewNote() error = %v", err)
	}
	return n
}

// fullKeyboard returns a keyboard where every key holds a distinct action
func fullKeyboard(t *testing.T, layout keyboard.Layout, name string) *keyboard.Keyboard {
	t.Helper()
	k, err := keyboard.New(layout, name)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 1; i <= k.Size(); i++ {
		var a keyboard.KeyAction
		switch i % 3 {
		case 0:
			a, err = keyboard.NewNote(i%16, i, 127-i)
		case 1:
			a, err = keyboard.NewProgram(i%16, i)
		default:
			a, err = keyboard.NewControl(i%16, i, i/2)
		}
		if err != nil {
			t.Fatalf("building key %d: %v", i, err)
		}
		if err := k.Set(i, a); err != nil {
			t.Fatalf("Set(%d) error = %v", i, err)
		}
	}
	return k
}

func TestKeyActionRoundTrip(t *testing.T) {
	prog, _ := keyboard.NewProgram(15, 127)
	ctl, _ := keyboard.NewControl(9, 7, 0)

	tests := []struct {
		name   string
		action keyboard.KeyAction
		want   []byte
	}{
		{"note", mustNote(t, 0, 60, 100), []byte{0x01, 0x00, 0x3C, 0x64}},
		{"note zero", mustNote(t, 0, 0, 0), []byte{0x01, 0x00, 0x00, 0x00}},
		{"program", prog, []byte{0x02, 0x0F, 0x7F}},
		{"control", ctl, []byte{0x03, 0x09, 0x07, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeKeyAction(tt.action)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("EncodeKeyAction() = % X, want % X", got, tt.want)
			}
			// trailing bytes belong to the next action and must not be consumed
			decoded, n, err := DecodeKeyAction(append(got, 0x01, 0x02))
			if err != nil {
				t.Fatalf("DecodeKeyAction() error = %v", err)
			}
			if decoded != tt.action || n != len(tt.want) {
				t.Errorf("DecodeKeyAction() = %v, %d, want %v, %d", decoded, n, tt.action, len(tt.want))
			}
		})
	}
}

func TestEncodeKeyActionPointers(t *testing.T) {
	n := mustNote(t, 0, 60, 100)
	prog, _ := keyboard.NewProgram(15, 127)
	ctl, _ := keyboard.NewControl(9, 7, 0)

	tests := []struct {
		name string
		ptr  keyboard.KeyAction
		val  keyboard.KeyAction
	}{
		{"note", &n, n},
		{"program", &prog, prog},
		{"control", &ctl, ctl},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, want := EncodeKeyAction(tt.ptr), EncodeKeyAction(tt.val); !bytes.Equal(got, want) {
				t.Errorf("EncodeKeyAction(pointer) = % X, want % X", got, want)
			}
		})
	}
}

func TestDecodeKeyActionErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrShortBuffer},
		{"unknown tag", []byte{0x07, 0x00, 0x00, 0x00}, ErrUnknownTag},
		{"short note", []byte{0x01, 0x00, 0x3C}, ErrShortBuffer},
		{"short program", []byte{0x02, 0x00}, ErrShortBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, n, err := DecodeKeyAction(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeKeyAction() error = %v, want %v", err, tt.wantErr)
			}
			if a != nil || n != 0 {
				t.Errorf("DecodeKeyAction() = %v, %d, want nil, 0", a, n)
			}
		})
	}

	_, _, err := DecodeKeyAction([]byte{0x01, 0x10, 0x3C, 0x64})
	var verr *keyboard.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("DecodeKeyAction(channel 16) error = %v, want ValidationError", err)
	}
}

func TestTraversalOrderIsPermutation(t *testing.T) {
	for _, layout := range []keyboard.Layout{keyboard.LayoutRight81, keyboard.LayoutLeft96} {
		t.Run(layout.String(), func(t *testing.T) {
			order := TraversalOrder(layout)
			if len(order) != layout.Size() {
				t.Fatalf("len(TraversalOrder()) = %d, want %d", len(order), layout.Size())
			}
			seen := make(map[int]bool, len(order))
			for step, slot := range order {
				if slot < 0 || slot >= layout.Size() {
					t.Fatalf("step %d visits slot %d, out of range", step, slot)
				}
				if seen[slot] {
					t.Fatalf("step %d revisits slot %d", step, slot)
				}
				seen[slot] = true
			}
		})
	}
}

func TestTraversalOrderKnownSteps(t *testing.T) {
	tests := []struct {
		layout keyboard.Layout
		step   int
		slot   int
	}{
		{keyboard.LayoutRight81, 0, 65},
		{keyboard.LayoutRight81, 1, 16},
		{keyboard.LayoutRight81, 4, 66},
		{keyboard.LayoutRight81, 5, 0},
		{keyboard.LayoutRight81, 6, 17},
		{keyboard.LayoutRight81, 10, 1},
		{keyboard.LayoutRight81, 74, 80},
		{keyboard.LayoutRight81, 75, 14},
		{keyboard.LayoutRight81, 80, 32},
		{keyboard.LayoutLeft96, 0, 0},
		{keyboard.LayoutLeft96, 1, 16},
		{keyboard.LayoutLeft96, 5, 80},
		{keyboard.LayoutLeft96, 6, 1},
		{keyboard.LayoutLeft96, 94, 79},
		{keyboard.LayoutLeft96, 95, 95},
	}

	for _, tt := range tests {
		order := TraversalOrder(tt.layout)
		if order[tt.step] != tt.slot {
			t.Errorf("TraversalOrder(%s)[%d] = %d, want %d", tt.layout, tt.step, order[tt.step], tt.slot)
		}
	}
}

func TestTraversalOrderReturnsCopy(t *testing.T) {
	order := TraversalOrder(keyboard.LayoutLeft96)
	order[0] = 42
	if TraversalOrder(keyboard.LayoutLeft96)[0] != 0 {
		t.Error("TraversalOrder() exposed the shared table")
	}
}

func TestKeyboardRoundTrip(t *testing.T) {
	tests := []struct {
		layout keyboard.Layout
		name   string
	}{
		{keyboard.LayoutRight81, "Melody"},
		{keyboard.LayoutLeft96, "Bässe ♪"},
		{keyboard.LayoutLeft96, ""},
	}

	for _, tt := range tests {
		t.Run(tt.layout.String()+"/"+tt.name, func(t *testing.T) {
			k := fullKeyboard(t, tt.layout, tt.name)
			data, err := EncodeKeyboard(k)
			if err != nil {
				t.Fatalf("EncodeKeyboard() error = %v", err)
			}
			if data[0] != byte(tt.layout) {
				t.Errorf("layout tag = 0x%02X, want 0x%02X", data[0], byte(tt.layout))
			}
			got, err := DecodeKeyboard(data)
			if err != nil {
				t.Fatalf("DecodeKeyboard() error = %v", err)
			}
			if !got.Equal(k) {
				t.Error("DecodeKeyboard(EncodeKeyboard(k)) != k")
			}
		})
	}
}

func TestEncodeKeyboardWireOrder(t *testing.T) {
	k := fullKeyboard(t, keyboard.LayoutRight81, "A")
	data, err := EncodeKeyboard(k)
	if err != nil {
		t.Fatalf("EncodeKeyboard() error = %v", err)
	}
	// tag, "QQ==", terminator, then the action of physical key 66 comes first
	header := []byte{0x01, 'Q', 'Q', '=', '=', 0x00}
	if !bytes.Equal(data[:len(header)], header) {
		t.Fatalf("header = % X, want % X", data[:len(header)], header)
	}
	first, _ := k.Get(66)
	want := EncodeKeyAction(first)
	if !bytes.Equal(data[len(header):len(header)+len(want)], want) {
		t.Errorf("first action = % X, want % X", data[len(header):len(header)+len(want)], want)
	}
}

func TestEncodeIncompleteKeyboard(t *testing.T) {
	k, _ := keyboard.New(keyboard.LayoutLeft96, "partial")
	if _, err := EncodeKeyboard(k); !errors.Is(err, ErrIncomplete) {
		t.Errorf("EncodeKeyboard() error = %v, want ErrIncomplete", err)
	}
}

func TestDecodeKeyboardErrors(t *testing.T) {
	valid, err := EncodeKeyboard(fullKeyboard(t, keyboard.LayoutRight81, "ok"))
	if err != nil {
		t.Fatalf("EncodeKeyboard() error = %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", []byte{}, ErrShortBuffer},
		{"unknown layout", []byte{0x03, 'Q', 'Q', '=', '=', 0x00}, ErrUnknownLayout},
		{"missing terminator", []byte{0x01, 'Q', 'Q', '=', '='}, ErrMissingTerminator},
		{"name only", []byte{0x02}, ErrMissingTerminator},
		{"bad base64", []byte{0x01, '!', '!', 0x00}, ErrInvalidName},
		{"truncated body", valid[:len(valid)-2], ErrShortBuffer},
		{"no actions", []byte{0x01, 'Q', 'Q', '=', '=', 0x00}, ErrShortBuffer},
		{"unknown action tag", []byte{0x01, 'Q', 'Q', '=', '=', 0x00, 0x09, 0x00, 0x00}, ErrUnknownTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := DecodeKeyboard(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeKeyboard() error = %v, want %v", err, tt.wantErr)
			}
			if k != nil {
				t.Error("DecodeKeyboard() returned a keyboard on error")
			}
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Errorf("DecodeKeyboard() error type = %T, want *DecodeError", err)
			} else if derr.Offset > len(tt.data) {
				t.Errorf("DecodeError.Offset = %d beyond buffer of %d bytes", derr.Offset, len(tt.data))
			}
		})
	}
}

func TestDecodeKeyboardIgnoresTrailingBytes(t *testing.T) {
	k := fullKeyboard(t, keyboard.LayoutLeft96, "tail")
	data, _ := EncodeKeyboard(k)
	got, err := DecodeKeyboard(append(data, 0x00, 0x7F))
	if err != nil {
		t.Fatalf("DecodeKeyboard() error = %v", err)
	}
	if !got.Equal(k) {
		t.Error("trailing bytes changed the decoded keyboard")
	}
}

func TestRequests(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"fetch", FetchRequest(), []byte{0x00}},
		{"announce", Announce(), []byte{0x0F}},
		{"delete", DeleteRequest(keyboard.LayoutLeft96, "ab"), []byte{0x04, 0x02, 'Y', 'W', 'I', '=', 0x00}},
		{"rename", RenameRequest(keyboard.LayoutRight81, "a", "b"),
			[]byte{0x08, 0x01, 'Y', 'Q', '=', '=', 0x00, 'Y', 'g', '=', '=', 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("%s = % X, want % X", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestStoreAndSetCurrentRequests(t *testing.T) {
	k := fullKeyboard(t, keyboard.LayoutLeft96, "bass")
	body, _ := EncodeKeyboard(k)

	store, err := StoreRequest(k)
	if err != nil {
		t.Fatalf("StoreRequest() error = %v", err)
	}
	if store[0] != byte(CmdStore) || !bytes.Equal(store[1:], body) {
		t.Errorf("StoreRequest() = % X..., want 01 followed by the keyboard", store[:4])
	}

	current, err := SetCurrentRequest(k)
	if err != nil {
		t.Fatalf("SetCurrentRequest() error = %v", err)
	}
	if current[0] != byte(CmdSetCurrent) || !bytes.Equal(current[1:], body) {
		t.Errorf("SetCurrentRequest() = % X..., want 02 followed by the keyboard", current[:4])
	}
}

func TestParseMessage(t *testing.T) {
	k := fullKeyboard(t, keyboard.LayoutRight81, "pushed")
	body, _ := EncodeKeyboard(k)

	tests := []struct {
		name       string
		payload    []byte
		wantKind   MessageKind
		wantOrigin Origin
	}{
		{"ack", []byte{0x0F}, MessageAck, 0},
		{"fetch ack", []byte{0x00}, MessageFetchAck, 0},
		{"stored", append([]byte{0x01}, body...), MessageKeyboard, OriginStored},
		{"active", append([]byte{0x02}, body...), MessageKeyboard, OriginActive},
		{"both bits", append([]byte{0x03}, body...), MessageKeyboard, OriginActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage(tt.payload)
			if err != nil {
				t.Fatalf("ParseMessage() error = %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("ParseMessage().Kind = %v, want %v", msg.Kind, tt.wantKind)
			}
			if tt.wantKind != MessageKeyboard {
				return
			}
			if msg.Origin != tt.wantOrigin {
				t.Errorf("ParseMessage().Origin = %v, want %v", msg.Origin, tt.wantOrigin)
			}
			if !msg.Keyboard.Equal(k) {
				t.Error("ParseMessage().Keyboard differs from the pushed keyboard")
			}
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"empty", nil, ErrShortBuffer},
		{"no origin bits", []byte{0x04, 0x01}, ErrUnknownCommand},
		{"bad layout", []byte{0x01, 0x05, 0x00}, ErrUnknownLayout},
		{"partial", []byte{0x01, 0x01, 'Q'}, ErrMissingTerminator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage(tt.payload); !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrameUnframe(t *testing.T) {
	framed := Frame([]byte{0x00})
	want := []byte{0xF0, 0x7D, 0x00, 0xF7}
	if !bytes.Equal(framed, want) {
		t.Fatalf("Frame() = % X, want % X", framed, want)
	}
	if err := ValidateSyx(framed); err != nil {
		t.Errorf("ValidateSyx() error = %v", err)
	}

	payload, err := Unframe(framed)
	if err != nil {
		t.Fatalf("Unframe() error = %v", err)
	}
	if !bytes.Equal(payload, []byte{0x00}) {
		t.Errorf("Unframe() = % X, want 00", payload)
	}

	if _, err := Unframe([]byte{0xF0, 0x41, 0x10, 0xF7}); !errors.Is(err, ErrForeignSysEx) {
		t.Errorf("Unframe(foreign) error = %v, want ErrForeignSysEx", err)
	}
	if _, err := Unframe([]byte{0x90, 0x3C, 0x64}); err == nil {
		t.Error("Unframe(note on) expected error")
	}
}

func TestValidateSyx(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid", []byte{0xF0, 0x7D, 0x0F, 0xF7}, false},
		{"too short", []byte{0xF0, 0xF7}, true},
		{"no start", []byte{0x00, 0x7D, 0x0F, 0xF7}, true},
		{"no end", []byte{0xF0, 0x7D, 0x0F, 0x00}, true},
		{"8-bit data", []byte{0xF0, 0x7D, 0x80, 0xF7}, true},
		{"foreign id", []byte{0xF0, 0x41, 0x0F, 0xF7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSyx(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSyx() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
