package mirror

import (
	"errors"
	"sync"
	"testing"

	"github.com/james-see/accordionctl/pkg/codec"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/notify"
	"github.com/james-see/accordionctl/pkg/transport"
	"github.com/james-see/accordionctl/pkg/transport/transporttest"
)

type rig struct {
	mirror *Mirror
	tr     *transport.Transport
	in     *transporttest.In
	out    *transporttest.Out
	events *[]notify.Event
}

func newRig(t *testing.T) rig {
	t.Helper()
	in := &transporttest.In{}
	out := &transporttest.Out{}
	tr := transport.New()
	if err := tr.Connect(in, out); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	m := New(tr)
	var (
		mu     sync.Mutex
		events []notify.Event
	)
	m.Notifier().Subscribe(func(e notify.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	return rig{mirror: m, tr: tr, in: in, out: out, events: &events}
}

func filled(t *testing.T, layout keyboard.Layout, name string, pitch int) *keyboard.Keyboard {
	t.Helper()
	n, err := keyboard.NewNote(1, pitch, 90)
	if err != nil {
		t.Fatal(err)
	}
	k, err := keyboard.NewFilled(layout, name, n)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// push delivers k as the device would, with the given origin byte
func (r rig) push(t *testing.T, origin byte, k *keyboard.Keyboard) {
	t.Helper()
	body, err := codec.EncodeKeyboard(k)
	if err != nil {
		t.Fatal(err)
	}
	r.in.DeliverPayload(append([]byte{origin}, body...))
}

func TestFetchThenDuplicatePushesKeepLatest(t *testing.T) {
	r := newRig(t)
	if err := r.mirror.FetchStored(); err != nil {
		t.Fatalf("FetchStored() error = %v", err)
	}

	first := filled(t, keyboard.LayoutRight81, "melody", 60)
	second := filled(t, keyboard.LayoutRight81, "melody", 72)
	r.push(t, 0x01, first)
	r.push(t, 0x01, second)

	stored := r.mirror.Stored()
	if len(stored) != 1 {
		t.Fatalf("len(Stored()) = %d, want 1", len(stored))
	}
	if !stored[0].Equal(second) {
		t.Error("Stored()[0] is not the latest push")
	}

	// a second fetch with the same answer does not accumulate
	_ = r.mirror.FetchStored()
	if n := len(r.mirror.Stored()); n != 0 {
		t.Fatalf("len(Stored()) after fetch = %d, want 0", n)
	}
	r.push(t, 0x01, second)
	if n := len(r.mirror.Stored()); n != 1 {
		t.Errorf("len(Stored()) = %d, want 1", n)
	}
}

func TestSameNameDifferentLayoutsAreDistinct(t *testing.T) {
	r := newRig(t)
	r.push(t, 0x01, filled(t, keyboard.LayoutRight81, "default", 60))
	r.push(t, 0x01, filled(t, keyboard.LayoutLeft96, "default", 40))
	if n := len(r.mirror.Stored()); n != 2 {
		t.Errorf("len(Stored()) = %d, want 2", n)
	}
}

func TestFetchSendsRequest(t *testing.T) {
	r := newRig(t)
	_ = r.mirror.FetchStored()
	payloads := r.out.Payloads()
	if len(payloads) != 1 || len(payloads[0]) != 1 || payloads[0][0] != byte(codec.CmdFetch) {
		t.Errorf("sent %v, want one fetch request", payloads)
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	r := newRig(t)
	k := filled(t, keyboard.LayoutLeft96, "bass", 40)
	r.push(t, 0x01, k)
	r.push(t, 0x02, k)

	stored := r.mirror.Stored()
	stored[0].Name = "mutated"
	_ = stored[0].Set(1, nil)

	cur := r.mirror.Current(keyboard.SideLeft)
	cur.Name = "mutated"

	if got := r.mirror.Stored()[0]; !got.Equal(k) {
		t.Error("mutating a Stored() snapshot changed the mirror")
	}
	if got := r.mirror.Current(keyboard.SideLeft); !got.Equal(k) {
		t.Error("mutating a Current() snapshot changed the mirror")
	}
}

func TestActivePushUpdatesSide(t *testing.T) {
	r := newRig(t)
	left := filled(t, keyboard.LayoutLeft96, "bass", 40)
	right := filled(t, keyboard.LayoutRight81, "melody", 60)

	if r.mirror.Current(keyboard.SideLeft) != nil {
		t.Fatal("Current(left) should start nil")
	}
	r.push(t, 0x02, left)
	r.push(t, 0x03, right)
	r.push(t, 0x02, left)

	if !r.mirror.Current(keyboard.SideLeft).Equal(left) {
		t.Error("Current(left) mismatch")
	}
	if !r.mirror.Current(keyboard.SideRight).Equal(right) {
		t.Error("Current(right) mismatch")
	}
	if len(r.mirror.Stored()) != 0 {
		t.Error("active pushes must not touch the stored list")
	}

	want := []notify.Topic{notify.TopicCurrentLeft, notify.TopicCurrentRight}
	if len(*r.events) != len(want) {
		t.Fatalf("events = %v, want %v", *r.events, want)
	}
	for i, e := range *r.events {
		if e.Topic != want[i] {
			t.Errorf("event %d = %v, want %v", i, e.Topic, want[i])
		}
	}
}

func TestKnown(t *testing.T) {
	r := newRig(t)
	r.push(t, 0x01, filled(t, keyboard.LayoutRight81, "a", 60))
	r.push(t, 0x02, filled(t, keyboard.LayoutRight81, "b", 61))
	r.push(t, 0x02, filled(t, keyboard.LayoutLeft96, "c", 62))

	known := r.mirror.Known()
	names := make([]string, len(known))
	for i, k := range known {
		names[i] = k.Name
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "c" || names[2] != "b" {
		t.Errorf("Known() names = %v, want [a c b]", names)
	}
}

func TestPushCurrentWritesThrough(t *testing.T) {
	r := newRig(t)
	k := filled(t, keyboard.LayoutRight81, "live", 64)
	if err := r.mirror.PushCurrent(k); err != nil {
		t.Fatalf("PushCurrent() error = %v", err)
	}
	k.Name = "changed by caller"

	cur := r.mirror.Current(keyboard.SideRight)
	if cur == nil || cur.Name != "live" {
		t.Fatalf("Current(right) = %v, want keyboard named live", cur)
	}
	if r.tr.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", r.tr.Pending())
	}

	r.in.Ack()
	want, _ := codec.SetCurrentRequest(cur)
	payloads := r.out.Payloads()
	if got := payloads[len(payloads)-1]; string(got) != string(want) {
		t.Error("set-current payload mismatch after ack")
	}
}

func TestStoreDeleteRenameWriteThrough(t *testing.T) {
	r := newRig(t)
	a := filled(t, keyboard.LayoutLeft96, "a", 40)
	b := filled(t, keyboard.LayoutLeft96, "b", 41)

	if err := r.mirror.Store(a); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := r.mirror.Store(b); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	a2 := filled(t, keyboard.LayoutLeft96, "a", 50)
	_ = r.mirror.Store(a2)

	stored := r.mirror.Stored()
	if len(stored) != 2 || !stored[0].Equal(a2) {
		t.Fatalf("Store() should replace by (layout, name), got %d entries", len(stored))
	}

	if err := r.mirror.Rename(keyboard.LayoutLeft96, "a", "c"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	stored = r.mirror.Stored()
	if stored[0].Name != "c" || stored[1].Name != "b" {
		t.Errorf("after Rename names = %q, %q, want c, b", stored[0].Name, stored[1].Name)
	}

	// renaming onto an existing name leaves one entry
	_ = r.mirror.Rename(keyboard.LayoutLeft96, "c", "b")
	stored = r.mirror.Stored()
	if len(stored) != 1 || stored[0].Name != "b" {
		t.Fatalf("Rename onto existing name left %d entries", len(stored))
	}
	if key, _ := stored[0].Get(1); key.(keyboard.Note).Pitch() != 50 {
		t.Errorf("renamed entry holds pitch %d, want 50 from the renamed keyboard", key.(keyboard.Note).Pitch())
	}

	if err := r.mirror.Delete(keyboard.LayoutLeft96, "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n := len(r.mirror.Stored()); n != 0 {
		t.Errorf("len(Stored()) after Delete = %d, want 0", n)
	}

	// every command went through the queue
	if got := r.tr.Pending(); got != 6 {
		t.Errorf("Pending() = %d, want 6", got)
	}
}

func TestWriteThroughSkippedOnSendFailure(t *testing.T) {
	r := newRig(t)
	_ = r.tr.Close()

	if err := r.mirror.Store(filled(t, keyboard.LayoutRight81, "x", 60)); err == nil {
		t.Fatal("Store() expected error on closed transport")
	}
	if len(r.mirror.Stored()) != 0 {
		t.Error("failed Store() must not update the mirror")
	}

	partial, _ := keyboard.New(keyboard.LayoutLeft96, "partial")
	r2 := newRig(t)
	if err := r2.mirror.PushCurrent(partial); !errors.Is(err, codec.ErrIncomplete) {
		t.Errorf("PushCurrent(partial) error = %v, want ErrIncomplete", err)
	}
	if r2.mirror.Current(keyboard.SideLeft) != nil {
		t.Error("failed PushCurrent() must not update the mirror")
	}
}

func TestStoreRetryAfterFailedAnnounceSendsOnce(t *testing.T) {
	r := newRig(t)
	k := filled(t, keyboard.LayoutRight81, "melody", 60)

	r.out.SendErr = errors.New("cable unplugged")
	if err := r.mirror.Store(k); err == nil {
		t.Fatal("Store() expected announce error")
	}
	if len(r.mirror.Stored()) != 0 {
		t.Error("failed Store() must not update the mirror")
	}

	r.out.SendErr = nil
	if err := r.mirror.Store(k); err != nil {
		t.Fatalf("Store() retry error = %v", err)
	}
	r.in.Ack()
	r.in.Ack()

	stores := 0
	for _, p := range r.out.Payloads() {
		if p[0] == byte(codec.CmdStore) {
			stores++
		}
	}
	if stores != 1 {
		t.Errorf("device received %d store payloads, want 1", stores)
	}
	if len(r.mirror.Stored()) != 1 {
		t.Errorf("Stored() has %d keyboards, want 1", len(r.mirror.Stored()))
	}
}

func TestConcurrentReadersAndPushes(t *testing.T) {
	r := newRig(t)
	left := filled(t, keyboard.LayoutLeft96, "bass", 40)
	right := filled(t, keyboard.LayoutRight81, "melody", 60)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.push(t, 0x01, left)
				r.push(t, 0x02, right)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				for _, k := range r.mirror.Known() {
					if !k.Complete() {
						t.Error("reader observed a partially written keyboard")
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if n := len(r.mirror.Stored()); n != 1 {
		t.Errorf("len(Stored()) = %d, want 1", n)
	}
}
