package core

import (
	"testing"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

func newTestRegistry() *Registry {
	return NewRegistry(bufpool.New())
}

func TestScalarReadWriteRoundTrip(t *testing.T) {
	r := newTestRegistry()
	l := layout.NewBuilder("t").AddScalar("hp", types.I32).MustBuild()
	c := r.Create(l)

	if err := WriteScalar[int32](c, "hp", 42, false); err != nil {
		t.Fatal(err)
	}
	v, err := ReadScalar[int32](c, "hp")
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestImplicitWideningRead(t *testing.T) {
	r := newTestRegistry()
	l := layout.NewBuilder("t").AddScalar("hp", types.I32).MustBuild()
	c := r.Create(l)
	if err := WriteScalar[int32](c, "hp", -7, false); err != nil {
		t.Fatal(err)
	}
	v, err := ReadScalar[int64](c, "hp")
	if err != nil {
		t.Fatal(err)
	}
	if v != -7 {
		t.Fatalf("expected widened read of -7, got %d", v)
	}
}

func TestWriteWithoutReschemaFailsOnMissingField(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	err := WriteScalar[int32](c, "hp", 1, false)
	if err == nil {
		t.Fatal("expected error writing new field with allow_reschema=false")
	}
	if k, ok := errs.KindOf(err); !ok || k != errs.TypeMismatch {
		t.Fatalf("expected TypeMismatch kind, got %v", err)
	}
}

func TestWriteWithReschemaAddsField(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	if err := WriteScalar[int32](c, "hp", 9, true); err != nil {
		t.Fatal(err)
	}
	v, ok := TryReadScalar[int32](c, "hp")
	if !ok || v != 9 {
		t.Fatalf("expected hp=9 after reschema-add, got %d ok=%v", v, ok)
	}
}

func TestSameSizeReassignmentDoesNotReschema(t *testing.T) {
	r := newTestRegistry()
	l := layout.NewBuilder("t").AddScalar("x", types.I32).MustBuild()
	c := r.Create(l)
	before := c.layout.Stride()
	if err := WriteScalar[float32](c, "x", 1.5, false); err != nil {
		t.Fatal(err)
	}
	if c.layout.Stride() != before {
		t.Fatalf("same-size reassignment should not change stride")
	}
	v, err := ReadScalar[float32](c, "x")
	if err != nil || v != 1.5 {
		t.Fatalf("expected 1.5, got %v err=%v", v, err)
	}
}

func TestWidenReschemaPreservesSiblingFields(t *testing.T) {
	r := newTestRegistry()
	l := layout.NewBuilder("t").AddScalar("hp", types.I8).AddScalar("mp", types.I32).MustBuild()
	c := r.Create(l)
	if err := WriteScalar[int8](c, "hp", 5, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int32](c, "mp", 100, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int64](c, "hp", 1 << 40, true); err != nil {
		t.Fatal(err)
	}
	mp, err := ReadScalar[int32](c, "mp")
	if err != nil || mp != 100 {
		t.Fatalf("sibling field mp corrupted by reschema: %v err=%v", mp, err)
	}
	hp, err := ReadScalar[int64](c, "hp")
	if err != nil || hp != 1<<40 {
		t.Fatalf("expected widened hp, got %v err=%v", hp, err)
	}
}

func TestDeleteMissingFieldIsNoopAndReportsZero(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	n, err := c.Delete("nope")
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestGetObjectMaterializesAndReusesChild(t *testing.T) {
	r := newTestRegistry()
	root := r.Create(layout.Empty)
	child, err := root.GetObject("child", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	again, err := root.GetObject("child", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID() != child.ID() {
		t.Fatalf("expected the same child on repeated GetObject, got %d vs %d", again.ID(), child.ID())
	}
	link, ok := r.ParentOf(child.ID())
	if !ok || link.ParentID != root.ID() || link.Field != "child" {
		t.Fatalf("expected parent link to root.child, got %+v ok=%v", link, ok)
	}
}

func TestDeleteReferenceCascadesDispose(t *testing.T) {
	r := newTestRegistry()
	root := r.Create(layout.Empty)
	child, err := root.GetObject("child", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	grand, err := child.GetObject("grand", true, nil)
	if err != nil {
		t.Fatal(err)
	}

	var disposed []uint64
	if _, err := child.Subscribe(events.AnyField, func(ev events.Event) {
		if ev.Kind == events.Dispose {
			disposed = append(disposed, child.ID())
		}
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := grand.Subscribe(events.AnyField, func(ev events.Event) {
		if ev.Kind == events.Dispose {
			disposed = append(disposed, grand.ID())
		}
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := root.Delete("child"); err != nil {
		t.Fatal(err)
	}
	if len(disposed) != 2 {
		t.Fatalf("expected exactly 2 dispose notifications, got %d: %v", len(disposed), disposed)
	}
	if !child.IsDisposed() || !grand.IsDisposed() {
		t.Fatal("expected both child and grand disposed")
	}
	if _, ok := r.Get(child.ID()); ok {
		t.Fatal("disposed child must no longer resolve via registry")
	}
}

func TestBubbledWriteEventCarriesDottedPath(t *testing.T) {
	r := newTestRegistry()
	root := r.Create(layout.Empty)
	child, err := root.GetObject("child", true, nil)
	if err != nil {
		t.Fatal(err)
	}

	var gotPath string
	if _, err := root.Subscribe(events.AnyField, func(ev events.Event) {
		if ev.Kind == events.Write {
			gotPath = ev.Path
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int32](child, "hp", 3, true); err != nil {
		t.Fatal(err)
	}
	if gotPath != "child.hp" {
		t.Fatalf("expected bubbled path %q, got %q", "child.hp", gotPath)
	}
}

func TestFieldSubscriptionAutoInvalidatesOnDelete(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.NewBuilder("t").AddScalar("hp", types.I32).MustBuild())

	var deletes int
	if _, err := c.Subscribe(events.FieldKey("hp"), func(ev events.Event) {
		if ev.Kind == events.Delete {
			deletes++
		}
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Delete("hp"); err != nil {
		t.Fatal(err)
	}
	// Re-add "hp" and write it: the old subscription must not fire again.
	if err := WriteScalar[int32](c, "hp", 1, true); err != nil {
		t.Fatal(err)
	}
	if deletes != 1 {
		t.Fatalf("expected exactly 1 delete notification, got %d", deletes)
	}
}

func TestRenamePreservesFieldSubscription(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.NewBuilder("t").AddScalar("hp", types.I32).MustBuild())

	var writes int
	if _, err := c.Subscribe(events.FieldKey("hp"), func(ev events.Event) {
		if ev.Kind == events.Write {
			writes++
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.Rename("hp", "health"); err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int32](c, "health", 1, false); err != nil {
		t.Fatal(err)
	}
	if writes != 1 {
		t.Fatalf("expected the subscription to follow the rename and fire once, got %d", writes)
	}
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.NewBuilder("t").AddScalar("hp", types.I32).MustBuild())
	var n int
	sub, err := c.Subscribe(events.FieldKey("hp"), func(events.Event) { n++ })
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int32](c, "hp", 1, false); err != nil {
		t.Fatal(err)
	}
	sub.Cancel()
	if err := WriteScalar[int32](c, "hp", 2, false); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 delivery before cancel, got %d", n)
	}
}

func TestReentrancyGuardBoundsRecursiveWrites(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.NewBuilder("t").AddScalar("n", types.I32).MustBuild())
	calls := 0
	_, err := c.Subscribe(events.FieldKey("n"), func(ev events.Event) {
		calls++
		if calls > maxReentry+2 {
			return
		}
		cur, _ := TryReadScalar[int32](c, "n")
		_ = WriteScalar[int32](c, "n", cur+1, false)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteScalar[int32](c, "n", 1, false); err != nil {
		t.Fatal(err)
	}
	if calls > maxReentry+1 {
		t.Fatalf("reentrancy guard did not bound recursive dispatch: calls=%d", calls)
	}
}

func TestDisposedContainerRejectsOperations(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	r.Unregister(c)
	if err := WriteScalar[int32](c, "hp", 1, true); err == nil {
		t.Fatal("expected error writing to disposed container")
	} else if k, ok := errs.KindOf(err); !ok || k != errs.ObjectDisposed {
		t.Fatalf("expected ObjectDisposed, got %v", err)
	}
}
