package query

import (
	"testing"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/view"
)

func newTestRoot() view.ObjectView {
	r := core.NewRegistry(bufpool.New())
	return view.NewObjectView(r.Create(layout.Empty))
}

func TestEnsureWriteReadScalar(t *testing.T) {
	root := newTestRoot()
	q := New(root).Location("stats").Location("hp")
	if err := EnsureScalar[int32](q.Ensure().Is(), 0).Err(); err != nil {
		t.Fatal(err)
	}
	if err := Write[int32](q, 42); err != nil {
		t.Fatal(err)
	}
	got, err := Read[int32](q)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestExpectObjectShortCircuitsOnMismatch(t *testing.T) {
	root := newTestRoot()
	q := New(root).Location("hp")
	if err := Write[int32](q, 5); err != nil {
		t.Fatal(err)
	}
	failed := New(root).Location("hp").Expect().Object()
	if !failed.Failed() {
		t.Fatal("expected Expect().Object() to fail against a scalar field")
	}
	if k, ok := errs.KindOf(failed.Err()); !ok || k != errs.InvalidState {
		t.Fatalf("expected InvalidState, got %v", failed.Err())
	}
	// a further chained call must not panic and must preserve the failure
	still := failed.Location("deeper")
	if !still.Failed() {
		t.Fatal("expected failure to persist through further chaining")
	}
}

func TestMakeObjectArrayAndIndex(t *testing.T) {
	root := newTestRoot()
	q := New(root).Location("children")
	if err := q.Make().ObjectArray(3).Err(); err != nil {
		t.Fatal(err)
	}
	elemQ := New(root).Location("children").Index(1).Location("hp")
	if err := Write[int32](elemQ, 7); err != nil {
		t.Fatal(err)
	}
	got, err := Read[int32](elemQ)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestExistHasReportsPresence(t *testing.T) {
	root := newTestRoot()
	if New(root).Location("hp").Exist().Has() {
		t.Fatal("expected Has() to report false before any write")
	}
	if err := Write[int32](New(root).Location("hp"), 1); err != nil {
		t.Fatal(err)
	}
	if !New(root).Location("hp").Exist().Has() {
		t.Fatal("expected Has() to report true after a write")
	}
}

func TestPathGetObjectByPathCreatesIntermediates(t *testing.T) {
	root := newTestRoot()
	leaf, err := GetObjectByPath(root, "a.b.c", true)
	if err != nil {
		t.Fatal(err)
	}
	if leaf.IsNull() {
		t.Fatal("expected a materialized leaf object")
	}
	if err := view.Write[int32](leaf, "x", 3, true); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPath[int32](root, "a.b.c.x")
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestWritePathAllocatesIntermediates(t *testing.T) {
	root := newTestRoot()
	if err := WritePath[int32](root, "world.player.hp", 88); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPath[int32](root, "world.player.hp")
	if err != nil {
		t.Fatal(err)
	}
	if got != 88 {
		t.Fatalf("expected 88, got %d", got)
	}
}

func TestWriteArrayPathReplacesLength(t *testing.T) {
	root := newTestRoot()
	if err := WriteArrayPath[int32](root, "scores", []int32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := WriteArrayPath[int32](root, "scores", []int32{9}); err != nil {
		t.Fatal(err)
	}
	leaf, err := GetObjectByPath(root, "", false)
	if err != nil {
		t.Fatal(err)
	}
	_ = leaf
	got, err := view.ReadArray[int32](root, "scores")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected [9], got %v", got)
	}
}

func TestWriteStringPathRoundTrip(t *testing.T) {
	root := newTestRoot()
	if err := WriteStringPath(root, "player.name", "Ada"); err != nil {
		t.Fatal(err)
	}
	leaf, err := GetObjectByPath(root, "player", false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := leaf.ReadString("name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Ada" {
		t.Fatalf("expected %q, got %q", "Ada", got)
	}
}

func TestParseRejectsEmptySegment(t *testing.T) {
	if _, err := Parse("a..b"); err == nil {
		t.Fatal("expected an empty path segment to be rejected")
	}
}

func TestParseEmptyPathIsRoot(t *testing.T) {
	segs, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected no segments for an empty path, got %v", segs)
	}
}

func TestPersistSnapshotsSegments(t *testing.T) {
	root := newTestRoot()
	base := New(root).Location("a").Location("b")
	persisted := base.Persist()
	extended := base.Location("c")
	if len(extended.segs) == len(persisted.segs) {
		t.Fatal("expected Persist to snapshot segments independently of further chaining")
	}
}
