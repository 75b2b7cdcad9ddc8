package view

import (
	"testing"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

func newTestRoot() ObjectView {
	r := core.NewRegistry(bufpool.New())
	return NewObjectView(r.Create(layout.Empty))
}

func TestScalarWriteReadRoundTrip(t *testing.T) {
	v := newTestRoot()
	if err := Write[int32](v, "hp", 42, true); err != nil {
		t.Fatal(err)
	}
	got, err := Read[int32](v, "hp")
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestTryReadMissingFieldFails(t *testing.T) {
	v := newTestRoot()
	if _, ok := TryRead[int32](v, "nope"); ok {
		t.Fatal("expected TryRead to fail on a missing field")
	}
}

func TestDisposedViewFailsFurtherOps(t *testing.T) {
	v := newTestRoot()
	v.Dispose()
	if v.Exists() {
		t.Fatal("expected disposed view to report Exists()==false")
	}
	if _, err := Read[int32](v, "hp"); err == nil {
		t.Fatal("expected read on disposed view to fail")
	} else if k, ok := errs.KindOf(err); !ok || k != errs.ObjectDisposed {
		t.Fatalf("expected ObjectDisposed, got %v", err)
	}
}

func TestObjectViewGenerationMismatchAfterDispose(t *testing.T) {
	v := newTestRoot()
	child, err := v.Object("child", true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write[int32](child, "x", 1, true); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Delete("child"); err != nil {
		t.Fatal(err)
	}
	if child.Exists() {
		t.Fatal("expected the stale child handle to report Exists()==false after deletion")
	}
}

func TestStringRoundTrip(t *testing.T) {
	v := newTestRoot()
	if err := v.WriteString("name", "hello"); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadString("name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestWriteStringReplacesShorterPreviousValue(t *testing.T) {
	v := newTestRoot()
	if err := v.WriteString("name", "a much longer string than before"); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteString("name", "x"); err != nil {
		t.Fatal(err)
	}
	got, err := v.ReadString("name")
	if err != nil {
		t.Fatal(err)
	}
	if got != "x" {
		t.Fatalf("expected %q, got %q", "x", got)
	}
}

func TestEnsureReferenceArrayAndIndex(t *testing.T) {
	v := newTestRoot()
	if err := v.EnsureReferenceArray("children", 3); err != nil {
		t.Fatal(err)
	}
	elem, err := v.Index("children", 1, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Write[int32](elem, "hp", 7, true); err != nil {
		t.Fatal(err)
	}
	again, err := v.Index("children", 1, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.IsNull() {
		t.Fatal("expected previously materialized element to still resolve")
	}
	got, err := Read[int32](again, "hp")
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestEnsureReferenceArrayIsIdempotent(t *testing.T) {
	v := newTestRoot()
	if err := v.EnsureReferenceArray("children", 3); err != nil {
		t.Fatal(err)
	}
	if err := v.EnsureReferenceArray("children", 3); err != nil {
		t.Fatalf("expected re-calling EnsureReferenceArray on an existing field to be a no-op, got %v", err)
	}
}

func TestIndexOutOfRangeFails(t *testing.T) {
	v := newTestRoot()
	if err := v.EnsureReferenceArray("children", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Index("children", 5, true, nil); err == nil {
		t.Fatal("expected out-of-range index to fail")
	} else if k, ok := errs.KindOf(err); !ok || k != errs.IndexOutOfRange {
		t.Fatalf("expected IndexOutOfRange, got %v", err)
	}
}

func TestFieldViewNarrowing(t *testing.T) {
	v := newTestRoot()
	if err := Write[int32](v, "hp", 10, true); err != nil {
		t.Fatal(err)
	}
	f, err := v.Field("hp")
	if err != nil {
		t.Fatal(err)
	}
	k, ok := f.Kind()
	if !ok || k != types.I32 {
		t.Fatalf("expected I32 kind, got %v ok=%v", k, ok)
	}
	got, err := ReadScalarField[int32](f.AsScalar())
	if err != nil {
		t.Fatal(err)
	}
	if got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestMemberViewReadWrite(t *testing.T) {
	v := newTestRoot()
	av, err := v.SetArray("scores", types.I32, 3)
	if err != nil {
		t.Fatal(err)
	}
	m, err := av.Member(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteMember[int32](m, 99); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMember[int32](m)
	if err != nil {
		t.Fatal(err)
	}
	if got != 99 {
		t.Fatalf("expected 99, got %d", got)
	}
}

func TestReadScalarAnyReportsKind(t *testing.T) {
	v := newTestRoot()
	if err := Write[float32](v, "x", 1.5, true); err != nil {
		t.Fatal(err)
	}
	val, kind, err := v.ReadScalarAny("x")
	if err != nil {
		t.Fatal(err)
	}
	if kind != types.Float32 {
		t.Fatalf("expected Float32, got %v", kind)
	}
	if val.(float32) != 1.5 {
		t.Fatalf("expected 1.5, got %v", val)
	}
}

func TestFieldHeadersListsEveryField(t *testing.T) {
	v := newTestRoot()
	if err := Write[int32](v, "hp", 1, true); err != nil {
		t.Fatal(err)
	}
	if err := Write[int32](v, "mp", 2, true); err != nil {
		t.Fatal(err)
	}
	headers, err := v.FieldHeaders()
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(headers))
	}
}
