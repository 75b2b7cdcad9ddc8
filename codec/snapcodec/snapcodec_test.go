package snapcodec

import (
	"testing"

	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/storage"
	"github.com/scenetree/scenetree/types"
	"github.com/scenetree/scenetree/view"
)

func buildSample(t *testing.T) *storage.Storage {
	t.Helper()
	s := storage.New()
	root := s.Root()
	if err := view.Write[int32](root, "hp", 42, true); err != nil {
		t.Fatal(err)
	}
	if err := root.WriteString("name", "Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.SetArray("scores", types.I32, 3); err != nil {
		t.Fatal(err)
	}
	if err := root.EnsureReferenceArray("children", 2); err != nil {
		t.Fatal(err)
	}
	child, err := root.Index("children", 0, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := view.Write[int32](child, "mp", 7, true); err != nil {
		t.Fatal(err)
	}
	if err := root.WriteBlob("payload", []byte("hello"), true); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRoundTripPreservesFieldValues(t *testing.T) {
	s := buildSample(t)
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	restored := storage.New()
	if err := Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}

	hp, err := view.Read[int32](restored.Root(), "hp")
	if err != nil {
		t.Fatal(err)
	}
	if hp != 42 {
		t.Fatalf("expected hp=42, got %d", hp)
	}
	name, err := restored.Root().ReadString("name")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Ada" {
		t.Fatalf("expected name=Ada, got %q", name)
	}
	child, err := restored.Root().Index("children", 0, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	mp, err := view.Read[int32](child, "mp")
	if err != nil {
		t.Fatal(err)
	}
	if mp != 7 {
		t.Fatalf("expected mp=7, got %d", mp)
	}
	blob, err := restored.Root().ReadBlob("payload")
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", blob)
	}
}

func TestRoundTripAssignsFreshIDs(t *testing.T) {
	s := buildSample(t)
	originalRootID := s.Root().ID()
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	restored := storage.New(storage.WithRegistry(s.Registry()))
	if err := Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	if restored.Root().ID() == originalRootID {
		t.Fatal("expected Unmarshal to never reuse the original root's ID")
	}
}

func TestAbsentReferenceSlotRoundTrips(t *testing.T) {
	s := storage.New()
	if err := s.Root().EnsureReferenceArray("children", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Root().Index("children", 1, true, nil); err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	restored := storage.New()
	if err := Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	present, err := restored.Root().Index("children", 1, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if present.IsNull() {
		t.Fatal("expected the materialized slot to round-trip present")
	}
	absent, err := restored.Root().Index("children", 0, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !absent.IsNull() {
		t.Fatal("expected the never-materialized slot to round-trip absent")
	}
}

func TestTruncatedSnapshotIsIODecode(t *testing.T) {
	s := buildSample(t)
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	restored := storage.New()
	err = Unmarshal(data[:len(data)-3], restored)
	if err == nil {
		t.Fatal("expected a truncated snapshot to fail")
	}
	if k, ok := errs.KindOf(err); !ok || k != errs.IODecode {
		t.Fatalf("expected IODecode, got %v", err)
	}
}

func TestUnsupportedVersionIsIODecode(t *testing.T) {
	s := buildSample(t)
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = formatVersion + 1

	restored := storage.New()
	err = Unmarshal(data, restored)
	if err == nil {
		t.Fatal("expected an unsupported version byte to fail")
	}
	if k, ok := errs.KindOf(err); !ok || k != errs.IODecode {
		t.Fatalf("expected IODecode, got %v", err)
	}
}

func TestEmptySnapshotIsIODecode(t *testing.T) {
	restored := storage.New()
	err := Unmarshal(nil, restored)
	if err == nil {
		t.Fatal("expected an empty snapshot to fail")
	}
	if k, ok := errs.KindOf(err); !ok || k != errs.IODecode {
		t.Fatalf("expected IODecode, got %v", err)
	}
}
