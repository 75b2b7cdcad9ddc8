package layout

import (
	"testing"

	"github.com/scenetree/scenetree/types"
)

// TestOffsetsAlignedAndMonotonic exercises spec invariant P4/I3: offsets are
// non-overlapping, aligned, and monotonically increasing.
func TestOffsetsAlignedAndMonotonic(t *testing.T) {
	l, err := NewBuilder("t").
		AddScalar("hp", types.I32).
		AddInlineArray("speeds", types.Float32, 4).
		AddScalar("flag", types.Bool).
		AddReference("child").
		Build()
	if err != nil {
		t.Fatal(err)
	}

	fields := l.Fields()
	prevEnd := -1
	for _, f := range fields {
		if f.Offset < prevEnd {
			t.Fatalf("field %q overlaps previous field: offset=%d prevEnd=%d", f.Name, f.Offset, prevEnd)
		}
		align := types.Alignment(f.Elem)
		if f.Offset%align != 0 {
			t.Fatalf("field %q offset %d not aligned to %d", f.Name, f.Offset, align)
		}
		prevEnd = f.Offset + f.Length
	}
	if l.Stride() != prevEnd {
		t.Fatalf("stride %d does not match end of last field %d", l.Stride(), prevEnd)
	}
}

func TestCanonicalInterning(t *testing.T) {
	l1, err := NewBuilder("a").AddScalar("hp", types.I32).AddScalar("mp", types.I32).Build()
	if err != nil {
		t.Fatal(err)
	}
	// Built in a different declaration order, but same canonical field set.
	l2, err := NewBuilder("b").AddScalar("mp", types.I32).AddScalar("hp", types.I32).Build()
	if err != nil {
		t.Fatal(err)
	}
	if l1 != l2 {
		t.Fatalf("expected interning to return the identical *Layout for the same canonical field set")
	}
	if !l1.Equal(l2) {
		t.Fatalf("expected l1.Equal(l2)")
	}
}

func TestDuplicateFieldRejected(t *testing.T) {
	_, err := NewBuilder("t").AddScalar("hp", types.I32).AddScalar("hp", types.I32).Build()
	if err == nil {
		t.Fatal("expected error for duplicate field name")
	}
}

func TestArrayAndStringContainer(t *testing.T) {
	al, err := NewArrayLayout(types.I32, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !al.IsArrayContainer() {
		t.Fatal("expected array container")
	}
	if al.IsStringContainer() {
		t.Fatal("i32 array must not be a string container")
	}

	sl, err := NewStringLayout(5)
	if err != nil {
		t.Fatal(err)
	}
	if !sl.IsStringContainer() {
		t.Fatal("expected string container")
	}
}
