package storage

import (
	"testing"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
	"github.com/scenetree/scenetree/view"
)

func TestNewUsesDefaultSeparator(t *testing.T) {
	s := New()
	if s.Separator() != DefaultSeparator {
		t.Fatalf("expected default separator %q, got %q", DefaultSeparator, s.Separator())
	}
	if s.Root().IsNull() {
		t.Fatal("expected a materialized root")
	}
}

func TestWithSeparatorOverride(t *testing.T) {
	s := New(WithSeparator('/'))
	if s.Separator() != '/' {
		t.Fatalf("expected separator '/', got %q", s.Separator())
	}
}

func TestWithRegistrySharesIdentitySpace(t *testing.T) {
	reg := core.NewRegistry(bufpool.New())
	a := New(WithRegistry(reg))
	b := New(WithRegistry(reg))
	if a.Registry() != b.Registry() {
		t.Fatal("expected both Storages to share the injected registry")
	}
	if a.Root().ID() == b.Root().ID() {
		t.Fatal("expected distinct root IDs even when sharing a registry")
	}
}

func TestWithRootLayoutAppliesToRoot(t *testing.T) {
	l, err := layout.NewBuilder("root").AddScalar("hp", types.I32).Build()
	if err != nil {
		t.Fatal(err)
	}
	s := New(WithRootLayout(l))
	if !s.Root().HasField("hp") {
		t.Fatal("expected root to carry the injected layout's field")
	}
}

func TestQueryNavigatesFromStorageRoot(t *testing.T) {
	s := New()
	if err := WritePath[int32](s, "player.hp", 42); err != nil {
		t.Fatal(err)
	}
	got, err := ReadPath[int32](s, "player.hp")
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestGetObjectByPathCreatesIntermediates(t *testing.T) {
	s := New()
	leaf, err := s.GetObjectByPath("a.b", true)
	if err != nil {
		t.Fatal(err)
	}
	if leaf.IsNull() {
		t.Fatal("expected a materialized leaf")
	}
}

func TestWriteArrayPathAndWriteStringPath(t *testing.T) {
	s := New()
	if err := WriteArrayPath[int32](s, "scores", []int32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteStringPath("player.name", "Ada"); err != nil {
		t.Fatal(err)
	}
	leaf, err := s.GetObjectByPath("player", false)
	if err != nil {
		t.Fatal(err)
	}
	name, err := leaf.ReadString("name")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Ada" {
		t.Fatalf("expected %q, got %q", "Ada", name)
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	s := New()
	s.Dispose()
	if s.Root().Exists() {
		t.Fatal("expected root to be disposed")
	}
	s.Dispose()
}

func TestFromRootWrapsExistingRoot(t *testing.T) {
	reg := core.NewRegistry(bufpool.New())
	root := view.NewObjectView(reg.Create(layout.Empty))
	s := FromRoot(reg, root, WithSeparator(':'))
	if s.Separator() != ':' {
		t.Fatalf("expected separator ':', got %q", s.Separator())
	}
	if s.Root().ID() != root.ID() {
		t.Fatal("expected FromRoot's Storage to wrap the given root")
	}
}
