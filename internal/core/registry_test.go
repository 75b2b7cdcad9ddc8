package core

import (
	"testing"

	"github.com/scenetree/scenetree/bufpool"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"golang.org/x/sync/errgroup"
)

func TestUnregisterIsReentrantSafe(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	r.Unregister(c)
	r.Unregister(c) // must not panic or double-free the buffer
	if !c.IsDisposed() {
		t.Fatal("expected container to remain disposed")
	}
}

func TestUnregisterBumpsGeneration(t *testing.T) {
	r := newTestRegistry()
	c := r.Create(layout.Empty)
	gen := c.Generation()
	r.Unregister(c)
	if c.Generation() == gen {
		t.Fatal("expected generation to change on unregister")
	}
}

func TestUnregisterCascadesPostOrder(t *testing.T) {
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

	var order []uint64
	for _, cc := range []*Container{child, grand} {
		id := cc.ID()
		if _, err := cc.Subscribe(events.AnyField, func(ev events.Event) {
			if ev.Kind == events.Dispose {
				order = append(order, id)
			}
		}); err != nil {
			t.Fatal(err)
		}
	}

	r.Unregister(root)
	if len(order) != 2 || order[0] != grand.ID() || order[1] != child.ID() {
		t.Fatalf("expected post-order dispose [grand, child], got %v (grand=%d child=%d)", order, grand.ID(), child.ID())
	}
}

// TestConcurrentGetDuringMutation exercises spec §5's requirement that
// Registry.Get be safe to call from other goroutines while the owner
// thread grows the tree.
func TestConcurrentGetDuringMutation(t *testing.T) {
	pool := bufpool.New()
	r := NewRegistry(pool)
	root := r.Create(layout.Empty)

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 500; i++ {
				r.Get(root.ID())
			}
			return nil
		})
	}
	cur := root
	for i := 0; i < 50; i++ {
		next, err := cur.GetObject("child", true, layout.Empty)
		if err != nil {
			t.Fatal(err)
		}
		cur = next
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
