package core

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// addFieldToBuilder replays an existing FieldHeader onto a Builder, used to
// carry forward every field untouched by a given structural change.
func addFieldToBuilder(b *layout.Builder, f layout.FieldHeader) *layout.Builder {
	switch {
	case f.IsReference():
		return b.AddReference(f.Name)
	case f.IsReferenceArray():
		return b.AddReferenceArray(f.Name, f.ArrayLen)
	case f.IsInlineArray():
		return b.AddInlineArray(f.Name, f.Elem, f.ArrayLen)
	case f.Elem == types.Blob:
		return b.AddBlob(f.Name, f.Length)
	default:
		return b.AddScalar(f.Name, f.Elem)
	}
}

// rebuildLayout constructs a fresh canonical Layout from an explicit field
// list, used by every structural mutation (add/remove/rename/widen field).
func rebuildLayout(fields []layout.FieldHeader) (*layout.Layout, error) {
	b := layout.NewBuilder("rebuilt")
	for _, f := range fields {
		b = addFieldToBuilder(b, f)
	}
	return b.Build()
}

// unregisterFieldSubtree cascades disposal to whatever a reference or
// reference-array field currently points at, used before a field is
// removed or overridden out from under its referent (spec §4.4.1 step 2).
func (c *Container) unregisterFieldSubtree(f layout.FieldHeader) {
	switch {
	case f.IsReference():
		if id := decodeRef(c.buf[f.Offset : f.Offset+8]); id != 0 {
			if child, ok := c.registry.Get(id); ok {
				c.registry.Unregister(child)
			}
		}
	case f.IsReferenceArray():
		for i := 0; i < f.ArrayLen; i++ {
			off := f.Offset + i*8
			if id := decodeRef(c.buf[off : off+8]); id != 0 {
				if child, ok := c.registry.Get(id); ok {
					c.registry.Unregister(child)
				}
			}
		}
	}
}

// reschema migrates c from its current layout to newLayout (spec §4.4.1):
//
//  1. determine which fields disappear (by name, after applying renames) and
//     cascade-unregister any reference subtrees they held;
//  2. publish exactly one Delete per removed field and one Rename per
//     renamed field, while c is still wearing its OLD layout/buffer, so
//     that a handler observing a Delete sees target.is_null already true
//     for anything that was cascaded away, yet still finds c itself alive;
//  3. allocate a new buffer sized for newLayout and copy every surviving
//     field's overlapping bytes across by name;
//  4. swap c onto the new layout/buffer and return the old buffer to the
//     pool.
//
// The caller is responsible for writing whatever triggered the reschema
// (the new/widened field's value) into the post-reschema buffer and
// publishing its own Write event.
func (c *Container) reschema(newLayout *layout.Layout, renames map[string]string) {
	old := c.layout

	newNameOf := func(oldName string) string {
		if n, ok := renames[oldName]; ok {
			return n
		}
		return oldName
	}
	oldNameOf := func(newName string) (string, bool) {
		for o, n := range renames {
			if n == newName {
				return o, true
			}
		}
		if _, ok := old.Field(newName); ok {
			return newName, true
		}
		return "", false
	}

	var removed []layout.FieldHeader
	for _, f := range old.Fields() {
		if _, stillPresent := newLayout.Field(newNameOf(f.Name)); !stillPresent {
			removed = append(removed, f)
		}
	}

	for _, f := range removed {
		c.unregisterFieldSubtree(f)
	}
	for _, f := range removed {
		c.invalidateField(f.Name)
	}
	for oldName, newName := range renames {
		if oldName == newName {
			continue
		}
		if _, ok := newLayout.Field(newName); ok {
			if lst, ok := c.subs[events.FieldKey(oldName)]; ok {
				delete(c.subs, events.FieldKey(oldName))
				c.subs[events.FieldKey(newName)] = append(c.subs[events.FieldKey(newName)], lst...)
			}
			c.publish(events.Rename, newName, types.Unknown, oldName)
		}
	}

	newBuf := c.registry.pool.Rent(newLayout.Stride())
	for _, nf := range newLayout.Fields() {
		oldName, ok := oldNameOf(nf.Name)
		if !ok {
			continue
		}
		of, ok := old.Field(oldName)
		if !ok {
			continue
		}
		n := of.Length
		if nf.Length < n {
			n = nf.Length
		}
		copy(newBuf[nf.Offset:nf.Offset+n], c.buf[of.Offset:of.Offset+n])
	}

	oldBuf := c.buf
	c.layout = newLayout
	c.buf = newBuf
	c.registry.pool.Return(oldBuf)
}

// Delete removes the named fields, cascading disposal of any reference
// subtrees they held, and returns how many were actually present (spec
// §4.4.1 "delete(names...)"; B2: deleting a field that does not exist is a
// no-op that reports 0, not an error).
func (c *Container) Delete(names ...string) (int, error) {
	if err := c.checkLive("Container.Delete"); err != nil {
		return 0, err
	}

	present := make(map[string]bool, len(names))
	count := 0
	for _, n := range names {
		if _, ok := c.layout.Field(n); ok && !present[n] {
			present[n] = true
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}

	var kept []layout.FieldHeader
	for _, f := range c.layout.Fields() {
		if !present[f.Name] {
			kept = append(kept, f)
		}
	}
	newLayout, err := rebuildLayout(kept)
	if err != nil {
		return 0, errs.Newf(errs.InvalidState, "Container.Delete", "%v", err)
	}
	c.reschema(newLayout, nil)
	return count, nil
}

// Rename changes a field's name in place without touching its value (spec
// §4.4.1 "rename(old, new)"). Renaming onto an already-occupied name fails.
func (c *Container) Rename(oldName, newName string) error {
	if err := c.checkLive("Container.Rename"); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, ok := c.layout.Field(oldName); !ok {
		return errs.Newf(errs.InvalidArgument, "Container.Rename", "no such field %q", oldName)
	}
	if _, ok := c.layout.Field(newName); ok {
		return errs.Newf(errs.InvalidArgument, "Container.Rename", "field %q already exists", newName)
	}

	var fields []layout.FieldHeader
	for _, f := range c.layout.Fields() {
		if f.Name == oldName {
			f.Name = newName
		}
		fields = append(fields, f)
	}
	newLayout, err := rebuildLayout(fields)
	if err != nil {
		return errs.Newf(errs.InvalidState, "Container.Rename", "%v", err)
	}
	c.reschema(newLayout, map[string]string{oldName: newName})
	return nil
}
