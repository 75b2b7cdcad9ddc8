package core

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/types"
)

// anyFieldGuardKey is the reentrancy-guard key for container-scoped
// (AnyField) dispatch, kept out of the field-name namespace by using a byte
// that can never appear in a layout field name.
const anyFieldGuardKey = "\x00any"

func guardKeyFor(key events.Key) string {
	if key.Any {
		return anyFieldGuardKey
	}
	return key.Field
}

// Subscribe registers handler for the given key (spec §4.6). A field-scoped
// subscription requires the field to exist at subscribe time (spec I8).
func (c *Container) Subscribe(key events.Key, handler events.Handler) (events.Subscription, error) {
	if err := c.checkLive("Container.Subscribe"); err != nil {
		return events.Subscription{}, err
	}
	if !key.Any {
		if _, ok := c.layout.Field(key.Field); !ok {
			return events.Subscription{}, errs.Newf(errs.InvalidArgument, "Container.Subscribe", "no such field %q", key.Field)
		}
	}

	c.subSeq++
	seq := c.subSeq
	entry := &subscriptionEntry{seq: seq, handler: handler, live: true}
	c.subs[key] = append(c.subs[key], entry)

	reg := c.registry
	id := c.id
	cancel := func(wantID, wantGen uint64, k events.Key, s uint64) {
		cur, ok := reg.Get(wantID)
		if !ok || cur.id != id || cur.generation != wantGen {
			return
		}
		cur.cancelSub(k, s)
	}
	return events.NewSubscription(c.id, c.generation, key, seq, cancel), nil
}

func (c *Container) cancelSub(key events.Key, seq uint64) {
	lst := c.subs[key]
	for i, s := range lst {
		if s.seq == seq {
			s.live = false
			c.subs[key] = append(lst[:i:i], lst[i+1:]...)
			return
		}
	}
}

// snapshotSubs copies the live subscriber list for key so dispatch is
// unaffected by handlers that subscribe or cancel mid-dispatch (spec P8).
func (c *Container) snapshotSubs(key events.Key) []*subscriptionEntry {
	src := c.subs[key]
	if len(src) == 0 {
		return nil
	}
	out := make([]*subscriptionEntry, len(src))
	copy(out, src)
	return out
}

// fire delivers ev to every live subscriber under key, bounded by a
// per-key reentrancy guard (spec §9).
func (c *Container) fire(key events.Key, ev events.Event) {
	guard := guardKeyFor(key)
	depth := c.reentry[guard]
	if depth >= maxReentry {
		return
	}
	c.reentry[guard] = depth + 1
	defer func() { c.reentry[guard] = depth }()

	for _, s := range c.snapshotSubs(key) {
		if s.live {
			s.handler(ev)
		}
	}
}

// publish fires a Write/Rename/Delete event locally on c (field-scoped then
// container-scoped subscribers) and bubbles a container-scoped copy to each
// ancestor (spec §4.6).
func (c *Container) publish(kind events.Kind, field string, fieldType types.Kind, oldName string) {
	ev := events.Event{Kind: kind, Target: c.target(), Path: field, FieldType: fieldType, OldName: oldName}
	c.fire(events.FieldKey(field), ev)
	c.fire(events.AnyField, ev)
	c.bubble(field, ev)
}

// bubble walks from c up through recorded parent links, delivering a
// container-scoped copy of ev to each ancestor with Path rewritten to the
// dotted path from that ancestor down to the originally affected field.
// Bubbling never reaches a Dispose event (those are fired only locally, see
// fireDisposeAndClear) and stops the moment an ancestor cannot be resolved
// (it was itself disposed concurrently with this walk, e.g. mid-teardown).
func (c *Container) bubble(localField string, ev events.Event) {
	path := localField
	curID := c.id
	for {
		link, ok := c.registry.ParentOf(curID)
		if !ok {
			return
		}
		parent, ok := c.registry.Get(link.ParentID)
		if !ok {
			return
		}
		path = link.Field + "." + path
		bubbled := ev
		bubbled.Path = path
		parent.fire(events.AnyField, bubbled)
		curID = parent.id
	}
}

// fireDisposeAndClear delivers a final Dispose event (null target) to every
// subscription on c, field-scoped and container-scoped alike, then drops
// them all (spec §4.6 "generation gating": a disposed container's
// subscriptions receive one final Dispose and are then dropped). Dispose
// never bubbles (spec §4.4.2: "bubbling stops at a container that is being
// deleted").
func (c *Container) fireDisposeAndClear() {
	var all []*subscriptionEntry
	for _, lst := range c.subs {
		for _, s := range lst {
			if s.live {
				all = append(all, s)
			}
		}
	}
	c.subs = make(map[events.Key][]*subscriptionEntry)

	ev := events.Event{Kind: events.Dispose, Target: events.Target{}}
	for _, s := range all {
		s.live = false
		s.handler(ev)
	}
}

// invalidateField fires a final Delete to field's subscribers (both
// field-scoped and, via publish's own AnyField fire, container-scoped) and
// then drops the field-scoped subscription list, since the field no longer
// exists to subscribe to (spec I8: "auto-invalidated").
func (c *Container) invalidateField(field string) {
	c.publish(events.Delete, field, types.Unknown, "")
	delete(c.subs, events.FieldKey(field))
}
