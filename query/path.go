// Package query implements path navigation and the fluent query chain over
// view.ObjectView (spec §4.8). The chain's internal failed-state
// short-circuit is grounded on the teacher's fuse.Status early-return
// idiom (every FUSE operation checks and forwards a Status before doing
// further work) translated to a carried err field checked at the top of
// every chain method.
package query

import (
	"strconv"
	"strings"

	"github.com/scenetree/scenetree/errs"
)

// DefaultSeparator is the path segment separator used when none is given.
const DefaultSeparator = '.'

// Segment is one parsed path element: a field name with an optional array
// index (spec "segment = name ( '[' index ']' )?").
type Segment struct {
	Name     string
	Index    int
	HasIndex bool
}

// Parse splits path into segments using DefaultSeparator.
func Parse(path string) ([]Segment, error) {
	return ParseSep(path, DefaultSeparator)
}

// ParseSep splits path into segments using sep, validating the grammar
// (spec "segment ( SEP segment )*", "names contain neither SEP nor
// '['/']'", "indices are non-negative integers"). An empty path yields a
// nil, zero-length segment slice (spec "an empty path targets the current
// container").
func ParseSep(path string, sep byte) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}
	raw := strings.Split(path, string(sep))
	segs := make([]Segment, 0, len(raw))
	for _, part := range raw {
		if part == "" {
			return nil, errs.New(errs.InvalidArgument, "query.ParseSep", "empty path segment")
		}
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(part string) (Segment, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if strings.ContainsAny(part, "[]") {
			return Segment{}, errs.Newf(errs.InvalidArgument, "query.ParseSep", "malformed segment %q", part)
		}
		return Segment{Name: part}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return Segment{}, errs.Newf(errs.InvalidArgument, "query.ParseSep", "malformed segment %q", part)
	}
	name := part[:open]
	if name == "" {
		return Segment{}, errs.Newf(errs.InvalidArgument, "query.ParseSep", "malformed segment %q: missing name", part)
	}
	idxStr := part[open+1 : len(part)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return Segment{}, errs.Newf(errs.InvalidArgument, "query.ParseSep", "malformed index in segment %q", part)
	}
	return Segment{Name: name, Index: idx, HasIndex: true}, nil
}

// String renders segs back into canonical path form, for diagnostics.
func String(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte(DefaultSeparator)
		}
		b.WriteString(s.Name)
		if s.HasIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}
