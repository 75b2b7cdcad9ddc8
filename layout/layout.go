// Package layout describes the immutable field schema of a Container (spec
// §4.3): an ordered list of field headers, the stride they imply, and a
// distinguished "array name" for array-container payloads.
//
// Layouts are canonicalized by field name and interned process-wide so that
// structurally identical schemas compare equal and share storage, mirroring
// the "look up before allocate" idiom in the teacher's
// rawBridge.newInode (nodefs/bridge.go): `old := b.nodes[id.Ino]; if old !=
// nil { return old }`.
package layout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/scenetree/scenetree/types"
)

// ArrayFieldName is the sentinel field name used by array-role containers
// (spec §3, "distinguished array name"). The Builder does not reserve it:
// only empty and duplicate field names are rejected.
const ArrayFieldName = "$value"

// Flag marks special semantics of a field beyond its element Kind.
type Flag uint8

const (
	FlagReference Flag = 1 << iota
	FlagReferenceArray
	FlagInlineArray
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// FieldHeader describes one field of a Layout.
type FieldHeader struct {
	Name     string
	Elem     types.Kind
	Offset   int
	Length   int // total bytes occupied by the field
	Flags    Flag
	ArrayLen int // element count, meaningful for inline/reference arrays
}

// IsReference reports whether the field is a single reference cell.
func (h FieldHeader) IsReference() bool { return h.Flags.Has(FlagReference) }

// IsReferenceArray reports whether the field is a contiguous run of
// reference cells.
func (h FieldHeader) IsReferenceArray() bool { return h.Flags.Has(FlagReferenceArray) }

// IsInlineArray reports whether the field is an inline typed value array.
func (h FieldHeader) IsInlineArray() bool { return h.Flags.Has(FlagInlineArray) }

// Layout is an immutable, hashable field schema.
type Layout struct {
	name   string // builder-assigned debug name, not part of equality
	fields []FieldHeader
	byName map[string]int
	stride int
	sig    string // canonical signature used for interning/equality
}

// Fields returns the layout's field headers in canonical (offset) order.
// The returned slice must not be mutated.
func (l *Layout) Fields() []FieldHeader { return l.fields }

// Field looks up a field by name.
func (l *Layout) Field(name string) (FieldHeader, bool) {
	idx, ok := l.byName[name]
	if !ok {
		return FieldHeader{}, false
	}
	return l.fields[idx], true
}

// Stride is the total buffer size in bytes required to hold the layout.
func (l *Layout) Stride() int { return l.stride }

// IsArrayContainer reports whether this layout describes an array-role
// container: exactly one field, named ArrayFieldName.
func (l *Layout) IsArrayContainer() bool {
	_, ok := l.byName[ArrayFieldName]
	return ok && len(l.fields) == 1
}

// ArrayField returns the distinguished array payload field, if this is an
// array-container layout.
func (l *Layout) ArrayField() (FieldHeader, bool) {
	if !l.IsArrayContainer() {
		return FieldHeader{}, false
	}
	return l.fields[0], true
}

// IsStringContainer reports whether this is an array-container layout whose
// element type is Char16 (spec §3: "String: an array container with Char16
// elements").
func (l *Layout) IsStringContainer() bool {
	f, ok := l.ArrayField()
	return ok && f.Elem == types.Char16
}

// Equal reports whether l and o describe the same canonical field set and
// layout plan.
func (l *Layout) Equal(o *Layout) bool {
	if l == o {
		return true
	}
	if l == nil || o == nil {
		return false
	}
	return l.sig == o.sig
}

// Signature returns the canonical signature string used for interning.
// Exposed for diagnostics and tests.
func (l *Layout) Signature() string { return l.sig }

// String renders a compact debug form, e.g. "{hp:i32@0 speeds:float32[4]@4}".
func (l *Layout) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range l.fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%s", f.Name, f.Elem)
		if f.IsInlineArray() || f.IsReferenceArray() {
			fmt.Fprintf(&b, "[%d]", f.ArrayLen)
		}
		fmt.Fprintf(&b, "@%d", f.Offset)
	}
	b.WriteByte('}')
	return b.String()
}

// fieldSpec is the builder's pre-offset description of one field.
type fieldSpec struct {
	name     string
	elem     types.Kind
	length   int
	flags    Flag
	arrayLen int
}

// Builder accumulates field specs and computes a canonical Layout.
type Builder struct {
	name   string
	fields []fieldSpec
	seen   map[string]bool
	err    error
}

// NewBuilder starts a Layout builder. name is used only for debug output.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, seen: make(map[string]bool)}
}

func (b *Builder) add(spec fieldSpec) *Builder {
	if b.err != nil {
		return b
	}
	if spec.name == "" {
		b.err = fmt.Errorf("layout: empty field name")
		return b
	}
	if b.seen[spec.name] {
		b.err = fmt.Errorf("layout: duplicate field %q", spec.name)
		return b
	}
	b.seen[spec.name] = true
	b.fields = append(b.fields, spec)
	return b
}

// AddScalar adds a single scalar field of the given kind.
func (b *Builder) AddScalar(name string, kind types.Kind) *Builder {
	size, ok := types.FixedSize(kind)
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("layout: %s has no fixed scalar size", kind)
		}
		return b
	}
	return b.add(fieldSpec{name: name, elem: kind, length: size})
}

// AddInlineArray adds a fixed-length inline value array field.
func (b *Builder) AddInlineArray(name string, kind types.Kind, length int) *Builder {
	size, ok := types.FixedSize(kind)
	if !ok {
		if b.err == nil {
			b.err = fmt.Errorf("layout: %s has no fixed element size", kind)
		}
		return b
	}
	if length < 0 {
		if b.err == nil {
			b.err = fmt.Errorf("layout: negative array length for %q", name)
		}
		return b
	}
	return b.add(fieldSpec{name: name, elem: kind, length: size * length, flags: FlagInlineArray, arrayLen: length})
}

// AddReference adds a single reference cell field.
func (b *Builder) AddReference(name string) *Builder {
	return b.add(fieldSpec{name: name, elem: types.Ref, length: 8, flags: FlagReference})
}

// AddReferenceArray adds a contiguous run of length reference cells.
func (b *Builder) AddReferenceArray(name string, length int) *Builder {
	if length < 0 {
		if b.err == nil {
			b.err = fmt.Errorf("layout: negative array length for %q", name)
		}
		return b
	}
	return b.add(fieldSpec{name: name, elem: types.Ref, length: 8 * length, flags: FlagReferenceArray, arrayLen: length})
}

// AddBlob adds a variable-length byte blob field of the given capacity.
func (b *Builder) AddBlob(name string, length int) *Builder {
	if length < 0 {
		if b.err == nil {
			b.err = fmt.Errorf("layout: negative blob length for %q", name)
		}
		return b
	}
	return b.add(fieldSpec{name: name, elem: types.Blob, length: length})
}

// Build computes field offsets in canonical (sorted-by-name) order,
// inserting alignment padding, and returns the finished, interned Layout.
func (b *Builder) Build() (*Layout, error) {
	if b.err != nil {
		return nil, b.err
	}

	specs := make([]fieldSpec, len(b.fields))
	copy(specs, b.fields)
	sort.Slice(specs, func(i, j int) bool { return specs[i].name < specs[j].name })

	fields := make([]FieldHeader, len(specs))
	byName := make(map[string]int, len(specs))
	offset := 0
	var sigParts []string
	for i, s := range specs {
		align := types.Alignment(s.elem)
		if align < 1 {
			align = 1
		}
		if pad := offset % align; pad != 0 {
			offset += align - pad
		}
		fields[i] = FieldHeader{
			Name:     s.name,
			Elem:     s.elem,
			Offset:   offset,
			Length:   s.length,
			Flags:    s.flags,
			ArrayLen: s.arrayLen,
		}
		byName[s.name] = i
		offset += s.length
		sigParts = append(sigParts, fmt.Sprintf("%s:%d:%d:%d:%d", s.name, s.elem, s.length, s.flags, s.arrayLen))
	}

	l := &Layout{
		name:   b.name,
		fields: fields,
		byName: byName,
		stride: offset,
		sig:    strings.Join(sigParts, "|"),
	}
	return intern(l), nil
}

// MustBuild is Build but panics on error; for package-internal literal
// layouts built from constants that are known valid.
func (b *Builder) MustBuild() *Layout {
	l, err := b.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// internTable is the process-wide canonical-by-name interning cache (spec
// §2/§4.3).
var internTable sync.Map // map[string]*Layout, keyed by canonical signature

func intern(l *Layout) *Layout {
	if actual, loaded := internTable.LoadOrStore(l.sig, l); loaded {
		return actual.(*Layout)
	}
	return l
}

// Empty is the canonical empty-object layout (zero fields, zero stride)
// used by auto-materialized intermediate objects (spec §4.8).
var Empty = NewBuilder("empty").MustBuild()

// NewArrayLayout returns the canonical layout for an array-container payload
// of the given element kind and length.
func NewArrayLayout(elem types.Kind, length int) (*Layout, error) {
	return NewBuilder("array").AddInlineArray(ArrayFieldName, elem, length).Build()
}

// NewStringLayout returns the canonical layout for a string of the given
// UTF-16 code-unit length.
func NewStringLayout(length int) (*Layout, error) {
	return NewArrayLayout(types.Char16, length)
}

// NewReferenceArrayLayout returns the canonical layout for an array
// container whose elements are references to other containers (spec §4.4
// "Arrays of objects map to reference arrays of object containers").
func NewReferenceArrayLayout(length int) (*Layout, error) {
	return NewBuilder("refarray").AddReferenceArray(ArrayFieldName, length).Build()
}
