package query

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/events"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
	"github.com/scenetree/scenetree/view"
)

// Query is the fluent path-builder over a root view.ObjectView (spec
// §4.8). Every method checks err first and, on a failed chain, returns
// itself unchanged — the carried err field plays the role of the
// teacher's fuse.Status early-return in every FUSE operation, translated
// from a return value into a chain-local field so expect()/ensure()/make()
// calls can keep composing fluently instead of each needing its own error
// return.
type Query struct {
	root view.ObjectView
	segs []Segment
	err  error
}

// New starts a query chain at root (spec "an empty path targets the
// current container").
func New(root view.ObjectView) Query {
	return Query{root: root}
}

// Err reports the chain's failed state, if any.
func (q Query) Err() error { return q.err }

// Failed reports whether a prior expect/navigation call has put the chain
// into a failed state.
func (q Query) Failed() bool { return q.err != nil }

func (q Query) fail(err error) Query {
	return Query{root: q.root, segs: q.segs, err: err}
}

// Location appends a named segment (spec "location(name) ... append a
// segment").
func (q Query) Location(name string) Query {
	if q.err != nil {
		return q
	}
	segs := append(append([]Segment{}, q.segs...), Segment{Name: name})
	return Query{root: q.root, segs: segs}
}

// Index sets the array index of the most recently appended segment (spec
// "index(n) append a segment").
func (q Query) Index(n int) Query {
	if q.err != nil {
		return q
	}
	if len(q.segs) == 0 {
		return q.fail(errs.New(errs.InvalidArgument, "Query.Index", "no location to index"))
	}
	segs := append([]Segment{}, q.segs...)
	segs[len(segs)-1].Index = n
	segs[len(segs)-1].HasIndex = true
	return Query{root: q.root, segs: segs}
}

// Previous pops the last segment (spec "previous() pops").
func (q Query) Previous() Query {
	if q.err != nil || len(q.segs) == 0 {
		return q
	}
	segs := append([]Segment{}, q.segs[:len(q.segs)-1]...)
	return Query{root: q.root, segs: segs}
}

// Persist snapshots the chain into a tightly sized, independently owned
// copy so the builder's working slice (which may have spare append
// capacity from the chain that produced it) can be released (spec
// "persist() returns a heap-backed persistent query; the in-flight temp
// buffer is freed").
func (q Query) Persist() Query {
	segs := make([]Segment, len(q.segs))
	copy(segs, q.segs)
	return Query{root: q.root, segs: segs, err: q.err}
}

// parent resolves every segment but the last, returning the container the
// last segment names a field of, and that last segment itself.
func (q Query) parent(createIfMissing bool) (view.ObjectView, Segment, error) {
	if q.err != nil {
		return view.ObjectView{}, Segment{}, q.err
	}
	if len(q.segs) == 0 {
		return view.ObjectView{}, Segment{}, errs.New(errs.InvalidArgument, "query", "no location set")
	}
	p, err := walk(q.root, q.segs[:len(q.segs)-1], createIfMissing)
	if err != nil {
		return view.ObjectView{}, Segment{}, err
	}
	return p, q.segs[len(q.segs)-1], nil
}

// Expect narrows a Query into shape-checking calls. On shape mismatch the
// originating Query enters the failed state and further expect calls
// short-circuit (spec "on failure the query enters a failed state and
// further expect calls short-circuit").
type Expect struct{ q Query }

// Expect begins an expect() call.
func (q Query) Expect() Expect { return Expect{q: q} }

// Object enforces that the location names a plain object reference (spec
// "expect().object()").
func (e Expect) Object() Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	if leaf.HasIndex {
		child, err := parent.Index(leaf.Name, leaf.Index, false, nil)
		if err != nil {
			return q.fail(err)
		}
		if child.IsNull() {
			return q.fail(errs.New(errs.InvalidState, "Query.Expect.Object", "no element at index"))
		}
		return q
	}
	fv, err := parent.Field(leaf.Name)
	if err != nil {
		return q.fail(err)
	}
	kind, ok := fv.Kind()
	if !ok || kind != types.Ref {
		return q.fail(errs.Newf(errs.InvalidState, "Query.Expect.Object", "field %q is not an object reference", leaf.Name))
	}
	child, err := parent.Object(leaf.Name, false, nil)
	if err != nil {
		return q.fail(err)
	}
	if child.IsNull() {
		return q.fail(errs.New(errs.InvalidState, "Query.Expect.Object", "no object at location"))
	}
	return q
}

// ObjectArray enforces that the location names a reference-array field
// (spec "expect().object_array()").
func (e Expect) ObjectArray() Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	headers, err := parent.FieldHeaders()
	if err != nil {
		return q.fail(err)
	}
	for _, h := range headers {
		if h.Name == leaf.Name && h.IsReferenceArray() {
			return q
		}
	}
	return q.fail(errs.Newf(errs.InvalidState, "Query.Expect.ObjectArray", "no such reference array %q", leaf.Name))
}

// ObjectElement enforces that the location's index names a live element of
// a reference-array field (spec "expect().object_element()").
func (e Expect) ObjectElement() Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	if !leaf.HasIndex {
		return q.fail(errs.New(errs.InvalidState, "Query.Expect.ObjectElement", "location has no index"))
	}
	child, err := parent.Index(leaf.Name, leaf.Index, false, nil)
	if err != nil {
		return q.fail(err)
	}
	if child.IsNull() {
		return q.fail(errs.New(errs.InvalidState, "Query.Expect.ObjectElement", "no element at index"))
	}
	return q
}

// String enforces that the location names a string container (spec
// "expect().string()").
func (e Expect) String() Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	if _, err := parent.ReadString(leaf.Name); err != nil {
		return q.fail(err)
	}
	return q
}

// ExpectScalar enforces that the location names a scalar field readable as
// T (spec "expect().scalar<T>()").
func ExpectScalar[T core.Scalar](e Expect) Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	if _, err := view.Read[T](parent, leaf.Name); err != nil {
		return q.fail(err)
	}
	return q
}

// ExpectArray enforces that the location names an inline value array of T
// (spec "expect().array<T>()").
func ExpectArray[T core.Scalar](e Expect) Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(false)
	if err != nil {
		return q.fail(err)
	}
	if _, err := view.ReadArray[T](parent, leaf.Name); err != nil {
		return q.fail(err)
	}
	return q
}

// EnsureIs is the narrowing produced by ensure().is() (spec
// "ensure().is().scalar<T>(default?) / .string(value?) / .array<T>(min_length?)").
type EnsureIs struct{ q Query }

// Ensure begins an ensure() call.
func (q Query) Ensure() Ensure { return Ensure{q: q} }

// Ensure is the intermediate produced by Query.Ensure.
type Ensure struct{ q Query }

// Is narrows to the shape-creating calls.
func (e Ensure) Is() EnsureIs { return EnsureIs{q: e.q} }

// EnsureScalar creates the leaf as a scalar field of T if missing, or
// leaves it as-is if already present and compatible, writing def (the
// zero value of T if omitted) only on creation.
func EnsureScalar[T core.Scalar](e EnsureIs, def ...T) Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	if parent.HasField(leaf.Name) {
		return q
	}
	var initial T
	if len(def) > 0 {
		initial = def[0]
	}
	if err := view.Write[T](parent, leaf.Name, initial, true); err != nil {
		return q.fail(err)
	}
	return q
}

// EnsureString creates the leaf as a string container if missing,
// installing value (empty if omitted) on creation.
func EnsureString(e EnsureIs, value ...string) Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	if parent.HasField(leaf.Name) {
		return q
	}
	initial := ""
	if len(value) > 0 {
		initial = value[0]
	}
	if err := parent.WriteString(leaf.Name, initial); err != nil {
		return q.fail(err)
	}
	return q
}

// EnsureArray creates the leaf as an inline value array of T with at least
// minLength elements (0 if omitted) if missing.
func EnsureArray[T core.Scalar](e EnsureIs, minLength ...int) Query {
	q := e.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	if parent.HasField(leaf.Name) {
		return q
	}
	length := 0
	if len(minLength) > 0 {
		length = minLength[0]
	}
	var zero T
	vals := make([]any, length)
	for i := range vals {
		vals[i] = zero
	}
	if err := parent.SetInlineArrayAnyKind(leaf.Name, core.KindOf[T](), vals); err != nil {
		return q.fail(err)
	}
	return q
}

// Make is the narrowing produced by make() (spec "make().object() /
// .object_array(min_length) / .array<T>(min_length, allow_override)").
type Make struct{ q Query }

// Make begins a make() call. Like expect()/ensure(), a make() call on an
// already-failed chain returns the chain unchanged and still failed; the
// failure surfaces through Err or the terminal call, not as a panic.
func (q Query) Make() Make { return Make{q: q} }

// Object materializes the leaf as a fresh object reference.
func (m Make) Object() Query {
	q := m.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	if leaf.HasIndex {
		if _, err := parent.Index(leaf.Name, leaf.Index, true, layout.Empty); err != nil {
			return q.fail(err)
		}
		return q
	}
	if _, err := parent.Object(leaf.Name, true, layout.Empty); err != nil {
		return q.fail(err)
	}
	return q
}

// ObjectArray materializes a missing leaf as a reference-array field of
// minLength elements. An existing field is left as it is, whatever its kind
// or length.
func (m Make) ObjectArray(minLength int) Query {
	q := m.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	c, err := parent.Field(leaf.Name)
	if err == nil && c.Exists() {
		return q
	}
	if err := makeReferenceArray(parent, leaf.Name, minLength); err != nil {
		return q.fail(err)
	}
	return q
}

// MakeArray materializes the leaf as an inline value array of T with at
// least minLength elements, overriding an existing incompatible array when
// allowOverride is set.
func MakeArray[T core.Scalar](m Make, minLength int, allowOverride bool) Query {
	q := m.q
	if q.err != nil {
		return q
	}
	parent, leaf, err := q.parent(true)
	if err != nil {
		return q.fail(err)
	}
	if parent.HasField(leaf.Name) {
		if !allowOverride {
			return q
		}
		if vals, err := view.ReadArray[T](parent, leaf.Name); err == nil && len(vals) >= minLength {
			return q
		}
	}
	var zero T
	vals := make([]any, minLength)
	for i := range vals {
		vals[i] = zero
	}
	if err := parent.SetInlineArrayAnyKind(leaf.Name, core.KindOf[T](), vals); err != nil {
		return q.fail(err)
	}
	return q
}

// Exist is the narrowing produced by exist() (spec "exist() returns Has,
// As<T>(exact), ArrayOf<T>(out array) checks").
type Exist struct{ q Query }

// Exist begins an exist() call.
func (q Query) Exist() Exist { return Exist{q: q} }

// Has reports whether the location currently names a present field or
// element.
func (e Exist) Has() bool {
	parent, leaf, err := e.q.parent(false)
	if err != nil {
		return false
	}
	if leaf.HasIndex {
		child, err := parent.Index(leaf.Name, leaf.Index, false, nil)
		return err == nil && !child.IsNull()
	}
	return parent.HasField(leaf.Name)
}

// ExistAs reports whether the location exists and is scalar-readable as T.
// When exact is set, the field's declared kind must equal T's kind rather
// than merely being implicitly convertible.
func ExistAs[T core.Scalar](e Exist, exact bool) bool {
	parent, leaf, err := e.q.parent(false)
	if err != nil {
		return false
	}
	fv, err := parent.Field(leaf.Name)
	if err != nil || !fv.Exists() {
		return false
	}
	if exact {
		kind, ok := fv.Kind()
		return ok && kind == core.KindOf[T]()
	}
	_, err = view.Read[T](parent, leaf.Name)
	return err == nil
}

// ExistArrayOf reports whether the location names an inline value array of
// T, writing its contents to *out on success.
func ExistArrayOf[T core.Scalar](e Exist, out *[]T) bool {
	parent, leaf, err := e.q.parent(false)
	if err != nil {
		return false
	}
	vals, err := view.ReadArray[T](parent, leaf.Name)
	if err != nil {
		return false
	}
	*out = vals
	return true
}

// Read reads the location as a scalar T (spec "read<T>() terminates the
// chain").
func Read[T core.Scalar](q Query) (T, error) {
	var zero T
	parent, leaf, err := q.parent(false)
	if err != nil {
		return zero, err
	}
	return view.Read[T](parent, leaf.Name)
}

// TryRead is Read without the error (spec "try_read<T>()").
func TryRead[T core.Scalar](q Query) (T, bool) {
	v, err := Read[T](q)
	return v, err == nil
}

// Write writes value to the location, allocating intermediates as needed
// (spec "write(value) terminates the chain").
func Write[T core.Scalar](q Query, value T) error {
	parent, leaf, err := q.parent(true)
	if err != nil {
		return err
	}
	return view.Write[T](parent, leaf.Name, value, true)
}

// ReadString reads the location as a string.
func ReadString(q Query) (string, error) {
	parent, leaf, err := q.parent(false)
	if err != nil {
		return "", err
	}
	return parent.ReadString(leaf.Name)
}

// WriteString installs s as a string at the location.
func WriteString(q Query, s string) error {
	parent, leaf, err := q.parent(true)
	if err != nil {
		return err
	}
	return parent.WriteString(leaf.Name, s)
}

// ReadArrayQ reads the location as an inline value array of T.
func ReadArrayQ[T core.Scalar](q Query) ([]T, error) {
	parent, leaf, err := q.parent(false)
	if err != nil {
		return nil, err
	}
	return view.ReadArray[T](parent, leaf.Name)
}

// Subscribe registers handler on the location, requiring the final
// segment to already reference an existing field (spec "subscribe(handler)
// requires the final segment to reference an existing field").
func Subscribe(q Query, handler events.Handler) (events.Subscription, error) {
	parent, leaf, err := q.parent(false)
	if err != nil {
		return events.Subscription{}, err
	}
	if !parent.HasField(leaf.Name) {
		return events.Subscription{}, errs.Newf(errs.InvalidArgument, "query.Subscribe", "no such field %q", leaf.Name)
	}
	return parent.Subscribe(events.FieldKey(leaf.Name), handler)
}

func makeReferenceArray(parent view.ObjectView, field string, length int) error {
	return parent.EnsureReferenceArray(field, length)
}
