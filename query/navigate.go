package query

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/view"
)

// walk advances from root through every segment, treating each as either a
// plain object field (view.ObjectView.Object) or, when indexed, an element
// of a reference-array field (view.ObjectView.Index). createIfMissing
// governs whether missing intermediates are materialized (spec "on a
// missing intermediate it allocates an object container with a default
// empty layout").
func walk(root view.ObjectView, segs []Segment, createIfMissing bool) (view.ObjectView, error) {
	cur := root
	for _, seg := range segs {
		if cur.IsNull() {
			return view.ObjectView{}, errs.New(errs.InvalidArgument, "query.walk", "missing intermediate container")
		}
		var err error
		if seg.HasIndex {
			cur, err = cur.Index(seg.Name, seg.Index, createIfMissing, layout.Empty)
		} else {
			cur, err = cur.Object(seg.Name, createIfMissing, layout.Empty)
		}
		if err != nil {
			return view.ObjectView{}, err
		}
		if cur.IsNull() {
			return view.ObjectView{}, errs.New(errs.InvalidArgument, "query.walk", "missing intermediate container")
		}
	}
	return cur, nil
}

// GetObjectByPath walks path from root, allocating missing intermediates
// (and indexed elements) when createIfMissing is set, and returns the
// container it addresses (spec §4.8 "get_object_by_path").
func GetObjectByPath(root view.ObjectView, path string, createIfMissing bool) (view.ObjectView, error) {
	segs, err := Parse(path)
	if err != nil {
		return view.ObjectView{}, err
	}
	return walk(root, segs, createIfMissing)
}

// ReadPath navigates path without allocation and reads the final scalar
// field as T; a missing intermediate is an error (spec "read_path<T>
// navigates without allocation ... missing intermediates throw").
func ReadPath[T core.Scalar](root view.ObjectView, path string) (T, error) {
	var zero T
	segs, err := Parse(path)
	if err != nil {
		return zero, err
	}
	if len(segs) == 0 {
		return zero, errs.New(errs.InvalidArgument, "query.ReadPath", "empty path")
	}
	parent, err := walk(root, segs[:len(segs)-1], false)
	if err != nil {
		return zero, err
	}
	return view.Read[T](parent, segs[len(segs)-1].Name)
}

// WritePath navigates path, allocating intermediates as needed, and writes
// value into the leaf scalar field (spec "write_path<T>(path, value)
// allocates intermediate objects; the leaf segment becomes a scalar field
// of the given type").
func WritePath[T core.Scalar](root view.ObjectView, path string, value T) error {
	segs, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errs.New(errs.InvalidArgument, "query.WritePath", "empty path")
	}
	parent, err := walk(root, segs[:len(segs)-1], true)
	if err != nil {
		return err
	}
	return view.Write[T](parent, segs[len(segs)-1].Name, value, true)
}

// WriteArrayPath navigates path, allocating intermediates as needed, and
// installs values as an inline value array at the leaf segment (spec
// "write_array_path<T>(path, values) installs an inline value array").
func WriteArrayPath[T core.Scalar](root view.ObjectView, path string, values []T) error {
	segs, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errs.New(errs.InvalidArgument, "query.WriteArrayPath", "empty path")
	}
	parent, err := walk(root, segs[:len(segs)-1], true)
	if err != nil {
		return err
	}
	leaf := segs[len(segs)-1].Name
	vals := make([]any, len(values))
	for i, val := range values {
		vals[i] = val
	}
	return parent.SetInlineArrayAnyKind(leaf, core.KindOf[T](), vals)
}

// WriteStringPath navigates path, allocating intermediates as needed, and
// installs s as a string container at the leaf segment (spec
// "write_path(path, string) installs a string").
func WriteStringPath(root view.ObjectView, path string, s string) error {
	segs, err := Parse(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errs.New(errs.InvalidArgument, "query.WriteStringPath", "empty path")
	}
	parent, err := walk(root, segs[:len(segs)-1], true)
	if err != nil {
		return err
	}
	return parent.WriteString(segs[len(segs)-1].Name, s)
}
