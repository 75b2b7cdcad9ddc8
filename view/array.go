package view

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// ArrayView addresses a container in its "array" role: a single
// distinguished payload field holding either inline values or references
// (spec glossary "Array container").
type ArrayView struct{ r ref }

// IsNull reports whether v addresses no array container.
func (v ArrayView) IsNull() bool { return v.r.isNull() }

func (v ArrayView) container(op string) (*core.Container, error) {
	return v.r.resolve(op)
}

// Len returns the array's element count.
func (v ArrayView) Len() (int, error) {
	c, err := v.container("ArrayView.Len")
	if err != nil {
		return 0, err
	}
	f, ok := c.Layout().ArrayField()
	if !ok {
		return 0, errs.New(errs.InvalidState, "ArrayView.Len", "not an array container")
	}
	return f.ArrayLen, nil
}

// ElementKind returns the array's declared element type.
func (v ArrayView) ElementKind() (types.Kind, error) {
	c, err := v.container("ArrayView.ElementKind")
	if err != nil {
		return types.Unknown, err
	}
	f, ok := c.Layout().ArrayField()
	if !ok {
		return types.Unknown, errs.New(errs.InvalidState, "ArrayView.ElementKind", "not an array container")
	}
	return f.Elem, nil
}

// IsString reports whether v is an array container of Char16 elements
// (spec glossary "String: an array container with Char16 elements").
func (v ArrayView) IsString() bool {
	c, err := v.container("ArrayView.IsString")
	if err != nil {
		return false
	}
	return c.Layout().IsStringContainer()
}

// ReadAll returns a copy of the array's elements as []T (spec "read_array",
// applied to an array-container rather than an inline field).
func ReadAll[T core.Scalar](v ArrayView) ([]T, error) {
	c, err := v.container("ArrayView.ReadAll")
	if err != nil {
		return nil, err
	}
	return core.ReadInlineArray[T](c, layout.ArrayFieldName)
}

// WriteAt writes element index of a value array.
func WriteAt[T core.Scalar](v ArrayView, index int, value T) error {
	c, err := v.container("ArrayView.WriteAt")
	if err != nil {
		return err
	}
	return core.WriteInlineArrayElem[T](c, layout.ArrayFieldName, index, value)
}

// TryWriteAt is WriteAt reporting success instead of an error.
func TryWriteAt[T core.Scalar](v ArrayView, index int, value T) bool {
	return WriteAt[T](v, index, value) == nil
}

// ObjectAt resolves element index of an object-reference array,
// materializing an element object when empty and createIfMissing is set
// (spec §4.8 "[i] indexes an array container, creating element objects if
// needed").
func (v ArrayView) ObjectAt(index int, createIfMissing bool, defaultLayout *layout.Layout) (ObjectView, error) {
	c, err := v.container("ArrayView.ObjectAt")
	if err != nil {
		return ObjectView{}, err
	}
	child, err := c.IndexReference(layout.ArrayFieldName, index, createIfMissing, defaultLayout)
	if err != nil {
		return ObjectView{}, err
	}
	if child == nil {
		return ObjectView{}, nil
	}
	return NewObjectView(child), nil
}

// Member addresses one element by index as a MemberView.
func (v ArrayView) Member(index int) (MemberView, error) {
	c, err := v.container("ArrayView.Member")
	if err != nil {
		return MemberView{}, err
	}
	return newMemberView(c, index), nil
}

// ReadString decodes a Char16 array-container's contents into a Go string.
func (v ArrayView) ReadString() (string, error) {
	units, err := ReadAll[types.CharUnit](v)
	if err != nil {
		return "", err
	}
	u16 := make([]uint16, len(units))
	for i, u := range units {
		u16[i] = uint16(u)
	}
	return decodeUTF16(u16), nil
}
