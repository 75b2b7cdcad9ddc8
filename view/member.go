package view

import (
	"github.com/scenetree/scenetree/errs"
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
)

// MemberView addresses one element of an array container by index (spec
// §4.7 "member view ... holds (id, generation, optional field-or-index)").
// Unlike ArrayView, which addresses the whole array, a MemberView pins a
// single slot; ArrayView.Member produces it.
type MemberView struct {
	r     ref
	index int
}

func newMemberView(c *core.Container, index int) MemberView {
	return MemberView{r: refOf(c), index: index}
}

// IsNull reports whether v addresses no array container.
func (v MemberView) IsNull() bool { return v.r.isNull() }

// Index returns the element index v addresses.
func (v MemberView) Index() int { return v.index }

func (v MemberView) container(op string) (*core.Container, error) {
	return v.r.resolve(op)
}

// Object resolves this element of a reference array as an ObjectView,
// materializing it when empty and createIfMissing is set (spec "[i] indexes
// an array container, creating element objects if needed").
func (v MemberView) Object(createIfMissing bool, defaultLayout *layout.Layout) (ObjectView, error) {
	c, err := v.container("MemberView.Object")
	if err != nil {
		return ObjectView{}, err
	}
	child, err := c.IndexReference(layout.ArrayFieldName, v.index, createIfMissing, defaultLayout)
	if err != nil {
		return ObjectView{}, err
	}
	if child == nil {
		return ObjectView{}, nil
	}
	return NewObjectView(child), nil
}

// ReadMember reads this element of a value array as T.
func ReadMember[T core.Scalar](v MemberView) (T, error) {
	var zero T
	c, err := v.container("MemberView.Read")
	if err != nil {
		return zero, err
	}
	all, err := core.ReadInlineArray[T](c, layout.ArrayFieldName)
	if err != nil {
		return zero, err
	}
	if v.index < 0 || v.index >= len(all) {
		return zero, errs.Newf(errs.IndexOutOfRange, "MemberView.Read", "index %d out of range (len %d)", v.index, len(all))
	}
	return all[v.index], nil
}

// WriteMember writes this element of a value array.
func WriteMember[T core.Scalar](v MemberView, value T) error {
	c, err := v.container("MemberView.Write")
	if err != nil {
		return err
	}
	return core.WriteInlineArrayElem[T](c, layout.ArrayFieldName, v.index, value)
}
