package view

import (
	"github.com/scenetree/scenetree/internal/core"
	"github.com/scenetree/scenetree/layout"
	"github.com/scenetree/scenetree/types"
)

// FieldView addresses one named field of a container without committing to
// what role that field plays (scalar, reference, array) — the query
// package uses it to check a field's presence and kind (spec §4.7 "field view ... holds (id, generation, optional
// field-or-index)").
type FieldView struct {
	r     ref
	field string
}

func newFieldView(c *core.Container, field string) FieldView {
	return FieldView{r: refOf(c), field: field}
}

// IsNull reports whether v addresses no container.
func (v FieldView) IsNull() bool { return v.r.isNull() }

// Name returns the field name v addresses.
func (v FieldView) Name() string { return v.field }

func (v FieldView) container(op string) (*core.Container, error) {
	return v.r.resolve(op)
}

// Exists reports whether the addressed container still carries this field.
func (v FieldView) Exists() bool {
	c, err := v.container("FieldView.Exists")
	if err != nil {
		return false
	}
	return c.HasField(v.field)
}

// Kind returns the field's current element kind, or false if the field or
// its container is gone.
func (v FieldView) Kind() (types.Kind, bool) {
	c, err := v.container("FieldView.Kind")
	if err != nil {
		return types.Unknown, false
	}
	h, ok := c.Layout().Field(v.field)
	if !ok {
		return types.Unknown, false
	}
	return h.Elem, true
}

// Delete removes this one field, cascading disposal of any subtree it held.
func (v FieldView) Delete() (int, error) {
	c, err := v.container("FieldView.Delete")
	if err != nil {
		return 0, err
	}
	return c.Delete(v.field)
}

// Rename renames this field in place; v keeps pointing at the field under
// its new name.
func (v *FieldView) Rename(newName string) error {
	c, err := v.container("FieldView.Rename")
	if err != nil {
		return err
	}
	if err := c.Rename(v.field, newName); err != nil {
		return err
	}
	v.field = newName
	return nil
}

// AsObject resolves the field as a reference to a child object (spec
// "expect().object()").
func (v FieldView) AsObject(createIfMissing bool, defaultLayout *layout.Layout) (ObjectView, error) {
	c, err := v.container("FieldView.AsObject")
	if err != nil {
		return ObjectView{}, err
	}
	child, err := c.GetObject(v.field, createIfMissing, defaultLayout)
	if err != nil {
		return ObjectView{}, err
	}
	if child == nil {
		return ObjectView{}, nil
	}
	return NewObjectView(child), nil
}

// AsArray resolves the field as a reference to an array-container child
// (spec "expect().array<T>()" / "expect().object_array()").
func (v FieldView) AsArray(elem types.Kind, length int, createIfMissing, overrideExisting bool) (ArrayView, error) {
	c, err := v.container("FieldView.AsArray")
	if err != nil {
		return ArrayView{}, err
	}
	child, err := c.GetArray(v.field, elem, length, createIfMissing, overrideExisting)
	if err != nil {
		return ArrayView{}, err
	}
	if child == nil {
		return ArrayView{}, nil
	}
	return ArrayView{r: refOf(child)}, nil
}

// AsScalar narrows v to a ScalarView over the same field (spec
// "expect().scalar<T>()").
func (v FieldView) AsScalar() ScalarView {
	return ScalarView{r: v.r, field: v.field}
}

// AsString reads the field as a string container (spec "expect().string()").
func (v FieldView) AsString() (string, error) {
	c, err := v.container("FieldView.AsString")
	if err != nil {
		return "", err
	}
	return ObjectView{r: refOf(c)}.ReadString(v.field)
}

// ScalarView addresses a single field to be read or written as a scalar.
// Its helpers go through the same scalar read/write path as ObjectView, so
// reference and array fields are still rejected there (spec §4.7 "scalar
// view").
type ScalarView struct {
	r     ref
	field string
}

// IsNull reports whether v addresses no container.
func (v ScalarView) IsNull() bool { return v.r.isNull() }

// Name returns the field name v addresses.
func (v ScalarView) Name() string { return v.field }

func (v ScalarView) container(op string) (*core.Container, error) {
	return v.r.resolve(op)
}

// ReadScalarField reads the addressed field as T.
func ReadScalarField[T core.Scalar](v ScalarView) (T, error) {
	var zero T
	c, err := v.container("ScalarView.Read")
	if err != nil {
		return zero, err
	}
	return core.ReadScalar[T](c, v.field)
}

// TryReadScalarField is ReadScalarField without the error.
func TryReadScalarField[T core.Scalar](v ScalarView) (T, bool) {
	c, err := v.container("ScalarView.TryRead")
	if err != nil {
		var zero T
		return zero, false
	}
	return core.TryReadScalar[T](c, v.field)
}

// WriteScalarField writes value into the addressed field.
func WriteScalarField[T core.Scalar](v ScalarView, value T, allowReschema bool) error {
	c, err := v.container("ScalarView.Write")
	if err != nil {
		return err
	}
	return core.WriteScalar[T](c, v.field, value, allowReschema)
}

// Exists reports whether the addressed field is still present.
func (v ScalarView) Exists() bool {
	c, err := v.container("ScalarView.Exists")
	if err != nil {
		return false
	}
	return c.HasField(v.field)
}
