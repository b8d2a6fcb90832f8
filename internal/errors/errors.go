// Package errors provides a helper for layering a public sentinel error on
// top of an underlying cause while keeping both visible to errors.Is and
// errors.As.
package errors

// With returns an error that represents top stacked on top of the base error.
// The returned error reports the base error's message; both errors remain
// matchable.
func With(base, top error) error {
	if base == nil && top == nil {
		return nil
	}
	if top == nil {
		return base
	}
	if base == nil {
		return top
	}
	return union{base: base, top: top}
}

type union struct {
	base error
	top  error
}

func (u union) Error() string {
	return u.base.Error()
}

// Unwrap exposes both branches so errors.Is/As traverse the top error first
// and then the underlying cause.
func (u union) Unwrap() []error {
	return []error{u.top, u.base}
}
