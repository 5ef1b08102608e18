package accel

import "fmt"

// Axis identifies which axis a validation error belongs to.
type Axis string

const (
	AxisX      Axis = "x"
	AxisY      Axis = "y"
	AxisGlobal Axis = "global"
)

// ValidationError reports one field outside its family's bounds.
type ValidationError struct {
	Axis   Axis
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Axis == "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s.%s %s", e.Axis, e.Field, e.Reason)
}

// ValidateArgs checks the active fields of args against family. It never fails
// hard; an empty result means args are valid.
func ValidateArgs(family Family, args AccelArgs) []ValidationError {
	var errs []ValidationError
	for _, f := range Fields() {
		if !family.Active(f) {
			continue
		}
		c, ok := family.Bound(f)
		if !ok {
			continue
		}
		if reason := c.Check(args.Get(f)); reason != "" {
			errs = append(errs, ValidationError{Field: f.String(), Reason: reason})
		}
	}
	return errs
}

// WithAxis stamps axis on every error in errs and returns it.
func WithAxis(axis Axis, errs []ValidationError) []ValidationError {
	for i := range errs {
		errs[i].Axis = axis
	}
	return errs
}
