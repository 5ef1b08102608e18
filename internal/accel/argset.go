package accel

import (
	"strconv"
	"strings"

	"rawaccel/internal/abi"
)

// ArgumentSet is the editable parameter bag for one axis. Values come in from
// the shell as raw text and are only checked when Validate is called.
type ArgumentSet struct {
	family Family
	args   AccelArgs
	edited FieldSet

	// parse failures keyed by field, reported by Validate
	invalid map[Field]string
}

// NewArgumentSet starts with family's defaults.
func NewArgumentSet(family Family) *ArgumentSet {
	s := &ArgumentSet{}
	s.args = family.Defaults
	s.ApplyFamilyDefaults(family)
	return s
}

// ArgumentSetFrom wraps args read from the driver. Every active field counts as edited
// so switching families and back keeps the driver's values. Fields family hides are
// reset to its defaults, whatever the record carried.
func ArgumentSetFrom(family Family, args AccelArgs) *ArgumentSet {
	s := &ArgumentSet{args: args}
	for _, f := range Fields() {
		if family.Active(f) {
			s.edited = s.edited.With(f)
		}
	}
	s.ApplyFamilyDefaults(family)
	return s
}

// Family returns the selected family.
func (s *ArgumentSet) Family() Family { return s.family }

// Args returns a copy of the current values.
func (s *ArgumentSet) Args() AccelArgs { return s.args }

// Value returns the current value of f.
func (s *ArgumentSet) Value(f Field) float64 { return s.args.Get(f) }

// SetField parses raw as a float and stores it. A parse failure is kept and
// reported by Validate; the previous value is left untouched.
func (s *ArgumentSet) SetField(f Field, raw string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		if s.invalid == nil {
			s.invalid = make(map[Field]string)
		}
		s.invalid[f] = "is not a number: " + strconv.Quote(raw)
		s.edited = s.edited.With(f)
		return
	}
	s.SetValue(f, v)
}

// SetValue stores v into f.
func (s *ArgumentSet) SetValue(f Field, v float64) {
	delete(s.invalid, f)
	s.args.Set(f, v)
	s.edited = s.edited.With(f)
}

// ApplyFamilyDefaults selects family. Fields it hides are reset to its
// defaults; visible fields keep the user's edits, or take the default if the
// user never touched them.
func (s *ArgumentSet) ApplyFamilyDefaults(family Family) {
	s.family = family
	s.args.Family = family.Index
	for _, f := range Fields() {
		if family.Active(f) && s.edited.Has(f) {
			continue
		}
		s.args.Set(f, family.Defaults.Get(f))
		delete(s.invalid, f)
	}
}

// Validate checks every active field. It returns nil when the set is valid.
func (s *ArgumentSet) Validate() []ValidationError {
	var errs []ValidationError
	bounded := ValidateArgs(s.family, s.args)

	for _, f := range Fields() {
		if !s.family.Active(f) {
			continue
		}
		if reason, ok := s.invalid[f]; ok {
			errs = append(errs, ValidationError{Field: f.String(), Reason: reason})
			continue
		}
		for _, e := range bounded {
			if e.Field == f.String() {
				errs = append(errs, e)
			}
		}
	}
	return errs
}

// ToNativePayload packs the set into the driver's per-axis layout.
func (s *ArgumentSet) ToNativePayload() abi.Args {
	return s.args.ToNative()
}

// ArgumentSets splits s into editable per-axis sets, resolving each axis's
// family through reg.
func ArgumentSets(reg *Registry, s DriverSettings) (x, y *ArgumentSet) {
	return ArgumentSetFrom(reg.Resolve(s.X.Family), s.X), ArgumentSetFrom(reg.Resolve(s.Y.Family), s.Y)
}
