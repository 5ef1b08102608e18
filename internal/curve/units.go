package curve

import "errors"

// Units converts the raw counts/ms domain into real-world units for labels.
// It never changes the curve itself.
type Units struct {
	DPI      uint32
	PollRate uint32
}

// defaultChartInches is how far the default sample domain reaches, in inches per second.
const defaultChartInches = 50

// Validate rejects zero DPI or poll rate.
func (u Units) Validate() error {
	if u.DPI == 0 {
		return errors.New("dpi must be positive")
	}
	if u.PollRate == 0 {
		return errors.New("poll rate must be positive")
	}
	return nil
}

// InchesPerSecond converts counts/ms.
func (u Units) InchesPerSecond(countsPerMs float64) float64 {
	return countsPerMs * 1000 / float64(u.DPI)
}

// CountsPerMs converts inches per second back to counts/ms.
func (u Units) CountsPerMs(inchesPerSecond float64) float64 {
	return inchesPerSecond * float64(u.DPI) / 1000
}

// CountsPerReport is the number of counts one report carries at countsPerMs.
func (u Units) CountsPerReport(countsPerMs float64) float64 {
	return countsPerMs * 1000 / float64(u.PollRate)
}

// DefaultDomain is the sample domain used when the caller gives none.
func (u Units) DefaultDomain() float64 {
	return u.CountsPerMs(defaultChartInches)
}

// Annotated is a sample labelled in inches per second and in counts per report
// at the poll rate.
type Annotated struct {
	Sample
	InputIPS     float64 `json:"input_ips"`
	OutputIPS    float64 `json:"output_ips"`
	InputCounts  float64 `json:"input_counts_per_report"`
	OutputCounts float64 `json:"output_counts_per_report"`
}

// Annotate labels samples without modifying them.
func (u Units) Annotate(samples []Sample) []Annotated {
	out := make([]Annotated, len(samples))
	for i, s := range samples {
		out[i] = Annotated{
			Sample:    s,
			InputIPS:     u.InchesPerSecond(s.InputSpeed),
			OutputIPS:    u.InchesPerSecond(s.OutputSpeed),
			InputCounts:  u.CountsPerReport(s.InputSpeed),
			OutputCounts: u.CountsPerReport(s.OutputSpeed),
		}
	}
	return out
}
