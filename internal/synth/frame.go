package synth

import "fmt"

// Frame is a small column-oriented table: the interchange format between
// the synthesizer and its callers. Columns are either numeric or
// categorical; all columns of a frame share one row count. Construction
// errors are deferred to Err so frames can be built fluently.
type Frame struct {
	n           int
	order       []string
	numeric     map[string][]float64
	categorical map[string][]string
	err         error
}

func NewFrame() *Frame {
	return &Frame{
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
	}
}

// AddNumeric appends a numeric column. The first column fixes the row
// count; later columns must match it.
func (f *Frame) AddNumeric(name string, values []float64) *Frame {
	if f.admit(name, len(values)) {
		f.numeric[name] = values
	}
	return f
}

// AddCategorical appends a categorical column.
func (f *Frame) AddCategorical(name string, values []string) *Frame {
	if f.admit(name, len(values)) {
		f.categorical[name] = values
	}
	return f
}

func (f *Frame) admit(name string, n int) bool {
	if f.err != nil {
		return false
	}
	_, dupNum := f.numeric[name]
	_, dupCat := f.categorical[name]
	if dupNum || dupCat {
		f.err = fmt.Errorf("column %q already present", name)
		return false
	}
	if len(f.order) == 0 {
		f.n = n
	} else if n != f.n {
		f.err = fmt.Errorf("column %q has %d rows, frame has %d", name, n, f.n)
		return false
	}
	f.order = append(f.order, name)
	return true
}

// Err reports the first construction error, if any.
func (f *Frame) Err() error { return f.err }

// Len returns the row count.
func (f *Frame) Len() int { return f.n }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Numeric returns a numeric column, or nil if absent.
func (f *Frame) Numeric(name string) []float64 { return f.numeric[name] }

// Categorical returns a categorical column, or nil if absent.
func (f *Frame) Categorical(name string) []string { return f.categorical[name] }
