// Package data aligns multiple named views onto a shared sample axis and
// builds the missingness masks the inference engine accumulates over.
// Construction copies the input matrices; callers' data is never mutated.
package data

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
	"github.com/YuminosukeSato/gofa/pkg/log"
)

// ViewInput is one unaligned view as handed over by the data-loading layer:
// a feature-by-sample matrix with its identifiers. NaN entries are treated
// as missing; Mask (optional, same shape) marks additional missing entries
// with true.
type ViewInput struct {
	Name     string
	Features []string
	Samples  []string
	Data     *mat.Dense // features x samples
	Mask     [][]bool   // optional, features x samples, true = missing
}

// View is one aligned view inside a Container. Data indexes the container's
// shared sample axis; missing entries hold zero and are excluded from every
// accumulation through Obs.
type View struct {
	Name     string
	Features []string
	Data     *mat.Dense // features x aligned samples
	Obs      []bool     // row-major features x samples, true = observed
	NObs     int        // number of observed entries
}

// Observed reports whether entry (feature d, sample n) is observed.
func (v *View) Observed(d, n int) bool {
	_, cols := v.Data.Dims()
	return v.Obs[d*cols+n]
}

// Dims returns (features, samples).
func (v *View) Dims() (int, int) {
	return v.Data.Dims()
}

// Container holds the aligned views, the shared sample axis and the optional
// sample grouping. It is immutable after construction.
type Container struct {
	Samples    []string
	Views      []*View
	GroupNames []string
	GroupOf    []int   // group index per sample
	GroupIdx   [][]int // sample indices per group
}

// NumSamples returns the length of the shared sample axis.
func (c *Container) NumSamples() int { return len(c.Samples) }

// NumViews returns the number of views.
func (c *Container) NumViews() int { return len(c.Views) }

// NumGroups returns the number of sample groups (1 when no grouping was given).
func (c *Container) NumGroups() int { return len(c.GroupNames) }

// ViewByName returns the aligned view with the given name, or nil.
func (c *Container) ViewByName(name string) *View {
	for _, v := range c.Views {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// NewContainer aligns the given views onto a shared sample axis.
//
// The shared axis is the union (default) or intersection of the views'
// samples, per opts.Alignment; sample order follows first appearance across
// views. A sample absent from a view keeps its position on the shared axis
// with that view's entries marked missing. groups optionally maps sample
// identifiers to group labels; samples without a label fall into the
// implicit "group0".
func NewContainer(inputs []ViewInput, groups map[string]string, opts config.DataOptions) (*Container, error) {
	if len(inputs) == 0 {
		return nil, errors.NewDataShapeError("", "no views given")
	}

	for _, in := range inputs {
		if err := validateInput(in); err != nil {
			return nil, err
		}
	}

	samples, err := alignSamples(inputs, opts.Alignment)
	if err != nil {
		return nil, err
	}

	c := &Container{Samples: samples}
	c.buildGroups(groups)

	pos := make(map[string]int, len(samples))
	for i, s := range samples {
		pos[s] = i
	}

	for _, in := range inputs {
		c.Views = append(c.Views, alignView(in, samples, pos))
	}

	if opts.ScaleGroups {
		c.scaleGroups()
	} else if opts.ScaleViews {
		c.scaleViews()
	}

	logger := log.Logger().With().Str(log.ComponentKey, "gofa.data").Logger()
	for _, v := range c.Views {
		d, n := v.Dims()
		logger.Debug().
			Str(log.OperationKey, "align").
			Str(log.ViewKey, v.Name).
			Int(log.FeaturesKey, d).
			Int(log.SamplesKey, n).
			Int("observed", v.NObs).
			Msg("view aligned")
	}

	return c, nil
}

func validateInput(in ViewInput) error {
	if in.Data == nil {
		return errors.NewDataShapeError(in.Name, "nil data matrix")
	}
	d, n := in.Data.Dims()
	if d == 0 || n == 0 {
		return errors.NewDataShapeError(in.Name, "empty data matrix")
	}
	if len(in.Features) != d {
		return errors.NewDataShapeError(in.Name, "feature identifiers do not match matrix rows")
	}
	if len(in.Samples) != n {
		return errors.NewDataShapeError(in.Name, "sample identifiers do not match matrix columns")
	}
	seen := make(map[string]struct{}, d)
	for _, f := range in.Features {
		if _, dup := seen[f]; dup {
			return errors.NewDataShapeError(in.Name, "duplicate feature identifier "+f)
		}
		seen[f] = struct{}{}
	}
	seenS := make(map[string]struct{}, n)
	for _, s := range in.Samples {
		if _, dup := seenS[s]; dup {
			return errors.NewDataShapeError(in.Name, "duplicate sample identifier "+s)
		}
		seenS[s] = struct{}{}
	}
	if in.Mask != nil {
		if len(in.Mask) != d {
			return errors.NewDataShapeError(in.Name, "mask rows do not match matrix rows")
		}
		for _, row := range in.Mask {
			if len(row) != n {
				return errors.NewDataShapeError(in.Name, "mask columns do not match matrix columns")
			}
		}
	}
	return nil
}

func alignSamples(inputs []ViewInput, alignment config.Alignment) ([]string, error) {
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		names = append(names, in.Name)
	}

	var samples []string
	switch alignment {
	case config.Intersection:
		counts := make(map[string]int)
		for _, in := range inputs {
			for _, s := range in.Samples {
				counts[s]++
			}
		}
		for _, s := range inputs[0].Samples {
			if counts[s] == len(inputs) {
				samples = append(samples, s)
			}
		}
	default: // union
		seen := make(map[string]struct{})
		for _, in := range inputs {
			for _, s := range in.Samples {
				if _, ok := seen[s]; !ok {
					seen[s] = struct{}{}
					samples = append(samples, s)
				}
			}
		}
	}

	if len(samples) == 0 {
		return nil, errors.NewSampleAlignmentError(alignment.String(), names)
	}
	return samples, nil
}

func alignView(in ViewInput, samples []string, pos map[string]int) *View {
	d, _ := in.Data.Dims()
	n := len(samples)

	v := &View{
		Name:     in.Name,
		Features: append([]string(nil), in.Features...),
		Data:     mat.NewDense(d, n, nil),
		Obs:      make([]bool, d*n),
	}

	for col, s := range in.Samples {
		j, ok := pos[s]
		if !ok {
			continue // dropped by intersection alignment
		}
		for i := 0; i < d; i++ {
			val := in.Data.At(i, col)
			missing := math.IsNaN(val) || (in.Mask != nil && in.Mask[i][col])
			if missing {
				continue
			}
			v.Data.Set(i, j, val)
			v.Obs[i*n+j] = true
			v.NObs++
		}
	}
	return v
}

func (c *Container) buildGroups(groups map[string]string) {
	if len(groups) == 0 {
		c.GroupNames = []string{"group0"}
		c.GroupOf = make([]int, len(c.Samples))
		idx := make([]int, len(c.Samples))
		for i := range idx {
			idx[i] = i
		}
		c.GroupIdx = [][]int{idx}
		return
	}

	index := make(map[string]int)
	c.GroupOf = make([]int, len(c.Samples))
	for i, s := range c.Samples {
		label, ok := groups[s]
		if !ok {
			label = "group0"
		}
		g, ok := index[label]
		if !ok {
			g = len(c.GroupNames)
			index[label] = g
			c.GroupNames = append(c.GroupNames, label)
			c.GroupIdx = append(c.GroupIdx, nil)
		}
		c.GroupOf[i] = g
		c.GroupIdx[g] = append(c.GroupIdx[g], i)
	}
}
