package gfa

import (
	"encoding/gob"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gofa/config"
	"github.com/YuminosukeSato/gofa/pkg/errors"
)

// FormatVersion tags the serialized model artifact. Load rejects artifacts
// written with a different version.
const FormatVersion = 1

// modelArtifact is the serialized form of a TrainedModel. Matrices are
// flattened to row-major slices so the artifact round-trips through gob
// without touching gonum internals.
type modelArtifact struct {
	FormatVersion int

	Config     config.Config
	Samples    []string
	GroupNames []string
	GroupOf    []int

	Views []viewArtifact

	NumSamples int
	NumFactors int
	Z          []float64

	ELBOTrace  []float64
	Converged  bool
	Iterations int

	Variance *VarianceTable
	State    *TrainingState
}

type viewArtifact struct {
	Name       string
	Features   []string
	Likelihood config.Likelihood

	NumFeatures int
	NumFactors  int
	Weights     []float64
	WeightVars  []float64
	Inclusion   []float64

	Intercepts     []float64
	NoiseA, NoiseB []float64
	AlphaA, AlphaB []float64
	ThetaA, ThetaB []float64
}

// Save writes the model to w as a gob-encoded, versioned artifact.
func (m *TrainedModel) Save(w io.Writer) error {
	n, k := m.Z.Dims()
	art := modelArtifact{
		FormatVersion: FormatVersion,
		Config:        m.Config,
		Samples:       m.Samples,
		GroupNames:    m.GroupNames,
		GroupOf:       m.GroupOf,
		NumSamples:    n,
		NumFactors:    k,
		Z:             append([]float64(nil), m.Z.RawMatrix().Data...),
		ELBOTrace:     m.ELBOTrace,
		Converged:     m.Converged,
		Iterations:    m.Iterations,
		Variance:      m.variance,
		State:         m.State,
	}
	for i := range m.Views {
		v := &m.Views[i]
		d, _ := v.Weights.Dims()
		va := viewArtifact{
			Name:        v.Name,
			Features:    v.Features,
			Likelihood:  v.Likelihood,
			NumFeatures: d,
			NumFactors:  k,
			Weights:     append([]float64(nil), v.Weights.RawMatrix().Data...),
			WeightVars:  append([]float64(nil), v.WeightVars.RawMatrix().Data...),
			Intercepts:  v.Intercepts,
			NoiseA:      v.NoiseA,
			NoiseB:      v.NoiseB,
			AlphaA:      v.AlphaA,
			AlphaB:      v.AlphaB,
			ThetaA:      v.ThetaA,
			ThetaB:      v.ThetaB,
		}
		if v.Inclusion != nil {
			va.Inclusion = append([]float64(nil), v.Inclusion.RawMatrix().Data...)
		}
		art.Views = append(art.Views, va)
	}

	if err := gob.NewEncoder(w).Encode(&art); err != nil {
		return errors.NewPersistenceError("save", "gob encoding failed", err)
	}
	return nil
}

// SaveFile saves the model to path, creating or truncating the file.
func (m *TrainedModel) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewPersistenceError("save", "cannot create "+path, err)
	}
	defer f.Close()

	if err := m.Save(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewPersistenceError("save", "cannot flush "+path, err)
	}
	return nil
}

// Load reads a model artifact from r. A corrupt stream or a format version
// mismatch fails with a PersistenceError; a partially populated model is
// never returned.
func Load(r io.Reader) (*TrainedModel, error) {
	var art modelArtifact
	if err := gob.NewDecoder(r).Decode(&art); err != nil {
		return nil, errors.NewPersistenceError("load", "gob decoding failed", err)
	}
	if art.FormatVersion != FormatVersion {
		return nil, errors.NewPersistenceError("load",
			"unsupported format version", errors.Newf("got %d, want %d", art.FormatVersion, FormatVersion))
	}
	if len(art.Z) != art.NumSamples*art.NumFactors {
		return nil, errors.NewPersistenceError("load", "factor matrix size mismatch", nil)
	}

	m := &TrainedModel{
		Config:     art.Config,
		Samples:    art.Samples,
		GroupNames: art.GroupNames,
		GroupOf:    art.GroupOf,
		Z:          mat.NewDense(art.NumSamples, art.NumFactors, art.Z),
		ELBOTrace:  art.ELBOTrace,
		Converged:  art.Converged,
		Iterations: art.Iterations,
		State:      art.State,
		variance:   art.Variance,
	}
	for _, va := range art.Views {
		if len(va.Weights) != va.NumFeatures*va.NumFactors {
			return nil, errors.NewPersistenceError("load", "weight matrix size mismatch in view "+va.Name, nil)
		}
		vp := ViewParams{
			Name:       va.Name,
			Features:   va.Features,
			Likelihood: va.Likelihood,
			Weights:    mat.NewDense(va.NumFeatures, va.NumFactors, va.Weights),
			WeightVars: mat.NewDense(va.NumFeatures, va.NumFactors, va.WeightVars),
			Intercepts: va.Intercepts,
			NoiseA:     va.NoiseA,
			NoiseB:     va.NoiseB,
			AlphaA:     va.AlphaA,
			AlphaB:     va.AlphaB,
			ThetaA:     va.ThetaA,
			ThetaB:     va.ThetaB,
		}
		if va.Inclusion != nil {
			vp.Inclusion = mat.NewDense(va.NumFeatures, va.NumFactors, va.Inclusion)
		}
		m.Views = append(m.Views, vp)
	}
	return m, nil
}

// LoadFile loads a model artifact from path.
func LoadFile(path string) (*TrainedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewPersistenceError("load", "cannot open "+path, err)
	}
	defer f.Close()
	return Load(f)
}
