package log

// Standard attribute keys for training events. Keeping keys consistent makes
// traces filterable when GOFA logs are aggregated with application logs.
const (
	// ComponentKey identifies the emitting package ("gofa", "gofa.data",
	// "gofa.engine").
	ComponentKey = "component"

	// OperationKey names the operation: "align", "scale", "fit", "save", "load".
	OperationKey = "op"

	// ViewKey names the data view an event refers to.
	ViewKey = "view"

	// GroupKey names the sample group an event refers to.
	GroupKey = "group"

	// FactorKey is the factor index an event refers to.
	FactorKey = "factor"

	// IterationKey is the training iteration index.
	IterationKey = "iteration"

	// ELBOKey is the evidence lower bound at the logged iteration.
	ELBOKey = "elbo"

	// DeltaELBOKey is the relative ELBO change at the logged iteration.
	DeltaELBOKey = "delta_elbo"

	// SamplesKey is the number of samples in an event's scope.
	SamplesKey = "samples"

	// FeaturesKey is the number of features in an event's scope.
	FeaturesKey = "features"

	// LikelihoodKey is the likelihood family of a view.
	LikelihoodKey = "likelihood"
)
