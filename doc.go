// Package gofa implements Bayesian group factor analysis for multi-omics
// data: a small set of latent factors is inferred jointly across several
// views (omics layers) measured on overlapping samples, with per-view
// gaussian, poisson or bernoulli likelihoods, spike-and-slab and automatic
// relevance determination sparsity priors, and first-class handling of
// missing entries and missing view/sample combinations.
//
// Training runs mean-field coordinate-ascent variational inference and is
// deterministic for a fixed seed. A typical session aligns the raw view
// matrices into a container, fits, and queries the result:
//
//	c, err := data.NewContainer(views, groups, cfg.Data)
//	if err != nil { ... }
//	m, err := gfa.Fit(ctx, c, cfg)
//	if err != nil { ... }
//	top, _ := m.Weights("rna", 0, 10, false)
//	ve := m.VarianceExplained()
//
// The subpackages are:
//
//   - config: likelihood, sparsity, convergence and backend options
//   - data: view alignment, masking, scaling and the sample container
//   - gfa: the inference engine, trained model, queries and persistence
//   - metrics: masked reconstruction metrics
//   - pkg/errors, pkg/log: shared error taxonomy and structured logging
package gofa
