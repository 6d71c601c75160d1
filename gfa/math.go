package gfa

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

func digamma(x float64) float64 {
	return mathext.Digamma(x)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

func lnBeta(a, b float64) float64 {
	return lgamma(a) + lgamma(b) - lgamma(a+b)
}

// gammaELBOTerm is E[ln p(x)] - E[ln q(x)] for q(x)=Gamma(a,b) against the
// prior Gamma(a0,b0), using E[x]=a/b and E[ln x]=digamma(a)-ln b.
func gammaELBOTerm(a0, b0, a, b float64) float64 {
	elnx := digamma(a) - math.Log(b)
	ex := a / b
	logp := a0*math.Log(b0) - lgamma(a0) + (a0-1)*elnx - b0*ex
	logq := a*math.Log(b) - lgamma(a) + (a-1)*elnx - b*ex
	return logp - logq
}

// betaELBOTerm is E[ln p(theta)] - E[ln q(theta)] for q=Beta(a,b) against the
// prior Beta(a0,b0).
func betaELBOTerm(a0, b0, a, b float64) float64 {
	elnt := digamma(a) - digamma(a+b)
	eln1mt := digamma(b) - digamma(a+b)
	logp := (a0-1)*elnt + (b0-1)*eln1mt - lnBeta(a0, b0)
	logq := (a-1)*elnt + (b-1)*eln1mt - lnBeta(a, b)
	return logp - logq
}

// bernoulliEntropy is -s ln s - (1-s) ln(1-s), safe at the endpoints.
func bernoulliEntropy(s float64) float64 {
	var h float64
	if s > 0 {
		h -= s * math.Log(s)
	}
	if s < 1 {
		h -= (1 - s) * math.Log(1-s)
	}
	return h
}
