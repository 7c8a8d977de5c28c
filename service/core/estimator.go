package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	sm "labfolio/service/models"
)

// singular values below rankTolerance * largest are treated as zero
const rankTolerance = 1e-10

// FitResult is a fitted two pass linear factor model.
// Betas and Alpha are per period, RiskPremia and FactorCovariance are annualized.
type FitResult struct {
	Assets            []string
	Factors           []string
	Betas             *mat.Dense // assets × factors
	Alpha             []float64  // pricing error per asset
	RiskPremia        []float64
	FactorCovariance  *mat.SymDense
	RSquared          float64
	JStatistic        float64
	JDegreesOfFreedom int
	JPValue           float64
	Observations      int
}

// Fit estimates betas by time series OLS of each asset on the factors (with intercept),
// then risk premia by cross sectional OLS of mean asset returns on the betas (no intercept).
// The panels must already be aligned.
func Fit(assets, factors *ReturnPanel) (*FitResult, error) {
	if assets.IsEmpty() || factors.IsEmpty() {
		return nil, numericalError(ErrRankDeficient, "empty input panel")
	}
	if assets.Len() != factors.Len() {
		return nil, numericalError(ErrRankDeficient, "panels are not aligned (%d and %d observations)", assets.Len(), factors.Len())
	}

	nObs, nAssets, nFactors := assets.Len(), assets.Width(), factors.Width()
	if nAssets < nFactors {
		return nil, numericalError(ErrRankDeficient, "%d assets cannot identify %d factors", nAssets, nFactors)
	}
	if nObs <= nFactors+1 {
		return nil, numericalError(ErrRankDeficient, "%d observations for %d parameters per asset", nObs, nFactors+1)
	}

	r := assets.Matrix()
	f := factors.Matrix()

	// design matrix [1 F]
	x := mat.NewDense(nObs, nFactors+1, nil)
	for t := range nObs {
		x.Set(t, 0, 1)
	}
	x.Slice(0, nObs, 1, nFactors+1).(*mat.Dense).Copy(f)

	if rank := columnRank(x); rank < nFactors+1 {
		return nil, numericalError(ErrRankDeficient, "factor returns are collinear (rank %d of %d)", rank, nFactors+1)
	}

	// time series pass
	var coef mat.Dense
	if err := coef.Solve(x, r); err != nil {
		return nil, numericalError(ErrRankDeficient, "time series regression: %s", err)
	}
	betas := mat.DenseCopyOf(coef.Slice(1, nFactors+1, 0, nAssets).T())

	var fitted, resid mat.Dense
	fitted.Mul(x, &coef)
	resid.Sub(r, &fitted)

	meanReturns := make([]float64, nAssets)
	sse, sst := 0.0, 0.0
	for i := range nAssets {
		col := mat.Col(nil, i, r)
		meanReturns[i] = stat.Mean(col, nil)
		for t, v := range col {
			sst += (v - meanReturns[i]) * (v - meanReturns[i])
			sse += resid.At(t, i) * resid.At(t, i)
		}
	}
	if sst == 0 {
		return nil, numericalError(ErrSingularCovariance, "asset returns have no variance")
	}

	// cross sectional pass
	if rank := columnRank(betas); rank < nFactors {
		return nil, numericalError(ErrRankDeficient, "betas are not full rank (rank %d of %d)", rank, nFactors)
	}

	meanVec := mat.NewVecDense(nAssets, meanReturns)
	var lambda mat.VecDense
	if err := lambda.SolveVec(betas, meanVec); err != nil {
		return nil, numericalError(ErrRankDeficient, "cross sectional regression: %s", err)
	}

	var priced, alpha mat.VecDense
	priced.MulVec(betas, &lambda)
	alpha.SubVec(meanVec, &priced)

	jStat, dof, pValue, err := overidentification(betas, &resid, &alpha, meanReturns, r)
	if err != nil {
		return nil, err
	}

	factorCov := mat.NewSymDense(nFactors, nil)
	stat.CovarianceMatrix(factorCov, f, nil)
	factorCov.ScaleSym(sm.Daily, factorCov)

	premia := make([]float64, nFactors)
	for k := range nFactors {
		premia[k] = lambda.AtVec(k) * sm.Daily
	}

	res := &FitResult{
		Assets:            assets.Columns(),
		Factors:           factors.Columns(),
		Betas:             betas,
		Alpha:             mat.Col(nil, 0, &alpha),
		RiskPremia:        premia,
		FactorCovariance:  factorCov,
		RSquared:          math.Max(0, math.Min(1, 1-sse/sst)),
		JStatistic:        jStat,
		JDegreesOfFreedom: dof,
		JPValue:           pValue,
		Observations:      nObs,
	}

	if !res.finite() {
		return nil, numericalError(ErrSingularCovariance, "estimate is not finite")
	}

	return res, nil
}

// overidentification tests whether pricing errors are jointly zero:
// J = α' pinv(V) α, V = (1/T)(I-P) Σe (I-P)', P = B(B'B)^-1 B', χ² with N-K degrees of freedom
func overidentification(betas *mat.Dense, resid *mat.Dense, alpha *mat.VecDense, meanReturns []float64, r *mat.Dense) (float64, int, float64, error) {
	nObs, nAssets := resid.Dims()
	_, nFactors := betas.Dims()

	dof := nAssets - nFactors
	if dof == 0 {
		return 0, 0, 1, nil
	}

	residCov := mat.NewSymDense(nAssets, nil)
	stat.CovarianceMatrix(residCov, resid, nil)

	// residuals indistinguishable from zero next to the returns themselves
	returnVar := 0.0
	for i := range nAssets {
		returnVar += stat.Variance(mat.Col(nil, i, r), nil)
	}
	if mat.Trace(residCov) <= rankTolerance*returnVar {
		return 0, 0, 0, numericalError(ErrSingularCovariance, "residual covariance is zero")
	}

	var btb, btbInv mat.Dense
	btb.Mul(betas.T(), betas)
	if err := btbInv.Inverse(&btb); err != nil {
		return 0, 0, 0, numericalError(ErrSingularCovariance, "beta cross product: %s", err)
	}

	var hat, proj mat.Dense
	hat.Mul(betas, &btbInv)
	proj.Mul(&hat, betas.T())

	annihilator := mat.NewDense(nAssets, nAssets, nil)
	for i := range nAssets {
		annihilator.Set(i, i, 1)
	}
	annihilator.Sub(annihilator, &proj)

	var tmp, v mat.Dense
	tmp.Mul(annihilator, residCov)
	v.Mul(&tmp, annihilator.T())
	v.Scale(1/float64(nObs), &v)

	var svd mat.SVD
	if ok := svd.Factorize(&v, mat.SVDThin); !ok {
		return 0, 0, 0, numericalError(ErrSingularCovariance, "pricing error covariance factorization failed")
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[0] <= 0 {
		return 0, 0, 0, numericalError(ErrSingularCovariance, "pricing error covariance is zero")
	}

	var u mat.Dense
	svd.UTo(&u)

	jStat := 0.0
	for i, s := range values {
		if s <= values[0]*rankTolerance {
			continue
		}
		d := mat.Dot(u.ColView(i), alpha)
		jStat += d * d / s
	}

	pValue := distuv.ChiSquared{K: float64(dof)}.Survival(jStat)
	return jStat, dof, pValue, nil
}

// columnRank counts singular values above the tolerance relative to the largest
func columnRank(a mat.Matrix) int {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0
	}

	values := svd.Values(nil)
	if len(values) == 0 || values[0] == 0 {
		return 0
	}

	rank := 0
	for _, s := range values {
		if s > values[0]*rankTolerance {
			rank++
		}
	}
	return rank
}

func (fr *FitResult) finite() bool {
	groups := [][]float64{
		{fr.RSquared, fr.JStatistic, fr.JPValue},
		fr.Alpha,
		fr.RiskPremia,
		fr.Betas.RawMatrix().Data,
		fr.FactorCovariance.RawSymmetric().Data,
	}
	for _, group := range groups {
		for _, v := range group {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
