package core

import (
	"errors"
	"fmt"
)

// error kinds, every analysis failure wraps exactly one of these
var (
	ErrValidation          = errors.New("invalid factor model")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrNumerical           = errors.New("numerical failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// validation rules
var (
	ErrNoFactors            = errors.New("no factors selected")
	ErrNoHoldings           = errors.New("no holdings selected")
	ErrInsufficientHoldings = errors.New("insufficient holdings to identify model")
	ErrDuplicateFactors     = errors.New("factors must be unique")
	ErrReservedFactor       = errors.New("factor id is reserved")
)

// numerical causes
var (
	ErrRankDeficient      = errors.New("rank deficient")
	ErrSingularCovariance = errors.New("singular covariance")
)

type Stage string

const (
	StageValidation   Stage = "validation"
	StageFetchFactors Stage = "fetch_factors"
	StageFetchAssets  Stage = "fetch_assets"
	StageAlignment    Stage = "alignment"
	StageFit          Stage = "fit"
	StagePackage      Stage = "package"
)

// AnalysisError records which stage of an analysis failed
type AnalysisError struct {
	Stage Stage
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	return &AnalysisError{Stage: stage, Err: err}
}

func numericalError(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrNumerical, cause, fmt.Sprintf(format, args...))
}

func upstreamError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
