package regression

import "errors"

// Sentinel kinds for fitting and prediction errors.
var (
	ErrEmptyTable       = errors.New("feature table is empty")
	ErrNonNumericColumn = errors.New("non-numeric feature column")
	ErrUnknownTarget    = errors.New("target column not found")
	ErrSolve            = errors.New("least squares solve failed")
	ErrFeatureCount     = errors.New("feature vector length does not match model")
)
