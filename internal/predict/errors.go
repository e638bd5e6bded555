package predict

import (
	"errors"

	"github.com/sells-group/demand-forecast/internal/features"
)

// ModelUnavailableError is returned for every request while no artifact is
// loaded. Recovery needs a restart against a valid artifact.
type ModelUnavailableError struct {
	Reason string
}

func (e *ModelUnavailableError) Error() string {
	return "Model not loaded."
}

// InferenceError is an unexpected failure while encoding or evaluating the
// model. Detail is logged; clients only see the generic message.
type InferenceError struct {
	Detail string
}

func (e *InferenceError) Error() string {
	return "Prediction failed."
}

// FailedStage reports the stage a Predict error came from: validation and
// derivation errors carry the stage that rejected the record.
func FailedStage(err error) Stage {
	var (
		unavailable *ModelUnavailableError
		missing     *features.MissingFieldError
		outOfRange  *features.OutOfRangeError
		unknown     *features.UnknownCategoryError
		noTS        *features.MissingTimestampError
		badTS       *features.InvalidTimestampError
		inference   *InferenceError
	)
	switch {
	case err == nil:
		return StageResponded
	case errors.As(err, &unavailable):
		return StageReceived
	case errors.As(err, &missing), errors.As(err, &outOfRange), errors.As(err, &unknown):
		return StageValidated
	case errors.As(err, &noTS), errors.As(err, &badTS):
		return StageDerived
	case errors.As(err, &inference):
		return StageInferred
	default:
		return StageErrored
	}
}
