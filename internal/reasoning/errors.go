package reasoning

import "fmt"

// StepError is the typed failure returned by Process. Err keeps the cause,
// so errors.Is(err, arangodb.ErrStoreUnavailable) sees through it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("reasoning step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
