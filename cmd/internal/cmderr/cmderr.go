package cmderr

import (
	"errors"
	"fmt"
)

// Pipeline marks err as a reconstruction failure rather than CLI misuse.
// Execute prints the usage string only for unmarked errors.
func Pipeline(err error) error {
	return pipelineErr{err: err}
}

// IsPipeline reports whether err was marked with Pipeline.
func IsPipeline(err error) bool {
	var pe pipelineErr
	return errors.As(err, &pe)
}

type pipelineErr struct {
	err error
}

func (p pipelineErr) Error() string {
	return p.err.Error()
}

func (p pipelineErr) Unwrap() error {
	return p.err
}

// ExitError carries a specific process exit code through cobra.
type ExitError struct {
	ExitCode int
	Err      error
}

func (ee ExitError) Error() string {
	return fmt.Sprintf("exit with code %d: %v", ee.ExitCode, ee.Err)
}

func (ee ExitError) Unwrap() error {
	return ee.Err
}
