package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errEmptyBuffer error = errors.New("buffer empty")

var errInsufficientSamples = errors.New("batch size exceeds stored samples")

var errInvalidBatchSize = errors.New("batch size must be in [1, capacity]")

// IsInsufficientSamples returns whether or not an error reports that
// there are insufficient samples in the buffer to sample from the
// buffer.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}

// IsEmptyBuffer returns whether or not an error reports that a
// replay buffer is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyBuffer)
}

// IsInvalidArgument returns whether or not an error reports that a
// batch size can never be satisfied by the buffer.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, errInvalidBatchSize)
}
