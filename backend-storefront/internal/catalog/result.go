package catalog

import (
	"errors"

	"github.com/prohmpiriya/storefront/pkg/apiclient"
)

// ErrUnavailable is returned by the selection adapters when a loader produced
// a soft failure
var ErrUnavailable = errors.New("catalog data unavailable")

const defaultSoftMessage = "We could not load this right now. Please try again."

// Result is what every loader returns for expected outcomes. A false Status
// carries an empty Data of the right shape and a message for display.
// Outages are reported through the error return, never as a Result.
type Result[T any] struct {
	Status  bool   `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// OK wraps a successful load
func OK[T any](data T) Result[T] {
	return Result[T]{Status: true, Data: data}
}

// Soft wraps an expected failure such as a missing record
func Soft[T any](empty T, message string) Result[T] {
	if message == "" {
		message = defaultSoftMessage
	}
	return Result[T]{Status: false, Data: empty, Message: message}
}

// settle turns a fetch error into a soft Result when the backend answered
// with a client error or a status:false envelope. Transport faults and 5xx
// come back as errors.
func settle[T any](data, empty T, err error) (Result[T], error) {
	if err == nil {
		return OK(data), nil
	}
	if apiErr, ok := apiclient.AsAPIError(err); ok && !apiErr.ServerError() {
		return Soft(empty, apiErr.Message), nil
	}
	return Result[T]{Data: empty}, err
}
