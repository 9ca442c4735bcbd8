package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSubmitInFlight is returned when a submit arrives while another one for
// the same session and entity is still running
var ErrSubmitInFlight = errors.New("checkout already in progress")

// FailureReason names why an attempt ended in FAILED
type FailureReason string

const (
	ReasonBookingCreationFailed    FailureReason = "booking_creation_failed"
	ReasonAuthenticationExpired    FailureReason = "authentication_expired"
	ReasonOrderCreationFailed      FailureReason = "order_creation_failed"
	ReasonPaymentCancelledOrFailed FailureReason = "payment_cancelled_or_failed"
	ReasonVerificationFailed       FailureReason = "verification_failed"
	ReasonVerificationTimeout      FailureReason = "verification_timeout"
)

// ErrorKind classifies the cause behind a failure
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindBusiness  ErrorKind = "business"
	KindGateway   ErrorKind = "gateway"
)

var cannedMessages = map[FailureReason]string{
	ReasonBookingCreationFailed:    "We could not create your booking. Please try again.",
	ReasonAuthenticationExpired:    "Your session has expired. Please log in again to continue.",
	ReasonOrderCreationFailed:      "We could not start the payment. Please try again.",
	ReasonPaymentCancelledOrFailed: "The payment was cancelled or did not go through. You can try again.",
	ReasonVerificationFailed:       "We could not verify your payment. Please contact support with your booking reference.",
	ReasonVerificationTimeout:      "Payment verification is taking longer than expected. Please check your bookings page before paying again.",
}

// CannedMessage returns the user-facing message for a reason
func CannedMessage(reason FailureReason) string {
	return cannedMessages[reason]
}

// Failure is the terminal error of an attempt. Message is always set and is
// safe to show the user.
type Failure struct {
	Reason        FailureReason `json:"reason"`
	Kind          ErrorKind     `json:"kind"`
	Message       string        `json:"message"`
	Detail        string        `json:"detail,omitempty"`
	Resubmittable bool          `json:"resubmittable"`
	Compensated   bool          `json:"compensated"`

	Err error `json:"-"`
}

func newFailure(reason FailureReason, kind ErrorKind, serverMessage string, err error) *Failure {
	f := &Failure{
		Reason:        reason,
		Kind:          kind,
		Message:       serverMessage,
		Resubmittable: reason != ReasonVerificationTimeout,
		Err:           err,
	}
	// verification outcomes always carry their own guidance
	if f.Message == "" || reason == ReasonVerificationFailed || reason == ReasonVerificationTimeout {
		f.Detail = serverMessage
		f.Message = cannedMessages[reason]
	}
	if err != nil && f.Detail == "" {
		f.Detail = err.Error()
	}
	return f
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("checkout failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("checkout failed (%s): %s", f.Reason, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ValidationError carries per-field messages for the contact form. It never
// reaches the network.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
