package domain

import "errors"

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindInvalidInput Kind = "invalid_input"
	KindBlocked      Kind = "blocked"
	KindUpstream     Kind = "upstream_failure"
)

// Code is the machine-readable identifier of a lifecycle error.
type Code string

const (
	CodeCampNotFound          Code = "CAMP_NOT_FOUND"
	CodeRegistrationNotFound  Code = "REGISTRATION_NOT_FOUND"
	CodeUnknownSession        Code = "UNKNOWN_SESSION"
	CodeFeedbackNotFound      Code = "FEEDBACK_NOT_FOUND"
	CodeDuplicateRegistration Code = "DUPLICATE_REGISTRATION"
	CodeDuplicateFeedback     Code = "DUPLICATE_FEEDBACK"
	CodeAlreadyPaid           Code = "ALREADY_PAID"
	CodeAlreadyConfirmed      Code = "ALREADY_CONFIRMED"
	CodeAlreadyApproved       Code = "ALREADY_APPROVED"
	CodeAlreadyCancelled      Code = "ALREADY_CANCELLED"
	CodeRegistrationCancelled Code = "REGISTRATION_CANCELLED"
	CodeSessionSuperseded     Code = "SESSION_SUPERSEDED"
	CodeNotOrganizerOfCamp    Code = "NOT_ORGANIZER_OF_CAMP"
	CodeForbidden             Code = "FORBIDDEN"
	CodeInvalidRating         Code = "INVALID_RATING"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeNotEligible           Code = "NOT_ELIGIBLE"
	CodeCancellationBlocked   Code = "CANCELLATION_BLOCKED"
	CodeGatewayFailure        Code = "GATEWAY_FAILURE"
	CodeStoreUnavailable      Code = "STORE_UNAVAILABLE"
)

// Error is a lifecycle error. Message is safe to show to end users.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error without a cause.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a copy of base carrying cause.
func Wrap(base *Error, cause error) *Error {
	cp := *base
	cp.Cause = cause
	return &cp
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e *Error) WithMetadata(key, value string) *Error {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// InvalidInput returns an InvalidInput error with a specific message.
func InvalidInput(message string) *Error {
	return New(KindInvalidInput, CodeInvalidInput, message)
}

// KindOf returns the kind of the first lifecycle error in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

var (
	ErrCampNotFound          = New(KindNotFound, CodeCampNotFound, "Camp not found")
	ErrRegistrationNotFound  = New(KindNotFound, CodeRegistrationNotFound, "Registration not found")
	ErrUnknownSession        = New(KindNotFound, CodeUnknownSession, "Payment session not recognised")
	ErrFeedbackNotFound      = New(KindNotFound, CodeFeedbackNotFound, "Feedback not found")
	ErrDuplicateRegistration = New(KindConflict, CodeDuplicateRegistration, "You have already registered for this camp")
	ErrDuplicateFeedback     = New(KindConflict, CodeDuplicateFeedback, "You have already left feedback for this camp")
	ErrAlreadyPaid           = New(KindConflict, CodeAlreadyPaid, "This registration is already paid")
	ErrAlreadyConfirmed      = New(KindConflict, CodeAlreadyConfirmed, "This registration is already confirmed")
	ErrAlreadyApproved       = New(KindConflict, CodeAlreadyApproved, "This feedback is already approved")
	ErrAlreadyCancelled      = New(KindConflict, CodeAlreadyCancelled, "This registration is already cancelled")
	ErrRegistrationCancelled = New(KindConflict, CodeRegistrationCancelled, "This registration has been cancelled")
	ErrSessionSuperseded     = New(KindConflict, CodeSessionSuperseded, "This payment session was replaced by a newer one")
	ErrNotOrganizerOfCamp    = New(KindForbidden, CodeNotOrganizerOfCamp, "Only the camp organizer can do this")
	ErrForbidden             = New(KindForbidden, CodeForbidden, "You are not allowed to do this")
	ErrInvalidRating         = New(KindInvalidInput, CodeInvalidRating, "Rating must be between 1 and 5")
	ErrInvalidInput          = New(KindInvalidInput, CodeInvalidInput, "Invalid input")
	ErrNotEligible           = New(KindBlocked, CodeNotEligible, "Feedback is available after a paid, active registration")
	ErrCancellationBlocked   = New(KindBlocked, CodeCancellationBlocked, "Confirmed and paid registrations cannot be cancelled")
	ErrPaidCancelBlocked     = New(KindBlocked, CodeCancellationBlocked, "Paid registrations can only be cancelled by the camp organizer")
	ErrGatewayFailure        = New(KindUpstream, CodeGatewayFailure, "Payment provider is unavailable, please try again")
	ErrStoreUnavailable      = New(KindUpstream, CodeStoreUnavailable, "Service temporarily unavailable, please try again")
)
