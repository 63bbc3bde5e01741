package domain

import "fmt"

// State is the lifecycle position of a registration, derived from its flags.
type State string

const (
	StateCreated          State = "created"
	StatePaymentInitiated State = "payment_initiated"
	StatePaid             State = "paid"
	StateConfirmed        State = "confirmed"
	StateCancelled        State = "cancelled"
)

// allowedTransitions lists the states reachable from each state.
// Confirmation is independent of payment, so a registration confirmed while
// unpaid moves straight to Confirmed when its payment lands.
var allowedTransitions = map[State][]State{
	StateCreated:          {StatePaymentInitiated, StateCancelled},
	StatePaymentInitiated: {StatePaymentInitiated, StatePaid, StateConfirmed, StateCancelled},
	StatePaid:             {StateConfirmed, StateCancelled},
	StateConfirmed:        {},
	StateCancelled:        {},
}

// CanTransition reports whether a registration may move from one state to another.
// Staying in the same state is always allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error if the transition is not allowed.
func ValidateTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid registration transition %s -> %s", from, to)
	}
	return nil
}

func (r Registration) Paid() bool {
	return r.PaymentStatus == PaymentPaid
}

func (r Registration) Confirmed() bool {
	return r.ConfirmationStatus == ConfirmationConfirmed
}

func (r Registration) State() State {
	switch {
	case r.Cancelled:
		return StateCancelled
	case r.Paid() && r.Confirmed():
		return StateConfirmed
	case r.Paid():
		return StatePaid
	case r.ActiveSessionID != nil && *r.ActiveSessionID != "":
		return StatePaymentInitiated
	default:
		return StateCreated
	}
}

// Cancel marks the registration cancelled. Participants lose the right to
// cancel once paid; organizers keep it until the visit is both paid and confirmed.
func (r Registration) Cancel(byOrganizer bool, actorID, at string) (Registration, error) {
	if r.Cancelled {
		return r, ErrAlreadyCancelled
	}
	if r.Paid() && r.Confirmed() {
		return r, ErrCancellationBlocked
	}
	if r.Paid() && !byOrganizer {
		return r, ErrPaidCancelBlocked
	}
	r.Cancelled = true
	r.CancelledAt = &at
	r.CancelledBy = &actorID
	r.UpdatedAt = at
	return r, nil
}

// BeginPayment points the registration at a fresh gateway session.
func (r Registration) BeginPayment(sessionID, at string) (Registration, error) {
	if r.Cancelled {
		return r, ErrRegistrationCancelled
	}
	if r.Paid() {
		return r, ErrAlreadyPaid
	}
	r.ActiveSessionID = &sessionID
	r.UpdatedAt = at
	return r, nil
}

// MarkPaid applies a successful payment for sessionID.
func (r Registration) MarkPaid(sessionID, transactionID, at string) (Registration, error) {
	if r.Paid() {
		return r, ErrAlreadyPaid
	}
	if r.Cancelled {
		return r, ErrRegistrationCancelled
	}
	if r.ActiveSessionID == nil || *r.ActiveSessionID != sessionID {
		return r, ErrSessionSuperseded
	}
	if transactionID == "" {
		transactionID = sessionID
	}
	r.PaymentStatus = PaymentPaid
	r.TransactionID = &transactionID
	r.PaidAt = &at
	r.UpdatedAt = at
	return r, nil
}

// Confirm records the organizer's confirmation. Payment is not required.
func (r Registration) Confirm(at string) (Registration, error) {
	if r.Cancelled {
		return r, ErrRegistrationCancelled
	}
	if r.Confirmed() {
		return r, ErrAlreadyConfirmed
	}
	r.ConfirmationStatus = ConfirmationConfirmed
	r.ConfirmedAt = &at
	r.UpdatedAt = at
	return r, nil
}

// FeedbackEligible reports whether the participant may leave feedback.
func (r Registration) FeedbackEligible() error {
	if r.Cancelled || !r.Paid() {
		return ErrNotEligible
	}
	return nil
}

// ValidateRating checks the 1..5 rating range.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}
