package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const at = "2024-01-01T00:00:00Z"

func sessionPtr(s string) *string { return &s }

func TestStateDerivation(t *testing.T) {
	cases := []struct {
		name string
		reg  Registration
		want State
	}{
		{"fresh", Registration{}, StateCreated},
		{"session open", Registration{ActiveSessionID: sessionPtr("cs_1")}, StatePaymentInitiated},
		{"paid", Registration{PaymentStatus: PaymentPaid}, StatePaid},
		{"confirmed unpaid", Registration{ConfirmationStatus: ConfirmationConfirmed}, StateCreated},
		{"paid and confirmed", Registration{PaymentStatus: PaymentPaid, ConfirmationStatus: ConfirmationConfirmed}, StateConfirmed},
		{"cancelled wins", Registration{Cancelled: true, PaymentStatus: PaymentPaid}, StateCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.reg.State())
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateCreated, StatePaymentInitiated))
	assert.True(t, CanTransition(StatePaymentInitiated, StatePaymentInitiated))
	assert.True(t, CanTransition(StatePaymentInitiated, StateConfirmed))
	assert.True(t, CanTransition(StateConfirmed, StateConfirmed))
	assert.False(t, CanTransition(StateCreated, StatePaid))
	assert.False(t, CanTransition(StateCancelled, StateCreated))
	assert.False(t, CanTransition(StateConfirmed, StateCancelled))
	assert.Error(t, ValidateTransition(StatePaid, StatePaymentInitiated))
}

func TestCancelGuards(t *testing.T) {
	reg := Registration{ParticipantID: "p1"}

	got, err := reg.Cancel(false, "p1", at)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	assert.Equal(t, "p1", *got.CancelledBy)

	_, err = got.Cancel(true, "org", at)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	paid := Registration{PaymentStatus: PaymentPaid}
	_, err = paid.Cancel(false, "p1", at)
	assert.ErrorIs(t, err, ErrPaidCancelBlocked)
	assert.ErrorIs(t, err, ErrCancellationBlocked, "both guards share a code")
	_, err = paid.Cancel(true, "org", at)
	assert.NoError(t, err)

	done := Registration{PaymentStatus: PaymentPaid, ConfirmationStatus: ConfirmationConfirmed}
	_, err = done.Cancel(true, "org", at)
	assert.ErrorIs(t, err, ErrCancellationBlocked)
}

func TestMarkPaid(t *testing.T) {
	reg, err := Registration{}.BeginPayment("cs_2", at)
	require.NoError(t, err)

	_, err = reg.MarkPaid("cs_1", "", at)
	assert.ErrorIs(t, err, ErrSessionSuperseded)

	paid, err := reg.MarkPaid("cs_2", "", at)
	require.NoError(t, err)
	assert.Equal(t, "cs_2", *paid.TransactionID)
	assert.Equal(t, StatePaid, paid.State())

	_, err = paid.MarkPaid("cs_2", "pi_1", at)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	_, err = paid.BeginPayment("cs_3", at)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	cancelled, err := reg.Cancel(false, "p1", at)
	require.NoError(t, err)
	_, err = cancelled.MarkPaid("cs_2", "", at)
	assert.ErrorIs(t, err, ErrRegistrationCancelled)
}

func TestConfirmAndFeedbackEligibility(t *testing.T) {
	reg, err := Registration{}.Confirm(at)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatus(""), reg.PaymentStatus)
	_, err = reg.Confirm(at)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	assert.ErrorIs(t, reg.FeedbackEligible(), ErrNotEligible)
	reg.PaymentStatus = PaymentPaid
	assert.NoError(t, reg.FeedbackEligible())
	reg.Cancelled = true
	assert.ErrorIs(t, reg.FeedbackEligible(), ErrNotEligible)

	for _, r := range []int{1, 3, 5} {
		assert.NoError(t, ValidateRating(r))
	}
	for _, r := range []int{0, 6, -1} {
		assert.ErrorIs(t, ValidateRating(r), ErrInvalidRating)
	}
}

func TestErrorMatching(t *testing.T) {
	wrapped := Wrap(ErrGatewayFailure, errors.New("dial tcp: refused"))
	assert.ErrorIs(t, wrapped, ErrGatewayFailure)
	assert.NotErrorIs(t, wrapped, ErrStoreUnavailable)
	assert.Contains(t, wrapped.Error(), "refused")
	assert.Nil(t, ErrGatewayFailure.Cause, "Wrap copies the sentinel")

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindUpstream, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)

	meta := ErrForbidden.WithMetadata("required_role", "organizer")
	assert.Equal(t, "organizer", meta.Metadata["required_role"])
	assert.Nil(t, ErrForbidden.Metadata)
	assert.ErrorIs(t, InvalidInput("bad age"), ErrInvalidInput)
}
