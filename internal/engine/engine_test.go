package engine_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/db"
	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/events"
	"github.com/RahatInCode/medicamp-public/internal/gateway"
	"github.com/RahatInCode/medicamp-public/internal/migrate"
	"github.com/RahatInCode/medicamp-public/internal/notify"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

var (
	organizer = auth.Identity{ID: "org-1", Email: "org@example.com", Name: "Dr. Org", Role: auth.RoleOrganizer}
	otherOrg  = auth.Identity{ID: "org-2", Email: "org2@example.com", Role: auth.RoleOrganizer}
	alice     = auth.Identity{ID: "user-a", Email: "alice@example.com", Name: "Alice", Role: auth.RoleParticipant}
	bob       = auth.Identity{ID: "user-b", Email: "bob@example.com", Name: "Bob", Role: auth.RoleParticipant}
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Camp   domain.Camp
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(dir, "medicamp.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg := config.Default(dir)
	for _, m := range mutate {
		m(cfg)
	}
	eng := engine.New(conn, cfg, gateway.Local{SuccessURL: "http://localhost/payments/success"})
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	camp, err := eng.CreateCamp(ctx, organizer, engine.CampInput{
		Name:                   "Dental Checkup",
		Fee:                    1500,
		Currency:               "USD",
		ScheduledAt:            "2024-02-01T09:00:00Z",
		Location:               "Community Hall",
		HealthcareProfessional: "Dr. Smile",
	})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Camp: camp}
}

func (env testEnv) register(t *testing.T, who auth.Identity) domain.Registration {
	t.Helper()
	reg, err := env.Engine.CreateRegistration(env.Ctx, who, env.Camp.ID, domain.ParticipantDetails{Age: 30, Phone: "555-0100", Gender: "f", EmergencyContact: "555-0199"})
	require.NoError(t, err)
	return reg
}

func (env testEnv) pay(t *testing.T, who auth.Identity, regID string) domain.Registration {
	t.Helper()
	start, err := env.Engine.InitiatePayment(env.Ctx, who, regID)
	require.NoError(t, err)
	res, err := env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID, TransactionID: "txn-" + regID})
	require.NoError(t, err)
	require.True(t, res.Applied)
	return res.Registration
}

func (env testEnv) participantCount(t *testing.T) int64 {
	t.Helper()
	c, err := env.Engine.GetCamp(env.Ctx, env.Camp.ID)
	require.NoError(t, err)
	return c.ParticipantCount
}

func (env testEnv) countEvents(t *testing.T, typ string) int {
	t.Helper()
	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{Type: typ, Limit: 1000})
	require.NoError(t, err)
	return len(evts)
}

type failingGateway struct{}

func (failingGateway) CreateSession(context.Context, gateway.SessionRequest) (gateway.Session, error) {
	return gateway.Session{}, errors.New("connection refused")
}

type recordingGateway struct {
	gateway.Local
	mu       sync.Mutex
	requests []gateway.SessionRequest
}

func (g *recordingGateway) CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	return g.Local.CreateSession(ctx, req)
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
}

func (r *recordingNotifier) Notify(_ context.Context, o notify.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func TestCreateRegistrationSnapshotsCamp(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	assert.Equal(t, env.Camp.Name, reg.CampName)
	assert.Equal(t, int64(1500), reg.CampFee)
	assert.Equal(t, "usd", reg.Currency)
	assert.Equal(t, "Alice", reg.Name)
	assert.Equal(t, "alice@example.com", reg.Email)
	assert.Equal(t, domain.StateCreated, reg.State())
	assert.Equal(t, int64(0), env.participantCount(t), "counter moves on payment by default")

	_, err := env.Engine.CreateRegistration(env.Ctx, alice, "missing", domain.ParticipantDetails{})
	assert.ErrorIs(t, err, domain.ErrCampNotFound)

	_, err = env.Engine.CreateRegistration(env.Ctx, organizer, env.Camp.ID, domain.ParticipantDetails{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.Engine.CreateRegistration(env.Ctx, auth.Identity{ID: "x", Role: auth.RoleParticipant}, env.Camp.ID, domain.ParticipantDetails{Name: "X", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistrationUniqueness(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	_, err := env.Engine.CreateRegistration(env.Ctx, alice, env.Camp.ID, domain.ParticipantDetails{})
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindConflict, de.Kind)
	assert.Equal(t, "You have already registered for this camp", de.Message)

	_, err = env.Engine.CancelRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	again := env.register(t, alice)
	assert.NotEqual(t, reg.ID, again.ID)

	mine, err := env.Engine.ListParticipantRegistrations(env.Ctx, alice, true)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	active, err := env.Engine.ListParticipantRegistrations(env.Ctx, alice, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentRegistrationsCreateOne(t *testing.T) {
	env := newTestEnv(t)
	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.CreateRegistration(env.Ctx, alice, env.Camp.ID, domain.ParticipantDetails{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrDuplicateRegistration):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, dupes)
}

func TestPaymentCallbackIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	start, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), start.Amount)
	assert.Contains(t, start.RedirectURL, start.SessionID)
	assert.Equal(t, domain.StatePaymentInitiated, start.Registration.State())

	in := engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID, TransactionID: "pi_123"}
	first, err := env.Engine.HandlePaymentCallback(env.Ctx, in)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, domain.StatePaid, first.Registration.State())
	require.NotNil(t, first.Registration.TransactionID)
	assert.Equal(t, "pi_123", *first.Registration.TransactionID)

	second, err := env.Engine.HandlePaymentCallback(env.Ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Registration.Version, second.Registration.Version)

	assert.Equal(t, int64(1), env.participantCount(t))
	assert.Equal(t, 1, env.countEvents(t, events.PaymentSucceeded))

	_, err = env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestConcurrentCallbacksIncrementOnce(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)
	start, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID})
			assert.NoError(t, err)
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied, "only one delivery reports the update")

	assert.Equal(t, int64(1), env.participantCount(t))
	assert.Equal(t, 1, env.countEvents(t, events.PaymentSucceeded))
	got, err := env.Engine.GetRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, start.SessionID, *got.TransactionID, "transaction id defaults to the session id")
}

func TestCallbackResolution(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	first, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	second, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)

	_, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: "cs_unknown", CampID: env.Camp.ID})
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	_, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: second.SessionID, CampID: "other-camp"})
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	_, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: first.SessionID, CampID: env.Camp.ID})
	assert.ErrorIs(t, err, domain.ErrSessionSuperseded)
	assert.Equal(t, int64(0), env.participantCount(t))

	res, err := env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: second.SessionID, CampID: env.Camp.ID})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	sessions, err := env.Engine.ListSessions(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	statuses := map[string]domain.SessionStatus{}
	for _, s := range sessions {
		statuses[s.ID] = s.Status
	}
	assert.Equal(t, domain.SessionSuperseded, statuses[first.SessionID])
	assert.Equal(t, domain.SessionCompleted, statuses[second.SessionID])

	// A stale session after payment is a harmless repeat.
	late, err := env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: first.SessionID, CampID: env.Camp.ID})
	require.NoError(t, err)
	assert.False(t, late.Applied)
	assert.Equal(t, int64(1), env.participantCount(t))
}

func TestInitiatePaymentGuards(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	_, err := env.Engine.InitiatePayment(env.Ctx, bob, reg.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = env.Engine.InitiatePayment(env.Ctx, alice, "missing")
	assert.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	_, err = env.Engine.CancelRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	_, err = env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	assert.ErrorIs(t, err, domain.ErrRegistrationCancelled)
}

func TestGatewayFailureLeavesRegistrationUntouched(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)
	env.Engine.Gateway = failingGateway{}

	_, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.ErrorIs(t, err, domain.ErrGatewayFailure)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUpstream, kind)

	got, err := env.Engine.GetRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.Version, got.Version)
	assert.Equal(t, domain.StateCreated, got.State())
	sessions, err := env.Engine.ListSessions(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCancellationGuard(t *testing.T) {
	env := newTestEnv(t)

	unpaid := env.register(t, alice)
	_, err := env.Engine.CancelRegistration(env.Ctx, otherOrg, unpaid.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)
	_, err = env.Engine.CancelRegistration(env.Ctx, bob, unpaid.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := env.Engine.CancelRegistration(env.Ctx, alice, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, cancelled.State())
	_, err = env.Engine.CancelRegistration(env.Ctx, alice, unpaid.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	paid := env.pay(t, bob, env.register(t, bob).ID)
	_, err = env.Engine.CancelRegistration(env.Ctx, bob, paid.ID)
	require.ErrorIs(t, err, domain.ErrCancellationBlocked)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindBlocked, kind)

	_, err = env.Engine.ConfirmRegistration(env.Ctx, organizer, paid.ID)
	require.NoError(t, err)
	_, err = env.Engine.CancelRegistration(env.Ctx, organizer, paid.ID)
	assert.ErrorIs(t, err, domain.ErrCancellationBlocked)
	_, err = env.Engine.CancelRegistration(env.Ctx, bob, paid.ID)
	assert.ErrorIs(t, err, domain.ErrCancellationBlocked)
}

func TestOrganizerCancelsPaidRegistration(t *testing.T) {
	env := newTestEnv(t)
	paid := env.pay(t, alice, env.register(t, alice).ID)

	got, err := env.Engine.CancelRegistration(env.Ctx, organizer, paid.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, organizer.ID, *got.CancelledBy)
	assert.Equal(t, int64(1), env.participantCount(t), "counter is not released by default")
}

func TestCallbackAfterCancelIsOrphaned(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)
	start, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	_, err = env.Engine.CancelRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID, TransactionID: "txn-late"})
		require.ErrorIs(t, err, domain.ErrRegistrationCancelled)
	}
	assert.Equal(t, int64(0), env.participantCount(t))
	assert.Equal(t, 1, env.countEvents(t, events.PaymentOrphaned), "redelivery records the orphan once")

	sessions, err := env.Engine.ListSessions(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.SessionVoid, sessions[0].Status)
	require.NotNil(t, sessions[0].TransactionID)
	assert.Equal(t, "txn-late", *sessions[0].TransactionID)

	got, err := env.Engine.GetRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	assert.False(t, got.Paid())
}

func TestCancelRacesCallback(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)
	start, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	var (
		wg                  sync.WaitGroup
		cancelErr, callbErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cancelErr = env.Engine.CancelRegistration(env.Ctx, alice, reg.ID)
	}()
	go func() {
		defer wg.Done()
		_, callbErr = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID})
	}()
	wg.Wait()

	got, err := env.Engine.GetRegistration(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	if got.Cancelled {
		require.NoError(t, cancelErr)
		assert.ErrorIs(t, callbErr, domain.ErrRegistrationCancelled)
		assert.Equal(t, 1, env.countEvents(t, events.PaymentOrphaned))
		assert.False(t, got.Paid())
		assert.Equal(t, int64(0), env.participantCount(t))
	} else {
		require.NoError(t, callbErr)
		assert.ErrorIs(t, cancelErr, domain.ErrCancellationBlocked)
		assert.True(t, got.Paid())
		assert.Equal(t, int64(1), env.participantCount(t))
	}
}

func TestConfirmationIndependentOfPayment(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	_, err := env.Engine.ConfirmRegistration(env.Ctx, otherOrg, reg.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)
	_, err = env.Engine.ConfirmRegistration(env.Ctx, alice, reg.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)

	confirmed, err := env.Engine.ConfirmRegistration(env.Ctx, organizer, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationConfirmed, confirmed.ConfirmationStatus)
	assert.Equal(t, domain.PaymentUnpaid, confirmed.PaymentStatus)
	assert.Equal(t, domain.StateCreated, confirmed.State())

	_, err = env.Engine.ConfirmRegistration(env.Ctx, organizer, reg.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyConfirmed)

	paid := env.pay(t, alice, reg.ID)
	assert.Equal(t, domain.StateConfirmed, paid.State())
}

func TestFeedbackGate(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)

	_, err := env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 5, "great")
	require.ErrorIs(t, err, domain.ErrNotEligible)

	env.pay(t, alice, reg.ID)

	_, err = env.Engine.SubmitFeedback(env.Ctx, bob, reg.ID, 5, "not mine")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 0, "zero")
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
	_, err = env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 6, "six")
	assert.ErrorIs(t, err, domain.ErrInvalidRating)

	fb, err := env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 4, "  helpful staff ")
	require.NoError(t, err)
	assert.False(t, fb.Approved)
	assert.Equal(t, "helpful staff", fb.Comment)

	_, err = env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 3, "again")
	assert.ErrorIs(t, err, domain.ErrDuplicateFeedback)

	public, err := env.Engine.ListPublicFeedback(env.Ctx, env.Camp.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = env.Engine.ApproveFeedback(env.Ctx, otherOrg, fb.ID)
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)
	approved, err := env.Engine.ApproveFeedback(env.Ctx, organizer, fb.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	_, err = env.Engine.ApproveFeedback(env.Ctx, organizer, fb.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyApproved)

	public, err = env.Engine.ListPublicFeedback(env.Ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, 4, public[0].Rating)

	all, err := env.Engine.ListCampFeedback(env.Ctx, organizer, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, env.Engine.DeleteFeedback(env.Ctx, organizer, fb.ID))
	err = env.Engine.DeleteFeedback(env.Ctx, organizer, fb.ID)
	assert.ErrorIs(t, err, domain.ErrFeedbackNotFound)
}

func TestFeedbackRejectedForCancelledRegistration(t *testing.T) {
	env := newTestEnv(t)
	paid := env.pay(t, alice, env.register(t, alice).ID)
	_, err := env.Engine.CancelRegistration(env.Ctx, organizer, paid.ID)
	require.NoError(t, err)

	_, err = env.Engine.SubmitFeedback(env.Ctx, alice, paid.ID, 5, "")
	assert.ErrorIs(t, err, domain.ErrNotEligible)
}

func TestCountOnRegistrationWithRelease(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Capacity.CountOn = config.CountOnRegistration
		c.Capacity.ReleaseOnCancel = true
	})
	a := env.register(t, alice)
	env.register(t, bob)
	assert.Equal(t, int64(2), env.participantCount(t))

	env.pay(t, alice, a.ID)
	assert.Equal(t, int64(2), env.participantCount(t), "payment does not count twice")

	_, err := env.Engine.CreateRegistration(env.Ctx, bob, env.Camp.ID, domain.ParticipantDetails{})
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)
	assert.Equal(t, int64(2), env.participantCount(t), "rejected duplicate leaves counter alone")

	_, err = env.Engine.CancelRegistration(env.Ctx, organizer, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.participantCount(t))
}

func TestCampLifecycle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.CreateCamp(env.Ctx, alice, engine.CampInput{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.CreateCamp(env.Ctx, organizer, engine.CampInput{Name: "Bad", Fee: -1, ScheduledAt: "2024-01-01T00:00:00Z", Location: "l", HealthcareProfessional: "p"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	camps, err := env.Engine.ListCamps(env.Ctx, repo.CampFilter{Search: "dental"})
	require.NoError(t, err)
	require.Len(t, camps, 1)

	reg := env.register(t, alice)

	assert.ErrorIs(t, env.Engine.DeleteCamp(env.Ctx, otherOrg, env.Camp.ID), domain.ErrNotOrganizerOfCamp)
	require.NoError(t, env.Engine.DeleteCamp(env.Ctx, organizer, env.Camp.ID))

	_, err = env.Engine.GetCamp(env.Ctx, env.Camp.ID)
	assert.ErrorIs(t, err, domain.ErrCampNotFound)
	_, err = env.Engine.CreateRegistration(env.Ctx, bob, env.Camp.ID, domain.ParticipantDetails{})
	assert.ErrorIs(t, err, domain.ErrCampNotFound)

	// Existing registrations stay manageable by the organizer.
	_, err = env.Engine.ConfirmRegistration(env.Ctx, organizer, reg.ID)
	require.NoError(t, err)
}

func TestPaymentHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, alice)
	paid := env.pay(t, bob, env.register(t, bob).ID)

	history, err := env.Engine.PaymentHistory(env.Ctx, bob)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, paid.ID, history[0].RegistrationID)
	assert.Equal(t, "txn-"+paid.ID, history[0].TransactionID)
	assert.Equal(t, int64(1500), history[0].Amount)

	history, err = env.Engine.PaymentHistory(env.Ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, history)

	regs, err := env.Engine.ListCampRegistrations(env.Ctx, organizer, env.Camp.ID, false)
	require.NoError(t, err)
	assert.Len(t, regs, 2)
	_, err = env.Engine.ListCampRegistrations(env.Ctx, otherOrg, env.Camp.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)
}

func TestNotifierReceivesOutcomes(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingNotifier{}
	env.Engine.Notifier = rec

	env.register(t, alice)
	_, err := env.Engine.CreateRegistration(env.Ctx, alice, env.Camp.ID, domain.ParticipantDetails{})
	require.Error(t, err)

	require.Len(t, rec.outcomes, 2)
	assert.True(t, rec.outcomes[0].Success)
	assert.Equal(t, "create_registration", rec.outcomes[0].Operation)
	assert.False(t, rec.outcomes[1].Success)
	assert.Equal(t, string(domain.CodeDuplicateRegistration), rec.outcomes[1].Code)
	assert.Equal(t, "You have already registered for this camp", rec.outcomes[1].Message)
}

// TestCampVisitScenario walks one participant from registration to approved feedback.
func TestCampVisitScenario(t *testing.T) {
	env := newTestEnv(t)

	reg := env.register(t, alice)
	_, err := env.Engine.CreateRegistration(env.Ctx, alice, env.Camp.ID, domain.ParticipantDetails{})
	require.ErrorIs(t, err, domain.ErrDuplicateRegistration)

	s1, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	s2, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	_, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: s1.SessionID, CampID: env.Camp.ID})
	require.ErrorIs(t, err, domain.ErrSessionSuperseded)

	res, err := env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: s2.SessionID, CampID: env.Camp.ID, TransactionID: "pi_s2"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, res.Registration.State())
	assert.Equal(t, int64(1), env.participantCount(t))

	res, err = env.Engine.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: s2.SessionID, CampID: env.Camp.ID, TransactionID: "pi_s2"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, int64(1), env.participantCount(t))

	_, err = env.Engine.CancelRegistration(env.Ctx, alice, reg.ID)
	require.ErrorIs(t, err, domain.ErrCancellationBlocked)

	confirmed, err := env.Engine.ConfirmRegistration(env.Ctx, organizer, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, confirmed.State())

	fb, err := env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 5, "excellent")
	require.NoError(t, err)
	_, err = env.Engine.SubmitFeedback(env.Ctx, alice, reg.ID, 5, "excellent")
	require.ErrorIs(t, err, domain.ErrDuplicateFeedback)

	_, err = env.Engine.ApproveFeedback(env.Ctx, organizer, fb.ID)
	require.NoError(t, err)
	public, err := env.Engine.ListPublicFeedback(env.Ctx, env.Camp.ID, 0)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, fb.ID, public[0].ID)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{CampID: env.Camp.ID, Limit: 100})
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		events.CampCreated,
		events.RegistrationCreated,
		events.PaymentInitiated,
		events.PaymentInitiated,
		events.PaymentSucceeded,
		events.RegistrationConfirmed,
		events.FeedbackSubmitted,
		events.FeedbackApproved,
	}, types)
}

func TestListCampEventsIsScopedToOrganizer(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, alice)

	evts, err := env.Engine.ListCampEvents(env.Ctx, organizer, repo.EventFilter{CampID: env.Camp.ID})
	require.NoError(t, err)
	assert.Len(t, evts, 2)

	_, err = env.Engine.ListCampEvents(env.Ctx, otherOrg, repo.EventFilter{CampID: env.Camp.ID})
	assert.ErrorIs(t, err, domain.ErrNotOrganizerOfCamp)
	_, err = env.Engine.ListCampEvents(env.Ctx, alice, repo.EventFilter{CampID: env.Camp.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = env.Engine.ListCampEvents(env.Ctx, organizer, repo.EventFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionChangedAfterReadIsRetried(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, alice)
	start, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	calls := 0
	eng := engine.WithBeforeCompleteSession(env.Engine, func(ctx context.Context, tx *sqlx.Tx, sess domain.PaymentSession) error {
		calls++
		if calls > 1 {
			return nil
		}
		// Another instance moved the session on after this delivery read it.
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE payment_sessions SET status=? WHERE id=?`), string(domain.SessionCompleted), sess.ID)
		return err
	})

	res, err := eng.HandlePaymentCallback(env.Ctx, engine.CallbackInput{SessionID: start.SessionID, CampID: env.Camp.ID})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), env.participantCount(t))
	assert.Equal(t, 1, env.countEvents(t, events.PaymentSucceeded))
}

func TestIdempotencyKeyFollowsRegistrationVersion(t *testing.T) {
	env := newTestEnv(t)
	gw := &recordingGateway{Local: gateway.Local{SuccessURL: "http://localhost/payments/success"}}
	env.Engine.Gateway = gw
	reg := env.register(t, alice)

	first, err := env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)
	_, err = env.Engine.InitiatePayment(env.Ctx, alice, reg.ID)
	require.NoError(t, err)

	require.Len(t, gw.requests, 2)
	assert.Equal(t, fmt.Sprintf("%s:%d", reg.ID, reg.Version), gw.requests[0].IdempotencyKey)
	assert.Equal(t, fmt.Sprintf("%s:%d", reg.ID, first.Registration.Version), gw.requests[1].IdempotencyKey)
	assert.NotEqual(t, gw.requests[0].IdempotencyKey, gw.requests[1].IdempotencyKey)
	assert.Equal(t, reg.ID, gw.requests[0].CorrelationID)
}
