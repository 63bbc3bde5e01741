package medicampsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahatInCode/medicamp-public/internal/config"
	"github.com/RahatInCode/medicamp-public/internal/db"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
	"github.com/RahatInCode/medicamp-public/internal/gateway"
	"github.com/RahatInCode/medicamp-public/internal/migrate"
	"github.com/RahatInCode/medicamp-public/internal/server"
)

const secret = "sdk-secret"

func newAPI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Driver: db.DriverSQLite, DSN: filepath.Join(dir, "medicamp.db")})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	handler, err := server.New(server.Config{
		Engine: engine.New(conn, config.Default(dir), gateway.Local{}),
		Auth:   server.AuthConfig{JWTSecret: secret, CallbackSecret: "cb"},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		_ = conn.Close()
	})
	return srv.URL + "/v1"
}

func clientFor(t *testing.T, base string, id auth.Identity) *Client {
	t.Helper()
	tok, err := server.SignToken(secret, id, time.Hour)
	require.NoError(t, err)
	c := New(base, tok)
	c.CallbackSecret = "cb"
	return c
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	base := newAPI(t)
	organizer := clientFor(t, base, auth.Identity{ID: "org-1", Email: "org@example.com", Role: auth.RoleOrganizer})
	participant := clientFor(t, base, auth.Identity{ID: "user-a", Email: "alice@example.com", Name: "Alice"})

	camp, err := organizer.CreateCamp(ctx, CampInput{
		Name:                   "Eye Care",
		Fee:                    2500,
		ScheduledAt:            "2030-05-01T09:00:00Z",
		Location:               "Dhaka",
		HealthcareProfessional: "Dr. Rahman",
	})
	require.NoError(t, err)

	camps, err := New(base, "").ListCamps(ctx, "eye", 10)
	require.NoError(t, err)
	require.Len(t, camps, 1)
	assert.Equal(t, camp.ID, camps[0].ID)

	reg, err := participant.Register(ctx, camp.ID, Participant{Age: 30, Phone: "+8801000000000"})
	require.NoError(t, err)
	assert.Equal(t, "unpaid", reg.PaymentStatus)

	_, err = participant.Register(ctx, camp.ID, Participant{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "DUPLICATE_REGISTRATION", apiErr.Code)

	start, err := participant.InitiatePayment(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), start.Amount)

	res, err := participant.PaymentCallback(ctx, start.SessionID, camp.ID, "txn-42")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "paid", res.Registration.PaymentStatus)

	res, err = participant.PaymentCallback(ctx, start.SessionID, camp.ID, "txn-42")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	history, err := participant.PaymentHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "txn-42", history[0].TransactionID)

	confirmed, err := organizer.ConfirmRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.ConfirmationStatus)

	fb, err := participant.SubmitFeedback(ctx, reg.ID, 5, "Great")
	require.NoError(t, err)
	assert.False(t, fb.Approved)

	public, err := New(base, "").PublicFeedback(ctx, camp.ID)
	require.NoError(t, err)
	assert.Empty(t, public)

	page, err := organizer.EventsPage(ctx, camp.ID, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.NextCursor)
}

func TestClientCallbackWithoutSecret(t *testing.T) {
	base := newAPI(t)
	c := New(base, "")
	_, err := c.PaymentCallback(context.Background(), "sess", "camp", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestAPIErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := New(srv.URL, "").GetCamp(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "boom")
}
