package medicampsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Medicamp HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// CallbackSecret is sent as X-Callback-Secret on payment callbacks.
	CallbackSecret string
	HTTPClient     *http.Client
	Timeout        time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base path, e.g. http://host/v1.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Camp represents the API camp model.
type Camp struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Fee                    int64  `json:"fee"`
	Currency               string `json:"currency"`
	ScheduledAt            string `json:"scheduled_at"`
	Location               string `json:"location"`
	HealthcareProfessional string `json:"healthcare_professional"`
	Description            string `json:"description,omitempty"`
	OrganizerID            string `json:"organizer_id"`
	ParticipantCount       int64  `json:"participant_count"`
}

// CampInput is the body of CreateCamp.
type CampInput struct {
	Name                   string `json:"name"`
	Fee                    int64  `json:"fee"`
	Currency               string `json:"currency,omitempty"`
	ScheduledAt            string `json:"scheduled_at"`
	Location               string `json:"location"`
	HealthcareProfessional string `json:"healthcare_professional"`
	Description            string `json:"description,omitempty"`
}

// Participant carries registration details. Empty name and email fall back to the token claims.
type Participant struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Age              int    `json:"age,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Gender           string `json:"gender,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

// Registration represents a participant's registration for a camp.
type Registration struct {
	ID                 string `json:"id"`
	CampID             string `json:"camp_id"`
	ParticipantID      string `json:"participant_id"`
	CampName           string `json:"camp_name"`
	CampFee            int64  `json:"camp_fee"`
	Currency           string `json:"currency"`
	PaymentStatus      string `json:"payment_status"`
	ConfirmationStatus string `json:"confirmation_status"`
	Cancelled          bool   `json:"cancelled"`
	TransactionID      string `json:"transaction_id,omitempty"`
	Version            int64  `json:"version"`
}

// PaymentStart is returned when a checkout session is opened.
type PaymentStart struct {
	SessionID    string       `json:"session_id"`
	RedirectURL  string       `json:"redirect_url"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	Registration Registration `json:"registration"`
}

// CallbackResult reports whether a callback changed the registration.
type CallbackResult struct {
	Applied      bool         `json:"applied"`
	Registration Registration `json:"registration"`
}

// PaymentRecord is one line of the payment history.
type PaymentRecord struct {
	RegistrationID     string `json:"registration_id"`
	CampID             string `json:"camp_id"`
	CampName           string `json:"camp_name"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	TransactionID      string `json:"transaction_id"`
	PaidAt             string `json:"paid_at"`
	ConfirmationStatus string `json:"confirmation_status"`
	Cancelled          bool   `json:"cancelled"`
}

type Feedback struct {
	ID             string `json:"id"`
	RegistrationID string `json:"registration_id"`
	CampID         string `json:"camp_id"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
	Approved       bool   `json:"approved"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	CampID     string         `json:"camp_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCamp publishes a camp. Requires an organizer token.
func (c *Client) CreateCamp(ctx context.Context, in CampInput) (Camp, error) {
	var resp Camp
	err := c.do(ctx, http.MethodPost, "camps", in, nil, &resp)
	return resp, err
}

// ListCamps returns camps matching search.
func (c *Client) ListCamps(ctx context.Context, search string, limit int) ([]Camp, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []Camp
	err := c.do(ctx, http.MethodGet, withQuery("camps", q), nil, nil, &resp)
	return resp, err
}

func (c *Client) GetCamp(ctx context.Context, id string) (Camp, error) {
	var resp Camp
	err := c.do(ctx, http.MethodGet, "camps/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

// Register creates a registration for the token's participant.
func (c *Client) Register(ctx context.Context, campID string, p Participant) (Registration, error) {
	var resp Registration
	endpoint := fmt.Sprintf("camps/%s/registrations", url.PathEscape(campID))
	err := c.do(ctx, http.MethodPost, endpoint, p, nil, &resp)
	return resp, err
}

// Registrations lists the caller's registrations.
func (c *Client) Registrations(ctx context.Context, includeCancelled bool) ([]Registration, error) {
	q := url.Values{}
	if includeCancelled {
		q.Set("include_cancelled", "true")
	}
	var resp []Registration
	err := c.do(ctx, http.MethodGet, withQuery("registrations", q), nil, nil, &resp)
	return resp, err
}

func (c *Client) CancelRegistration(ctx context.Context, id string) (Registration, error) {
	return c.registrationAction(ctx, id, "cancel")
}

// ConfirmRegistration marks a registration confirmed. Requires the camp's organizer.
func (c *Client) ConfirmRegistration(ctx context.Context, id string) (Registration, error) {
	return c.registrationAction(ctx, id, "confirm")
}

func (c *Client) registrationAction(ctx context.Context, id, action string) (Registration, error) {
	var resp Registration
	endpoint := fmt.Sprintf("registrations/%s/%s", url.PathEscape(id), action)
	err := c.do(ctx, http.MethodPost, endpoint, nil, nil, &resp)
	return resp, err
}

// InitiatePayment opens a checkout session; follow RedirectURL to pay.
func (c *Client) InitiatePayment(ctx context.Context, registrationID string) (PaymentStart, error) {
	var resp PaymentStart
	endpoint := fmt.Sprintf("registrations/%s/payments", url.PathEscape(registrationID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, nil, &resp)
	return resp, err
}

// PaymentCallback reports a successful checkout, as the gateway's return page does.
func (c *Client) PaymentCallback(ctx context.Context, sessionID, campID, transactionID string) (CallbackResult, error) {
	body := map[string]any{
		"session_id": sessionID,
		"camp_id":    campID,
	}
	if transactionID != "" {
		body["transaction_id"] = transactionID
	}
	var headers http.Header
	if c.CallbackSecret != "" {
		headers = http.Header{"X-Callback-Secret": []string{c.CallbackSecret}}
	}
	var resp CallbackResult
	err := c.do(ctx, http.MethodPost, "payments/callback", body, headers, &resp)
	return resp, err
}

func (c *Client) PaymentHistory(ctx context.Context) ([]PaymentRecord, error) {
	var resp []PaymentRecord
	err := c.do(ctx, http.MethodGet, "payments", nil, nil, &resp)
	return resp, err
}

// SubmitFeedback rates a paid registration.
func (c *Client) SubmitFeedback(ctx context.Context, registrationID string, rating int, comment string) (Feedback, error) {
	body := map[string]any{
		"rating":  rating,
		"comment": comment,
	}
	var resp Feedback
	endpoint := fmt.Sprintf("registrations/%s/feedback", url.PathEscape(registrationID))
	err := c.do(ctx, http.MethodPost, endpoint, body, nil, &resp)
	return resp, err
}

// PublicFeedback lists approved feedback, optionally for one camp.
func (c *Client) PublicFeedback(ctx context.Context, campID string) ([]Feedback, error) {
	q := url.Values{}
	if campID != "" {
		q.Set("camp_id", campID)
	}
	var resp []Feedback
	err := c.do(ctx, http.MethodGet, withQuery("feedback", q), nil, nil, &resp)
	return resp, err
}

// EventsPage returns a page of a camp's event log.
func (c *Client) EventsPage(ctx context.Context, campID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	endpoint := withQuery(fmt.Sprintf("camps/%s/events", url.PathEscape(campID)), q)
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, headers http.Header, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
