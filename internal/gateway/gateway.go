// Package gateway requests hosted checkout sessions from a payment provider.
package gateway

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

	"github.com/google/uuid"
)

type SessionRequest struct {
	// CorrelationID is the registration the session pays for.
	CorrelationID  string
	CampID         string
	CampName       string
	Amount         int64
	Currency       string
	CustomerEmail  string
	IdempotencyKey string
}

type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"url"`
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// Local issues sessions in-process. It never fails and is meant for
// development and tests, where callbacks are posted by hand.
type Local struct {
	SuccessURL string
}

func (l Local) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	id := "cs_local_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	redirect := l.SuccessURL
	if redirect == "" {
		redirect = "/payments/success"
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return Session{}, fmt.Errorf("success url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", id)
	q.Set("camp_id", req.CampID)
	u.RawQuery = q.Encode()
	return Session{ID: id, RedirectURL: u.String()}, nil
}

// Checkout talks to a hosted checkout API that accepts form-encoded session
// requests at POST {BaseURL}/v1/checkout/sessions.
type Checkout struct {
	BaseURL    string
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Client     *http.Client
}

func NewCheckout(baseURL, secretKey, successURL, cancelURL string, timeout time.Duration) *Checkout {
	return &Checkout{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SecretKey:  secretKey,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Client:     &http.Client{Timeout: timeout},
	}
}

type checkoutError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Checkout) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if req.Amount < 0 {
		return Session{}, fmt.Errorf("negative amount %d", req.Amount)
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.CorrelationID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.CampName)
	form.Set("metadata[registration_id]", req.CorrelationID)
	form.Set("metadata[camp_id]", req.CampID)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	if c.SuccessURL != "" {
		form.Set("success_url", c.SuccessURL+"?session_id={CHECKOUT_SESSION_ID}&camp_id="+url.QueryEscape(req.CampID))
	}
	if c.CancelURL != "" {
		form.Set("cancel_url", c.CancelURL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/checkout/sessions", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+c.SecretKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return Session{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Session{}, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var ce checkoutError
		if json.Unmarshal(body, &ce) == nil && ce.Error.Message != "" {
			return Session{}, fmt.Errorf("checkout status %d: %s", res.StatusCode, ce.Error.Message)
		}
		return Session{}, fmt.Errorf("checkout status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode checkout session: %w", err)
	}
	if s.ID == "" {
		return Session{}, fmt.Errorf("checkout session without id")
	}
	return s, nil
}
