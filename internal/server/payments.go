package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
)

func registerPayments(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "initiate-payment",
		Method:        http.MethodPost,
		Path:          "/registrations/{registration_id}/payments",
		Summary:       "Start a checkout session",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *registrationPath) (*struct {
		Body engine.PaymentStart `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		start, err := e.InitiatePayment(ctx, actor, input.RegistrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.PaymentStart `json:"body"`
		}{Body: start}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payment-sessions",
		Method:      http.MethodGet,
		Path:        "/registrations/{registration_id}/payments",
		Summary:     "List checkout sessions of a registration",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *registrationPath) (*struct {
		Body []domain.PaymentSession `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSessions(ctx, actor, input.RegistrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.PaymentSession `json:"body"`
		}{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "payment-callback",
		Method:      http.MethodPost,
		Path:        "/payments/callback",
		Summary:     "Apply a successful payment",
		Description: "Called after checkout succeeds. Repeated deliveries are acknowledged without side effects.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Secret string          `header:"X-Callback-Secret"`
		Body   CallbackRequest `json:"body"`
	}) (*struct {
		Body engine.CallbackResult `json:"body"`
	}, error) {
		if want := strings.TrimSpace(authCfg.CallbackSecret); want != "" &&
			subtle.ConstantTimeCompare([]byte(want), []byte(input.Secret)) != 1 {
			return nil, newAPIError(http.StatusUnauthorized, "INVALID_CALLBACK_SECRET", "invalid callback secret", nil)
		}
		res, err := e.HandlePaymentCallback(ctx, engine.CallbackInput{
			SessionID:     input.Body.SessionID,
			CampID:        input.Body.CampID,
			TransactionID: input.Body.TransactionID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CallbackResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "payment-history",
		Method:      http.MethodGet,
		Path:        "/payments",
		Summary:     "Payment history of the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.PaymentRecord `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.PaymentHistory(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.PaymentRecord `json:"body"`
		}{Body: nonNil(items)}, nil
	})
}
