package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
)

type registrationPath struct {
	RegistrationID string `path:"registration_id"`
}

type registrationBody struct {
	Body domain.Registration `json:"body"`
}

type registrationsBody struct {
	Body []domain.Registration `json:"body"`
}

func registerRegistrations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-registration",
		Method:        http.MethodPost,
		Path:          "/camps/{camp_id}/registrations",
		Summary:       "Register for a camp",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CampID string          `path:"camp_id"`
		Body   RegisterRequest `json:"body,omitempty" required:"false"`
	}) (*registrationBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reg, err := e.CreateRegistration(ctx, actor, input.CampID, input.Body.details())
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationBody{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-registrations",
		Method:      http.MethodGet,
		Path:        "/registrations",
		Summary:     "List the caller's registrations",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		IncludeCancelled bool `query:"include_cancelled"`
	}) (*registrationsBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListParticipantRegistrations(ctx, actor, input.IncludeCancelled)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationsBody{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-camp-registrations",
		Method:      http.MethodGet,
		Path:        "/camps/{camp_id}/registrations",
		Summary:     "List registrations of a camp",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampID           string `path:"camp_id"`
		IncludeCancelled bool   `query:"include_cancelled"`
	}) (*registrationsBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCampRegistrations(ctx, actor, input.CampID, input.IncludeCancelled)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationsBody{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-organizer-registrations",
		Method:      http.MethodGet,
		Path:        "/organizer/registrations",
		Summary:     "List registrations across the organizer's camps",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		IncludeCancelled bool `query:"include_cancelled"`
	}) (*registrationsBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCampRegistrations(ctx, actor, "", input.IncludeCancelled)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationsBody{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-registration",
		Method:      http.MethodGet,
		Path:        "/registrations/{registration_id}",
		Summary:     "Get registration",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *registrationPath) (*registrationBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reg, err := e.GetRegistration(ctx, actor, input.RegistrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationBody{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-registration",
		Method:      http.MethodPost,
		Path:        "/registrations/{registration_id}/cancel",
		Summary:     "Cancel registration",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *registrationPath) (*registrationBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reg, err := e.CancelRegistration(ctx, actor, input.RegistrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationBody{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-registration",
		Method:      http.MethodPost,
		Path:        "/registrations/{registration_id}/confirm",
		Summary:     "Confirm registration",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *registrationPath) (*registrationBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reg, err := e.ConfirmRegistration(ctx, actor, input.RegistrationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &registrationBody{Body: reg}, nil
	})
}
