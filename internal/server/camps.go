package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

func registerCamps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-camp",
		Method:        http.MethodPost,
		Path:          "/camps",
		Summary:       "Create camp",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateCampRequest `json:"body"`
	}) (*struct {
		Body domain.Camp `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "BAD_REQUEST", "body required", nil)
		}
		c, err := e.CreateCamp(ctx, actor, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Camp `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-camps",
		Method:      http.MethodGet,
		Path:        "/camps",
		Summary:     "List camps",
	}, func(ctx context.Context, input *struct {
		Search      string `query:"search"`
		OrganizerID string `query:"organizer_id"`
		Limit       int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Camp `json:"body"`
	}, error) {
		items, err := e.ListCamps(ctx, repo.CampFilter{
			Search:      input.Search,
			OrganizerID: input.OrganizerID,
			Limit:       normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Camp `json:"body"`
		}{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-camp",
		Method:      http.MethodGet,
		Path:        "/camps/{camp_id}",
		Summary:     "Get camp",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampID string `path:"camp_id"`
	}) (*struct {
		Body domain.Camp `json:"body"`
	}, error) {
		c, err := e.GetCamp(ctx, input.CampID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Camp `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-camp",
		Method:        http.MethodDelete,
		Path:          "/camps/{camp_id}",
		Summary:       "Delete camp",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampID string `path:"camp_id"`
	}) (*struct{}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCamp(ctx, actor, input.CampID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
