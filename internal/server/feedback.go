package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

type feedbackPath struct {
	FeedbackID string `path:"feedback_id"`
}

type feedbackBody struct {
	Body domain.Feedback `json:"body"`
}

type feedbackListBody struct {
	Body []domain.Feedback `json:"body"`
}

func registerFeedback(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-feedback",
		Method:        http.MethodPost,
		Path:          "/registrations/{registration_id}/feedback",
		Summary:       "Leave feedback for a paid visit",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		RegistrationID string          `path:"registration_id"`
		Body           FeedbackRequest `json:"body"`
	}) (*feedbackBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		fb, err := e.SubmitFeedback(ctx, actor, input.RegistrationID, input.Body.Rating, input.Body.Comment)
		if err != nil {
			return nil, handleError(err)
		}
		return &feedbackBody{Body: fb}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-public-feedback",
		Method:      http.MethodGet,
		Path:        "/feedback",
		Summary:     "List approved feedback",
	}, func(ctx context.Context, input *struct {
		CampID string `query:"camp_id"`
		Limit  int    `query:"limit" default:"50"`
	}) (*feedbackListBody, error) {
		items, err := e.ListPublicFeedback(ctx, input.CampID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &feedbackListBody{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-organizer-feedback",
		Method:      http.MethodGet,
		Path:        "/organizer/feedback",
		Summary:     "List all feedback for the organizer's camps",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampID string `query:"camp_id"`
	}) (*feedbackListBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCampFeedback(ctx, actor, input.CampID)
		if err != nil {
			return nil, handleError(err)
		}
		return &feedbackListBody{Body: nonNil(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-feedback",
		Method:      http.MethodPost,
		Path:        "/feedback/{feedback_id}/approve",
		Summary:     "Publish feedback",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *feedbackPath) (*feedbackBody, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		fb, err := e.ApproveFeedback(ctx, actor, input.FeedbackID)
		if err != nil {
			return nil, handleError(err)
		}
		return &feedbackBody{Body: fb}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-feedback",
		Method:        http.MethodDelete,
		Path:          "/feedback/{feedback_id}",
		Summary:       "Delete feedback",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *feedbackPath) (*struct{}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteFeedback(ctx, actor, input.FeedbackID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-camp-events",
		Method:      http.MethodGet,
		Path:        "/camps/{camp_id}/events",
		Summary:     "List the audit trail of a camp",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampID string `path:"camp_id"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var after int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "BAD_REQUEST", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			after = parsed
		}
		items, err := e.ListCampEvents(ctx, actor, repo.EventFilter{
			CampID:  input.CampID,
			Type:    input.Type,
			AfterID: after,
			Limit:   limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}
