package server

import (
	"encoding/json"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
)

type CreateCampRequest struct {
	Name                   string `json:"name" minLength:"1"`
	Fee                    int64  `json:"fee" minimum:"0" doc:"Fee in minor currency units"`
	Currency               string `json:"currency,omitempty" example:"usd"`
	ScheduledAt            string `json:"scheduled_at" format:"date-time"`
	Location               string `json:"location" minLength:"1"`
	HealthcareProfessional string `json:"healthcare_professional" minLength:"1"`
	Description            string `json:"description,omitempty"`
}

func (r CreateCampRequest) input() engine.CampInput {
	return engine.CampInput{
		Name:                   r.Name,
		Fee:                    r.Fee,
		Currency:               r.Currency,
		ScheduledAt:            r.ScheduledAt,
		Location:               r.Location,
		HealthcareProfessional: r.HealthcareProfessional,
		Description:            r.Description,
	}
}

// RegisterRequest carries the participant details; name and email default to the token claims.
type RegisterRequest struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Age              int    `json:"age,omitempty" minimum:"0" maximum:"150"`
	Phone            string `json:"phone,omitempty"`
	Gender           string `json:"gender,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

func (r RegisterRequest) details() domain.ParticipantDetails {
	return domain.ParticipantDetails{
		Name:             r.Name,
		Email:            r.Email,
		Age:              r.Age,
		Phone:            r.Phone,
		Gender:           r.Gender,
		EmergencyContact: r.EmergencyContact,
	}
}

type CallbackRequest struct {
	SessionID     string `json:"session_id" minLength:"1"`
	CampID        string `json:"camp_id" minLength:"1"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" doc:"1 to 5"`
	Comment string `json:"comment,omitempty" maxLength:"2000"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	CampID     string          `json:"camp_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		CampID:     stringOrEmpty(evt.CampID),
		EntityKind: evt.EntityKind,
		EntityID:   stringOrEmpty(evt.EntityID),
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
