package auth

import (
	"context"
	"strings"

	"github.com/RahatInCode/medicamp-public/internal/domain"
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleOrganizer   Role = "organizer"
)

// ParseRole maps a claim value to a Role, defaulting to participant.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleOrganizer)) {
		return RoleOrganizer
	}
	return RoleParticipant
}

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role" enum:"participant,organizer"`
}

func (i Identity) IsOrganizer() bool {
	return i.Role == RoleOrganizer
}

// RequireOrganizerRole rejects callers without the organizer role.
func RequireOrganizerRole(id Identity) error {
	if !id.IsOrganizer() {
		return domain.ErrForbidden.WithMetadata("required_role", string(RoleOrganizer))
	}
	return nil
}

// RequireCampOrganizer rejects callers who did not create the camp.
func RequireCampOrganizer(id Identity, camp domain.Camp) error {
	if !id.IsOrganizer() || id.ID != camp.OrganizerID {
		return domain.ErrNotOrganizerOfCamp
	}
	return nil
}

// RequireParticipant rejects callers who do not own the registration.
func RequireParticipant(id Identity, reg domain.Registration) error {
	if id.ID == "" || id.ID != reg.ParticipantID {
		return domain.ErrForbidden
	}
	return nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.ID != ""
}
