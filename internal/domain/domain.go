package domain

type Camp struct {
	ID                     string  `json:"id" db:"id"`
	Name                   string  `json:"name" db:"name"`
	Fee                    int64   `json:"fee" db:"fee" doc:"Fee in minor currency units"`
	Currency               string  `json:"currency" db:"currency"`
	ScheduledAt            string  `json:"scheduled_at" db:"scheduled_at" format:"date-time"`
	Location               string  `json:"location" db:"location"`
	HealthcareProfessional string  `json:"healthcare_professional" db:"healthcare_professional"`
	Description            string  `json:"description,omitempty" db:"description"`
	OrganizerID            string  `json:"organizer_id" db:"organizer_id"`
	OrganizerEmail         string  `json:"organizer_email,omitempty" db:"organizer_email"`
	ParticipantCount       int64   `json:"participant_count" db:"participant_count"`
	CreatedAt              string  `json:"created_at" db:"created_at" format:"date-time"`
	DeletedAt              *string `json:"deleted_at,omitempty" db:"deleted_at" format:"date-time"`
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
)

// ParticipantDetails is the join form a participant fills in.
type ParticipantDetails struct {
	Name             string `json:"participant_name" db:"participant_name"`
	Email            string `json:"participant_email" db:"participant_email"`
	Age              int    `json:"age" db:"age"`
	Phone            string `json:"phone" db:"phone"`
	Gender           string `json:"gender" db:"gender"`
	EmergencyContact string `json:"emergency_contact" db:"emergency_contact"`
}

type Registration struct {
	ID            string `json:"id" db:"id"`
	CampID        string `json:"camp_id" db:"camp_id"`
	ParticipantID string `json:"participant_id" db:"participant_id"`
	ParticipantDetails

	CampName               string `json:"camp_name" db:"camp_name"`
	CampFee                int64  `json:"camp_fee" db:"camp_fee"`
	Currency               string `json:"currency" db:"currency"`
	Location               string `json:"location" db:"location"`
	HealthcareProfessional string `json:"healthcare_professional" db:"healthcare_professional"`

	PaymentStatus      PaymentStatus      `json:"payment_status" db:"payment_status" enum:"unpaid,paid"`
	ConfirmationStatus ConfirmationStatus `json:"confirmation_status" db:"confirmation_status" enum:"pending,confirmed"`
	Cancelled          bool               `json:"cancelled" db:"cancelled"`
	Counted            bool               `json:"-" db:"counted"`
	ActiveSessionID    *string            `json:"active_session_id,omitempty" db:"active_session_id"`
	TransactionID      *string            `json:"transaction_id,omitempty" db:"transaction_id"`
	Version            int64              `json:"version" db:"version"`

	CreatedAt   string  `json:"created_at" db:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" db:"updated_at" format:"date-time"`
	PaidAt      *string `json:"paid_at,omitempty" db:"paid_at" format:"date-time"`
	ConfirmedAt *string `json:"confirmed_at,omitempty" db:"confirmed_at" format:"date-time"`
	CancelledAt *string `json:"cancelled_at,omitempty" db:"cancelled_at" format:"date-time"`
	CancelledBy *string `json:"cancelled_by,omitempty" db:"cancelled_by"`
}

type SessionStatus string

const (
	SessionOpen       SessionStatus = "open"
	SessionSuperseded SessionStatus = "superseded"
	SessionCompleted  SessionStatus = "completed"
	SessionVoid       SessionStatus = "void"
)

// PaymentSession correlates a gateway checkout with the registration it pays for.
type PaymentSession struct {
	ID             string        `json:"id" db:"id"`
	RegistrationID string        `json:"registration_id" db:"registration_id"`
	CampID         string        `json:"camp_id" db:"camp_id"`
	Amount         int64         `json:"amount" db:"amount"`
	Currency       string        `json:"currency" db:"currency"`
	RedirectURL    string        `json:"redirect_url,omitempty" db:"redirect_url"`
	Status         SessionStatus `json:"status" db:"status" enum:"open,superseded,completed,void"`
	TransactionID  *string       `json:"transaction_id,omitempty" db:"transaction_id"`
	CreatedAt      string        `json:"created_at" db:"created_at" format:"date-time"`
	CompletedAt    *string       `json:"completed_at,omitempty" db:"completed_at" format:"date-time"`
}

type Feedback struct {
	ID              string  `json:"id" db:"id"`
	RegistrationID  string  `json:"registration_id" db:"registration_id"`
	CampID          string  `json:"camp_id" db:"camp_id"`
	ParticipantID   string  `json:"participant_id" db:"participant_id"`
	ParticipantName string  `json:"participant_name,omitempty" db:"participant_name"`
	Rating          int     `json:"rating" db:"rating" minimum:"1" maximum:"5"`
	Comment         string  `json:"comment,omitempty" db:"comment"`
	Approved        bool    `json:"approved" db:"approved"`
	CreatedAt       string  `json:"created_at" db:"created_at" format:"date-time"`
	ApprovedAt      *string `json:"approved_at,omitempty" db:"approved_at" format:"date-time"`
}

type Event struct {
	ID         int64   `json:"id" db:"id"`
	TS         string  `json:"ts" db:"ts" format:"date-time"`
	Type       string  `json:"type" db:"type"`
	CampID     *string `json:"camp_id,omitempty" db:"camp_id"`
	EntityKind string  `json:"entity_kind" db:"entity_kind"`
	EntityID   *string `json:"entity_id,omitempty" db:"entity_id"`
	ActorID    string  `json:"actor_id" db:"actor_id"`
	Payload    string  `json:"payload_json" db:"payload_json"`
}
