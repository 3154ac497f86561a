package models

import "time"

// Deal pipeline stages.
const (
	StageProspect    = "prospect"
	StageQualified   = "qualified"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageClosedWon   = "closed-won"
	StageClosedLost  = "closed-lost"
)

// Stages lists the pipeline stages in board order.
var Stages = []string{
	StageProspect, StageQualified, StageProposal,
	StageNegotiation, StageClosedWon, StageClosedLost,
}

// Contact is a person tracked by the CRM.
type Contact struct {
	ID           int64     `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Email        string    `json:"email" yaml:"email"`
	Phone        string    `json:"phone,omitempty" yaml:"phone"`
	Company      string    `json:"company" yaml:"company"`
	Position     string    `json:"position,omitempty" yaml:"position"`
	Tags         []string  `json:"tags" yaml:"tags"`
	Owner        string    `json:"owner,omitempty" yaml:"owner"`
	LastActivity time.Time `json:"lastActivity" yaml:"last_activity"`
	CreatedAt    time.Time `json:"createdAt" yaml:"created_at"`
}

// Deal is an opportunity moving through the pipeline.
type Deal struct {
	ID                int64     `json:"id" yaml:"id"`
	Title             string    `json:"title" yaml:"title"`
	Value             float64   `json:"value" yaml:"value"`
	Stage             string    `json:"stage" yaml:"stage"`
	Probability       float64   `json:"probability" yaml:"probability"`
	ExpectedCloseDate time.Time `json:"expectedCloseDate" yaml:"expected_close_date"`
	CreatedAt         time.Time `json:"createdAt" yaml:"created_at"`
	ContactID         int64     `json:"contactId,omitempty" yaml:"contact_id"`
	Owner             string    `json:"owner,omitempty" yaml:"owner"`
}
