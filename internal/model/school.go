package model

import "time"

// SchoolStatus represents where a school sits in the outreach funnel.
// The set is ordered: uncontacted → contacted → replied → yes|no.
type SchoolStatus string

const (
	StatusUncontacted SchoolStatus = "uncontacted"
	StatusContacted   SchoolStatus = "contacted"
	StatusReplied     SchoolStatus = "replied"
	StatusYes         SchoolStatus = "yes"
	StatusNo          SchoolStatus = "no"
)

// SchoolStatuses lists all valid statuses in funnel order.
var SchoolStatuses = []SchoolStatus{
	StatusUncontacted,
	StatusContacted,
	StatusReplied,
	StatusYes,
	StatusNo,
}

// Valid reports whether s is one of the known funnel statuses.
func (s SchoolStatus) Valid() bool {
	for _, v := range SchoolStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// SchoolType categorizes a school's governance model.
type SchoolType string

const (
	TypePrivate       SchoolType = "private"
	TypeIndependent   SchoolType = "independent"
	TypePublic        SchoolType = "public"
	TypeInternational SchoolType = "international"
)

// School is a tracked outreach target. Each school belongs to exactly
// one region. CRMContactID, when set, is unique across schools and links
// the row to its ActiveCampaign contact.
type School struct {
	ID              string       `json:"id"`
	RegionID        string       `json:"region_id"`
	Name            string       `json:"name"`
	Type            string       `json:"type,omitempty"`
	Status          SchoolStatus `json:"status"`
	Email           string       `json:"email,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	ContactPerson   string       `json:"contact_person,omitempty"`
	Notes           string       `json:"notes,omitempty"`
	CRMContactID    string       `json:"crm_contact_id,omitempty"`
	PipelineStageID string       `json:"pipeline_stage_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// SchoolPatch holds optional field updates for a school. Nil fields are
// left untouched.
type SchoolPatch struct {
	Name          *string       `json:"name,omitempty"`
	RegionID      *string       `json:"region_id,omitempty"`
	Type          *string       `json:"type,omitempty"`
	Status        *SchoolStatus `json:"status,omitempty"`
	Email         *string       `json:"email,omitempty"`
	Phone         *string       `json:"phone,omitempty"`
	ContactPerson *string       `json:"contact_person,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
}
