package models

import "time"

// Opportunity is a patient reactivation effort tracked through the pipeline.
type Opportunity struct {
	ID            string            `gorm:"primaryKey" json:"id"`
	TenantID      string            `gorm:"index;not null" json:"tenant_id"`
	PatientName   string            `json:"patient_name"`
	Phone         string            `json:"phone"`
	Keyword       string            `json:"keyword"`
	Status        OpportunityStatus `gorm:"index;not null" json:"status"`
	Notes         string            `json:"notes"`
	ScheduledDate *time.Time        `json:"scheduled_date,omitempty"`
	LastContactAt *time.Time        `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OpportunityChanges is a partial update. Nil fields are left untouched.
type OpportunityChanges struct {
	PatientName   *string
	Phone         *string
	Keyword       *string
	Notes         *string
	Status        *OpportunityStatus
	ScheduledDate *time.Time
}

func (c OpportunityChanges) IsEmpty() bool {
	return len(c.Columns()) == 0
}

// Columns returns the changed columns keyed by column name.
func (c OpportunityChanges) Columns() map[string]any {
	cols := map[string]any{}
	if c.PatientName != nil {
		cols["patient_name"] = *c.PatientName
	}
	if c.Phone != nil {
		cols["phone"] = *c.Phone
	}
	if c.Keyword != nil {
		cols["keyword"] = *c.Keyword
	}
	if c.Notes != nil {
		cols["notes"] = *c.Notes
	}
	if c.Status != nil {
		cols["status"] = string(*c.Status)
	}
	if c.ScheduledDate != nil {
		cols["scheduled_date"] = *c.ScheduledDate
	}
	return cols
}

// Appointment is what gets mirrored to the clinic calendar for a scheduled opportunity.
type Appointment struct {
	OpportunityID string
	PatientName   string
	Phone         string
	Keyword       string
	Start         time.Time
}
