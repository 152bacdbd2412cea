package models

// OpportunityStatus is the stage of a reactivation effort in the pipeline.
type OpportunityStatus string

const (
	StatusNew       OpportunityStatus = "NEW"
	StatusSent      OpportunityStatus = "SENT"
	StatusResponded OpportunityStatus = "RESPONDED"
	StatusScheduled OpportunityStatus = "SCHEDULED"
	StatusArchived  OpportunityStatus = "ARCHIVED"
)

// PipelineStatuses lists every status in pipeline order. Reverse lookups
// (list id -> status) iterate in this order, so the first entry wins when two
// statuses point at the same list.
var PipelineStatuses = []OpportunityStatus{
	StatusNew,
	StatusSent,
	StatusResponded,
	StatusScheduled,
	StatusArchived,
}

func (s OpportunityStatus) Valid() bool {
	for _, status := range PipelineStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusListMapping maps pipeline statuses to Trello list ids.
type StatusListMapping map[OpportunityStatus]string

// Missing returns the statuses that have no list assigned.
func (m StatusListMapping) Missing() []OpportunityStatus {
	var missing []OpportunityStatus
	for _, status := range PipelineStatuses {
		if m[status] == "" {
			missing = append(missing, status)
		}
	}
	return missing
}
