package trellosync

import "github.com/fmbp1981-hash/allo-oral-clinic---gest-o-sub000/internal/models"

// ListIDFromStatus returns the list the status is mapped to.
func ListIDFromStatus(status models.OpportunityStatus, mapping models.StatusListMapping) (string, bool) {
	listID, ok := mapping[status]
	if !ok || listID == "" {
		return "", false
	}
	return listID, true
}

// StatusFromListID returns the first status, in pipeline order, mapped to listID.
func StatusFromListID(listID string, mapping models.StatusListMapping) (models.OpportunityStatus, bool) {
	if listID == "" {
		return "", false
	}
	for _, status := range models.PipelineStatuses {
		if mapping[status] == listID {
			return status, true
		}
	}
	return "", false
}
