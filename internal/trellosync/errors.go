package trellosync

import "errors"

var (
	// ErrUnmappedStatus means the tenant has no list assigned to the status.
	ErrUnmappedStatus = errors.New("status is not mapped to a Trello list")
	// ErrUnmappedList means a list id does not correspond to any status.
	ErrUnmappedList = errors.New("Trello list is not mapped to a status")
	// ErrRemoteUnavailable wraps any failed call to Trello.
	ErrRemoteUnavailable = errors.New("Trello is temporarily unavailable")
	// ErrStaleReference means a mapped card no longer exists on the board.
	ErrStaleReference = errors.New("mapped Trello card no longer exists")
	// ErrNotConfigured means the tenant is missing credentials or a board.
	ErrNotConfigured = errors.New("Trello integration is not configured")
	// ErrCardNotTracked means no opportunity is linked to the card.
	ErrCardNotTracked = errors.New("card is not tracked")
	// ErrCardAlreadyMapped means the card is already linked to an opportunity.
	ErrCardAlreadyMapped = errors.New("card is already linked to an opportunity")
	// ErrCardFromCRM means the card was created by an outbound sync.
	ErrCardFromCRM = errors.New("card originated from the CRM")
)
