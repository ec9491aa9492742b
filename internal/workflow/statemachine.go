// Package workflow implements the artifact review lifecycle.
//
// Allowed transitions:
//
//	Draft           -> ReviewRequested
//	Rejected        -> ReviewRequested
//	ReviewRequested -> Approved | Rejected
//	Approved        -> Published
//
// Published is terminal. Every status write is checked against this table.
package workflow

import (
	"fmt"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/models"
)

var transitions = map[models.Status][]models.Status{
	models.StatusDraft:           {models.StatusReviewRequested},
	models.StatusRejected:        {models.StatusReviewRequested},
	models.StatusReviewRequested: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:        {models.StatusPublished},
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns apperr.ErrInvalidState when from -> to is not
// an edge of the table.
func ValidateTransition(from, to models.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot move artifact from %s to %s", apperr.ErrInvalidState, from, to)
	}
	return nil
}

// Editable reports whether the owner may change an artifact's fields in
// status s. Rejected submissions are editable so the owner can revise them
// before resubmitting.
func Editable(s models.Status) bool {
	return s == models.StatusDraft || s == models.StatusRejected
}

// Terminal reports whether s has no outgoing transitions.
func Terminal(s models.Status) bool {
	return len(transitions[s]) == 0
}

func statusFor(d models.Decision) (models.Status, error) {
	switch d {
	case models.DecisionApproved:
		return models.StatusApproved, nil
	case models.DecisionRejected:
		return models.StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: decision must be %s or %s", apperr.ErrInvalidArgument,
			models.DecisionApproved, models.DecisionRejected)
	}
}
