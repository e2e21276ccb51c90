package service

import (
	"strings"

	"github.com/solutions224/payments-core/internal/domain"
)

// held is the only live state; released and refunded are terminal and
// mutually exclusive.
var escrowTransitions = map[string]map[string]struct{}{
	domain.EscrowStatusHeld: {
		domain.EscrowStatusReleased: {},
		domain.EscrowStatusRefunded: {},
	},
	domain.EscrowStatusReleased: {},
	domain.EscrowStatusRefunded: {},
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func canTransitionEscrow(current, next string) bool {
	current = normalizeStatus(current)
	next = normalizeStatus(next)
	nextStates, ok := escrowTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}
