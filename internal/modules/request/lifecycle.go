// README: Request state machine and activity transitions as code.
package request

import "quickfix/internal/modules/users"

// AllowedTransitions represents the request state flow. No transition moves
// backward and COMPLETED is terminal.
var AllowedTransitions = map[Status][]Status{
	StatusOpen:     {StatusAssigned},
	StatusAssigned: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// activityFor maps a request status to the activity of the people on it.
func activityFor(s Status) users.Activity {
	switch s {
	case StatusAssigned:
		return users.ActivityAssigned
	case StatusCompleted:
		return users.ActivityCompleted
	default:
		return users.ActivityWaiting
	}
}

// ParseAction accepts the action vocabulary; ok is false for anything else.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionAccept, ActionDeny:
		return Action(s), true
	}
	return "", false
}
