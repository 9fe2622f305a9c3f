package leads

// ValidateTransition reports whether a lead may move from one status to
// another. Closed is terminal: nothing leaves it. Waiting-signature is only
// reachable once a conversation is actually underway.
func ValidateTransition(from, to Status) error {
	if from == StatusClosed {
		return ErrLeadClosed
	}
	if from == to {
		return nil
	}
	switch to {
	case StatusNew:
		return ErrInvalidTransition
	case StatusAITalking, StatusHumanIntervention, StatusClosed:
		return nil
	case StatusWaitingSignature:
		if from == StatusNew {
			return ErrInvalidTransition
		}
		return nil
	default:
		return ErrInvalidTransition
	}
}

// StatusForAutoPilot maps the automated-agent flag onto the conversation
// status. The flag is a derived control bit, not independent state: flipping
// it moves the lead between AI and human ownership through the same mutation
// path so the two can never diverge.
func StatusForAutoPilot(enabled bool) Status {
	if enabled {
		return StatusAITalking
	}
	return StatusHumanIntervention
}

// AutoPilotForStatus is the inverse mapping used when a status change is the
// driver (handoff tool, operator archive).
func AutoPilotForStatus(status Status) bool {
	return status == StatusAITalking
}
