package stage

import "github.com/codeready-toolchain/prospecting-engine/pkg/model"

// Transitions is the canonical per-Prospect state machine (§4.8.8):
// Candidate -> Verified -> Extracted -> Socialized -> Scored ->
// Persisted/Linked, with alternate terminals SkippedByDedup, LinkOnly,
// Dropped. The orchestrator drives this; stages only report what stage
// they completed.
var Transitions = map[model.ProspectStatus][]model.ProspectStatus{
	model.StatusCandidate: {
		model.StatusVerified,
		model.StatusSkippedByDedup,
		model.StatusLinkOnly,
		model.StatusDropped,
	},
	model.StatusVerified:  {model.StatusExtracted, model.StatusDropped},
	model.StatusExtracted: {model.StatusSocialized, model.StatusDropped},
	model.StatusSocialized: {model.StatusScored, model.StatusDropped},
	model.StatusScored: {model.StatusPersisted, model.StatusLinked, model.StatusDropped},
}

// CanTransition reports whether to is a legal next state from from.
func CanTransition(from, to model.ProspectStatus) bool {
	for _, allowed := range Transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status ends the state machine for this run.
func IsTerminal(status model.ProspectStatus) bool {
	switch status {
	case model.StatusPersisted, model.StatusLinked, model.StatusSkippedByDedup,
		model.StatusLinkOnly, model.StatusDropped:
		return true
	default:
		return false
	}
}
