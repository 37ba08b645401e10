package types

// Evidence reports whether a heartbeat was observed during one evaluation
// interval.
type Evidence int

const (
	// EvidenceNotSeen indicates no heartbeat arrived during the interval.
	EvidenceNotSeen Evidence = iota

	// EvidenceSeen indicates at least one heartbeat arrived during the
	// interval.
	EvidenceSeen
)

// EvidenceOf converts a boolean heartbeat observation into Evidence.
func EvidenceOf(seen bool) Evidence {
	if seen {
		return EvidenceSeen
	}

	return EvidenceNotSeen
}

// String returns the string representation of the evidence.
func (e Evidence) String() string {
	switch e {
	case EvidenceNotSeen:
		return "NotSeen"
	case EvidenceSeen:
		return "Seen"
	default:
		return "Invalid"
	}
}
