package consensus

// State of a round's aggregation. Collecting moves to Certified exactly
// once; Abandoned is only reachable from Collecting.
type State uint8

const (
	StateCollecting State = iota
	StateCertified
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateCertified:
		return "certified"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

type Outcome uint8

const (
	// OutcomePending means the vote was counted but quorum is not reached yet
	OutcomePending Outcome = iota + 1
	OutcomeDuplicate
	OutcomeAlreadyCertified
	OutcomeCertified
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAlreadyCertified:
		return "already_certified"
	case OutcomeCertified:
		return "certified"
	default:
		return "unknown"
	}
}

// AddOutcome is the result of a successfully processed vote. Certificate
// is set for OutcomeCertified and OutcomeAlreadyCertified.
type AddOutcome struct {
	Outcome     Outcome
	Certificate *QuorumCertificate
}
