package consensus

type Tracer interface {
	OnVote(*CommitVote, AddOutcome, error)
	OnCertified(*QuorumCertificate)
}
