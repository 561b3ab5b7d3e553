package validator

import "github.com/holiman/uint256"

// QuorumThreshold returns the smallest Q with 3Q > 2T, floor(2T/3)+1.
// Any two sets reaching Q intersect in more than T/3 of the voting power.
func QuorumThreshold(total *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Mul(total, uint256.NewInt(2))
	q.Div(q, uint256.NewInt(3))
	return q.AddUint64(q, 1)
}

// MaxFaultyVotingPower is the Byzantine bound floor((T-1)/3)
func MaxFaultyVotingPower(total *uint256.Int) *uint256.Int {
	if total.IsZero() {
		return new(uint256.Int)
	}

	f := new(uint256.Int).SubUint64(total, 1)
	return f.Div(f, uint256.NewInt(3))
}
