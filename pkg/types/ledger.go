package types

import (
	"bytes"
	"fmt"
)

var (
	ledgerInfoSalt = []byte("LEDGERCERT::LedgerInfo")
	blockSalt      = []byte("LEDGERCERT::Block")
)

// RandomnessSeed is the per block randomness produced by the epoch DKG
type RandomnessSeed []byte

// ValidatorConsensusInfo is the per validator record of an epoch
type ValidatorConsensusInfo struct {
	Address         Author `msgpack:"a" json:"address"`
	PublicKey       []byte `msgpack:"pk" json:"public_key"`
	VotingPower     uint64 `msgpack:"vp" json:"voting_power"`
	Index           uint64 `msgpack:"i" json:"index"`
	NetworkAddress  string `msgpack:"na,omitempty" json:"network_address,omitempty"`
	FullnodeAddress string `msgpack:"fa,omitempty" json:"fullnode_address,omitempty"`
}

// EpochState is the resolved validator set of an epoch
type EpochState struct {
	Epoch      uint64                   `msgpack:"e" json:"epoch"`
	Validators []ValidatorConsensusInfo `msgpack:"v" json:"validators"`
}

func (s *EpochState) Equal(o *EpochState) bool {
	if s == nil || o == nil {
		return s == o
	}

	a, errA := Encode(s)
	b, errB := Encode(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// BlockInfo is the commit target of a ledger info
type BlockInfo struct {
	Epoch           uint64      `msgpack:"e" json:"epoch"`
	Round           uint64      `msgpack:"r" json:"round"`
	ID              HashValue   `msgpack:"id" json:"id"`
	ExecutedStateID HashValue   `msgpack:"s" json:"executed_state_id"`
	Version         uint64      `msgpack:"v" json:"version"`
	TimestampUsecs  uint64      `msgpack:"t" json:"timestamp_usecs"`
	NextEpochState  *EpochState `msgpack:"n" json:"next_epoch_state,omitempty"`
}

// EndsEpoch reports whether committing this block reconfigures the validator set
func (b *BlockInfo) EndsEpoch() bool {
	return b.NextEpochState != nil
}

func (b *BlockInfo) String() string {
	return fmt.Sprintf("BlockInfo: [epoch: %d, round: %d, id: %s, executed_state_id: %s, version: %d, timestamp(us): %d]",
		b.Epoch, b.Round, b.ID.ShortString(), b.ExecutedStateID.ShortString(), b.Version, b.TimestampUsecs)
}

// LedgerInfo is the claim that the state after CommitInfo is final
type LedgerInfo struct {
	CommitInfo        BlockInfo `msgpack:"c" json:"commit_info"`
	ConsensusDataHash HashValue `msgpack:"h" json:"consensus_data_hash"`
}

func NewLedgerInfo(commit BlockInfo, consensusDataHash HashValue) LedgerInfo {
	return LedgerInfo{CommitInfo: commit, ConsensusDataHash: consensusDataHash}
}

func (l *LedgerInfo) Epoch() uint64 {
	return l.CommitInfo.Epoch
}

func (l *LedgerInfo) Round() uint64 {
	return l.CommitInfo.Round
}

// SigningBytes is the exact message validators sign
func (l *LedgerInfo) SigningBytes() ([]byte, error) {
	d, err := Encode(l)
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, len(ledgerInfoSalt)+len(d))
	msg = append(msg, ledgerInfoSalt...)
	return append(msg, d...), nil
}

func (l *LedgerInfo) Hash() (HashValue, error) {
	d, err := l.SigningBytes()
	if err != nil {
		return ZeroHash, err
	}

	return HashOf(d), nil
}

func (l *LedgerInfo) Equal(o *LedgerInfo) bool {
	if l == nil || o == nil {
		return l == o
	}

	a, errA := Encode(l)
	b, errB := Encode(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Less orders ledger infos by (epoch, round)
func (l *LedgerInfo) Less(o *LedgerInfo) bool {
	if l.Epoch() != o.Epoch() {
		return l.Epoch() < o.Epoch()
	}
	return l.Round() < o.Round()
}

func (l *LedgerInfo) String() string {
	return fmt.Sprintf("LedgerInfo: [commit_info: %s, consensus_data_hash: %s]", l.CommitInfo.String(), l.ConsensusDataHash.ShortString())
}

// Block is the executed block persisted next to its certificate
type Block struct {
	Epoch          uint64    `msgpack:"e" json:"epoch"`
	Round          uint64    `msgpack:"r" json:"round"`
	ID             HashValue `msgpack:"id" json:"id"`
	Parent         HashValue `msgpack:"p" json:"parent_id"`
	Author         *Author   `msgpack:"a,omitempty" json:"author,omitempty"`
	TimestampUsecs uint64    `msgpack:"t" json:"timestamp_usecs"`
	Payload        []byte    `msgpack:"d" json:"payload"`
}

// NewBlock builds a block and fills its content hash id
func NewBlock(epoch, round uint64, parent HashValue, author *Author, ts uint64, payload []byte) (*Block, error) {
	b := &Block{
		Epoch:          epoch,
		Round:          round,
		Parent:         parent,
		Author:         author,
		TimestampUsecs: ts,
		Payload:        payload,
	}

	id, err := b.ComputeID()
	if err != nil {
		return nil, err
	}
	b.ID = id

	return b, nil
}

// ComputeID hashes every field but the id itself
func (b *Block) ComputeID() (HashValue, error) {
	c := *b
	c.ID = ZeroHash

	d, err := Encode(&c)
	if err != nil {
		return ZeroHash, err
	}

	return HashOf(blockSalt, d), nil
}

func (b *Block) Equal(o *Block) bool {
	if b == nil || o == nil {
		return b == o
	}

	x, errA := Encode(b)
	y, errB := Encode(o)
	return errA == nil && errB == nil && bytes.Equal(x, y)
}
