package gossip

import (
	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
)

type MsgType uint16

const (
	MsgTypeCommitVote MsgType = iota + 1
)

var (
	ErrUnknownMsgType = errors.New("unknown message type")
	ErrEmptyMsg       = errors.New("message has no payload")
)

type Msg struct {
	Type MsgType               `msgpack:"t"`
	Vote *consensus.CommitVote `msgpack:"v,omitempty"`
}

func (m *Msg) Marshal() ([]byte, error) {
	return types.Encode(m)
}

func UnmarshalMsg(b []byte) (*Msg, error) {
	m := &Msg{}
	if err := types.Decode(b, m); err != nil {
		return nil, errors.Wrap(err, "unmarshalling msg")
	}

	switch m.Type {
	case MsgTypeCommitVote:
		if m.Vote == nil {
			return nil, ErrEmptyMsg
		}
	default:
		return nil, errors.Wrapf(ErrUnknownMsgType, "type %d", m.Type)
	}

	return m, nil
}
