package gossip

import (
	"context"
	"sync"
	"testing"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	bhost "github.com/libp2p/go-libp2p/p2p/host/blank"
	swarmt "github.com/libp2p/go-libp2p/p2p/net/swarm/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcfw/ledgercert/pkg/consensus"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

type recordingSink struct {
	mu    sync.Mutex
	votes []*consensus.CommitVote
}

func (r *recordingSink) AddVote(v *consensus.CommitVote) (consensus.AddOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.votes = append(r.votes, v)
	return consensus.AddOutcome{Outcome: consensus.OutcomePending}, nil
}

func (r *recordingSink) first() *consensus.CommitVote {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.votes[0]
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.votes)
}

func getNetHosts(t *testing.T, n int) []host.Host {
	var out []host.Host

	for i := 0; i < n; i++ {
		netw := swarmt.GenSwarm(t)
		h := bhost.NewBlankHost(netw)
		t.Cleanup(func() { h.Close() })
		out = append(out, h)
	}

	return out
}

func connectAll(t *testing.T, hosts []host.Host) {
	for i, a := range hosts {
		for j, b := range hosts {
			if i == j {
				continue
			}

			pinfo := a.Peerstore().PeerInfo(a.ID())
			require.NoError(t, b.Connect(context.Background(), pinfo))
		}
	}
}

func TestMsgRoundTrip(t *testing.T) {
	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := types.NewLedgerInfo(types.BlockInfo{Epoch: 1, Round: 2, ID: types.HashOf([]byte("b"))}, types.HashOf([]byte("c")))

	v, err := consensus.NewCommitVote(set.Signers[0].Author, li, set.Signers[0].Key)
	require.NoError(t, err)

	b, err := (&Msg{Type: MsgTypeCommitVote, Vote: v}).Marshal()
	require.NoError(t, err)

	m, err := UnmarshalMsg(b)
	require.NoError(t, err)
	assert.True(t, v.Equal(m.Vote))
	assert.NoError(t, m.Vote.Verify(set.Verifier))
}

func TestMsgRejectsMalformed(t *testing.T) {
	_, err := UnmarshalMsg([]byte{0xc1})
	assert.Error(t, err)

	b, err := (&Msg{Type: MsgTypeCommitVote}).Marshal()
	require.NoError(t, err)
	_, err = UnmarshalMsg(b)
	assert.ErrorIs(t, err, ErrEmptyMsg)

	b, err = (&Msg{Type: 99}).Marshal()
	require.NoError(t, err)
	_, err = UnmarshalMsg(b)
	assert.ErrorIs(t, err, ErrUnknownMsgType)
}

func TestGossipDeliversVotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hosts := getNetHosts(t, 3)

	sinks := make([]*recordingSink, len(hosts))
	nodes := make([]*Gossip, len(hosts))
	for i, h := range hosts {
		ps, err := pubsub.NewGossipSub(ctx, h)
		require.NoError(t, err)

		sinks[i] = &recordingSink{}
		g, err := New(ps, h.ID(), sinks[i], WithMinTopicSize(2))
		require.NoError(t, err)
		require.NoError(t, g.Start(ctx))
		t.Cleanup(func() { g.Close() })

		nodes[i] = g
	}

	connectAll(t, hosts)

	set := validatortest.NewSet(t, 1, 25, 25, 25, 25)
	li := types.NewLedgerInfo(types.BlockInfo{Epoch: 1, Round: 1, ID: types.HashOf([]byte("b"))}, types.HashOf([]byte("c")))
	v, err := consensus.NewCommitVote(set.Signers[0].Author, li, set.Signers[0].Key)
	require.NoError(t, err)

	pctx, pcancel := context.WithTimeout(ctx, 10*time.Second)
	defer pcancel()
	require.NoError(t, nodes[0].PublishVote(pctx, v))

	assert.Eventually(t, func() bool {
		return sinks[1].len() == 1 && sinks[2].len() == 1
	}, 10*time.Second, 20*time.Millisecond)

	// publishers do not feed their own votes back
	assert.Equal(t, 0, sinks[0].len())
	assert.True(t, v.Equal(sinks[1].first()))
}
