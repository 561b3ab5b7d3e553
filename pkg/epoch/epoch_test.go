package epoch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
	"github.com/tcfw/ledgercert/pkg/validator/validatortest"
)

func TestTableRegisterResolve(t *testing.T) {
	table := NewTable()

	e1 := validatortest.NewSet(t, 1, 1, 1, 1)
	e2 := validatortest.NewSet(t, 2, 5, 5)

	require.NoError(t, table.Register(e1.Verifier))
	require.NoError(t, table.Register(e2.Verifier))

	v, err := table.ResolveEpoch(1)
	require.NoError(t, err)
	assert.Same(t, e1.Verifier, v)

	_, err = table.ResolveEpoch(3)
	assert.ErrorIs(t, err, ErrUnknownEpoch)

	err = table.Register(validatortest.NewSet(t, 1, 10).Verifier)
	assert.ErrorIs(t, err, ErrEpochExists)

	v, err = table.ResolveEpoch(1)
	require.NoError(t, err)
	assert.Same(t, e1.Verifier, v, "registered epochs are never replaced")

	latest, ok := table.Latest()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), latest.Epoch())
}

func TestTableRegisterState(t *testing.T) {
	table := NewTable()
	set := validatortest.NewSet(t, 4, 3, 3)

	v, err := table.RegisterState(set.State)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v.Epoch())

	_, err = table.RegisterState(&types.EpochState{Epoch: 5})
	assert.Error(t, err)
}

func TestTableRandomness(t *testing.T) {
	table := NewTable()

	_, ok := table.RandomnessFor(10)
	assert.False(t, ok)

	seed := types.RandomnessSeed{1, 2, 3}
	table.SetRandomness(10, seed)
	seed[0] = 9

	got, ok := table.RandomnessFor(10)
	assert.True(t, ok)
	assert.Equal(t, types.RandomnessSeed{1, 2, 3}, got)
}

func TestLoadGenesis(t *testing.T) {
	keys := []*cryptography.Bls12381PrivateKey{
		cryptography.NewBls12381PrivateKey(),
		cryptography.NewBls12381PrivateKey(),
	}

	var b strings.Builder
	b.WriteString("chain_id: testnet\nepoch: 1\nvalidators:\n")
	for i, k := range keys {
		mb, err := cryptography.EncodeMultibase(k.PublicKey())
		require.NoError(t, err)
		fmt.Fprintf(&b, "  - public_key: %s\n    voting_power: %d\n    network_address: /ip4/127.0.0.1/tcp/%d\n", mb, 10*(i+1), 6180+i)
	}
	b.WriteString("  - address: \"0x" + strings.Repeat("ab", 32) + "\"\n")
	mb, err := cryptography.EncodeMultibase(keys[0].PublicKey())
	require.NoError(t, err)
	b.WriteString("    public_key: " + mb + "\n    voting_power: 5\n")

	g, err := LoadGenesis(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, "testnet", g.ChainID)

	s, err := g.EpochState()
	require.NoError(t, err)
	require.Len(t, s.Validators, 3)

	pkb, err := keys[1].PublicKey().Bytes()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), s.Epoch)
	assert.Equal(t, types.AuthorFromPublicKey(pkb), s.Validators[1].Address)
	assert.Equal(t, uint64(20), s.Validators[1].VotingPower)
	assert.Equal(t, uint64(1), s.Validators[1].Index)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/6181", s.Validators[1].NetworkAddress)
	assert.Equal(t, byte(0xab), s.Validators[2].Address[31])
}

func TestLoadGenesisRejectsEmpty(t *testing.T) {
	_, err := LoadGenesis(strings.NewReader("chain_id: x\nvalidators: []\n"))
	assert.ErrorIs(t, err, ErrInvalidGenesis)

	g := &Genesis{Validators: []GenesisValidator{{PublicKey: "zzz", VotingPower: 1}}}
	_, err = g.EpochState()
	assert.ErrorIs(t, err, ErrInvalidGenesis)
}
