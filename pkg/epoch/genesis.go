package epoch

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidGenesis = errors.New("invalid genesis")
)

// Genesis is the on disk description of the first validator set
type Genesis struct {
	ChainID    string             `yaml:"chain_id"`
	Epoch      uint64             `yaml:"epoch"`
	Validators []GenesisValidator `yaml:"validators"`
}

type GenesisValidator struct {
	// Address is optional, defaults to the address derived from the key
	Address         string `yaml:"address,omitempty"`
	PublicKey       string `yaml:"public_key"`
	VotingPower     uint64 `yaml:"voting_power"`
	NetworkAddress  string `yaml:"network_address,omitempty"`
	FullnodeAddress string `yaml:"fullnode_address,omitempty"`
}

func LoadGenesisFile(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening genesis file")
	}
	defer f.Close()

	return LoadGenesis(f)
}

func LoadGenesis(r io.Reader) (*Genesis, error) {
	g := &Genesis{}
	if err := yaml.NewDecoder(r).Decode(g); err != nil {
		return nil, errors.Wrap(err, "decoding genesis")
	}

	if len(g.Validators) == 0 {
		return nil, errors.Wrap(ErrInvalidGenesis, "no validators")
	}

	return g, nil
}

// EpochState resolves keys and addresses into the validator set of the
// genesis epoch. Validator indexes follow file order.
func (g *Genesis) EpochState() (*types.EpochState, error) {
	s := &types.EpochState{
		Epoch:      g.Epoch,
		Validators: make([]types.ValidatorConsensusInfo, 0, len(g.Validators)),
	}

	for i, gv := range g.Validators {
		pk, err := cryptography.DecodeBls12381PublicKey(gv.PublicKey)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidGenesis, "validator %d public key: %s", i, err)
		}

		pkb, err := pk.Bytes()
		if err != nil {
			return nil, errors.Wrap(err, "encoding public key")
		}

		addr := types.AuthorFromPublicKey(pkb)
		if gv.Address != "" {
			addr, err = types.AuthorFromHex(gv.Address)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidGenesis, "validator %d address: %s", i, err)
			}
		}

		s.Validators = append(s.Validators, types.ValidatorConsensusInfo{
			Address:         addr,
			PublicKey:       pkb,
			VotingPower:     gv.VotingPower,
			Index:           uint64(i),
			NetworkAddress:  gv.NetworkAddress,
			FullnodeAddress: gv.FullnodeAddress,
		})
	}

	return s, nil
}
