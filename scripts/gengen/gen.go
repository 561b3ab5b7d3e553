package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tcfw/ledgercert/internal/node"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/epoch"
	"gopkg.in/yaml.v3"
)

// gengen writes a signing key per validator and a genesis file naming
// all of them with equal voting power
func main() {
	var (
		out     = flag.String("out", ".", "output directory")
		chainID = flag.String("chain", "testnet", "chain id")
		n       = flag.Int("validators", 4, "number of validators")
		power   = flag.Uint64("power", 10, "voting power per validator")
	)
	flag.Parse()

	if err := os.MkdirAll(*out, 0700); err != nil {
		panic(err)
	}

	g := &epoch.Genesis{ChainID: *chainID, Epoch: 1}

	for i := 0; i < *n; i++ {
		keyFile := filepath.Join(*out, fmt.Sprintf("validator-%d.key", i))

		priv, err := node.GenerateSigningKey(keyFile)
		if err != nil {
			panic(err)
		}

		pk, err := cryptography.EncodeMultibase(priv.PublicKey())
		if err != nil {
			panic(err)
		}

		author, err := node.AuthorOf(priv.PublicKey())
		if err != nil {
			panic(err)
		}

		g.Validators = append(g.Validators, epoch.GenesisValidator{
			PublicKey:   pk,
			VotingPower: *power,
		})

		fmt.Printf("validator %d: %s (%s)\n", i, author.String(), keyFile)
	}

	b, err := yaml.Marshal(g)
	if err != nil {
		panic(err)
	}

	genesisFile := filepath.Join(*out, "genesis.yaml")
	if err := os.WriteFile(genesisFile, b, 0600); err != nil {
		panic(err)
	}

	fmt.Printf("Genesis written to %s\n", genesisFile)
}
