package node

import (
	"crypto/rand"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/ledgercert/internal/config"
	"github.com/tcfw/ledgercert/pkg/cryptography"
	"github.com/tcfw/ledgercert/pkg/types"
)

func getIdentity(cfg *config.Config, l *logrus.Entry) (libp2p.Option, error) {
	id := cfg.P2P().IdentityFile
	_, err := os.Stat(id)
	if errors.Is(err, os.ErrNotExist) {
		if err := generateIdentity(id, l); err != nil {
			return nil, errors.Wrap(err, "creating new identity")
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "checking identity file")
	} else {
		l.Debugf("using existing Ed25519 identity")
	}

	idB, err := os.ReadFile(id)
	if err != nil {
		return nil, errors.Wrap(err, "reading identity file")
	}

	priv, err := crypto.UnmarshalPrivateKey(idB)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling private key")
	}

	return libp2p.Identity(priv), nil
}

func generateIdentity(path string, l *logrus.Entry) error {
	l.Debugf("creating a new Ed25519 identity")
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, 0, rand.Reader)
	if err != nil {
		return errors.Wrap(err, "generating priv key")
	}

	b, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "marshaling new private key")
	}

	return os.WriteFile(path, b, 0600)
}

// GenerateSigningKey writes a new multibase encoded BLS12-381 private
// key to path. Existing files are never overwritten.
func GenerateSigningKey(path string) (*cryptography.Bls12381PrivateKey, error) {
	priv := cryptography.NewBls12381PrivateKey()

	mb, err := cryptography.EncodeMultibase(priv)
	if err != nil {
		return nil, errors.Wrap(err, "encoding private key")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "creating key file")
	}
	defer f.Close()

	if _, err := f.WriteString(mb + "\n"); err != nil {
		return nil, errors.Wrap(err, "writing key file")
	}

	return priv, nil
}

// LoadSigningKey reads a key written by GenerateSigningKey and derives
// its author
func LoadSigningKey(path string) (types.Author, *cryptography.Bls12381PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Author{}, nil, errors.Wrap(err, "reading key file")
	}

	priv, err := cryptography.DecodeBls12381PrivateKey(strings.TrimSpace(string(b)))
	if err != nil {
		return types.Author{}, nil, errors.Wrap(err, "decoding private key")
	}

	author, err := AuthorOf(priv.PublicKey())
	if err != nil {
		return types.Author{}, nil, err
	}

	return author, priv, nil
}

func AuthorOf(pk *cryptography.Bls12381PublicKey) (types.Author, error) {
	pkb, err := pk.Bytes()
	if err != nil {
		return types.Author{}, errors.Wrap(err, "encoding public key")
	}

	return types.AuthorFromPublicKey(pkb), nil
}
