package cryptography

import (
	"crypto"
	"io"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/sign"
	sig "github.com/drand/kyber/sign/bls"
	"github.com/drand/kyber/util/random"
	"github.com/pkg/errors"
)

const (
	// Bls12381SignatureSize is a compressed G2 point
	Bls12381SignatureSize = 96
	// Bls12381PublicKeySize is a compressed G1 point
	Bls12381PublicKeySize = 48

	seedSize = 32
)

var (
	_ crypto.PrivateKey = (*Bls12381PrivateKey)(nil)
	_ crypto.PublicKey  = (*Bls12381PublicKey)(nil)

	pairing = bls.NewBLS12381Suite()

	// signatures on G2, public keys on G1
	scheme sign.AggregatableScheme = sig.NewSchemeOnG2(pairing)

	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid key")
)

// Error tags a kyber failure with one of the package sentinels. It
// matches Kind and unwraps to the kyber error.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewBls12381PrivateKey() *Bls12381PrivateKey {
	return &Bls12381PrivateKey{
		pairing.G1().Scalar().Pick(random.New()),
	}
}

// NewBls12381PrivateKeyFromSeed deterministically derives a key from a 32 byte seed
func NewBls12381PrivateKeyFromSeed(seed []byte) (*Bls12381PrivateKey, error) {
	if len(seed) != seedSize {
		return nil, errors.Wrapf(ErrInvalidKey, "seed must be %d bytes", seedSize)
	}

	return &Bls12381PrivateKey{
		pairing.G1().Scalar().SetBytes(seed),
	}, nil
}

func NewBls12381PrivateKeyFromBytes(b []byte) (*Bls12381PrivateKey, error) {
	sk := pairing.G1().Scalar()
	if err := sk.UnmarshalBinary(b); err != nil {
		return nil, &Error{Kind: ErrInvalidKey, Err: err}
	}

	return &Bls12381PrivateKey{sk}, nil
}

type Bls12381PrivateKey struct {
	sk kyber.Scalar
}

func (b *Bls12381PrivateKey) Sign(_ io.Reader, digest []byte, _ crypto.SignerOpts) (signature []byte, err error) {
	return scheme.Sign(b.sk, digest)
}

func (b *Bls12381PrivateKey) Public() crypto.PublicKey {
	return b.PublicKey()
}

func (b *Bls12381PrivateKey) PublicKey() *Bls12381PublicKey {
	pk := pairing.G1().Point().Mul(b.sk, nil)
	return &Bls12381PublicKey{pk}
}

func (b *Bls12381PrivateKey) Bytes() ([]byte, error) {
	return b.sk.MarshalBinary()
}

func (b *Bls12381PrivateKey) Equal(obls crypto.PrivateKey) bool {
	o, ok := obls.(*Bls12381PrivateKey)
	if !ok {
		return false
	}
	return b.sk.Equal(o.sk)
}

type Bls12381PublicKey struct {
	kyber.Point
}

func NewBls12381PublicKey(b []byte) (*Bls12381PublicKey, error) {
	if len(b) != Bls12381PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "public key must be %d bytes", Bls12381PublicKeySize)
	}

	pk := &Bls12381PublicKey{pairing.G1().Point()}
	if err := pk.UnmarshalBinary(b); err != nil {
		return nil, &Error{Kind: ErrInvalidKey, Err: err}
	}

	return pk, nil
}

func (b *Bls12381PublicKey) Bytes() ([]byte, error) {
	return b.Point.MarshalBinary()
}

func (b *Bls12381PublicKey) Equal(o *Bls12381PublicKey) bool {
	return o != nil && b.Point.Equal(o.Point)
}

func (b *Bls12381PublicKey) Verify(signature, msg []byte) error {
	if len(signature) != Bls12381SignatureSize {
		return errors.Wrapf(ErrInvalidSignature, "signature must be %d bytes", Bls12381SignatureSize)
	}

	if err := scheme.Verify(b.Point, msg, signature); err != nil {
		return &Error{Kind: ErrInvalidSignature, Err: err}
	}

	return nil
}

// AggregateBls12381Signatures combines signatures over the same message
func AggregateBls12381Signatures(sigs ...[]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}

	agg, err := scheme.AggregateSignatures(sigs...)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating signatures")
	}

	return agg, nil
}

func AggregateBls12381PublicKeys(pks ...*Bls12381PublicKey) *Bls12381PublicKey {
	points := make([]kyber.Point, 0, len(pks))
	for _, pk := range pks {
		points = append(points, pk.Point)
	}

	return &Bls12381PublicKey{scheme.AggregatePublicKeys(points...)}
}
