package cryptography

import (
	"crypto"

	"github.com/multiformats/go-multibase"
	"github.com/pkg/errors"
)

func DecodeMultibase(mb string) ([]byte, error) {
	_, d, err := multibase.Decode(mb)
	if err != nil {
		return nil, errors.Wrap(err, "decoding multibase")
	}
	return d, nil
}

func EncodeMultibase(key crypto.PublicKey) (string, error) {
	var raw []byte

	switch t := key.(type) {
	case *Bls12381PublicKey:
		b, err := t.Bytes()
		if err != nil {
			return "", err
		}
		raw = b
	case *Bls12381PrivateKey:
		b, err := t.Bytes()
		if err != nil {
			return "", err
		}
		raw = b
	default:
		return "", errors.Errorf("unsupported key type: %T", t)
	}

	return multibase.Encode(multibase.Base58BTC, raw)
}

func DecodeBls12381PublicKey(mb string) (*Bls12381PublicKey, error) {
	d, err := DecodeMultibase(mb)
	if err != nil {
		return nil, err
	}

	return NewBls12381PublicKey(d)
}

func DecodeBls12381PrivateKey(mb string) (*Bls12381PrivateKey, error) {
	d, err := DecodeMultibase(mb)
	if err != nil {
		return nil, err
	}

	return NewBls12381PrivateKeyFromBytes(d)
}
