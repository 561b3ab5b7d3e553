package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

const (
	HashLength   = 32
	AuthorLength = 32
)

// HashValue is a sha3-256 digest
type HashValue [HashLength]byte

var ZeroHash HashValue

func HashOf(data ...[]byte) HashValue {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}

	var out HashValue
	copy(out[:], h.Sum(nil))
	return out
}

func HashFromBytes(b []byte) (HashValue, error) {
	var h HashValue
	if len(b) != HashLength {
		return h, errors.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h HashValue) Bytes() []byte {
	return h[:]
}

func (h HashValue) IsZero() bool {
	return h == ZeroHash
}

func (h HashValue) String() string {
	return hexutil.Encode(h[:])
}

// ShortString is the first 4 bytes in hex, used in logs
func (h HashValue) ShortString() string {
	return hex.EncodeToString(h[:4])
}

func (h HashValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(h[:]))
}

func (h *HashValue) UnmarshalJSON(d []byte) error {
	var b hexutil.Bytes
	if err := json.Unmarshal(d, &b); err != nil {
		return err
	}

	v, err := HashFromBytes(b)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Author is the account address identifying a validator
type Author [AuthorLength]byte

// AuthorFromPublicKey derives the address of a validator from its
// consensus public key bytes
func AuthorFromPublicKey(pk []byte) Author {
	return Author(HashOf([]byte("LEDGERCERT::AUTHOR"), pk))
}

func AuthorFromBytes(b []byte) (Author, error) {
	var a Author
	if len(b) != AuthorLength {
		return a, errors.Errorf("invalid author length %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

func AuthorFromHex(s string) (Author, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Author{}, errors.Wrap(err, "decoding author hex")
	}

	return AuthorFromBytes(b)
}

func (a Author) Bytes() []byte {
	return a[:]
}

func (a Author) String() string {
	return hexutil.Encode(a[:])
}

func (a Author) ShortString() string {
	return hex.EncodeToString(a[:4])
}

func (a Author) Less(o Author) bool {
	return bytes.Compare(a[:], o[:]) < 0
}

func (a Author) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(a[:]))
}

func (a *Author) UnmarshalJSON(d []byte) error {
	var b hexutil.Bytes
	if err := json.Unmarshal(d, &b); err != nil {
		return err
	}

	v, err := AuthorFromBytes(b)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
