package validator

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tcfw/ledgercert/pkg/types"
)

var (
	ErrUnknownAuthor        = errors.New("unknown author")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidPublicKey     = errors.New("invalid validator public key")
	ErrDuplicateValidator   = errors.New("duplicate validator")
	ErrEmptyValidatorSet    = errors.New("validator set has no voting power")
	ErrTooLittleVotingPower = errors.New("too little voting power")
)

// SignatureError is a failed signature check. It matches
// ErrInvalidSignature and unwraps to the underlying crypto error.
type SignatureError struct {
	// Author is zero for aggregate signatures
	Author types.Author
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Author == (types.Author{}) {
		return fmt.Sprintf("%s: %s", ErrInvalidSignature, e.Err)
	}
	return fmt.Sprintf("%s from %s: %s", ErrInvalidSignature, e.Author.ShortString(), e.Err)
}

func (e *SignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// PublicKeyError is a validator whose key failed to decode
type PublicKeyError struct {
	Address types.Author
	Err     error
}

func (e *PublicKeyError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrInvalidPublicKey, e.Address.ShortString(), e.Err)
}

func (e *PublicKeyError) Is(target error) bool {
	return target == ErrInvalidPublicKey
}

func (e *PublicKeyError) Unwrap() error {
	return e.Err
}
