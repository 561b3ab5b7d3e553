package storage

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	falsePositive = 0.01
)

// KeyFilter remembers written keys so reads of keys that were never
// written can skip the backing store
type KeyFilter struct {
	mu sync.RWMutex
	f  *bloom.BloomFilter
}

func NewKeyFilter(expected uint) *KeyFilter {
	return &KeyFilter{f: bloom.NewWithEstimates(expected, falsePositive)}
}

func (k *KeyFilter) Add(key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.f.Add(key)
}

// MayContain is false only for keys never added
func (k *KeyFilter) MayContain(key []byte) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.f.Test(key)
}

func (k *KeyFilter) MarshalBinary() ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.f.GobEncode()
}

func (k *KeyFilter) UnmarshalBinary(b []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.f.GobDecode(b)
}
