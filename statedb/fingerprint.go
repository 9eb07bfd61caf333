package statedb

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/govm-net/contractkit/core"
)

// Walker visits pairs under a prefix in ascending key order.
type Walker interface {
	ForEach(prefix []byte, fn func(key, value []byte) bool) error
}

// Fingerprint hashes every pair under prefix. Two stores holding the same
// pairs produce the same fingerprint regardless of write order.
func Fingerprint(w Walker, prefix []byte) (core.Hash, error) {
	h, _ := blake2b.New256(nil)
	var n [4]byte
	err := w.ForEach(prefix, func(key, value []byte) bool {
		binary.BigEndian.PutUint32(n[:], uint32(len(key)))
		h.Write(n[:])
		h.Write(key)
		binary.BigEndian.PutUint32(n[:], uint32(len(value)))
		h.Write(n[:])
		h.Write(value)
		return true
	})
	if err != nil {
		return core.Hash{}, err
	}
	var out core.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
