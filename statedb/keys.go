package statedb

import "github.com/govm-net/contractkit/core"

// Key prefixes of the world state.
const (
	PrefixBalance  byte = 'b'
	PrefixInstance byte = 'i'
	PrefixStorage  byte = 's'
	PrefixCode     byte = 'h'
)

// BalanceKey generates the key of an account balance.
// Format: 'b' + account
func BalanceKey(account core.AccountId) []byte {
	return append([]byte{PrefixBalance}, account[:]...)
}

// InstanceKey generates the key of a contract instance record.
// Format: 'i' + contract
func InstanceKey(contract core.AccountId) []byte {
	return append([]byte{PrefixInstance}, contract[:]...)
}

// StoragePrefix returns the prefix of all storage owned by contract.
// Format: 's' + contract
func StoragePrefix(contract core.AccountId) []byte {
	return append([]byte{PrefixStorage}, contract[:]...)
}

// StorageKey generates the key of one contract storage slot.
// Format: 's' + contract + slot
func StorageKey(contract core.AccountId, slot []byte) []byte {
	return append(StoragePrefix(contract), slot...)
}

// CodeKey generates the key marking an uploaded code blob.
// Format: 'h' + code hash
func CodeKey(hash core.Hash) []byte {
	return append([]byte{PrefixCode}, hash[:]...)
}

// PrefixRange returns key range that corresponds to the given prefix.
// It returns start (inclusive) and end (exclusive) keys for iteration.
func PrefixRange(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return nil, nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return prefix, end[:i+1]
		}
		// 0xff cannot be incremented, carry into the previous byte
		if i == 0 {
			return prefix, nil
		}
	}

	return prefix, nil
}
