package host

import (
	"errors"
	"fmt"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/statedb"
)

// Instance is the record of a deployed contract.
type Instance struct {
	CodeHash core.Hash
	Deployer core.AccountId
	// Block is the block number of the deployment.
	Block uint64
}

// ContractAddress derives the address of an instance from its deployer,
// code and salt.
func ContractAddress(deployer core.AccountId, code core.Hash, salt []byte) core.AccountId {
	return core.AccountId(core.HashBytes(deployer[:], code[:], salt))
}

func readInstance(db statedb.Reader, addr core.AccountId) (Instance, bool, error) {
	var inst Instance
	raw, err := db.Get(statedb.InstanceKey(addr))
	if errors.Is(err, statedb.ErrNotFound) {
		return inst, false, nil
	}
	if err != nil {
		return inst, false, err
	}
	if err := core.Decode(raw, &inst); err != nil {
		return inst, false, fmt.Errorf("instance %s: %w", addr, err)
	}
	return inst, true, nil
}
