package programs

import (
	"aidchain/core/state"
	"aidchain/native/common"
)

func programKey(id uint64) []byte {
	return state.NewKey(common.ModulePrograms, "record").WithID(id).Bytes()
}

func ownerIndexKey(owner [20]byte) []byte {
	return state.NewKey(common.ModulePrograms, "owner").WithAddr(owner).Bytes()
}

var programCountKey = state.NewKey(common.ModulePrograms, "count").Bytes()
