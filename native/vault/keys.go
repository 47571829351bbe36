package vault

import (
	"aidchain/core/state"
	"aidchain/native/common"
)

func balanceKey(donor [20]byte) []byte {
	return state.NewKey(common.ModuleVault, "balance").WithAddr(donor).Bytes()
}

func deployedKey(venue [20]byte) []byte {
	return state.NewKey(common.ModuleVault, "deployed").WithAddr(venue).Bytes()
}

var (
	totalKey         = state.NewKey(common.ModuleVault, "total").Bytes()
	deployedTotalKey = state.NewKey(common.ModuleVault, "deployed-total").Bytes()
	yieldPoolKey     = state.NewKey(common.ModuleVault, "yield").Bytes()
	distributedKey   = state.NewKey(common.ModuleVault, "distributed").Bytes()
	donorIndexKey    = state.NewKey(common.ModuleVault, "donors").Bytes()
)
