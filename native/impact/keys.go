package impact

import (
	"aidchain/core/state"
	"aidchain/native/common"
)

func tokenKey(id uint64) []byte {
	return state.NewKey(common.ModuleImpact, "token").WithID(id).Bytes()
}

func redemptionIndexKey(redemptionID uint64) []byte {
	return state.NewKey(common.ModuleImpact, "redemption").WithID(redemptionID).Bytes()
}

func ownerIndexKey(owner [20]byte) []byte {
	return state.NewKey(common.ModuleImpact, "owner").WithAddr(owner).Bytes()
}

var supplyKey = state.NewKey(common.ModuleImpact, "supply").Bytes()
