package merchants

import (
	"aidchain/core/state"
	"aidchain/native/common"
)

func merchantKey(addr [20]byte) []byte {
	return state.NewKey(common.ModuleMerchants, "record").WithAddr(addr).Bytes()
}

func categoryIndexKey(category string) []byte {
	return state.NewKey(common.ModuleMerchants, "category").WithString(NormalizeCategory(category)).Bytes()
}

var (
	merchantCountKey = state.NewKey(common.ModuleMerchants, "count").Bytes()
	merchantIndexKey = state.NewKey(common.ModuleMerchants, "all").Bytes()
)
