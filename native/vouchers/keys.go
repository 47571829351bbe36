package vouchers

import (
	"aidchain/core/state"
	"aidchain/native/common"
)

func balanceKey(beneficiary [20]byte, programID uint64) []byte {
	return state.NewKey(common.ModuleVouchers, "balance").WithAddr(beneficiary).WithID(programID).Bytes()
}

func redemptionKey(id uint64) []byte {
	return state.NewKey(common.ModuleVouchers, "redemption").WithID(id).Bytes()
}

func beneficiaryIndexKey(beneficiary [20]byte) []byte {
	return state.NewKey(common.ModuleVouchers, "beneficiary").WithAddr(beneficiary).Bytes()
}

func quotaKey(beneficiary [20]byte) []byte {
	return state.NewKey(common.ModuleVouchers, "quota").WithAddr(beneficiary).Bytes()
}

var redemptionCountKey = state.NewKey(common.ModuleVouchers, "redemption-count").Bytes()
