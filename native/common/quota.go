package common

import (
	"errors"
	"math"
	"math/big"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaAmountExceeded   = errors.New("quota amount cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount   uint32
	AmountUsed *big.Int
	EpochID    uint64
}

// Quota defines the limits enforced for a module interaction per address.
// Zero values disable the corresponding limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxAmountPerEpoch   *big.Int
	EpochSeconds        uint32
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerEpoch > 0 || (q.MaxAmountPerEpoch != nil && q.MaxAmountPerEpoch.Sign() > 0)
}

// Epoch maps a unix timestamp to the quota epoch.
func (q Quota) Epoch(now int64) uint64 {
	if now <= 0 {
		return 0
	}
	if q.EpochSeconds == 0 {
		return uint64(now) / 86400
	}
	return uint64(now) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional request and amount fit within the
// configured quota. The returned QuotaNow reflects the updated counters when the
// quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addAmount *big.Int) (QuotaNow, error) {
	next := QuotaNow{ReqCount: prev.ReqCount, AmountUsed: Clone(prev.AmountUsed), EpochID: prev.EpochID}
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch, AmountUsed: big.NewInt(0)}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addAmount != nil && addAmount.Sign() > 0 {
		next.AmountUsed.Add(next.AmountUsed, addAmount)
	}
	if q.MaxAmountPerEpoch != nil && q.MaxAmountPerEpoch.Sign() > 0 && next.AmountUsed.Cmp(q.MaxAmountPerEpoch) > 0 {
		return prev, ErrQuotaAmountExceeded
	}

	return next, nil
}
