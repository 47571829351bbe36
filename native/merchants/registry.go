package merchants

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"aidchain/core/events"
	"aidchain/native/common"
)

var errNilState = errors.New("merchant registry: state not configured")

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(key []byte) (uint64, error)
	Sequence(key []byte) (uint64, error)
}

// Registry tracks merchant identities and their verification state.
type Registry struct {
	st      registryState
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewRegistry constructs a merchant registry over the provided state.
func NewRegistry(st registryState) *Registry {
	return &Registry{
		st:      st,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses configures the pause switch consulted before every mutation.
func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

// SetNowFunc overrides the time source used by the registry.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) now() int64 {
	if r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(evt)
}

// Initialize records the registry admin. It can only be called once.
func (r *Registry) Initialize(admin [20]byte) error {
	if r.st == nil {
		return errNilState
	}
	return common.InitAdmin(r.st, common.ModuleMerchants, admin)
}

// RegisterMerchant creates a pending profile. The caller must be the merchant.
func (r *Registry) RegisterMerchant(caller, merchant [20]byte, name, category string, documentHash []byte) (*Merchant, error) {
	if r.st == nil {
		return nil, errNilState
	}
	if err := common.Guard(r.pauses, common.ModuleMerchants); err != nil {
		return nil, err
	}
	if caller != merchant {
		return nil, ErrUnauthorized
	}
	if common.ZeroAddress(merchant) {
		return nil, fmt.Errorf("%w: address required", ErrInvalidMerchant)
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidMerchant)
	}
	trimmedCategory := strings.TrimSpace(category)
	if trimmedCategory == "" {
		return nil, fmt.Errorf("%w: category required", ErrInvalidMerchant)
	}
	if _, ok, err := r.getMerchant(merchant); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyRegistered
	}
	now := r.now()
	m := &Merchant{
		Address:      merchant,
		Name:         trimmedName,
		Category:     trimmedCategory,
		Status:       StatusPending,
		DocumentHash: append([]byte(nil), documentHash...),
		TotalVolume:  big.NewInt(0),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := r.putMerchant(m); err != nil {
		return nil, err
	}
	if _, err := r.st.NextSequence(merchantCountKey); err != nil {
		return nil, err
	}
	if err := r.st.KVAppend(merchantIndexKey, merchant[:]); err != nil {
		return nil, err
	}
	if err := r.st.KVAppend(categoryIndexKey(trimmedCategory), merchant[:]); err != nil {
		return nil, err
	}
	r.emit(events.MerchantRegistered{Merchant: merchant, Name: m.Name, Category: m.Category, DocumentHash: m.DocumentHash})
	return m, nil
}

// VerifyMerchant moves a pending or suspended merchant to verified.
func (r *Registry) VerifyMerchant(caller, merchant [20]byte) error {
	return r.transition(caller, merchant, StatusVerified)
}

// RejectMerchant moves a pending merchant to rejected.
func (r *Registry) RejectMerchant(caller, merchant [20]byte) error {
	return r.transition(caller, merchant, StatusRejected)
}

// SuspendMerchant moves a verified merchant to suspended.
func (r *Registry) SuspendMerchant(caller, merchant [20]byte) error {
	return r.transition(caller, merchant, StatusSuspended)
}

func (r *Registry) transition(caller, merchant [20]byte, to Status) error {
	if r.st == nil {
		return errNilState
	}
	if err := common.Guard(r.pauses, common.ModuleMerchants); err != nil {
		return err
	}
	if err := common.RequireAdmin(r.st, common.ModuleMerchants, caller); err != nil {
		return err
	}
	m, ok, err := r.getMerchant(merchant)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMerchantNotFound
	}
	if m.Status == to {
		return nil
	}
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.Status, to)
	}
	from := m.Status
	m.Status = to
	m.UpdatedAt = r.now()
	if err := r.putMerchant(m); err != nil {
		return err
	}
	r.emit(events.MerchantStatusChanged{Merchant: merchant, From: from.String(), To: to.String()})
	return nil
}

// RecordRedemption adds a completed redemption to the merchant's statistics.
// Unknown merchants are ignored so secondary bookkeeping never blocks payment.
func (r *Registry) RecordRedemption(merchant [20]byte, amount *big.Int) error {
	if r.st == nil {
		return errNilState
	}
	m, ok, err := r.getMerchant(merchant)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	m.TotalRedemptions++
	m.TotalVolume = new(big.Int).Add(m.TotalVolume, common.Clone(amount))
	m.UpdatedAt = r.now()
	if err := r.putMerchant(m); err != nil {
		return err
	}
	r.emit(events.MerchantRedemption{
		Merchant:         merchant,
		Amount:           common.Clone(amount),
		TotalRedemptions: m.TotalRedemptions,
		TotalVolume:      common.Clone(m.TotalVolume),
	})
	return nil
}

// Merchant returns the profile registered for addr.
func (r *Registry) Merchant(addr [20]byte) (*Merchant, error) {
	m, ok, err := r.getMerchant(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMerchantNotFound
	}
	return m, nil
}

// IsVerified reports whether addr is a verified merchant. Unknown merchants
// are not verified.
func (r *Registry) IsVerified(addr [20]byte) (bool, error) {
	m, ok, err := r.getMerchant(addr)
	if err != nil || !ok {
		return false, err
	}
	return m.Status == StatusVerified, nil
}

// MerchantCount returns the number of registered merchants.
func (r *Registry) MerchantCount() (uint64, error) {
	if r.st == nil {
		return 0, errNilState
	}
	return r.st.Sequence(merchantCountKey)
}

// Merchants lists every registered merchant address in registration order.
func (r *Registry) Merchants() ([][20]byte, error) {
	return r.addressList(merchantIndexKey)
}

// MerchantsByCategory lists merchants registered under category. Matching is
// case-insensitive.
func (r *Registry) MerchantsByCategory(category string) ([][20]byte, error) {
	return r.addressList(categoryIndexKey(category))
}

func (r *Registry) addressList(key []byte) ([][20]byte, error) {
	if r.st == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := r.st.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}

func (r *Registry) getMerchant(addr [20]byte) (*Merchant, bool, error) {
	if r.st == nil {
		return nil, false, errNilState
	}
	var stored storedMerchant
	ok, err := r.st.KVGet(merchantKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toMerchant(), true, nil
}

func (r *Registry) putMerchant(m *Merchant) error {
	return r.st.KVPut(merchantKey(m.Address), newStoredMerchant(m))
}
