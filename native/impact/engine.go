package impact

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"time"

	aiderrors "aidchain/core/errors"
	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/bank"
	"aidchain/native/common"
)

var (
	errNilState    = errors.New("impact engine: state not configured")
	errNilTransfer = errors.New("impact engine: asset transfer not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(key []byte) (uint64, error)
	Sequence(key []byte) (uint64, error)
	HasRole(role string, addr []byte) bool
}

// MintRequest describes the redemption a credential is minted for.
type MintRequest struct {
	RedemptionID uint64
	Beneficiary  [20]byte
	Merchant     [20]byte
	ProgramID    uint64
	Amount       *big.Int
	ProofHash    []byte
}

// Engine is the proof-of-impact registry. Each redemption can back at most one
// credential, and credentials can be traded for the settlement asset.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	transfer bank.Transferer
	pauses   common.PauseView
	nowFn    func() int64
}

// NewEngine creates an impact registry with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the asset transfer used to settle purchases.
func (e *Engine) SetTransferer(t bank.Transferer) { e.transfer = t }

// SetPauses configures the pause switch consulted before every mutation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used for mint timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, common.ModuleImpact)
}

// Initialize records the registry admin. It can only be called once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return common.InitAdmin(e.state, common.ModuleImpact, admin)
}

// Admin returns the registry admin, which owns freshly minted credentials.
func (e *Engine) Admin() ([20]byte, error) {
	admin, ok, err := common.LoadAdmin(e.state, common.ModuleImpact)
	if err != nil {
		return admin, err
	}
	if !ok {
		return admin, fmt.Errorf("%w: %s", aiderrors.ErrNotInitialized, common.ModuleImpact)
	}
	return admin, nil
}

// MintImpactNFT issues a credential for a redemption. The credential is owned
// by the registry admin and listed for sale at the redeemed amount. The caller
// must be the admin or hold the impact minter role.
func (e *Engine) MintImpactNFT(caller [20]byte, req MintRequest) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	admin, err := e.Admin()
	if err != nil {
		return 0, err
	}
	if caller != admin && !e.state.HasRole(common.RoleImpactMinter, caller[:]) {
		return 0, fmt.Errorf("%w: admin or %s required", ErrUnauthorized, common.RoleImpactMinter)
	}
	if req.RedemptionID == 0 {
		return 0, fmt.Errorf("%w: redemption id required", ErrInvalidToken)
	}
	if err := common.ValidateAmount(req.Amount); err != nil {
		return 0, err
	}
	if existing, err := e.TokenForRedemption(req.RedemptionID); err != nil {
		return 0, err
	} else if existing != 0 {
		return 0, fmt.Errorf("%w: redemption %d backs token %d", ErrAlreadyMinted, req.RedemptionID, existing)
	}

	id, err := e.state.NextSequence(supplyKey)
	if err != nil {
		return 0, err
	}
	nft := &NFT{
		TokenID:      id,
		RedemptionID: req.RedemptionID,
		Beneficiary:  req.Beneficiary,
		Merchant:     req.Merchant,
		ProgramID:    req.ProgramID,
		Amount:       common.Clone(req.Amount),
		ProofHash:    append([]byte(nil), req.ProofHash...),
		Timestamp:    e.now(),
		Owner:        admin,
		ForSale:      true,
		Price:        common.Clone(req.Amount),
	}
	uri, err := MetadataURI(nft)
	if err != nil {
		return 0, err
	}
	nft.MetadataURI = uri
	if err := e.putNFT(nft); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(redemptionIndexKey(req.RedemptionID), id); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(ownerIndexKey(admin), state.EncodeID(id)); err != nil {
		return 0, err
	}
	e.emit(events.ImpactMinted{
		TokenID:      id,
		RedemptionID: req.RedemptionID,
		ProgramID:    req.ProgramID,
		Owner:        admin,
		Amount:       common.Clone(req.Amount),
		MetadataURI:  uri,
	})
	return id, nil
}

// Transfer moves a credential between owners and removes it from sale.
func (e *Engine) Transfer(caller, from, to [20]byte, tokenID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != from {
		return fmt.Errorf("%w: caller is not the sender", ErrUnauthorized)
	}
	if common.ZeroAddress(to) {
		return fmt.Errorf("%w: recipient required", ErrInvalidToken)
	}
	nft, err := e.NFT(tokenID)
	if err != nil {
		return err
	}
	if nft.Owner != from {
		return ErrNotOwner
	}
	if err := e.changeOwner(nft, to); err != nil {
		return err
	}
	e.emit(events.ImpactTransferred{TokenID: tokenID, From: from, To: to})
	return nil
}

// ListForSale offers the credential at price.
func (e *Engine) ListForSale(caller [20]byte, tokenID uint64, price *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	nft, err := e.NFT(tokenID)
	if err != nil {
		return err
	}
	if nft.Owner != caller {
		return ErrNotOwner
	}
	if err := common.ValidateAmount(price); err != nil {
		return err
	}
	nft.ForSale = true
	nft.Price = common.Clone(price)
	if err := e.putNFT(nft); err != nil {
		return err
	}
	e.emit(events.ImpactListed{TokenID: tokenID, Owner: caller, Price: common.Clone(price)})
	return nil
}

// Delist withdraws the credential from sale. Delisting an unlisted credential
// is a no-op.
func (e *Engine) Delist(caller [20]byte, tokenID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	nft, err := e.NFT(tokenID)
	if err != nil {
		return err
	}
	if nft.Owner != caller {
		return ErrNotOwner
	}
	if !nft.ForSale {
		return nil
	}
	nft.ForSale = false
	if err := e.putNFT(nft); err != nil {
		return err
	}
	e.emit(events.ImpactDelisted{TokenID: tokenID, Owner: caller})
	return nil
}

// BuyNFT pays the listed price from buyer to the current owner and hands the
// credential to buyer.
func (e *Engine) BuyNFT(caller, buyer [20]byte, tokenID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	if caller != buyer {
		return fmt.Errorf("%w: caller is not the buyer", ErrUnauthorized)
	}
	nft, err := e.NFT(tokenID)
	if err != nil {
		return err
	}
	if !nft.ForSale {
		return ErrNotForSale
	}
	seller := nft.Owner
	if seller == buyer {
		return ErrSelfPurchase
	}
	price := common.Clone(nft.Price)
	if err := e.transfer.Transfer(buyer, seller, price); err != nil {
		return fmt.Errorf("impact: settle purchase: %w", err)
	}
	if err := e.changeOwner(nft, buyer); err != nil {
		return err
	}
	e.emit(events.ImpactSold{TokenID: tokenID, Seller: seller, Buyer: buyer, Price: price})
	return nil
}

func (e *Engine) changeOwner(nft *NFT, to [20]byte) error {
	from := nft.Owner
	nft.Owner = to
	nft.ForSale = false
	if err := e.putNFT(nft); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := e.removeFromOwner(from, nft.TokenID); err != nil {
		return err
	}
	return e.state.KVAppend(ownerIndexKey(to), state.EncodeID(nft.TokenID))
}

func (e *Engine) removeFromOwner(owner [20]byte, tokenID uint64) error {
	key := ownerIndexKey(owner)
	var raw [][]byte
	if err := e.state.KVGetList(key, &raw); err != nil {
		return err
	}
	encoded := state.EncodeID(tokenID)
	kept := raw[:0]
	for _, entry := range raw {
		if !bytes.Equal(entry, encoded) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		return e.state.KVDelete(key)
	}
	return e.state.KVPut(key, kept)
}

// NFT returns the credential stored under id.
func (e *Engine) NFT(id uint64) (*NFT, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if id == 0 {
		return nil, ErrTokenNotFound
	}
	var stored storedNFT
	ok, err := e.state.KVGet(tokenKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	return stored.toNFT(), nil
}

// OwnerOf returns the current owner of the credential.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	nft, err := e.NFT(id)
	if err != nil {
		return [20]byte{}, err
	}
	return nft.Owner, nil
}

// TotalSupply returns the number of credentials minted.
func (e *Engine) TotalSupply() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.Sequence(supplyKey)
}

// TokenForRedemption returns the credential minted for a redemption, or zero
// when none exists.
func (e *Engine) TokenForRedemption(redemptionID uint64) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	var id uint64
	if _, err := e.state.KVGet(redemptionIndexKey(redemptionID), &id); err != nil {
		return 0, err
	}
	return id, nil
}

// TokensByOwner lists the credentials currently held by owner.
func (e *Engine) TokensByOwner(owner [20]byte) ([]uint64, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(ownerIndexKey(owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		ids = append(ids, state.DecodeID(entry))
	}
	return ids, nil
}

func (e *Engine) putNFT(n *NFT) error {
	return e.state.KVPut(tokenKey(n.TokenID), newStoredNFT(n))
}
