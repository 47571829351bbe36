package badges

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"aidchain/core/events"
	"aidchain/core/state"
	"aidchain/native/common"
)

var errNilState = errors.New("badge engine: state not configured")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(key []byte) (uint64, error)
	Sequence(key []byte) (uint64, error)
	HasRole(role string, addr []byte) bool
}

// Engine mints donor recognition badges.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine creates a badge engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Initialize records the badge admin. It can only be called once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return common.InitAdmin(e.state, common.ModuleBadges, admin)
}

// MintBadge issues a badge to a donor and returns its identifier. The caller
// must be the admin or hold the badge minter role.
func (e *Engine) MintBadge(caller, to [20]byte, name, description, badgeType, rarity string) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	if err := common.Guard(e.pauses, common.ModuleBadges); err != nil {
		return 0, err
	}
	if err := common.RequireAdmin(e.state, common.ModuleBadges, caller); err != nil {
		if !e.state.HasRole(common.RoleBadgeMinter, caller[:]) {
			return 0, fmt.Errorf("%w: admin or %s required", ErrUnauthorized, common.RoleBadgeMinter)
		}
	}
	if common.ZeroAddress(to) {
		return 0, fmt.Errorf("%w: recipient required", ErrInvalidBadge)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: name required", ErrInvalidBadge)
	}
	id, err := e.state.NextSequence(supplyKey)
	if err != nil {
		return 0, err
	}
	badge := &Badge{
		TokenID:     id,
		Owner:       to,
		Name:        name,
		Description: strings.TrimSpace(description),
		ImageURL:    imageURL(badgeType, rarity),
		BadgeType:   strings.TrimSpace(badgeType),
		Rarity:      strings.TrimSpace(rarity),
		MintedAt:    e.nowFn(),
	}
	if err := e.state.KVPut(badgeKey(id), newStoredBadge(badge)); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(ownerIndexKey(to), state.EncodeID(id)); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.BadgeMinted{TokenID: id, Owner: to, Name: badge.Name, BadgeType: badge.BadgeType, Rarity: badge.Rarity})
	return id, nil
}

// Badge returns the badge stored under id.
func (e *Engine) Badge(id uint64) (*Badge, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var stored storedBadge
	ok, err := e.state.KVGet(badgeKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBadgeNotFound
	}
	return stored.toBadge(), nil
}

// OwnerOf returns the donor holding the badge.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	badge, err := e.Badge(id)
	if err != nil {
		return [20]byte{}, err
	}
	return badge.Owner, nil
}

// TotalSupply returns the number of badges minted.
func (e *Engine) TotalSupply() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return e.state.Sequence(supplyKey)
}

// BadgesByOwner lists the badges held by owner in mint order.
func (e *Engine) BadgesByOwner(owner [20]byte) ([]uint64, error) {
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
