package experience

import (
	"math/big"
	"strings"
	"time"

	"expnet/core/events"
	"expnet/core/types"
	"expnet/crypto"
)

// Factory deploys new experiences with the platform's fixed wallet and fee
// share. Instances share nothing after creation; the factory keeps no
// registry of them — discovery is left to indexers consuming creation events.
type Factory struct {
	state          engineState
	emitter        events.Emitter
	platformWallet [20]byte
	platformFeeBps uint32
	nowFn          func() int64
}

// NewFactory constructs a factory bound to the immutable platform parameters.
func NewFactory(platformWallet [20]byte, platformFeeBps uint32) (*Factory, error) {
	if isZeroAddress(platformWallet) {
		return nil, ErrZeroAddress
	}
	if platformFeeBps > bpsDenominator {
		return nil, ErrFeeBpsRange
	}
	return &Factory{
		emitter:        events.NoopEmitter{},
		platformWallet: platformWallet,
		platformFeeBps: platformFeeBps,
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}, nil
}

// SetState configures the state backend used by the factory.
func (f *Factory) SetState(state engineState) { f.state = state }

// SetEmitter configures the event emitter used by the factory.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (f *Factory) SetNowFunc(now func() int64) {
	if now == nil {
		f.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	f.nowFn = now
}

// PlatformWallet returns the wallet every created experience routes platform
// fees to.
func (f *Factory) PlatformWallet() [20]byte { return f.platformWallet }

// PlatformFeeBps returns the fee share stamped onto every created experience.
func (f *Factory) PlatformFeeBps() uint32 { return f.platformFeeBps }

// CreateExperience deploys a new settlement ledger owned by the creator. The
// experience address is derived from the creator address and their account
// nonce, which is consumed in the same transaction. Sales start paused
// (price zero) until the owner sets a price.
func (f *Factory) CreateExperience(creator [20]byte, initialCID string, flowSyncAuthority [20]byte, proposerFeeBps uint32) (*Experience, error) {
	if f == nil || f.state == nil {
		return nil, ErrNilState
	}
	if isZeroAddress(creator) {
		return nil, ErrZeroAddress
	}
	if proposerFeeBps > bpsDenominator {
		return nil, ErrFeeBpsRange
	}

	account, err := f.state.GetAccount(creator[:])
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{BalanceWei: big.NewInt(0)}
	}
	addr := crypto.DeriveExperienceAddress(creator, account.Nonce)
	if existing, ok, err := f.state.ExperienceGet(addr); err != nil {
		return nil, err
	} else if ok && existing != nil {
		return nil, ErrAlreadyExists
	}
	account.Nonce++
	if err := f.state.PutAccount(creator[:], account); err != nil {
		return nil, err
	}

	exp := &Experience{
		Address:           addr,
		Owner:             creator,
		FlowSyncAuthority: flowSyncAuthority,
		CID:               strings.TrimSpace(initialCID),
		PriceWei:          big.NewInt(0),
		PlatformWallet:    f.platformWallet,
		PlatformFeeBps:    f.platformFeeBps,
		ProposerFeeBps:    proposerFeeBps,
		CreatedAt:         f.now(),
		TotalRevenueWei:   big.NewInt(0),
	}
	if err := f.state.ExperiencePut(exp); err != nil {
		return nil, err
	}
	f.emit(ExperienceCreatedEvent(hexAddr(addr), hexAddr(creator), exp.CID))
	return exp, nil
}

func (f *Factory) emit(evt *types.Event) {
	if f == nil || evt == nil || f.emitter == nil {
		return
	}
	f.emitter.Emit(WrapEvent(evt))
}

func (f *Factory) now() int64 {
	if f == nil || f.nowFn == nil {
		return time.Now().Unix()
	}
	return f.nowFn()
}
