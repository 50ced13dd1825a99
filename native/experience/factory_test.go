package experience

import (
	"errors"
	"math/big"
	"testing"
)

func newTestFactory(t *testing.T, state *mockState) (*Factory, *recordingEmitter) {
	t.Helper()
	factory, err := NewFactory(addr(1), 500)
	if err != nil {
		t.Fatalf("factory construction failed: %v", err)
	}
	emitter := &recordingEmitter{}
	factory.SetState(state)
	factory.SetEmitter(emitter)
	factory.SetNowFunc(func() int64 { return 1700000000 })
	return factory, emitter
}

func TestNewFactoryValidation(t *testing.T) {
	var zero [20]byte
	if _, err := NewFactory(zero, 500); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("err = %v, want ErrZeroAddress", err)
	}
	if _, err := NewFactory(addr(1), 10_001); !errors.Is(err, ErrFeeBpsRange) {
		t.Fatalf("err = %v, want ErrFeeBpsRange", err)
	}
}

func TestCreateExperienceStampsPlatformParameters(t *testing.T) {
	state := newMockState()
	factory, emitter := newTestFactory(t, state)
	creator, authority := addr(2), addr(3)

	exp, err := factory.CreateExperience(creator, " bafyroot ", authority, 1000)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if exp.Owner != creator {
		t.Fatal("creator is not the owner")
	}
	if exp.FlowSyncAuthority != authority {
		t.Fatal("authority not recorded")
	}
	if exp.CID != "bafyroot" {
		t.Fatalf("cid = %q, want bafyroot", exp.CID)
	}
	if exp.PlatformWallet != addr(1) || exp.PlatformFeeBps != 500 {
		t.Fatal("platform parameters not stamped")
	}
	if exp.ProposerFeeBps != 1000 {
		t.Fatalf("proposer fee = %d, want 1000", exp.ProposerFeeBps)
	}
	if exp.PriceWei == nil || exp.PriceWei.Sign() != 0 {
		t.Fatal("sales should start paused at price zero")
	}
	if exp.HasProposer() {
		t.Fatal("new experience should have no proposer")
	}
	if emitter.lastType() != EventTypeExperienceCreated {
		t.Fatalf("last event = %q, want %q", emitter.lastType(), EventTypeExperienceCreated)
	}
}

func TestCreateExperienceDistinctAddressesPerNonce(t *testing.T) {
	state := newMockState()
	factory, _ := newTestFactory(t, state)
	creator, authority := addr(2), addr(3)

	first, err := factory.CreateExperience(creator, "one", authority, 0)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := factory.CreateExperience(creator, "two", authority, 0)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if first.Address == second.Address {
		t.Fatal("consecutive creations produced the same address")
	}
	account, err := state.GetAccount(creator[:])
	if err != nil {
		t.Fatalf("account lookup failed: %v", err)
	}
	if account.Nonce != 2 {
		t.Fatalf("creator nonce = %d, want 2", account.Nonce)
	}
}

func TestCreateExperienceValidation(t *testing.T) {
	state := newMockState()
	factory, _ := newTestFactory(t, state)
	var zero [20]byte

	if _, err := factory.CreateExperience(zero, "cid", addr(3), 0); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("err = %v, want ErrZeroAddress", err)
	}
	if _, err := factory.CreateExperience(addr(2), "cid", addr(3), 10_001); !errors.Is(err, ErrFeeBpsRange) {
		t.Fatalf("err = %v, want ErrFeeBpsRange", err)
	}
}

func TestCreatedExperienceIsImmediatelySellable(t *testing.T) {
	state := newMockState()
	factory, _ := newTestFactory(t, state)
	creator, authority, buyer := addr(2), addr(3), addr(5)

	exp, err := factory.CreateExperience(creator, "cid", authority, 1000)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	engine := NewEngine()
	engine.SetState(state)
	if _, err := engine.SetPrice(creator, exp.Address, big.NewInt(1_000)); err != nil {
		t.Fatalf("set price failed: %v", err)
	}
	state.fund(buyer, 1_000)
	receipt, err := engine.BuyWithNative(buyer, exp.Address, 1, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if receipt.Split.Sum().Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("split sums to %s, want 1000", receipt.Split.Sum())
	}
}
