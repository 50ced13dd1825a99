package core

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"expnet/native/experience"
	"expnet/state"
	"expnet/storage"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	node, err := NewNode(manager, testAddr(1), 500)
	if err != nil {
		t.Fatalf("node construction failed: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1700000000 })
	return node
}

func createSellableExperience(t *testing.T, node *Node, creator, authority [20]byte, price int64) *experience.Experience {
	t.Helper()
	exp, err := node.CreateExperience(creator, "bafyroot", authority, 1000)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := node.SetPrice(creator, exp.Address, big.NewInt(price)); err != nil {
		t.Fatalf("set price failed: %v", err)
	}
	return exp
}

func TestNodePurchaseLifecycle(t *testing.T) {
	node := newTestNode(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)
	exp := createSellableExperience(t, node, creator, authority, 10_000)

	if _, err := node.FundAccount(buyer, big.NewInt(30_000)); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	receipt, err := node.BuyWithNative(buyer, exp.Address, 2, big.NewInt(20_000))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if receipt.Split.Sum().Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("split sums to %s, want 20000", receipt.Split.Sum())
	}

	balance, err := node.BalanceOf(exp.Address, buyer, experience.PassID)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	if balance.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("pass balance = %s, want 2", balance)
	}

	buyerAccount, err := node.GetAccount(buyer)
	if err != nil {
		t.Fatalf("account lookup failed: %v", err)
	}
	if buyerAccount.BalanceWei.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("buyer balance = %s, want 10000", buyerAccount.BalanceWei)
	}

	stored, err := node.GetExperience(exp.Address)
	if err != nil {
		t.Fatalf("experience lookup failed: %v", err)
	}
	if stored.TotalPassesSold != 2 || stored.TotalRevenueWei.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("counters = %d/%s, want 2/20000", stored.TotalPassesSold, stored.TotalRevenueWei)
	}
}

func TestNodeRejectedPurchaseLeavesNoTrace(t *testing.T) {
	node := newTestNode(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)
	exp := createSellableExperience(t, node, creator, authority, 10_000)
	if _, err := node.FundAccount(buyer, big.NewInt(5_000)); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	if _, err := node.BuyWithNative(buyer, exp.Address, 1, big.NewInt(10_000)); !errors.Is(err, experience.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	account, _ := node.GetAccount(buyer)
	if account.BalanceWei.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("buyer balance = %s, want 5000 untouched", account.BalanceWei)
	}
	balance, _ := node.BalanceOf(exp.Address, buyer, experience.PassID)
	if balance.Sign() != 0 {
		t.Fatalf("pass balance = %s, want 0", balance)
	}
	stored, _ := node.GetExperience(exp.Address)
	if stored.TotalPassesSold != 0 {
		t.Fatalf("total passes sold = %d, want 0", stored.TotalPassesSold)
	}
}

func TestNodeEventsPublishedAfterCommit(t *testing.T) {
	node := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	records, unsubscribe, _, err := node.EventsSubscribe(ctx, 0)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsubscribe()

	creator, authority := testAddr(2), testAddr(3)
	if _, err := node.CreateExperience(creator, "bafyroot", authority, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	record := <-records
	if record.Type != experience.EventTypeExperienceCreated {
		t.Fatalf("event type = %q, want %q", record.Type, experience.EventTypeExperienceCreated)
	}
	if record.Sequence == 0 {
		t.Fatal("record missing sequence")
	}
}

func TestNodeNoEventsForRejectedInvocation(t *testing.T) {
	node := newTestNode(t)
	creator, authority := testAddr(2), testAddr(3)
	exp := createSellableExperience(t, node, creator, authority, 10_000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	records, unsubscribe, _, err := node.EventsSubscribe(ctx, 0)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsubscribe()

	if _, err := node.BuyWithNative(testAddr(5), exp.Address, 1, big.NewInt(1)); !errors.Is(err, experience.ErrPaymentMismatch) {
		t.Fatalf("err = %v, want ErrPaymentMismatch", err)
	}
	select {
	case record := <-records:
		t.Fatalf("rejected purchase published event %q", record.Type)
	default:
	}
}

func TestNodeTokenPurchase(t *testing.T) {
	node := newTestNode(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)
	exp := createSellableExperience(t, node, creator, authority, 10_000)

	if _, err := node.RegisterToken("USDC", "USD Coin", 6); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := node.MintToken("USDC", buyer, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := node.SetTokenPrice(creator, exp.Address, "USDC", big.NewInt(100)); err != nil {
		t.Fatalf("set token price failed: %v", err)
	}
	if err := node.ApproveToken("USDC", buyer, exp.Address, big.NewInt(300)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	receipt, err := node.BuyWithToken(buyer, exp.Address, "USDC", 3)
	if err != nil {
		t.Fatalf("token buy failed: %v", err)
	}
	if receipt.TotalPaid.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("total paid = %s, want 300", receipt.TotalPaid)
	}

	buyerBalance, err := node.TokenBalanceOf("USDC", buyer)
	if err != nil {
		t.Fatalf("token balance lookup failed: %v", err)
	}
	if buyerBalance.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("buyer token balance = %s, want 700", buyerBalance)
	}
	remaining, err := node.TokenAllowance("USDC", buyer, exp.Address)
	if err != nil {
		t.Fatalf("allowance lookup failed: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("allowance = %s, want 0 after exact spend", remaining)
	}
}

func TestNodeTokenPurchaseWithoutAllowanceReverts(t *testing.T) {
	node := newTestNode(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)
	exp := createSellableExperience(t, node, creator, authority, 10_000)

	if _, err := node.RegisterToken("USDC", "USD Coin", 6); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := node.MintToken("USDC", buyer, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := node.SetTokenPrice(creator, exp.Address, "USDC", big.NewInt(100)); err != nil {
		t.Fatalf("set token price failed: %v", err)
	}

	if _, err := node.BuyWithToken(buyer, exp.Address, "USDC", 1); err == nil {
		t.Fatal("purchase without allowance succeeded")
	}
	balance, _ := node.TokenBalanceOf("USDC", buyer)
	if balance.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("buyer token balance = %s, want 1000 untouched", balance)
	}
	passes, _ := node.BalanceOf(exp.Address, buyer, experience.PassID)
	if passes.Sign() != 0 {
		t.Fatalf("pass balance = %s, want 0", passes)
	}
}

func TestNodeSoulboundRejections(t *testing.T) {
	node := newTestNode(t)
	if err := node.TransferPass(testAddr(1), testAddr(2), testAddr(3), experience.PassID, 1); !errors.Is(err, experience.ErrTransfersDisabled) {
		t.Fatalf("err = %v, want ErrTransfersDisabled", err)
	}
	if err := node.SetApprovalForAll(testAddr(1), testAddr(2), testAddr(3), true); !errors.Is(err, experience.ErrTransfersDisabled) {
		t.Fatalf("err = %v, want ErrTransfersDisabled", err)
	}
}

func TestNodeFundAccountValidation(t *testing.T) {
	node := newTestNode(t)
	if _, err := node.FundAccount(testAddr(1), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := node.FundAccount(testAddr(1), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}
