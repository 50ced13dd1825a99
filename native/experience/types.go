package experience

import "math/big"

// PassID is the single pass-type identifier minted by every experience.
// Balances under any other identifier are always zero.
const PassID uint64 = 1

// Experience is the settlement ledger for one creator experience: pricing,
// fee routing, governance pointers, and cumulative sales counters. Pass
// balances are stored separately, keyed by (experience, holder).
type Experience struct {
	Address           [20]byte            `json:"address"`
	Owner             [20]byte            `json:"owner"`
	FlowSyncAuthority [20]byte            `json:"flowSyncAuthority"`
	CID               string              `json:"cid"`
	PriceWei          *big.Int            `json:"priceWei"`
	PlatformWallet    [20]byte            `json:"platformWallet"`
	PlatformFeeBps    uint32              `json:"platformFeeBps"`
	ProposerFeeBps    uint32              `json:"proposerFeeBps"`
	CurrentProposer   [20]byte            `json:"currentProposer"`
	TokenPrices       map[string]*big.Int `json:"tokenPrices,omitempty"`
	CreatedAt         int64               `json:"createdAt"`
	TotalPassesSold   uint64              `json:"totalPassesSold"`
	TotalRevenueWei   *big.Int            `json:"totalRevenueWei"`
}

// HasProposer reports whether a proposer is currently elected.
func (e *Experience) HasProposer() bool {
	if e == nil {
		return false
	}
	var zero [20]byte
	return e.CurrentProposer != zero
}

// TokenPrice resolves the configured unit price for the supplied token
// symbol. A missing or zero entry means the token is not accepted.
func (e *Experience) TokenPrice(symbol string) (*big.Int, bool) {
	if e == nil || len(e.TokenPrices) == 0 {
		return nil, false
	}
	price, ok := e.TokenPrices[symbol]
	if !ok || price == nil || price.Sign() <= 0 {
		return nil, false
	}
	return new(big.Int).Set(price), true
}

// Clone returns a deep copy of the experience record.
func (e *Experience) Clone() *Experience {
	if e == nil {
		return nil
	}
	clone := *e
	if e.PriceWei != nil {
		clone.PriceWei = new(big.Int).Set(e.PriceWei)
	}
	if e.TotalRevenueWei != nil {
		clone.TotalRevenueWei = new(big.Int).Set(e.TotalRevenueWei)
	}
	if len(e.TokenPrices) > 0 {
		clone.TokenPrices = make(map[string]*big.Int, len(e.TokenPrices))
		for symbol, price := range e.TokenPrices {
			if price != nil {
				clone.TokenPrices[symbol] = new(big.Int).Set(price)
			}
		}
	}
	return &clone
}

// Receipt records one completed purchase together with the applied split.
type Receipt struct {
	Experience  [20]byte `json:"experience"`
	Buyer       [20]byte `json:"buyer"`
	Quantity    uint64   `json:"quantity"`
	Currency    string   `json:"currency"`
	TotalPaid   *big.Int `json:"totalPaid"`
	Split       Split    `json:"split"`
	PurchasedAt int64    `json:"purchasedAt"`
}
