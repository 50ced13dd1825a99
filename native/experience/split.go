package experience

import "math/big"

const bpsDenominator = 10_000

// Split holds the three settlement legs of one payment. The legs always sum
// exactly to the paid total; integer-division remainders land on the creator.
type Split struct {
	Platform *big.Int `json:"platform"`
	Proposer *big.Int `json:"proposer"`
	Creator  *big.Int `json:"creator"`
}

// Clone returns a deep copy of the split.
func (s Split) Clone() Split {
	clone := Split{}
	if s.Platform != nil {
		clone.Platform = new(big.Int).Set(s.Platform)
	}
	if s.Proposer != nil {
		clone.Proposer = new(big.Int).Set(s.Proposer)
	}
	if s.Creator != nil {
		clone.Creator = new(big.Int).Set(s.Creator)
	}
	return clone
}

// Sum returns platform+proposer+creator.
func (s Split) Sum() *big.Int {
	total := big.NewInt(0)
	for _, leg := range []*big.Int{s.Platform, s.Proposer, s.Creator} {
		if leg != nil {
			total = total.Add(total, leg)
		}
	}
	return total
}

// SplitPayment divides the total payment between platform, proposer, and
// creator. Platform and proposer shares are floored bps fractions, the
// creator takes the exact remainder, so the legs always sum to the total and
// no unit is ever lost to rounding. When no proposer is elected the proposer
// leg is zero and its would-be share stays with the creator via the
// remainder.
//
// Fee configurations summing above 10,000 bps cannot fabricate value: the
// platform share is senior, the proposer share is capped at whatever remains
// after it, and the creator share clamps at zero.
func SplitPayment(total *big.Int, platformBps, proposerBps uint32, hasProposer bool) Split {
	if total == nil || total.Sign() <= 0 {
		return Split{Platform: big.NewInt(0), Proposer: big.NewInt(0), Creator: big.NewInt(0)}
	}
	platform := bpsShare(total, platformBps)
	if platform.Cmp(total) > 0 {
		platform = new(big.Int).Set(total)
	}
	remainder := new(big.Int).Sub(total, platform)

	proposer := big.NewInt(0)
	if hasProposer {
		proposer = bpsShare(total, proposerBps)
		if proposer.Cmp(remainder) > 0 {
			proposer = new(big.Int).Set(remainder)
		}
	}
	creator := new(big.Int).Sub(remainder, proposer)
	return Split{Platform: platform, Proposer: proposer, Creator: creator}
}

func bpsShare(total *big.Int, bps uint32) *big.Int {
	share := new(big.Int).Mul(total, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(bpsDenominator))
}
