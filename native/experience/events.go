package experience

import (
	"expnet/core/events"
	"expnet/core/types"
)

const (
	// EventTypeExperienceCreated is emitted when the factory deploys a new experience.
	EventTypeExperienceCreated = "experience.created"
	// EventTypePassPurchased is emitted when a purchase settles and passes are minted.
	EventTypePassPurchased = "experience.pass.purchased"
	// EventTypePriceUpdated is emitted when the owner changes the native price.
	EventTypePriceUpdated = "experience.price.updated"
	// EventTypeTokenPriceUpdated is emitted when the owner changes a token unit price.
	EventTypeTokenPriceUpdated = "experience.tokenprice.updated"
	// EventTypeContentUpdated is emitted when the flow-sync authority moves the content pointer.
	EventTypeContentUpdated = "experience.content.updated"
	// EventTypeProposerUpdated is emitted when the flow-sync authority elects or clears a proposer.
	EventTypeProposerUpdated = "experience.proposer.updated"
	// EventTypeProposerFeeUpdated is emitted when the owner adjusts the proposer fee share.
	EventTypeProposerFeeUpdated = "experience.proposerfee.updated"
	// EventTypeOwnershipTransferred is emitted when the owner hands the experience over.
	EventTypeOwnershipTransferred = "experience.ownership.transferred"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// ExperienceCreatedEvent announces a freshly deployed experience for off-chain indexing.
func ExperienceCreatedEvent(addr string, creator string, cid string) *types.Event {
	return &types.Event{
		Type: EventTypeExperienceCreated,
		Attributes: map[string]string{
			"experience": addr,
			"creator":    creator,
			"cid":        cid,
		},
	}
}

// PassPurchasedEvent records a settled purchase.
func PassPurchasedEvent(addr, buyer, currency, quantity, totalPaid string) *types.Event {
	return &types.Event{
		Type: EventTypePassPurchased,
		Attributes: map[string]string{
			"experience": addr,
			"buyer":      buyer,
			"currency":   currency,
			"quantity":   quantity,
			"totalPaid":  totalPaid,
		},
	}
}

// PriceUpdatedEvent records a native price change. A price of zero pauses sales.
func PriceUpdatedEvent(addr, price string) *types.Event {
	return &types.Event{
		Type: EventTypePriceUpdated,
		Attributes: map[string]string{
			"experience": addr,
			"priceWei":   price,
		},
	}
}

// TokenPriceUpdatedEvent records a token unit-price change.
func TokenPriceUpdatedEvent(addr, symbol, price string) *types.Event {
	return &types.Event{
		Type: EventTypeTokenPriceUpdated,
		Attributes: map[string]string{
			"experience": addr,
			"token":      symbol,
			"unitPrice":  price,
		},
	}
}

// ContentUpdatedEvent records a content pointer move.
func ContentUpdatedEvent(addr, cid string) *types.Event {
	return &types.Event{
		Type: EventTypeContentUpdated,
		Attributes: map[string]string{
			"experience": addr,
			"cid":        cid,
		},
	}
}

// ProposerUpdatedEvent records a proposer election (empty proposer clears the seat).
func ProposerUpdatedEvent(addr, proposer string) *types.Event {
	return &types.Event{
		Type: EventTypeProposerUpdated,
		Attributes: map[string]string{
			"experience": addr,
			"proposer":   proposer,
		},
	}
}

// ProposerFeeUpdatedEvent records a proposer fee share change.
func ProposerFeeUpdatedEvent(addr, bps string) *types.Event {
	return &types.Event{
		Type: EventTypeProposerFeeUpdated,
		Attributes: map[string]string{
			"experience": addr,
			"bps":        bps,
		},
	}
}

// OwnershipTransferredEvent records an explicit ownership hand-over.
func OwnershipTransferredEvent(addr, previousOwner, newOwner string) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipTransferred,
		Attributes: map[string]string{
			"experience":    addr,
			"previousOwner": previousOwner,
			"newOwner":      newOwner,
		},
	}
}
