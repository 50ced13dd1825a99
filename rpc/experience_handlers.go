package rpc

import (
	"errors"
	"net/http"

	"expnet/native/experience"
	"expnet/observability"
)

type experienceResult struct {
	Address           string            `json:"address"`
	Owner             string            `json:"owner"`
	FlowSyncAuthority string            `json:"flowSyncAuthority"`
	CID               string            `json:"cid"`
	PriceWei          string            `json:"priceWei"`
	PlatformWallet    string            `json:"platformWallet"`
	PlatformFeeBps    uint32            `json:"platformFeeBps"`
	ProposerFeeBps    uint32            `json:"proposerFeeBps"`
	CurrentProposer   string            `json:"currentProposer,omitempty"`
	TokenPrices       map[string]string `json:"tokenPrices,omitempty"`
	CreatedAt         int64             `json:"createdAt"`
	TotalPassesSold   uint64            `json:"totalPassesSold"`
	TotalRevenueWei   string            `json:"totalRevenueWei"`
}

func newExperienceResult(exp *experience.Experience) *experienceResult {
	if exp == nil {
		return nil
	}
	out := &experienceResult{
		Address:           formatAddress(exp.Address),
		Owner:             formatAddress(exp.Owner),
		FlowSyncAuthority: formatAddress(exp.FlowSyncAuthority),
		CID:               exp.CID,
		PriceWei:          bigString(exp.PriceWei),
		PlatformWallet:    formatAddress(exp.PlatformWallet),
		PlatformFeeBps:    exp.PlatformFeeBps,
		ProposerFeeBps:    exp.ProposerFeeBps,
		CreatedAt:         exp.CreatedAt,
		TotalPassesSold:   exp.TotalPassesSold,
		TotalRevenueWei:   bigString(exp.TotalRevenueWei),
	}
	if exp.HasProposer() {
		out.CurrentProposer = formatAddress(exp.CurrentProposer)
	}
	if len(exp.TokenPrices) > 0 {
		out.TokenPrices = make(map[string]string, len(exp.TokenPrices))
		for symbol, price := range exp.TokenPrices {
			out.TokenPrices[symbol] = bigString(price)
		}
	}
	return out
}

type receiptResult struct {
	Experience  string `json:"experience"`
	Buyer       string `json:"buyer"`
	Quantity    uint64 `json:"quantity"`
	Currency    string `json:"currency"`
	TotalPaid   string `json:"totalPaid"`
	Platform    string `json:"platformShare"`
	Proposer    string `json:"proposerShare"`
	Creator     string `json:"creatorShare"`
	PurchasedAt int64  `json:"purchasedAt"`
}

func newReceiptResult(receipt *experience.Receipt) *receiptResult {
	if receipt == nil {
		return nil
	}
	return &receiptResult{
		Experience:  formatAddress(receipt.Experience),
		Buyer:       formatAddress(receipt.Buyer),
		Quantity:    receipt.Quantity,
		Currency:    receipt.Currency,
		TotalPaid:   bigString(receipt.TotalPaid),
		Platform:    bigString(receipt.Split.Platform),
		Proposer:    bigString(receipt.Split.Proposer),
		Creator:     bigString(receipt.Split.Creator),
		PurchasedAt: receipt.PurchasedAt,
	}
}

// settlementError maps engine sentinels to HTTP status and RPC error codes.
func settlementError(err error) (int, int) {
	switch {
	case errors.Is(err, experience.ErrNotFound):
		return http.StatusNotFound, codeInvalidParams
	case errors.Is(err, experience.ErrNotOwner),
		errors.Is(err, experience.ErrNotAuthority):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, experience.ErrTransfersDisabled):
		return http.StatusForbidden, codeInvalidRequest
	case errors.Is(err, experience.ErrInvalidQuantity),
		errors.Is(err, experience.ErrSalesPaused),
		errors.Is(err, experience.ErrPaymentMismatch),
		errors.Is(err, experience.ErrInsufficientFunds),
		errors.Is(err, experience.ErrInvalidPrice),
		errors.Is(err, experience.ErrFeeBpsRange),
		errors.Is(err, experience.ErrTokenNotAccepted),
		errors.Is(err, experience.ErrZeroAddress),
		errors.Is(err, experience.ErrAlreadyExists):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func (s *Server) handleExperienceCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params struct {
		Creator           string `json:"creator"`
		InitialCID        string `json:"initialCid"`
		FlowSyncAuthority string `json:"flowSyncAuthority"`
		ProposerFeeBps    uint32 `json:"proposerFeeBps"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	creator, err := decodeAddr(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	authority, err := decodeAddr(params.FlowSyncAuthority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid flowSyncAuthority address", err.Error())
		return
	}
	exp, err := s.node.CreateExperience(creator, params.InitialCID, authority, params.ProposerFeeBps)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to create experience", err.Error())
		return
	}
	observability.Settlement().RecordExperienceCreated()
	writeResult(w, req.ID, newExperienceResult(exp))
}

func (s *Server) handleExperienceBuy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.throttle(r) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	var params struct {
		Buyer      string `json:"buyer"`
		Experience string `json:"experience"`
		Quantity   uint64 `json:"quantity"`
		PaymentWei string `json:"paymentWei"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	buyer, err := decodeAddr(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	payment, err := parseAmount(params.PaymentWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid paymentWei", err.Error())
		return
	}
	receipt, err := s.node.BuyWithNative(buyer, exp, params.Quantity, payment)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "purchase failed", err.Error())
		return
	}
	observability.Settlement().RecordPurchase(receipt.Currency, receipt.Quantity,
		receipt.Split.Platform, receipt.Split.Proposer, receipt.Split.Creator)
	writeResult(w, req.ID, newReceiptResult(receipt))
}

func (s *Server) handleExperienceBuyWithToken(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.throttle(r) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	var params struct {
		Buyer      string `json:"buyer"`
		Experience string `json:"experience"`
		Token      string `json:"token"`
		Quantity   uint64 `json:"quantity"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	buyer, err := decodeAddr(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid buyer address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	receipt, err := s.node.BuyWithToken(buyer, exp, params.Token, params.Quantity)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "token purchase failed", err.Error())
		return
	}
	observability.Settlement().RecordPurchase(receipt.Currency, receipt.Quantity,
		receipt.Split.Platform, receipt.Split.Proposer, receipt.Split.Creator)
	writeResult(w, req.ID, newReceiptResult(receipt))
}

func (s *Server) handleExperienceSetPrice(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		PriceWei   string `json:"priceWei"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	price, err := parseAmount(params.PriceWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid priceWei", err.Error())
		return
	}
	updated, err := s.node.SetPrice(caller, exp, price)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to set price", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceSetTokenPrice(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		Token      string `json:"token"`
		UnitPrice  string `json:"unitPrice"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	price, err := parseAmount(params.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid unitPrice", err.Error())
		return
	}
	updated, err := s.node.SetTokenPrice(caller, exp, params.Token, price)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to set token price", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceSetProposerFeeBps(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		FeeBps     uint32 `json:"feeBps"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	updated, err := s.node.SetProposerFeeBps(caller, exp, params.FeeBps)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to set proposer fee", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceTransferOwnership(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		NewOwner   string `json:"newOwner"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	newOwner, err := decodeAddr(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newOwner address", err.Error())
		return
	}
	updated, err := s.node.TransferOwnership(caller, exp, newOwner)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to transfer ownership", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceSetContentPointer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		CID        string `json:"cid"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	updated, err := s.node.SetContentPointer(caller, exp, params.CID)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to set content pointer", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceSetProposer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Caller     string `json:"caller"`
		Experience string `json:"experience"`
		Proposer   string `json:"proposer"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddr(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	// Empty proposer clears the election.
	var proposer [20]byte
	if params.Proposer != "" {
		proposer, err = decodeAddr(params.Proposer)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid proposer address", err.Error())
			return
		}
	}
	updated, err := s.node.SetCurrentProposer(caller, exp, proposer)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to set proposer", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(updated))
}

func (s *Server) handleExperienceGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Experience string `json:"experience"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	record, err := s.node.GetExperience(exp)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to load experience", err.Error())
		return
	}
	writeResult(w, req.ID, newExperienceResult(record))
}

func (s *Server) handleExperienceBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Experience string `json:"experience"`
		Holder     string `json:"holder"`
		PassID     uint64 `json:"passId"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	holder, err := decodeAddr(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	passID := params.PassID
	if passID == 0 {
		passID = experience.PassID
	}
	balance, err := s.node.BalanceOf(exp, holder, passID)
	if err != nil {
		status, code := settlementError(err)
		writeError(w, status, req.ID, code, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": bigString(balance)})
}

func (s *Server) handleExperienceTransferPass(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		From       string `json:"from"`
		To         string `json:"to"`
		Experience string `json:"experience"`
		PassID     uint64 `json:"passId"`
		Quantity   uint64 `json:"quantity"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeAddr(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	to, err := decodeAddr(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	err = s.node.TransferPass(from, to, exp, params.PassID, params.Quantity)
	status, code := settlementError(err)
	writeError(w, status, req.ID, code, "pass transfers are disabled", err.Error())
}

func (s *Server) handleExperienceBatchTransferPass(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		From       string   `json:"from"`
		To         string   `json:"to"`
		Experience string   `json:"experience"`
		PassIDs    []uint64 `json:"passIds"`
		Quantities []uint64 `json:"quantities"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := decodeAddr(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	to, err := decodeAddr(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	err = s.node.BatchTransferPass(from, to, exp, params.PassIDs, params.Quantities)
	status, code := settlementError(err)
	writeError(w, status, req.ID, code, "pass transfers are disabled", err.Error())
}

func (s *Server) handleExperienceSetApprovalForAll(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Holder     string `json:"holder"`
		Operator   string `json:"operator"`
		Experience string `json:"experience"`
		Approved   bool   `json:"approved"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	holder, err := decodeAddr(params.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid holder address", err.Error())
		return
	}
	operator, err := decodeAddr(params.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid operator address", err.Error())
		return
	}
	exp, err := decodeAddr(params.Experience)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid experience address", err.Error())
		return
	}
	err = s.node.SetApprovalForAll(holder, operator, exp, params.Approved)
	status, code := settlementError(err)
	writeError(w, status, req.ID, code, "pass approvals are disabled", err.Error())
}
