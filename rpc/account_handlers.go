package rpc

import (
	"net/http"
)

type accountResult struct {
	Address    string `json:"address"`
	Nonce      uint64 `json:"nonce"`
	BalanceWei string `json:"balanceWei"`
}

func (s *Server) handleAccountGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, &accountResult{
		Address:    formatAddress(addr),
		Nonce:      account.Nonce,
		BalanceWei: bigString(account.BalanceWei),
	})
}

func (s *Server) handleAccountFund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params struct {
		Address string `json:"address"`
		Amount  string `json:"amount"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddr(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	account, err := s.node.FundAccount(addr, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "failed to fund account", err.Error())
		return
	}
	writeResult(w, req.ID, &accountResult{
		Address:    formatAddress(addr),
		Nonce:      account.Nonce,
		BalanceWei: bigString(account.BalanceWei),
	})
}
