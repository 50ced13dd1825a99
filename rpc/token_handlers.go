package rpc

import (
	"errors"
	"net/http"

	"expnet/native/token"
)

type tokenResult struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	CreatedAt   int64  `json:"createdAt"`
}

func newTokenResult(tok *token.Token) *tokenResult {
	if tok == nil {
		return nil
	}
	return &tokenResult{
		Symbol:      tok.Symbol,
		Name:        tok.Name,
		Decimals:    tok.Decimals,
		TotalSupply: bigString(tok.TotalSupply),
		CreatedAt:   tok.CreatedAt,
	}
}

func tokenError(err error) (int, int) {
	switch {
	case errors.Is(err, token.ErrNotFound):
		return http.StatusNotFound, codeInvalidParams
	case errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrAlreadyExists),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func (s *Server) handleTokenRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals uint8  `json:"decimals"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tok, err := s.node.RegisterToken(params.Symbol, params.Name, params.Decimals)
	if err != nil {
		status, code := tokenError(err)
		writeError(w, status, req.ID, code, "failed to register token", err.Error())
		return
	}
	writeResult(w, req.ID, newTokenResult(tok))
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, nil)
		return
	}
	var params struct {
		Symbol string `json:"symbol"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := decodeAddr(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid to address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.node.MintToken(params.Symbol, to, amount); err != nil {
		status, code := tokenError(err)
		writeError(w, status, req.ID, code, "failed to mint", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok"})
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Symbol  string `json:"symbol"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := decodeAddr(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	spender, err := decodeAddr(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.node.ApproveToken(params.Symbol, owner, spender, amount); err != nil {
		status, code := tokenError(err)
		writeError(w, status, req.ID, code, "failed to approve", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"status": "ok"})
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Symbol string `json:"symbol"`
		Holder string `json:"holder"`
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
	balance, err := s.node.TokenBalanceOf(params.Symbol, holder)
	if err != nil {
		status, code := tokenError(err)
		writeError(w, status, req.ID, code, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": bigString(balance)})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params struct {
		Symbol  string `json:"symbol"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
	}
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := decodeAddr(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	spender, err := decodeAddr(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid spender address", err.Error())
		return
	}
	allowance, err := s.node.TokenAllowance(params.Symbol, owner, spender)
	if err != nil {
		status, code := tokenError(err)
		writeError(w, status, req.ID, code, "failed to load allowance", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"allowance": bigString(allowance)})
}
