package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expnet/gateway/client"
	"expnet/gateway/middleware"
)

type Config struct {
	Node          *client.Client
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
}

// New assembles the gateway router: public health and metrics endpoints plus
// the authenticated read API proxied to the settlement node.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	api := &readAPI{node: cfg.Node}
	r.Route("/v1", func(sr chi.Router) {
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware())
		}
		sr.Get("/experiences/{address}", api.getExperience)
		sr.Get("/experiences/{address}/balance/{holder}", api.getPassBalance)
		sr.Get("/accounts/{address}", api.getAccount)
		sr.Get("/tokens/{symbol}/balance/{holder}", api.getTokenBalance)
	})

	return r
}

type readAPI struct {
	node *client.Client
}

func (a *readAPI) getExperience(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{
		"experience": chi.URLParam(r, "address"),
	}
	var result json.RawMessage
	if err := a.node.Call(r.Context(), "experience_get", params, &result); err != nil {
		writeNodeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (a *readAPI) getPassBalance(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{
		"experience": chi.URLParam(r, "address"),
		"holder":     chi.URLParam(r, "holder"),
	}
	var result json.RawMessage
	if err := a.node.Call(r.Context(), "experience_balanceOf", params, &result); err != nil {
		writeNodeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (a *readAPI) getAccount(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{
		"address": chi.URLParam(r, "address"),
	}
	var result json.RawMessage
	if err := a.node.Call(r.Context(), "account_get", params, &result); err != nil {
		writeNodeError(w, err)
		return
	}
	writeJSON(w, result)
}

func (a *readAPI) getTokenBalance(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{
		"symbol": chi.URLParam(r, "symbol"),
		"holder": chi.URLParam(r, "holder"),
	}
	var result json.RawMessage
	if err := a.node.Call(r.Context(), "token_balanceOf", params, &result); err != nil {
		writeNodeError(w, err)
		return
	}
	writeJSON(w, result)
}

func writeJSON(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func writeNodeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var rpcErr *client.RPCError
	if errors.As(err, &rpcErr) {
		// The node already classified the failure; surface parameter
		// problems as 400 and unknown records as 404.
		switch rpcErr.Code {
		case -32602:
			status = http.StatusBadRequest
		case -32601:
			status = http.StatusNotFound
		default:
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
