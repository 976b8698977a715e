package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"mixlend/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	authSecretEnv = "MIXLEND_RPC_SECRET"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server serves the ledger's JSON-RPC interface.
type Server struct {
	node *core.Node

	mu         sync.Mutex
	visitors   map[string]*rate.Limiter
	ratePerMin float64
	burst      int
	authSecret []byte
}

// Option tweaks server construction.
type Option func(*Server)

// WithRateLimit sets the per-client request budget.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.ratePerMin = float64(perMinute)
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

// WithAuthSecret overrides the HS256 secret guarding admin methods. By
// default it is read from MIXLEND_RPC_SECRET; when empty, admin methods are
// rejected outright.
func WithAuthSecret(secret []byte) Option {
	return func(s *Server) {
		s.authSecret = secret
	}
}

// NewServer builds a Server over the node.
func NewServer(node *core.Node, opts ...Option) *Server {
	s := &Server{
		node:       node,
		visitors:   make(map[string]*rate.Limiter),
		ratePerMin: 600,
		burst:      20,
		authSecret: []byte(strings.TrimSpace(os.Getenv(authSecretEnv))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router mounts the RPC endpoint alongside health and metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) limiterFor(remoteAddr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.visitors[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.ratePerMin/60.0), s.burst)
		s.visitors[host] = limiter
	}
	return limiter
}

// requireAuth validates the bearer token on admin methods.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if len(s.authSecret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "admin methods disabled: no auth secret configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	raw := strings.TrimSpace(header[len(prefix):])
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.authSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limiterFor(r.RemoteAddr).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	switch req.Method {
	case "mixer_deposit":
		s.handleMixerDeposit(w, &req)
	case "mixer_getDeposit":
		s.handleMixerGetDeposit(w, &req)
	case "mixer_withdraw":
		s.handleMixerWithdraw(w, &req)
	case "collateral_lockAndBorrow":
		s.handleLockAndBorrow(w, &req)
	case "collateral_repayAndUnlock":
		s.handleRepayAndUnlock(w, &req)
	case "lend_fund":
		s.handleLendFund(w, &req)
	case "lend_getLoan":
		s.handleLendGetLoan(w, &req)
	case "lend_loanCounter":
		s.handleLendLoanCounter(w, &req)
	case "lend_getReserve":
		s.handleLendGetReserve(w, &req)
	case "bank_getBalance":
		s.handleBankGetBalance(w, &req)
	case "bank_mint":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleBankMint(w, &req)
	case "sys_pause":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSysPause(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}
