package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
)

// Server is the JSON-RPC 2.0 HTTP gateway. Routing follows the teacher's
// apiserver/server/routes.go shape (one gorilla/mux router, handlers
// registered by addRoutes), generalized from REST-style per-resource
// routes to a single JSON-RPC endpoint dispatching on the request body's
// "method" field.
type Server struct {
	ctx    *Context
	log    *logrus.Entry
	router *mux.Router
	ws     *WSHub
}

// NewServer builds a Server and registers its routes, including the
// WebSocket upgrade endpoint (spec §6.3).
func NewServer(apiCtx *Context, log *logrus.Entry) *Server {
	s := &Server{ctx: apiCtx, log: log, router: mux.NewRouter(), ws: NewWSHub(log)}
	s.addRoutes()
	return s
}

// WSHub exposes the WebSocket notification hub so the indexer/consensus/
// mempool units can push events to subscribers after committing state.
func (s *Server) WSHub() *WSHub {
	return s.ws
}

// Router exposes the underlying mux.Router so cmd/opnetd can serve it; the
// WebSocket upgrade handler is already registered on it under /ws.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) addRoutes() {
	s.router.HandleFunc("/", s.handleRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.ws.Upgrade)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, errs.Wrapf(errs.KindValidation, "malformed json-rpc request: %s", err))
		return
	}

	result, err := Dispatch(r.Context(), s.ctx, req.Method, req.Params)
	if err != nil {
		s.writeError(w, req.ID, err)
		return
	}

	s.writeResult(w, req.ID, result)
}

func (s *Server) writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := Response{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Warn("encoding json-rpc response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, err error) {
	code := codeForError(err)
	s.log.WithField("code", code).WithError(err).Debug("json-rpc error")
	resp := Response{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: err.Error()}}
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK // JSON-RPC application errors ride on HTTP 200 with an error envelope
	if code == codeParseError {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON-RPC 2.0 reserved error codes plus a few application-specific ones
// for this node's taxonomy.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeNotFound       = -32001
	codeReorg          = -32002
)

func codeForError(err error) int {
	switch {
	case errs.Is(err, errs.KindValidation):
		return codeInvalidParams
	case errs.Is(err, errs.KindNotFound):
		return codeNotFound
	case errs.Is(err, errs.KindReorgInProgress):
		return codeReorg
	default:
		return codeInternal
	}
}

// ServeHTTP lets Server satisfy http.Handler directly for callers that
// don't need the gorilla/mux router's other routes (e.g. tests).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
