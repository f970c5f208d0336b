// journal-payments/internal/gateway/payme_handler.go
package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/example/journal-payments/internal/payme"
	m "github.com/example/journal-payments/pkg/metrics"
)

// paymeHandler: parse envelope -> validate shape -> authenticate -> dispatch.
// The order is a correctness contract: no business data is trusted before the
// caller is. Responses are always HTTP 200; failures live in the JSON-RPC
// error member.
func (s *Server) paymeHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		m.IncWebhook("payme", "rpc", "TRANSPORT_ERROR")
		writeRPC(w, payme.RPCResponse{
			JSONRPC: "2.0",
			Error:   &payme.RPCError{Code: payme.CodeParseError, Message: "parse error"},
		})
		return
	}

	var req payme.RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		m.IncWebhook("payme", "rpc", "TRANSPORT_ERROR")
		writeRPC(w, payme.RPCResponse{
			JSONRPC: "2.0",
			Error:   &payme.RPCError{Code: payme.CodeParseError, Message: "parse error"},
		})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" || req.ID == nil {
		m.IncWebhook("payme", req.Method, "FAILED")
		writeRPC(w, payme.RPCResponse{
			JSONRPC: "2.0",
			Error:   &payme.RPCError{Code: payme.CodeInvalidRequest, Message: "invalid request"},
			ID:      req.ID,
		})
		return
	}

	if rerr := s.payme.Authorize(r.Header.Get("Authorization")); rerr != nil {
		m.IncWebhook("payme", req.Method, "AUTH_FAILED")
		writeRPC(w, payme.RPCResponse{JSONRPC: "2.0", Error: rerr, ID: req.ID})
		return
	}

	result, rerr := s.payme.Dispatch(r.Context(), req.Method, req.Params)
	if rerr != nil {
		m.IncWebhook("payme", req.Method, "FAILED")
		writeRPC(w, payme.RPCResponse{JSONRPC: "2.0", Error: rerr, ID: req.ID})
		return
	}
	m.IncWebhook("payme", req.Method, "SUCCESS")
	writeRPC(w, payme.RPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func writeRPC(w http.ResponseWriter, resp payme.RPCResponse) {
	writeJSON(w, http.StatusOK, resp)
}
