// journal-payments/internal/gateway/click_handler.go
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/journal-payments/internal/click"
	m "github.com/example/journal-payments/pkg/metrics"
)

// parseClickRequest accepts JSON or form-encoded bodies. Field values keep
// their raw string form because the signature was computed over them as sent.
func parseClickRequest(r *http.Request) (click.Request, bool) {
	var get func(string) string

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil || len(raw) == 0 {
			return click.Request{}, false
		}
		get = func(k string) string {
			switch v := raw[k].(type) {
			case string:
				return v
			case json.Number:
				return v.String()
			default:
				return ""
			}
		}
	} else {
		if err := r.ParseForm(); err != nil || len(r.PostForm) == 0 {
			return click.Request{}, false
		}
		get = r.PostForm.Get
	}

	return click.Request{
		ClickTransID:      get("click_trans_id"),
		ServiceID:         get("service_id"),
		ClickPaydocID:     get("click_paydoc_id"),
		MerchantTransID:   get("merchant_trans_id"),
		MerchantPrepareID: get("merchant_prepare_id"),
		Amount:            get("amount"),
		Action:            get("action"),
		Error:             get("error"),
		SignTime:          get("sign_time"),
		SignString:        get("sign_string"),
	}, true
}

func (s *Server) clickPrepareHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := parseClickRequest(r)
	if !ok {
		m.IncWebhook("click", "prepare", "TRANSPORT_ERROR")
		writeJSON(w, http.StatusOK, click.Response{Error: click.CodeInternal, ErrorNote: "invalid request body"})
		return
	}
	resp := s.click.HandlePrepare(r.Context(), req)
	m.IncWebhook("click", "prepare", clickStatus(resp))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clickCompleteHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := parseClickRequest(r)
	if !ok {
		m.IncWebhook("click", "complete", "TRANSPORT_ERROR")
		writeJSON(w, http.StatusOK, click.Response{Error: click.CodeInternal, ErrorNote: "invalid request body"})
		return
	}
	resp := s.click.HandleComplete(r.Context(), req)
	m.IncWebhook("click", "complete", clickStatus(resp))
	writeJSON(w, http.StatusOK, resp)
}

// clickProbeHandler answers the provider's endpoint validation pings.
func (s *Server) clickProbeHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func clickStatus(resp click.Response) string {
	if resp.Error == click.CodeSuccess {
		return "SUCCESS"
	}
	return "FAILED"
}
