// journal-payments/internal/click/types.go
package click

// Wire error codes per the merchant API contract.
const (
	CodeSuccess       = 0
	CodeInvalidSign   = -1
	CodeInvalidAmount = -2
	CodeNotFound      = -5
	CodeInternal      = -9
)

// Request carries a prepare or complete callback. Fields keep the raw string
// form they arrived in: the signature is computed over the values exactly as
// sent, so re-formatting (e.g. 15000 vs 15000.0) would break verification.
type Request struct {
	ClickTransID      string
	ServiceID         string
	ClickPaydocID     string
	MerchantTransID   string
	MerchantPrepareID string
	Amount            string
	Action            string
	Error             string
	SignTime          string
	SignString        string
}

// Response is the envelope echoed back for both callbacks.
type Response struct {
	ClickTransID      string `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID string `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID string `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

func errResponse(req Request, code int, note string) Response {
	return Response{
		ClickTransID:    req.ClickTransID,
		MerchantTransID: req.MerchantTransID,
		Error:           code,
		ErrorNote:       note,
	}
}
