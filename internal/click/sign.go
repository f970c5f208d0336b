// journal-payments/internal/click/sign.go
package click

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

func md5hex(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PrepareDigest computes the inbound prepare signature. The paydoc segment is
// included only when the callback actually carried click_paydoc_id; presence,
// not configuration, selects the formula.
func PrepareDigest(req Request, secret string) string {
	if req.ClickPaydocID != "" {
		return md5hex(req.ClickTransID, req.ServiceID, req.ClickPaydocID,
			req.MerchantTransID, req.Amount, req.Action, req.SignTime, secret)
	}
	return md5hex(req.ClickTransID, req.ServiceID,
		req.MerchantTransID, req.Amount, req.Action, req.SignTime, secret)
}

// CompleteDigest computes the inbound complete signature.
func CompleteDigest(req Request, secret string) string {
	return md5hex(req.ClickTransID, req.MerchantTransID, req.MerchantPrepareID,
		req.Error, req.SignTime, secret)
}

// AuthHeader builds the outbound merchant API auth header:
// "{merchant_user_id}:{sha1(timestamp+secret)}:{timestamp}".
func AuthHeader(merchantUserID, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(ts + secret))
	return fmt.Sprintf("%s:%s:%s", merchantUserID, hex.EncodeToString(sum[:]), ts)
}
