// journal-payments/internal/secrets/resolver.go
package secrets

import (
	"github.com/example/journal-payments/pkg/errors"
)

// Resolver maps a provider-supplied service/merchant identifier to the signing
// secret for that tenant. A merchant account can run several services, each
// with its own secret; the primary account may act as a default signer.
type Resolver struct {
	// ServiceSecrets keys are the provider's service ids.
	ServiceSecrets map[string]string
	// DefaultServiceID names the primary merchant service.
	DefaultServiceID string
	// DefaultSecret, when non-empty, signs for service ids not present in
	// ServiceSecrets. Leave empty for contracts without a default signer, in
	// which case an unknown id is an authentication failure.
	DefaultSecret string
}

// Resolve never fails silently: an unknown service id only falls back to the
// default secret when one is configured.
func (r *Resolver) Resolve(serviceID string) (string, error) {
	if s, ok := r.ServiceSecrets[serviceID]; ok {
		return s, nil
	}
	if r.DefaultSecret != "" {
		return r.DefaultSecret, nil
	}
	return "", errors.Newf(errors.KindAuth, "no signing secret for service id %q", serviceID)
}
