package afip

import (
	"strings"

	"github.com/go-faster/errors"

	"github.com/facturalo/go-afip-facturador/afip/keys"
)

// Credentials identify one tenant against the authority. Supplied per
// request, never persisted.
type Credentials struct {
	CUIT    string
	CertPEM string
	KeyPEM  string
}

// Validate checks structural validity before any network or disk access.
// The certificate is parsed best-effort only to enrich the diagnostic;
// the authority performs the authoritative check on it.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.CUIT) == "" {
		return newFault(InvalidInput, "credentials", errors.New("CUIT not provided"))
	}
	if strings.TrimSpace(c.CertPEM) == "" || strings.TrimSpace(c.KeyPEM) == "" {
		return newFault(InvalidInput, "credentials", errors.New("certificate or private key not provided"))
	}

	if _, err := keys.ParsePrivateKeyPEM([]byte(c.KeyPEM)); err != nil {
		if cert, certErr := keys.ParseCertificatePEM([]byte(c.CertPEM)); certErr == nil {
			err = errors.Wrapf(err, "private key does not parse (certificate subject %q is fine)", cert.Subject.CommonName)
		}
		return newFault(InvalidInput, "credentials", err)
	}
	return nil
}
