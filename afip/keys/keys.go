package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
)

// ParsePrivateKeyPEM loads the first private key block found in pemBytes.
// Only unencrypted keys are accepted; AFIP credentials carry no password.
func ParsePrivateKeyPEM(pemBytes []byte) (crypto.Signer, error) {
	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#1 private key")
			}
			return key, nil

		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse EC private key")
			}
			return key, nil

		case "PRIVATE KEY":
			keyAny, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#8 private key")
			}
			switch k := keyAny.(type) {
			case *rsa.PrivateKey:
				return k, nil
			case *ecdsa.PrivateKey:
				return k, nil
			default:
				return nil, errors.Errorf("unsupported key type in PKCS#8: %T (expected RSA or ECDSA)", keyAny)
			}

		case "ENCRYPTED PRIVATE KEY":
			return nil, errors.New("private key is password protected, expected an unencrypted key")
		}
	}

	return nil, errors.New("no private key block found in PEM")
}

// ParseCertificatePEM loads the first CERTIFICATE block found in pemBytes.
func ParseCertificatePEM(pemBytes []byte) (*x509.Certificate, error) {
	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "parse certificate")
		}
		return cert, nil
	}

	return nil, errors.New("no CERTIFICATE block found in PEM")
}
