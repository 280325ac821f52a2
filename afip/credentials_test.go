package afip

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func validCredentials(t *testing.T) Credentials {
	t.Helper()
	return Credentials{
		CUIT:    "20123456789",
		CertPEM: "-----BEGIN CERTIFICATE-----\nnot checked here\n-----END CERTIFICATE-----\n",
		KeyPEM:  testKeyPEM(t),
	}
}

func TestValidateMissingCUIT(t *testing.T) {
	creds := validCredentials(t)
	creds.CUIT = "  "

	err := creds.Validate()
	assert.True(t, IsKind(err, InvalidInput))
}

func TestValidateGarbageKey(t *testing.T) {
	creds := validCredentials(t)
	creds.KeyPEM = "this is not a PEM at all"

	err := creds.Validate()
	assert.True(t, IsKind(err, InvalidInput))
}

func TestValidateAcceptsGoodKey(t *testing.T) {
	assert.NoError(t, validCredentials(t).Validate())
}

func TestConnectInvalidKeyPerformsNoNetworkCall(t *testing.T) {
	remote := newFakeRemote()
	c := NewConnector(remote, t.TempDir())

	creds := validCredentials(t)
	creds.KeyPEM = "garbage"

	_, err := c.Connect(context.Background(), creds, Homologation, false)
	assert.True(t, IsKind(err, InvalidInput))
	assert.Zero(t, remote.signOnCalls)
	assert.Zero(t, remote.bindCalls)
}
