// Package authority assembles the two web-service clients into the
// RemoteClient boundary the connector consumes.
package authority

import (
	"context"
	"time"

	"github.com/facturalo/go-afip-facturador/afip"
	"github.com/facturalo/go-afip-facturador/afip/soap"
	"github.com/facturalo/go-afip-facturador/afip/ticket"
	"github.com/facturalo/go-afip-facturador/afip/wsaa"
	"github.com/facturalo/go-afip-facturador/afip/wsfe"
)

type Client struct {
	wsaa       *wsaa.Service
	wsfe       *wsfe.Service
	ticketBase string
}

var _ afip.RemoteClient = (*Client)(nil)

// New builds a client for the real AFIP services. ticketBase is the
// root of the per-tenant ticket cache; sign-on persists tickets there.
func New(ticketBase string, timeout time.Duration) *Client {
	soapClient := soap.New(timeout)
	return &Client{
		wsaa:       wsaa.New(soapClient),
		wsfe:       wsfe.New(soapClient),
		ticketBase: ticketBase,
	}
}

func (c *Client) SignOn(ctx context.Context, cuit, certPath, keyPath string, env afip.Environment) (afip.Access, error) {
	dir := ticket.Dir(c.ticketBase, env.Name(), cuit)
	return c.wsaa.Login(ctx, certPath, keyPath, env, dir)
}

func (c *Client) BindSession(ctx context.Context, cuit, token, sign string, env afip.Environment) (afip.RemoteSession, error) {
	return c.wsfe.Bind(ctx, cuit, token, sign, env)
}
