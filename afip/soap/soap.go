// Package soap is the thin HTTP transport shared by the WSAA and WSFE
// clients. It posts SOAP 1.1 envelopes and surfaces SOAP faults as
// errors carrying the authority's own fault text, untranslated, so the
// classifier can inspect it.
package soap

import (
	"context"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "soap")

// Fault is a SOAP fault returned by the remote service.
type Fault struct {
	Code   string
	Detail string
}

func (f *Fault) Error() string {
	return "soap fault " + f.Code + ": " + f.Detail
}

type Client struct {
	rest *resty.Client
}

func New(timeout time.Duration) *Client {
	rest := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "go-afip-facturador")
	return &Client{rest: rest}
}

// NewWithHTTPClient is used by tests to point the transport at a stub
// server.
func NewWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{rest: resty.NewWithClient(httpClient)}
}

// Post sends the envelope and returns the parsed response document.
// Transport failures come back unwrapped enough for structural
// inspection (net/tls error types stay in the chain).
func (c *Client) Post(ctx context.Context, url, action string, envelope []byte) (*etree.Document, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("SOAPAction", action).
		SetBody(envelope).
		Post(url)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", url)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(resp.Body()); err != nil {
		return nil, errors.Wrapf(err, "unparseable SOAP response (status %d)", resp.StatusCode())
	}

	if fault := doc.FindElement("//Fault"); fault != nil {
		f := &Fault{}
		if e := fault.FindElement("faultcode"); e != nil {
			f.Code = e.Text()
		}
		if e := fault.FindElement("faultstring"); e != nil {
			f.Detail = e.Text()
		}
		logger.Warnf("soap fault from %s: %s", url, f.Detail)
		return nil, f
	}

	if resp.IsError() {
		return nil, errors.Errorf("POST %s: http status %d", url, resp.StatusCode())
	}
	return doc, nil
}
