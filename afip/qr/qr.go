// Package qr builds the verification QR the authority mandates on
// printed invoices: a base64 JSON payload appended to the public
// verification URL, rendered as a PNG.
package qr

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/skip2/go-qrcode"

	"github.com/facturalo/go-afip-facturador/afip"
)

const verificationBase = "https://www.afip.gob.ar/fe/qr/?p="

// Payload is the JSON document embedded in the QR link, field names
// and types as the authority publishes them.
type Payload struct {
	Ver        int     `json:"ver"`
	Fecha      string  `json:"fecha"`
	CUIT       int64   `json:"cuit"`
	PtoVta     int     `json:"ptoVta"`
	TipoCmp    int     `json:"tipoCmp"`
	NroCmp     int64   `json:"nroCmp"`
	Importe    float64 `json:"importe"`
	Moneda     string  `json:"moneda"`
	Ctz        float64 `json:"ctz"`
	TipoDocRec int     `json:"tipoDocRec,omitempty"`
	NroDocRec  int64   `json:"nroDocRec,omitempty"`
	TipoCodAut string  `json:"tipoCodAut"`
	CodAut     int64   `json:"codAut"`
}

// Link builds the verification URL for an approved invoice.
func Link(cuit string, res *afip.InvoiceResult) (string, error) {
	issuerCUIT, err := strconv.ParseInt(cuit, 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "issuer CUIT is not numeric")
	}
	approval, err := strconv.ParseInt(res.ApprovalCode, 10, 64)
	if err != nil {
		return "", errors.Wrap(err, "approval code is not numeric")
	}

	total, _ := res.Total.Float64()
	p := Payload{
		Ver:        1,
		Fecha:      res.IssueDate,
		CUIT:       issuerCUIT,
		PtoVta:     res.PointOfSale,
		TipoCmp:    res.DocType,
		NroCmp:     res.IssuedNumber,
		Importe:    total,
		Moneda:     "PES",
		Ctz:        1,
		TipoDocRec: res.ReceiverDocType,
		TipoCodAut: "E",
		CodAut:     approval,
	}
	if n, err := strconv.ParseInt(res.ReceiverDoc, 10, 64); err == nil {
		p.NroDocRec = n
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode QR payload")
	}
	return verificationBase + base64.StdEncoding.EncodeToString(raw), nil
}

// PNG renders the verification link as a QR image.
func PNG(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, 300)
}
