package server

import (
	"github.com/shopspring/decimal"

	"github.com/facturalo/go-afip-facturador/afip"
)

// Wire types keep the field names the existing integrations use.

type credentialsDTO struct {
	CUIT        string `json:"cuit" binding:"required"`
	Certificate string `json:"certificado" binding:"required"`
	PrivateKey  string `json:"clave_privada" binding:"required"`
}

type invoiceDTO struct {
	DocType         int     `json:"tipo_afip" binding:"required"`
	PointOfSale     int     `json:"punto_venta" binding:"required"`
	ReceiverDocType int     `json:"tipo_documento" binding:"required"`
	ReceiverDoc     string  `json:"documento" binding:"required"`
	Total           float64 `json:"total" binding:"required"`
	VATConditionID  int     `json:"id_condicion_iva"`
	Net             float64 `json:"neto"`
	VAT             float64 `json:"iva"`
	Net105          float64 `json:"neto105"`
	VAT105          float64 `json:"iva105"`
	Exempt          float64 `json:"exento"`

	AssociatedDocType     *int    `json:"asociado_tipo_afip,omitempty"`
	AssociatedPointOfSale *int    `json:"asociado_punto_venta,omitempty"`
	AssociatedNumber      *int64  `json:"asociado_numero_comprobante,omitempty"`
	AssociatedDate        *string `json:"asociado_fecha_comprobante,omitempty"`
}

type issueRequestDTO struct {
	Credentials credentialsDTO `json:"credenciales" binding:"required"`
	Invoice     invoiceDTO     `json:"datos_factura" binding:"required"`
}

type issueResponseDTO struct {
	DocType         int     `json:"tipo_afip"`
	PointOfSale     int     `json:"punto_venta"`
	ReceiverDocType int     `json:"tipo_documento"`
	ReceiverDoc     string  `json:"documento"`
	VATConditionID  int     `json:"id_condicion_iva"`
	Total           float64 `json:"total"`
	Net             float64 `json:"neto"`
	VAT             float64 `json:"iva"`
	Net105          float64 `json:"neto105"`
	VAT105          float64 `json:"iva105"`
	Exempt          float64 `json:"exento"`

	Result         string `json:"resultado"`
	ApprovalCode   string `json:"cae"`
	ApprovalExpiry string `json:"vencimiento_cae"`
	IssuedNumber   int64  `json:"numero_comprobante"`
	IssueDate      string `json:"fecha_comprobante"`
	QRURL          string `json:"qr_url,omitempty"`

	AssociatedDocType     *int    `json:"asociado_tipo_afip,omitempty"`
	AssociatedPointOfSale *int    `json:"asociado_punto_venta,omitempty"`
	AssociatedNumber      *int64  `json:"asociado_numero_comprobante,omitempty"`
	AssociatedDate        *string `json:"asociado_fecha_comprobante,omitempty"`
}

type errorDTO struct {
	Error string `json:"error"`
}

func (d *issueRequestDTO) toDomain() (afip.Credentials, afip.InvoiceRequest) {
	creds := afip.Credentials{
		CUIT:    d.Credentials.CUIT,
		CertPEM: d.Credentials.Certificate,
		KeyPEM:  d.Credentials.PrivateKey,
	}

	req := afip.InvoiceRequest{
		DocType:         d.Invoice.DocType,
		PointOfSale:     d.Invoice.PointOfSale,
		ReceiverDocType: d.Invoice.ReceiverDocType,
		ReceiverDoc:     d.Invoice.ReceiverDoc,
		VATConditionID:  d.Invoice.VATConditionID,
		Total:           decimal.NewFromFloat(d.Invoice.Total),
		Net:             decimal.NewFromFloat(d.Invoice.Net),
		VAT:             decimal.NewFromFloat(d.Invoice.VAT),
		Net105:          decimal.NewFromFloat(d.Invoice.Net105),
		VAT105:          decimal.NewFromFloat(d.Invoice.VAT105),
		Exempt:          decimal.NewFromFloat(d.Invoice.Exempt),
	}

	if d.Invoice.AssociatedDocType != nil && d.Invoice.AssociatedPointOfSale != nil && d.Invoice.AssociatedNumber != nil {
		req.Associated = &afip.AssociatedDocument{
			DocType:     *d.Invoice.AssociatedDocType,
			PointOfSale: *d.Invoice.AssociatedPointOfSale,
			Number:      *d.Invoice.AssociatedNumber,
		}
		if d.Invoice.AssociatedDate != nil {
			req.Associated.Date = *d.Invoice.AssociatedDate
		}
	}
	return creds, req
}

func toResponse(d *issueRequestDTO, res *afip.InvoiceResult, qrURL string) issueResponseDTO {
	total, _ := res.Total.Float64()
	net, _ := res.Net.Float64()
	vat, _ := res.VAT.Float64()
	net105, _ := res.Net105.Float64()
	vat105, _ := res.VAT105.Float64()
	exempt, _ := res.Exempt.Float64()

	return issueResponseDTO{
		DocType:         res.DocType,
		PointOfSale:     res.PointOfSale,
		ReceiverDocType: res.ReceiverDocType,
		ReceiverDoc:     res.ReceiverDoc,
		VATConditionID:  res.VATConditionID,
		Total:           total,
		Net:             net,
		VAT:             vat,
		Net105:          net105,
		VAT105:          vat105,
		Exempt:          exempt,
		Result:          res.Result,
		ApprovalCode:    res.ApprovalCode,
		ApprovalExpiry:  res.ApprovalExpiry,
		IssuedNumber:    res.IssuedNumber,
		IssueDate:       res.IssueDate,
		QRURL:           qrURL,

		AssociatedDocType:     d.Invoice.AssociatedDocType,
		AssociatedPointOfSale: d.Invoice.AssociatedPointOfSale,
		AssociatedNumber:      d.Invoice.AssociatedNumber,
		AssociatedDate:        d.Invoice.AssociatedDate,
	}
}
