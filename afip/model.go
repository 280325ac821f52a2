package afip

import "github.com/shopspring/decimal"

// Simplified document types (Factura C family): the authority requires
// net == total and no itemized tax for these.
var simplifiedDocTypes = map[int]bool{11: true, 12: true, 13: true}

// IsSimplifiedDocType reports whether docType belongs to the
// non-VAT-itemized category.
func IsSimplifiedDocType(docType int) bool { return simplifiedDocTypes[docType] }

// VAT rate codes used on tax lines.
const (
	RateCodeZero     = 3 // 0%
	RateCodeStandard = 5 // 21%
)

// AssociatedDocument references a prior document (credit/debit notes).
type AssociatedDocument struct {
	DocType     int
	PointOfSale int
	Number      int64
	Date        string
}

// InvoiceRequest is the caller's issuance request. Immutable once
// submission begins.
type InvoiceRequest struct {
	DocType         int
	PointOfSale     int
	ReceiverDocType int
	ReceiverDoc     string
	VATConditionID  int

	Total  decimal.Decimal
	Net    decimal.Decimal
	VAT    decimal.Decimal
	Net105 decimal.Decimal
	VAT105 decimal.Decimal
	Exempt decimal.Decimal

	Associated *AssociatedDocument
}

// InvoiceResult echoes the request plus the authority's approval data.
type InvoiceResult struct {
	DocType         int
	PointOfSale     int
	ReceiverDocType int
	ReceiverDoc     string
	VATConditionID  int

	Total  decimal.Decimal
	Net    decimal.Decimal
	VAT    decimal.Decimal
	Net105 decimal.Decimal
	VAT105 decimal.Decimal
	Exempt decimal.Decimal

	Result         string
	ApprovalCode   string
	ApprovalExpiry string
	IssuedNumber   int64
	IssueDate      string // yyyy-mm-dd
	Observations   []string

	Associated *AssociatedDocument
}
