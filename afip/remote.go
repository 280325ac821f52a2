package afip

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Access is a token/signature pair issued by the authority on sign-on.
type Access struct {
	Token  string
	Sign   string
	Expiry time.Time
}

// InvoiceFields is the invoice header submitted to a bound session.
// Built once per issuance and resubmitted verbatim when a forced
// reconnect requires replaying the build.
type InvoiceFields struct {
	Concept         int
	DocType         int
	PointOfSale     int
	Number          int64
	ReceiverDocType int
	ReceiverDoc     string
	Total           decimal.Decimal
	Net             decimal.Decimal
	VAT             decimal.Decimal
	NotTaxed        decimal.Decimal
	Exempt          decimal.Decimal
	IssueDate       string // yyyymmdd
	Associated      *AssociatedDocument
}

// RemoteClient is the boundary to the authority's web services. SignOn
// talks to the authentication service; BindSession binds a live
// token/signature pair to the invoicing service.
type RemoteClient interface {
	SignOn(ctx context.Context, cuit, certPath, keyPath string, env Environment) (Access, error)
	BindSession(ctx context.Context, cuit, token, sign string, env Environment) (RemoteSession, error)
}

// RemoteSession is one bound invoicing session. CreateInvoice and
// AddTaxLine stage data locally; RequestApproval submits the staged
// invoice, after which the accessors reflect the authority's verdict.
type RemoteSession interface {
	LastIssued(ctx context.Context, docType, pointOfSale int) (int64, error)
	CreateInvoice(ctx context.Context, inv InvoiceFields) error
	AddTaxLine(ctx context.Context, rateCode int, base, amount decimal.Decimal) error
	RequestApproval(ctx context.Context) error

	Result() string
	Observations() []string
	Errors() []string
	ApprovalCode() string
	ApprovalExpiry() string
	IssuedNumber() int64
}
