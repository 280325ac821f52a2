package afip

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	connectAttempts  = 2
	queryAttempts    = 2
	approvalAttempts = 2
)

// Invoicer runs the multi-step issuance transaction against a bound
// session, reconnecting and replaying when a step fails recoverably.
type Invoicer struct {
	connector *Connector
	timeout   time.Duration
}

// NewInvoicer wires the transaction orchestrator. timeout bounds one
// whole issuance; zero means no bound.
func NewInvoicer(connector *Connector, timeout time.Duration) *Invoicer {
	return &Invoicer{connector: connector, timeout: timeout}
}

// Issue submits one invoice and returns the authority's approval data.
// Errors carry a FailureKind (via Fault) or are a RejectionError when
// the authority processed the invoice and declined it.
func (i *Invoicer) Issue(ctx context.Context, creds Credentials, env Environment, req InvoiceRequest) (*InvoiceResult, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	log := logger.WithFields(logrus.Fields{"cuit": creds.CUIT, "doc_type": req.DocType, "pos": req.PointOfSale})

	sess, err := i.connect(ctx, creds, env, log)
	if err != nil {
		return nil, err
	}

	last, sess, err := i.queryLastNumber(ctx, sess, creds, env, req, log)
	if err != nil {
		return nil, err
	}
	next := last + 1
	log.Infof("last issued number was %d, issuing %d", last, next)

	inv := buildInvoice(req, next)
	if err := submitInvoice(ctx, sess, inv); err != nil {
		return nil, err
	}

	sess, err = i.requestApproval(ctx, sess, creds, env, inv, log)
	if err != nil {
		return nil, err
	}

	return evaluate(sess, req, inv)
}

// connect obtains a session, forcing a fresh sign-on on the second
// attempt. InvalidInput propagates unchanged: it is a request defect
// and retrying never helps.
func (i *Invoicer) connect(ctx context.Context, creds Credentials, env Environment, log *logrus.Entry) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		sess, err := i.connector.Connect(ctx, creds, env, attempt > 0)
		if err == nil {
			return sess, nil
		}
		if IsKind(err, InvalidInput) {
			return nil, err
		}
		log.WithError(err).Warnf("connect attempt %d/%d failed", attempt+1, connectAttempts)
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "authentication failed")
}

func (i *Invoicer) queryLastNumber(ctx context.Context, sess *Session, creds Credentials, env Environment, req InvoiceRequest, log *logrus.Entry) (int64, *Session, error) {
	for attempt := 1; ; attempt++ {
		last, err := sess.Remote.LastIssued(ctx, req.DocType, req.PointOfSale)
		if err == nil {
			return last, sess, nil
		}

		kind := Classify(err)
		log.WithError(err).Warnf("last-number query failed (%s, attempt %d/%d)", kind, attempt, queryAttempts)

		if kind.Recoverable() && attempt < queryAttempts {
			fresh, cerr := i.connector.Connect(ctx, creds, env, true)
			if cerr != nil {
				return 0, nil, cerr
			}
			sess = fresh
			continue
		}
		if kind == ConnectionReset {
			return 0, nil, newFault(ConnectionReset, "query last number", err)
		}
		return 0, nil, err
	}
}

// requestApproval asks for the approval code. After a forced reconnect
// the remote session has no memory of the staged invoice, so the whole
// build is replayed before retrying the call.
func (i *Invoicer) requestApproval(ctx context.Context, sess *Session, creds Credentials, env Environment, inv InvoiceFields, log *logrus.Entry) (*Session, error) {
	for attempt := 1; ; attempt++ {
		err := sess.Remote.RequestApproval(ctx)
		if err == nil {
			return sess, nil
		}

		kind := Classify(err)
		log.WithError(err).Warnf("approval request failed (%s, attempt %d/%d)", kind, attempt, approvalAttempts)

		if kind.Recoverable() && attempt < approvalAttempts {
			fresh, cerr := i.connector.Connect(ctx, creds, env, true)
			if cerr != nil {
				return nil, cerr
			}
			if err := submitInvoice(ctx, fresh, inv); err != nil {
				return nil, err
			}
			sess = fresh
			continue
		}
		if kind == ConnectionReset {
			return nil, newFault(ConnectionReset, "request approval", err)
		}
		return nil, err
	}
}

// buildInvoice computes the presented totals. For simplified document
// types the authority requires the total in the net field and every
// other amount zeroed, regardless of what the caller supplied.
func buildInvoice(req InvoiceRequest, number int64) InvoiceFields {
	net := req.Net
	vat := req.VAT
	notTaxed := decimal.Zero
	exempt := decimal.Zero

	if IsSimplifiedDocType(req.DocType) {
		net = req.Total
		vat = decimal.Zero
	}

	return InvoiceFields{
		Concept:         1,
		DocType:         req.DocType,
		PointOfSale:     req.PointOfSale,
		Number:          number,
		ReceiverDocType: req.ReceiverDocType,
		ReceiverDoc:     req.ReceiverDoc,
		Total:           req.Total,
		Net:             net,
		VAT:             vat,
		NotTaxed:        notTaxed,
		Exempt:          exempt,
		IssueDate:       time.Now().Format("20060102"),
		Associated:      req.Associated,
	}
}

// submitInvoice stages the header and, outside the simplified category,
// the tax line. Tax-line amounts go out rounded to 2 fractional digits.
func submitInvoice(ctx context.Context, sess *Session, inv InvoiceFields) error {
	if err := sess.Remote.CreateInvoice(ctx, inv); err != nil {
		return err
	}

	if inv.Net.IsPositive() && !IsSimplifiedDocType(inv.DocType) {
		base := inv.Net.Round(2)
		if inv.VAT.IsPositive() {
			return sess.Remote.AddTaxLine(ctx, RateCodeStandard, base, inv.VAT.Round(2))
		}
		return sess.Remote.AddTaxLine(ctx, RateCodeZero, base, decimal.Zero)
	}
	return nil
}

func evaluate(sess *Session, req InvoiceRequest, inv InvoiceFields) (*InvoiceResult, error) {
	r := sess.Remote
	if r.Result() != "A" {
		detail := joinNonEmpty(append(r.Observations(), r.Errors()...))
		return nil, &RejectionError{Result: r.Result(), Detail: detail}
	}

	logger.Infof("invoice authorized: number %d, approval code %s", r.IssuedNumber(), r.ApprovalCode())

	return &InvoiceResult{
		DocType:         req.DocType,
		PointOfSale:     req.PointOfSale,
		ReceiverDocType: req.ReceiverDocType,
		ReceiverDoc:     req.ReceiverDoc,
		VATConditionID:  req.VATConditionID,
		Total:           req.Total,
		Net:             req.Net,
		VAT:             req.VAT,
		Net105:          req.Net105,
		VAT105:          req.VAT105,
		Exempt:          req.Exempt,
		Result:          r.Result(),
		ApprovalCode:    r.ApprovalCode(),
		ApprovalExpiry:  r.ApprovalExpiry(),
		IssuedNumber:    r.IssuedNumber(),
		IssueDate:       time.Now().Format("2006-01-02"),
		Observations:    r.Observations(),
		Associated:      req.Associated,
	}, nil
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ". ")
}
