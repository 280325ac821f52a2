// Package wsfe implements the authority's electronic invoicing service
// (WSFEv1). A Session mirrors the remote protocol's shape: the invoice
// header and tax lines are staged locally and only RequestApproval
// submits them in one FECAESolicitar call.
package wsfe

import (
	"context"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/facturalo/go-afip-facturador/afip"
	"github.com/facturalo/go-afip-facturador/afip/soap"
)

var logger = logrus.WithField("component", "wsfe")

const ns = "http://ar.gov.afip.dif.FEV1/"

type Service struct {
	soap *soap.Client
}

func New(soapClient *soap.Client) *Service {
	return &Service{soap: soapClient}
}

// Bind opens a session for the token/signature pair. FEDummy is called
// first so a dead endpoint or stale ticket surfaces here, not in the
// middle of a submission.
func (s *Service) Bind(ctx context.Context, cuit, token, sign string, env afip.Environment) (*Session, error) {
	sess := &Session{
		svc:   s,
		cuit:  cuit,
		token: token,
		sign:  sign,
		env:   env,
	}
	if err := sess.dummy(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Session is one bound WSFEv1 session. Not safe for concurrent use;
// each issuance runs on its own worker.
type Session struct {
	svc   *Service
	cuit  string
	token string
	sign  string
	env   afip.Environment

	pending  *afip.InvoiceFields
	taxLines []taxLine

	result       string
	observations []string
	errs         []string
	approvalCode string
	expiry       string
	issuedNumber int64
}

type taxLine struct {
	rateCode int
	base     decimal.Decimal
	amount   decimal.Decimal
}

var _ afip.RemoteSession = (*Session)(nil)

func (s *Session) dummy(ctx context.Context) error {
	envelope := s.envelope("FEDummy", func(op *etree.Element) {})
	doc, err := s.post(ctx, "FEDummy", envelope)
	if err != nil {
		return err
	}
	if app := doc.FindElement("//AppServer"); app != nil && app.Text() != "OK" {
		return errors.Errorf("invoicing service not available: AppServer=%s", app.Text())
	}
	return nil
}

// LastIssued queries FECompUltimoAutorizado.
func (s *Session) LastIssued(ctx context.Context, docType, pointOfSale int) (int64, error) {
	envelope := s.envelope("FECompUltimoAutorizado", func(op *etree.Element) {
		s.auth(op)
		op.CreateElement("ar:PtoVta").SetText(strconv.Itoa(pointOfSale))
		op.CreateElement("ar:CbteTipo").SetText(strconv.Itoa(docType))
	})

	doc, err := s.post(ctx, "FECompUltimoAutorizado", envelope)
	if err != nil {
		return 0, err
	}
	if err := serviceErrors(doc); err != nil {
		return 0, err
	}

	nro := doc.FindElement("//CbteNro")
	if nro == nil {
		return 0, errors.New("FECompUltimoAutorizado response has no CbteNro")
	}
	last, err := strconv.ParseInt(nro.Text(), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse CbteNro")
	}
	return last, nil
}

// CreateInvoice stages the header. Nothing goes on the wire yet.
func (s *Session) CreateInvoice(_ context.Context, inv afip.InvoiceFields) error {
	s.pending = &inv
	s.taxLines = nil
	s.result = ""
	s.observations = nil
	s.errs = nil
	s.approvalCode = ""
	s.expiry = ""
	s.issuedNumber = 0
	return nil
}

// AddTaxLine stages one AlicIva entry for the pending invoice.
func (s *Session) AddTaxLine(_ context.Context, rateCode int, base, amount decimal.Decimal) error {
	if s.pending == nil {
		return errors.New("no pending invoice to attach tax to")
	}
	s.taxLines = append(s.taxLines, taxLine{rateCode: rateCode, base: base, amount: amount})
	return nil
}

// RequestApproval submits the staged invoice via FECAESolicitar and
// records the authority's verdict on the session.
func (s *Session) RequestApproval(ctx context.Context) error {
	if s.pending == nil {
		return errors.New("no pending invoice to request approval for")
	}
	inv := *s.pending

	envelope := s.envelope("FECAESolicitar", func(op *etree.Element) {
		s.auth(op)

		req := op.CreateElement("ar:FeCAEReq")
		cab := req.CreateElement("ar:FeCabReq")
		cab.CreateElement("ar:CantReg").SetText("1")
		cab.CreateElement("ar:PtoVta").SetText(strconv.Itoa(inv.PointOfSale))
		cab.CreateElement("ar:CbteTipo").SetText(strconv.Itoa(inv.DocType))

		det := req.CreateElement("ar:FeDetReq").CreateElement("ar:FECAEDetRequest")
		det.CreateElement("ar:Concepto").SetText(strconv.Itoa(inv.Concept))
		det.CreateElement("ar:DocTipo").SetText(strconv.Itoa(inv.ReceiverDocType))
		det.CreateElement("ar:DocNro").SetText(inv.ReceiverDoc)
		det.CreateElement("ar:CbteDesde").SetText(strconv.FormatInt(inv.Number, 10))
		det.CreateElement("ar:CbteHasta").SetText(strconv.FormatInt(inv.Number, 10))
		det.CreateElement("ar:CbteFch").SetText(inv.IssueDate)
		det.CreateElement("ar:ImpTotal").SetText(inv.Total.String())
		det.CreateElement("ar:ImpTotConc").SetText(inv.NotTaxed.String())
		det.CreateElement("ar:ImpNeto").SetText(inv.Net.String())
		det.CreateElement("ar:ImpOpEx").SetText(inv.Exempt.String())
		det.CreateElement("ar:ImpIVA").SetText(inv.VAT.String())
		det.CreateElement("ar:ImpTrib").SetText("0")
		det.CreateElement("ar:MonId").SetText("PES")
		det.CreateElement("ar:MonCotiz").SetText("1")

		if inv.Associated != nil {
			assoc := det.CreateElement("ar:CbtesAsoc").CreateElement("ar:CbteAsoc")
			assoc.CreateElement("ar:Tipo").SetText(strconv.Itoa(inv.Associated.DocType))
			assoc.CreateElement("ar:PtoVta").SetText(strconv.Itoa(inv.Associated.PointOfSale))
			assoc.CreateElement("ar:Nro").SetText(strconv.FormatInt(inv.Associated.Number, 10))
			if inv.Associated.Date != "" {
				assoc.CreateElement("ar:CbteFch").SetText(inv.Associated.Date)
			}
		}

		if len(s.taxLines) > 0 {
			iva := det.CreateElement("ar:Iva")
			for _, line := range s.taxLines {
				alic := iva.CreateElement("ar:AlicIva")
				alic.CreateElement("ar:Id").SetText(strconv.Itoa(line.rateCode))
				alic.CreateElement("ar:BaseImp").SetText(line.base.StringFixed(2))
				alic.CreateElement("ar:Importe").SetText(line.amount.StringFixed(2))
			}
		}
	})

	doc, err := s.post(ctx, "FECAESolicitar", envelope)
	if err != nil {
		return err
	}

	// A response with no verdict at all is a call failure; with a
	// verdict present, the Errors block belongs to the rejection
	// detail and is read by the caller via Errors().
	if doc.FindElement("//FECAEDetResponse/Resultado") == nil &&
		doc.FindElement("//FeCabResp/Resultado") == nil {
		if err := serviceErrors(doc); err != nil {
			return err
		}
		return errors.New("FECAESolicitar response has no Resultado")
	}

	s.readVerdict(doc, inv.Number)
	return nil
}

func (s *Session) readVerdict(doc *etree.Document, number int64) {
	if e := doc.FindElement("//FeDetResp/FECAEDetResponse/Resultado"); e != nil {
		s.result = e.Text()
	} else if e := doc.FindElement("//FeCabResp/Resultado"); e != nil {
		s.result = e.Text()
	}
	if e := doc.FindElement("//FECAEDetResponse/CAE"); e != nil {
		s.approvalCode = e.Text()
	}
	if e := doc.FindElement("//FECAEDetResponse/CAEFchVto"); e != nil {
		s.expiry = e.Text()
	}

	s.issuedNumber = number
	if e := doc.FindElement("//FECAEDetResponse/CbteDesde"); e != nil {
		if n, err := strconv.ParseInt(e.Text(), 10, 64); err == nil {
			s.issuedNumber = n
		}
	}

	for _, obs := range doc.FindElements("//Observaciones/Obs/Msg") {
		s.observations = append(s.observations, obs.Text())
	}
	for _, errMsg := range doc.FindElements("//Errors/Err/Msg") {
		s.errs = append(s.errs, errMsg.Text())
	}
}

func (s *Session) Result() string         { return s.result }
func (s *Session) Observations() []string { return s.observations }
func (s *Session) Errors() []string       { return s.errs }
func (s *Session) ApprovalCode() string   { return s.approvalCode }
func (s *Session) ApprovalExpiry() string { return s.expiry }
func (s *Session) IssuedNumber() int64    { return s.issuedNumber }

func (s *Session) auth(op *etree.Element) {
	auth := op.CreateElement("ar:Auth")
	auth.CreateElement("ar:Token").SetText(s.token)
	auth.CreateElement("ar:Sign").SetText(s.sign)
	auth.CreateElement("ar:Cuit").SetText(s.cuit)
}

func (s *Session) envelope(operation string, fill func(op *etree.Element)) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://schemas.xmlsoap.org/soap/envelope/")
	env.CreateAttr("xmlns:ar", ns)

	body := env.CreateElement("soap:Body")
	op := body.CreateElement("ar:" + operation)
	fill(op)

	out, _ := doc.WriteToBytes()
	return out
}

func (s *Session) post(ctx context.Context, operation string, envelope []byte) (*etree.Document, error) {
	return s.svc.soap.Post(ctx, s.env.WSFEURL(), ns+operation, envelope)
}

// serviceErrors turns the WSFE Errors block into a plain error so the
// classifier sees the authority's message text.
func serviceErrors(doc *etree.Document) error {
	errs := doc.FindElements("//Errors/Err")
	if len(errs) == 0 {
		return nil
	}
	var msgs []string
	for _, e := range errs {
		code := ""
		if c := e.FindElement("Code"); c != nil {
			code = c.Text()
		}
		msg := ""
		if m := e.FindElement("Msg"); m != nil {
			msg = m.Text()
		}
		msgs = append(msgs, code+": "+msg)
		logger.Warnf("service error %s: %s", code, msg)
	}
	return errors.New("authority error: " + strings.Join(msgs, "; "))
}
