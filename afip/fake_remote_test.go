package afip

import (
	"context"

	"github.com/shopspring/decimal"
)

// fakeRemote is a scriptable RemoteClient: queued errors are consumed
// one per call, then calls succeed.
type fakeRemote struct {
	signOnCalls int
	signOnErrs  []error
	bindCalls   int
	bindErr     error
	session     *fakeSession
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{session: newFakeSession()}
}

func (f *fakeRemote) SignOn(_ context.Context, cuit, certPath, keyPath string, _ Environment) (Access, error) {
	f.signOnCalls++
	if len(f.signOnErrs) > 0 {
		err := f.signOnErrs[0]
		f.signOnErrs = f.signOnErrs[1:]
		if err != nil {
			return Access{}, err
		}
	}
	return Access{Token: "tok", Sign: "sig"}, nil
}

func (f *fakeRemote) BindSession(_ context.Context, cuit, token, sign string, _ Environment) (RemoteSession, error) {
	f.bindCalls++
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	return f.session, nil
}

type fakeTaxLine struct {
	rateCode int
	base     decimal.Decimal
	amount   decimal.Decimal
}

type fakeSession struct {
	lastValue int64
	lastErrs  []error
	lastCalls int

	created      []InvoiceFields
	taxLines     [][]fakeTaxLine
	approvalErrs []error
	approvals    int

	result       string
	observations []string
	errsList     []string
	cae          string
	expiry       string
}

func newFakeSession() *fakeSession {
	return &fakeSession{result: "A", cae: "71234567890123", expiry: "20261231"}
}

func (s *fakeSession) LastIssued(_ context.Context, docType, pointOfSale int) (int64, error) {
	s.lastCalls++
	if len(s.lastErrs) > 0 {
		err := s.lastErrs[0]
		s.lastErrs = s.lastErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return s.lastValue, nil
}

func (s *fakeSession) CreateInvoice(_ context.Context, inv InvoiceFields) error {
	s.created = append(s.created, inv)
	s.taxLines = append(s.taxLines, nil)
	return nil
}

func (s *fakeSession) AddTaxLine(_ context.Context, rateCode int, base, amount decimal.Decimal) error {
	i := len(s.taxLines) - 1
	s.taxLines[i] = append(s.taxLines[i], fakeTaxLine{rateCode, base, amount})
	return nil
}

func (s *fakeSession) RequestApproval(_ context.Context) error {
	s.approvals++
	if len(s.approvalErrs) > 0 {
		err := s.approvalErrs[0]
		s.approvalErrs = s.approvalErrs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSession) Result() string         { return s.result }
func (s *fakeSession) Observations() []string { return s.observations }
func (s *fakeSession) Errors() []string       { return s.errsList }
func (s *fakeSession) ApprovalCode() string   { return s.cae }
func (s *fakeSession) ApprovalExpiry() string { return s.expiry }

func (s *fakeSession) IssuedNumber() int64 {
	if len(s.created) == 0 {
		return 0
	}
	return s.created[len(s.created)-1].Number
}
