package afip

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoicer(t *testing.T, remote *fakeRemote) *Invoicer {
	t.Helper()
	return NewInvoicer(NewConnector(remote, t.TempDir()), 0)
}

func standardRequest() InvoiceRequest {
	return InvoiceRequest{
		DocType:         1,
		PointOfSale:     1,
		ReceiverDocType: 80,
		ReceiverDoc:     "20123456789",
		VATConditionID:  1,
		Total:           decimal.NewFromFloat(1210.00),
		Net:             decimal.NewFromFloat(1000.00),
		VAT:             decimal.NewFromFloat(210.00),
	}
}

func TestIssueStandardInvoiceAttachesTaxLine(t *testing.T) {
	remote := newFakeRemote()
	remote.session.lastValue = 7
	inv := newTestInvoicer(t, remote)

	res, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.NoError(t, err)

	require.Len(t, remote.session.created, 1)
	built := remote.session.created[0]
	assert.True(t, built.Net.Equal(decimal.NewFromFloat(1000.00)), "net: %s", built.Net)
	assert.True(t, built.VAT.Equal(decimal.NewFromFloat(210.00)), "vat: %s", built.VAT)
	assert.EqualValues(t, 8, built.Number)

	require.Len(t, remote.session.taxLines[0], 1)
	line := remote.session.taxLines[0][0]
	assert.Equal(t, RateCodeStandard, line.rateCode)
	assert.True(t, line.base.Equal(decimal.NewFromFloat(1000.00)))
	assert.True(t, line.amount.Equal(decimal.NewFromFloat(210.00)))

	assert.EqualValues(t, 8, res.IssuedNumber)
	assert.Equal(t, "A", res.Result)
	assert.NotEmpty(t, res.ApprovalCode)
}

func TestIssueSimplifiedDocTypeForcesNetAndSkipsTax(t *testing.T) {
	remote := newFakeRemote()
	remote.session.lastValue = 0
	inv := newTestInvoicer(t, remote)

	req := standardRequest()
	req.DocType = 11

	res, err := inv.Issue(context.Background(), validCredentials(t), Homologation, req)
	require.NoError(t, err)

	require.Len(t, remote.session.created, 1)
	built := remote.session.created[0]
	assert.True(t, built.Net.Equal(decimal.NewFromFloat(1210.00)), "net must equal total, got %s", built.Net)
	assert.True(t, built.VAT.IsZero(), "vat must be force-zeroed, got %s", built.VAT)
	assert.Empty(t, remote.session.taxLines[0], "no tax line for simplified document types")

	// the response still echoes what the caller sent
	assert.True(t, res.Net.Equal(decimal.NewFromFloat(1000.00)))
	assert.True(t, res.VAT.Equal(decimal.NewFromFloat(210.00)))
}

func TestIssueZeroVATAttachesZeroRateLine(t *testing.T) {
	remote := newFakeRemote()
	inv := newTestInvoicer(t, remote)

	req := standardRequest()
	req.Total = decimal.NewFromFloat(1000.00)
	req.VAT = decimal.Zero

	_, err := inv.Issue(context.Background(), validCredentials(t), Homologation, req)
	require.NoError(t, err)

	require.Len(t, remote.session.taxLines[0], 1)
	line := remote.session.taxLines[0][0]
	assert.Equal(t, RateCodeZero, line.rateCode)
	assert.True(t, line.amount.IsZero())
}

func TestIssueLastNumberRetryAfterConnectionReset(t *testing.T) {
	remote := newFakeRemote()
	remote.session.lastValue = 42
	remote.session.lastErrs = []error{errors.New("read tcp: connection reset by peer")}
	inv := newTestInvoicer(t, remote)

	res, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.NoError(t, err)

	assert.EqualValues(t, 43, res.IssuedNumber)
	assert.Equal(t, 2, remote.signOnCalls, "initial sign-on plus forced reconnect")
	assert.Equal(t, 2, remote.session.lastCalls)
}

func TestIssueLastNumberBudgetExhaustedFailsAsConnectionReset(t *testing.T) {
	remote := newFakeRemote()
	remote.session.lastErrs = []error{
		errors.New("read tcp: connection reset by peer"),
		errors.New("read tcp: connection reset by peer"),
	}
	inv := newTestInvoicer(t, remote)

	_, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.Error(t, err)
	assert.True(t, IsKind(err, ConnectionReset))
	assert.Equal(t, 2, remote.session.lastCalls)
}

func TestIssueReplaysBuildAfterReconnectDuringApproval(t *testing.T) {
	remote := newFakeRemote()
	remote.session.lastValue = 10
	remote.session.approvalErrs = []error{errors.New("read tcp: connection reset by peer")}
	inv := newTestInvoicer(t, remote)

	res, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.NoError(t, err)

	// the full build is replayed against the new session, with
	// identical header fields
	require.Len(t, remote.session.created, 2)
	assert.Equal(t, remote.session.created[0], remote.session.created[1])
	require.Len(t, remote.session.taxLines[1], 1)
	assert.Equal(t, remote.session.taxLines[0], remote.session.taxLines[1])

	assert.EqualValues(t, 11, res.IssuedNumber)
	assert.Equal(t, 2, remote.signOnCalls)
	assert.Equal(t, 2, remote.session.approvals)
}

func TestIssueApprovalBudgetExhausted(t *testing.T) {
	remote := newFakeRemote()
	remote.session.approvalErrs = []error{
		errors.New("token validation failed"),
		errors.New("token validation failed"),
	}
	inv := newTestInvoicer(t, remote)

	_, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.Error(t, err)
	assert.False(t, IsKind(err, ConnectionReset))
	assert.Equal(t, 2, remote.session.approvals)
}

func TestIssueBusinessRejection(t *testing.T) {
	remote := newFakeRemote()
	remote.session.result = "R"
	remote.session.observations = []string{"Missing field X"}
	inv := newTestInvoicer(t, remote)

	_, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.Error(t, err)

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Contains(t, rejection.Detail, "Missing field X")
	assert.False(t, IsKind(err, ConnectionReset))
}

func TestIssueInvalidInputPropagatesWithoutRetry(t *testing.T) {
	remote := newFakeRemote()
	inv := newTestInvoicer(t, remote)

	creds := validCredentials(t)
	creds.KeyPEM = "garbage"

	_, err := inv.Issue(context.Background(), creds, Homologation, standardRequest())
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidInput))
	assert.Zero(t, remote.signOnCalls)
}

func TestIssueRetriesConnectOnceWithForce(t *testing.T) {
	remote := newFakeRemote()
	// unrecoverable on the first connect; the issuance loop forces a
	// second, fresh attempt before giving up
	remote.signOnErrs = []error{errors.New("first attempt exploded"), nil}
	inv := newTestInvoicer(t, remote)

	_, err := inv.Issue(context.Background(), validCredentials(t), Homologation, standardRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, remote.signOnCalls)
}
