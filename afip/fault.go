package afip

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/go-faster/errors"
)

// FailureKind drives every retry decision in the connector and invoicer.
type FailureKind int

const (
	Unrecoverable FailureKind = iota
	InvalidInput
	TokenOrClockSkew
	TransportOrTLS
	ConnectionReset
	AlreadyAuthenticated
)

func (k FailureKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid-input"
	case TokenOrClockSkew:
		return "token-or-clock-skew"
	case TransportOrTLS:
		return "transport-or-tls"
	case ConnectionReset:
		return "connection-reset"
	case AlreadyAuthenticated:
		return "already-authenticated"
	}
	return "unrecoverable"
}

// Recoverable reports whether the kind justifies clearing the ticket
// cache and retrying sign-on once.
func (k FailureKind) Recoverable() bool {
	return k == TokenOrClockSkew || k == TransportOrTLS || k == ConnectionReset
}

// Fault is a failure tagged with its classification.
type Fault struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func newFault(kind FailureKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind FailureKind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}

// RejectionError means the authority processed the invoice and declined
// it. Never retried: resubmission would be a new transaction with a new
// invoice number.
type RejectionError struct {
	Result string
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("authority rejected the invoice (result %q): %s", e.Result, e.Detail)
}

// Marker sets for text-based classification. The authority and its SOAP
// stack expose no error taxonomy, so the detail string is the only
// signal; both the Spanish strings AFIP emits and their translations
// are matched. Keep every heuristic here, never at call sites.
var (
	alreadyAuthMarkers = []string{
		"already authenticated",
		"alreadyauthenticated",
		"ya posee un ta valido",
	}
	tokenMarkers = []string{
		"token",
		"validation", "validacion",
		"dates", "fechas",
		"generation time", "gentime",
		"expiration time", "exptime",
	}
	tlsMarkers = []string{
		"ssl", "certificate", "handshake",
	}
	connMarkers = []string{
		"connection reset",
		"not subscriptable",
	}
)

// Classify maps a raised failure into a FailureKind. Structural error
// types are inspected before falling back to text sniffing.
func Classify(err error) FailureKind {
	if err == nil {
		return Unrecoverable
	}

	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}

	msg := strings.ToLower(err.Error())

	if containsAny(msg, alreadyAuthMarkers) {
		return AlreadyAuthenticated
	}
	if containsAny(msg, tokenMarkers) {
		return TokenOrClockSkew
	}
	if isTLSError(err) || containsAny(msg, tlsMarkers) {
		return TransportOrTLS
	}
	if isConnectionError(err) || containsAny(msg, connMarkers) {
		return ConnectionReset
	}
	return Unrecoverable
}

func containsAny(msg string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func isTLSError(err error) bool {
	var (
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		authErr    x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &invalidErr)
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	// a timed-out step is treated as failed, never partially succeeded
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
