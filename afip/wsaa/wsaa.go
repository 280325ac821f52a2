// Package wsaa implements the authority's authentication service
// (WSAA): it builds the login ticket request, signs it CMS, posts the
// loginCms call and parses the returned access ticket.
package wsaa

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.mozilla.org/pkcs7"

	"github.com/facturalo/go-afip-facturador/afip"
	"github.com/facturalo/go-afip-facturador/afip/keys"
	"github.com/facturalo/go-afip-facturador/afip/soap"
)

var logger = logrus.WithField("component", "wsaa")

// ServiceID is the AFIP web service a ticket grants access to.
const ServiceID = "wsfe"

// Tickets are requested with a backdated generation time; the
// authority rejects requests whose clock runs ahead of its own.
const (
	traBackdate = 10 * time.Minute
	traLifetime = 10 * time.Minute
)

type Service struct {
	soap *soap.Client
}

func New(soapClient *soap.Client) *Service {
	return &Service{soap: soapClient}
}

// Login signs on against the WSAA endpoint for env and persists the
// raw access ticket under ticketDir so it can be salvaged later when
// the authority reports a still-active ticket.
func (s *Service) Login(ctx context.Context, certPath, keyPath string, env afip.Environment, ticketDir string) (afip.Access, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return afip.Access{}, errors.Wrap(err, "read certificate")
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return afip.Access{}, errors.Wrap(err, "read private key")
	}

	cert, err := keys.ParseCertificatePEM(certPEM)
	if err != nil {
		return afip.Access{}, err
	}
	signer, err := keys.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return afip.Access{}, err
	}

	tra, uniqueID := buildTRA(time.Now())
	cms, err := signCMS(tra, cert, signer)
	if err != nil {
		return afip.Access{}, err
	}

	envelope, err := loginEnvelope(cms)
	if err != nil {
		return afip.Access{}, err
	}

	logger.Debugf("loginCms against %s", env.WSAAURL())
	doc, err := s.soap.Post(ctx, env.WSAAURL(), "", envelope)
	if err != nil {
		return afip.Access{}, err
	}

	ret := doc.FindElement("//loginCmsReturn")
	if ret == nil {
		return afip.Access{}, errors.New("loginCms response has no loginCmsReturn")
	}

	access, raw, err := ParseTicketResponse(ret.Text())
	if err != nil {
		return afip.Access{}, err
	}

	persistTicket(ticketDir, uniqueID, raw)
	return access, nil
}

// buildTRA renders the loginTicketRequest document.
func buildTRA(now time.Time) ([]byte, int64) {
	uniqueID := now.Unix()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	req := doc.CreateElement("loginTicketRequest")
	req.CreateAttr("version", "1.0")

	header := req.CreateElement("header")
	header.CreateElement("uniqueId").SetText(fmt.Sprintf("%d", uniqueID))
	header.CreateElement("generationTime").SetText(now.Add(-traBackdate).Format(time.RFC3339))
	header.CreateElement("expirationTime").SetText(now.Add(traLifetime).Format(time.RFC3339))

	req.CreateElement("service").SetText(ServiceID)

	out, _ := doc.WriteToBytes()
	return out, uniqueID
}

// signCMS wraps the request in a CMS SignedData structure, the
// envelope format loginCms expects, and returns it base64 encoded.
func signCMS(tra []byte, cert *x509.Certificate, signer crypto.Signer) (string, error) {
	sd, err := pkcs7.NewSignedData(tra)
	if err != nil {
		return "", errors.Wrap(err, "prepare CMS")
	}
	if err := sd.AddSigner(cert, signer, pkcs7.SignerInfoConfig{}); err != nil {
		return "", errors.Wrap(err, "sign CMS")
	}
	der, err := sd.Finish()
	if err != nil {
		return "", errors.Wrap(err, "encode CMS")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func loginEnvelope(cmsBase64 string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", "http://schemas.xmlsoap.org/soap/envelope/")
	env.CreateAttr("xmlns:wsaa", "http://wsaa.view.sua.dvadac.desein.afip.gov")

	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")
	login := body.CreateElement("wsaa:loginCms")
	login.CreateElement("wsaa:in0").SetText(cmsBase64)

	return doc.WriteToBytes()
}

// ParseTicketResponse extracts credentials from a loginTicketResponse
// document. Returns the parsed access pair plus the raw XML for
// persistence.
func ParseTicketResponse(raw string) (afip.Access, string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return afip.Access{}, "", errors.Wrap(err, "parse loginTicketResponse")
	}

	token := doc.FindElement("//credentials/token")
	sign := doc.FindElement("//credentials/sign")
	if token == nil || sign == nil {
		return afip.Access{}, "", errors.New("loginTicketResponse has no credentials")
	}

	access := afip.Access{Token: token.Text(), Sign: sign.Text()}
	if exp := doc.FindElement("//header/expirationTime"); exp != nil {
		if ts, err := time.Parse(time.RFC3339, exp.Text()); err == nil {
			access.Expiry = ts
		}
	}
	return access, raw, nil
}

func persistTicket(dir string, uniqueID int64, raw string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.WithError(err).Warn("could not create ticket cache directory")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("TA-%d.xml", uniqueID))
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		logger.WithError(err).Warn("could not persist access ticket")
		return
	}
	logger.Debugf("access ticket persisted to %s", path)
}
