package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/facturalo/go-afip-facturador/afip"
	"github.com/facturalo/go-afip-facturador/afip/qr"
)

func (s *Server) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"test": "ok"})
}

// handleIssue runs one invoice issuance. Client defects and business
// rejections must be distinguishable from infrastructure failures:
// they require the caller to fix the request, not retry later.
func (s *Server) handleIssue(c *gin.Context) {
	var dto issueRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, errorDTO{Error: err.Error()})
		return
	}

	creds, req := dto.toDomain()
	log := logger.WithField("cuit", creds.CUIT)
	log.Info("issuing invoice")

	res, err := s.issuer.Issue(c.Request.Context(), creds, s.config.Environment, req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	qrURL, err := qr.Link(creds.CUIT, res)
	if err != nil {
		log.WithError(err).Warn("could not build verification QR link")
		qrURL = ""
	}

	c.JSON(http.StatusOK, toResponse(&dto, res, qrURL))
}

func (s *Server) writeError(c *gin.Context, err error) {
	log := logger.WithField("request_id", c.GetString("request_id"))

	var rejection *afip.RejectionError
	switch {
	case afip.IsKind(err, afip.InvalidInput):
		log.WithError(err).Info("request rejected as invalid input")
		c.JSON(http.StatusBadRequest, errorDTO{Error: err.Error()})

	case asRejection(err, &rejection):
		log.WithError(err).Info("authority declined the invoice")
		c.JSON(http.StatusUnprocessableEntity, errorDTO{Error: rejection.Error()})

	default:
		log.WithError(err).Error("issuance failed")
		c.JSON(http.StatusBadGateway, errorDTO{Error: err.Error()})
	}
}

func asRejection(err error, target **afip.RejectionError) bool {
	return errors.As(err, target)
}
