package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
)

// maxWebhookReadBytes caps how much of a notification body is buffered.
// The Bolsa verifier applies its own, usually smaller, ceiling.
const maxWebhookReadBytes = 1 << 20

func (s *Server) HandleMercadoPagoWebhook(c *gin.Context) {
	s.handleWebhook(c, paymentdomain.ProviderMercadoPago)
}

func (s *Server) HandleBolsaWebhook(c *gin.Context) {
	s.handleWebhook(c, paymentdomain.ProviderBolsa)
}

func (s *Server) handleWebhook(c *gin.Context, provider string) {
	in, err := readInbound(c)
	if err != nil {
		abortWebhook(c, paymentdomain.ErrInvalidPayload)
		return
	}

	result, err := s.paymentSvc.HandleWebhook(c.Request.Context(), provider, in)
	if err != nil {
		abortWebhook(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookResponse{OK: true, Ignored: result.Ignored})
}

// readInbound captures the raw request before anything parses it, so the
// signed bytes reach the verifier untouched.
func readInbound(c *gin.Context) (paymentdomain.Inbound, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookReadBytes+1))
	if err != nil {
		return paymentdomain.Inbound{}, err
	}
	return paymentdomain.Inbound{
		Body:          body,
		Header:        c.Request.Header,
		Query:         c.Request.URL.Query(),
		RemoteAddr:    c.Request.RemoteAddr,
		ContentLength: c.Request.ContentLength,
	}, nil
}
