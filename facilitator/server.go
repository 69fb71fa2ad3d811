package facilitator

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/niklabh/x402-rs"
)

// Router returns a gin engine wired to s's /verify, /settle, /supported, and
// /health endpoints.
func (s *Service) Router() *gin.Engine {
	log.Printf("facilitator: router starting up, rpc=%s, %d supported kind(s)", s.cfg.RPCURL, len(s.cfg.Supported))
	r := gin.Default()
	r.POST("/verify", s.handleVerify)
	r.POST("/settle", s.handleSettle)
	r.GET("/supported", s.handleSupported)
	r.GET("/health", s.handleHealth)
	return r
}

func (s *Service) handleVerify(c *gin.Context) {
	var req x402.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("facilitator: malformed verify request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := x402.DecodePaymentPayload(req.PaymentHeader)
	if err != nil {
		log.Printf("facilitator: malformed payment header on verify: %v", err)
		c.JSON(http.StatusOK, x402.VerificationResponse{IsValid: false, InvalidReason: err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.Verify(c.Request.Context(), *payload, req.PaymentRequirements))
}

func (s *Service) handleSettle(c *gin.Context) {
	var req x402.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("facilitator: malformed settle request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload, err := x402.DecodePaymentPayload(req.PaymentHeader)
	if err != nil {
		log.Printf("facilitator: malformed payment header on settle: %v", err)
		c.JSON(http.StatusBadRequest, x402.SettlementResponse{Error: err.Error()})
		return
	}

	resp := s.Settle(c.Request.Context(), *payload, req.PaymentRequirements)
	if resp.Error != "" {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.Supported())
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
