// Package httpapi wires the core risk-engine operations (spec.md §6) onto
// HTTP, the way the teacher's internal/handlers package sits in front of
// internal/services: thin gin handlers that decode a request, call the
// service layer, and encode a response. Session/cookie handling and
// credential verification are out of scope (spec.md §1's external
// collaborators) — this package only demonstrates the boundary with a
// placeholder JWT mint in session_stub.go.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"authrisk/internal/learning"
	"authrisk/internal/riskengine"
	"authrisk/internal/service"
)

// Handlers holds the single service dependency every route needs.
type Handlers struct {
	svc       *service.RiskService
	jwtSecret string
}

// NewHandlers builds Handlers bound to svc.
func NewHandlers(svc *service.RiskService, jwtSecret string) *Handlers {
	return &Handlers{svc: svc, jwtSecret: jwtSecret}
}

// AnalyzeLoginAttempt implements POST /risk/analyze: spec.md §6's
// analyze_login_attempt. It is total and always returns 200: a risk
// decision is never itself an HTTP error, per §7's "request path is never
// fatal" policy. Only a malformed JSON body is rejected.
func (h *Handlers) AnalyzeLoginAttempt(c *gin.Context) {
	var req AnalyzeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	requestID := uuid.New()
	actx, nlp, embedding := req.ToDomain(c.ClientIP(), c.GetHeader("User-Agent"), requestID, time.Now())

	result := h.svc.AnalyzeLoginAttempt(c.Request.Context(), actx, nlp, embedding)
	response := FromDomain(result)

	if result.Decision == riskengine.DecisionAllow {
		if token, err := mintSessionStub(h.jwtSecret, actx.Email, result); err == nil {
			c.Header("X-Session-Stub", token)
		}
	}

	c.JSON(http.StatusOK, response)
}

// ProvideFeedback implements POST /risk/feedback: spec.md §6's
// provide_feedback. Errors only for a malformed payload.
func (h *Handlers) ProvideFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	feedback := req.ToDomain(time.Now())
	if err := h.svc.ProvideFeedback(feedback); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid feedback", "message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"ack": true})
}

// GetAdaptiveThresholds implements GET /risk/thresholds/:user_id: spec.md
// §6's get_adaptive_thresholds.
func (h *Handlers) GetAdaptiveThresholds(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	thresholds := h.svc.GetAdaptiveThresholds(userID)
	c.JSON(http.StatusOK, thresholds)
}

// GetPerformanceMetrics implements GET /risk/metrics: spec.md §6's
// get_performance_metrics.
func (h *Handlers) GetPerformanceMetrics(c *gin.Context) {
	snapshot := h.svc.GetPerformanceMetrics()
	c.JSON(http.StatusOK, snapshot)
}

// RollbackModel implements POST /risk/models/rollback: spec.md §6's
// rollback_model.
func (h *Handlers) RollbackModel(c *gin.Context) {
	var req RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return
	}

	ok := h.svc.RollbackModel(learning.ModelType(req.ModelType), req.TargetVersionID, req.Reason)
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// HealthCheck mirrors the teacher's lightweight liveness endpoint.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "authrisk"})
}
