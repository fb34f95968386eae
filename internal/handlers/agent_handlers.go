package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"localclaw/internal/common"
	"localclaw/internal/models"
	"localclaw/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxHeartbeatBody = 1 << 10

// AgentHandlers handles HTTP requests for agent lifecycle operations
type AgentHandlers struct {
	deployService    services.DeployService
	admissionService services.AdmissionService
	pairingService   services.PairingService
	logger           *zap.Logger
}

// NewAgentHandlers creates a new agent handlers instance
func NewAgentHandlers(
	deployService services.DeployService,
	admissionService services.AdmissionService,
	pairingService services.PairingService,
	logger *zap.Logger,
) *AgentHandlers {
	return &AgentHandlers{
		deployService:    deployService,
		admissionService: admissionService,
		pairingService:   pairingService,
		logger:           logger,
	}
}

// DeployResponse is returned on a successful deployment
type DeployResponse struct {
	Success      bool   `json:"success"`
	AgentID      string `json:"agentId"`
	Port         string `json:"port"`
	DashboardURL string `json:"dashboardUrl"`
}

// HeartbeatRequest is the optional heartbeat body
type HeartbeatRequest struct {
	Increment bool `json:"increment"`
}

// HeartbeatResponse reports the admission decision. Remaining is an int or "unlimited".
type HeartbeatResponse struct {
	Status    string      `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Remaining interface{} `json:"remaining"`
}

// DeployAgent handles POST /v1/agents/deploy
// @Summary Deploy an agent
// @Tags agents
// @Accept json
// @Produce json
// @Param request body models.DeployRequest true "Deployment request"
// @Success 200 {object} DeployResponse
// @Failure 400 {object} common.ErrorResponse
// @Failure 401 {object} common.ErrorResponse
// @Failure 403 {object} common.ErrorResponse
// @Failure 404 {object} common.ErrorResponse
// @Failure 500 {object} common.ErrorResponse
// @Security BearerAuth
// @Router /v1/agents/deploy [post]
func (h *AgentHandlers) DeployAgent(c echo.Context) error {
	var req models.DeployRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}

	deployment, err := h.deployService.Deploy(c.Request().Context(), tenantID(c), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, DeployResponse{
		Success:      true,
		AgentID:      deployment.AgentID,
		Port:         deployment.Port,
		DashboardURL: deployment.DashboardURL,
	})
}

// Heartbeat handles POST /v1/agents/heartbeat
// @Summary Check or charge the daily quota
// @Tags agents
// @Accept json
// @Produce json
// @Param request body HeartbeatRequest false "Charge one quantum when increment is true"
// @Success 200 {object} HeartbeatResponse
// @Failure 401 {object} common.ErrorResponse
// @Failure 404 {object} common.ErrorResponse
// @Security BearerAuth
// @Router /v1/agents/heartbeat [post]
func (h *AgentHandlers) Heartbeat(c echo.Context) error {
	// An empty or malformed body is a plain check
	var req HeartbeatRequest
	if body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxHeartbeatBody)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			req.Increment = false
		}
	}

	decision, err := h.admissionService.CheckAndMaybeCharge(c.Request().Context(), tenantID(c), req.Increment)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	switch {
	case decision.Unlimited:
		return c.JSON(http.StatusOK, HeartbeatResponse{Status: "allowed", Remaining: "unlimited"})
	case decision.Allowed:
		return c.JSON(http.StatusOK, HeartbeatResponse{Status: "allowed", Remaining: decision.Remaining})
	default:
		return c.JSON(http.StatusOK, HeartbeatResponse{Status: "blocked", Reason: "daily_quota_exceeded", Remaining: 0})
	}
}

// PairingStream handles GET /v1/agents/pairing
// @Summary Stream the channel pairing terminal output
// @Tags agents
// @Produce plain
// @Param agentId query string true "Agent id"
// @Success 200 {string} string "chunked terminal output"
// @Failure 400 {object} common.ErrorResponse
// @Failure 404 {object} common.ErrorResponse
// @Failure 500 {object} common.ErrorResponse
// @Security BearerAuth
// @Router /v1/agents/pairing [get]
func (h *AgentHandlers) PairingStream(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.QueryParam("agentId")

	stream, err := h.pairingService.Open(ctx, tenantID(c), agentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	defer stream.Close()

	// The exec session outlives the request unless detached on disconnect
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stop:
		}
	}()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			h.logger.Warn("Pairing stream ended with error", zap.String("agent_id", agentID), zap.Error(err))
			return nil
		}
		if _, err := res.Write(chunk); err != nil {
			h.logger.Debug("Pairing client went away", zap.String("agent_id", agentID), zap.Error(err))
			return nil
		}
		res.Flush()
	}
}
