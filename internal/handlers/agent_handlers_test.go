package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"localclaw/internal/containers"
	"localclaw/internal/metrics"
	"localclaw/internal/models"
	"localclaw/internal/services"
	"localclaw/testhelpers"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type AgentHandlersTestSuite struct {
	suite.Suite
	echo      *echo.Echo
	deploy    *MockDeployService
	admission *MockAdmissionService
	backend   *testhelpers.FakeBackend
	handlers  *AgentHandlers
}

func (suite *AgentHandlersTestSuite) SetupTest() {
	suite.echo = echo.New()
	suite.deploy = &MockDeployService{}
	suite.deploy.Test(suite.T())
	suite.admission = &MockAdmissionService{}
	suite.admission.Test(suite.T())
	suite.backend = testhelpers.NewFakeBackend()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	pairing := services.NewPairingService(suite.backend, []string{"agent-", "telebot-"}, time.Second, m, zap.NewNop())
	suite.handlers = NewAgentHandlers(suite.deploy, suite.admission, pairing, zap.NewNop())
}

func (suite *AgentHandlersTestSuite) TearDownTest() {
	suite.deploy.AssertExpectations(suite.T())
	suite.admission.AssertExpectations(suite.T())
}

func TestAgentHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(AgentHandlersTestSuite))
}

func (suite *AgentHandlersTestSuite) TestDeploySuccess() {
	body := `{"agentName":"Support Bot","provider":"local","channels":{"telegram":"123456:ABC"}}`
	suite.deploy.On("Deploy", mock.Anything, "tenant-1", mock.MatchedBy(func(r *models.DeployRequest) bool {
		return r.AgentName == "Support Bot" && r.Provider == "local" && r.Channels.Telegram == "123456:ABC"
	})).Return(&models.Deployment{
		AgentID:      "agent-support-bot-x1y2z3",
		Port:         "32768",
		DashboardURL: "http://localhost:32768/?token=t",
	}, nil).Once()

	c, rec := newContext(suite.echo, http.MethodPost, "/v1/agents/deploy", body, "tenant-1")
	assert.NoError(suite.T(), suite.handlers.DeployAgent(c))
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(),
		`{"success":true,"agentId":"agent-support-bot-x1y2z3","port":"32768","dashboardUrl":"http://localhost:32768/?token=t"}`,
		rec.Body.String())
}

func (suite *AgentHandlersTestSuite) TestDeployErrorMapping() {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{&services.ValidationError{Field: "provider", Message: "unsupported"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{services.ErrQuotaExceeded, http.StatusForbidden, "QUOTA_EXCEEDED"},
		{fmt.Errorf("load: %w", services.ErrTenantNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: pull failed", services.ErrProvisioningFailed), http.StatusInternalServerError, "SERVER_ERROR"},
	}

	for _, tc := range cases {
		suite.deploy.On("Deploy", mock.Anything, "tenant-1", mock.Anything).Return(nil, tc.err).Once()

		c, rec := newContext(suite.echo, http.MethodPost, "/v1/agents/deploy", `{"agentName":"a","provider":"local"}`, "tenant-1")
		assert.NoError(suite.T(), suite.handlers.DeployAgent(c))
		assert.Equal(suite.T(), tc.status, rec.Code, tc.err.Error())
		assert.Contains(suite.T(), rec.Body.String(), `"success":false`)
		assert.Contains(suite.T(), rec.Body.String(), `"code":"`+tc.code+`"`)
	}
}

func (suite *AgentHandlersTestSuite) TestDeployProvisioningMessageIsSurfaced() {
	err := fmt.Errorf("%w: image pull: manifest unknown", services.ErrProvisioningFailed)
	suite.deploy.On("Deploy", mock.Anything, "tenant-1", mock.Anything).Return(nil, err).Once()

	c, rec := newContext(suite.echo, http.MethodPost, "/v1/agents/deploy", `{"agentName":"a","provider":"local"}`, "tenant-1")
	assert.NoError(suite.T(), suite.handlers.DeployAgent(c))
	assert.Contains(suite.T(), rec.Body.String(), "manifest unknown")
}

func (suite *AgentHandlersTestSuite) TestHeartbeatResponses() {
	cases := []struct {
		body     string
		charge   bool
		decision *models.AdmissionDecision
		want     string
	}{
		{`{"increment":true}`, true, &models.AdmissionDecision{Allowed: true, Remaining: 3540}, `{"status":"allowed","remaining":3540}`},
		{``, false, &models.AdmissionDecision{Allowed: true, Remaining: 3600}, `{"status":"allowed","remaining":3600}`},
		{`not json`, false, &models.AdmissionDecision{Allowed: true, Unlimited: true}, `{"status":"allowed","remaining":"unlimited"}`},
		{`{"increment":true}`, true, &models.AdmissionDecision{}, `{"status":"blocked","reason":"daily_quota_exceeded","remaining":0}`},
	}

	for _, tc := range cases {
		suite.admission.On("CheckAndMaybeCharge", mock.Anything, "tenant-1", tc.charge).Return(tc.decision, nil).Once()

		c, rec := newContext(suite.echo, http.MethodPost, "/v1/agents/heartbeat", tc.body, "tenant-1")
		assert.NoError(suite.T(), suite.handlers.Heartbeat(c))
		assert.Equal(suite.T(), http.StatusOK, rec.Code)
		assert.JSONEq(suite.T(), tc.want, rec.Body.String())
	}
}

func (suite *AgentHandlersTestSuite) TestHeartbeatErrors() {
	suite.admission.On("CheckAndMaybeCharge", mock.Anything, "", false).Return(nil, services.ErrUnauthorized).Once()
	c, rec := newContext(suite.echo, http.MethodPost, "/v1/agents/heartbeat", "", "")
	assert.NoError(suite.T(), suite.handlers.Heartbeat(c))
	assert.Equal(suite.T(), http.StatusUnauthorized, rec.Code)

	suite.admission.On("CheckAndMaybeCharge", mock.Anything, "ghost", false).Return(nil, services.ErrTenantNotFound).Once()
	c, rec = newContext(suite.echo, http.MethodPost, "/v1/agents/heartbeat", "", "ghost")
	assert.NoError(suite.T(), suite.handlers.Heartbeat(c))
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *AgentHandlersTestSuite) TestPairingStreamsOutput() {
	owned := suite.backend.AddContainer("agent-a", true)
	owned.Spec.Labels = map[string]string{"localclaw.tenant-id": "tenant-1"}
	suite.backend.ExecFunc = func(id string, spec containers.ExecSpec) (io.ReadCloser, error) {
		if spec.Tty {
			return io.NopCloser(strings.NewReader("scan this QR\r\n")), nil
		}
		return io.NopCloser(strings.NewReader("doctor ok")), nil
	}

	c, rec := newContext(suite.echo, http.MethodGet, "/v1/agents/pairing?agentId=agent-a", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "text/plain; charset=utf-8", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(suite.T(), "scan this QR\r\n", rec.Body.String())
	assert.True(suite.T(), rec.Flushed)
}

func (suite *AgentHandlersTestSuite) TestPairingStreamErrorBecomesTrailer() {
	suite.backend.AddContainer("agent-a", true)
	suite.backend.ExecFunc = func(id string, spec containers.ExecSpec) (io.ReadCloser, error) {
		if spec.Tty {
			return io.NopCloser(io.MultiReader(strings.NewReader("partial"), errReader{errors.New("connection reset")})), nil
		}
		return io.NopCloser(strings.NewReader("")), nil
	}

	c, rec := newContext(suite.echo, http.MethodGet, "/v1/agents/pairing?agentId=agent-a", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), "partial\r\n[pairing stream error: connection reset]\r\n", rec.Body.String())
}

func (suite *AgentHandlersTestSuite) TestPairingPreStreamErrors() {
	c, rec := newContext(suite.echo, http.MethodGet, "/v1/agents/pairing", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	c, rec = newContext(suite.echo, http.MethodGet, "/v1/agents/pairing?agentId=agent-missing", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)

	other := suite.backend.AddContainer("agent-b", true)
	other.Spec.Labels = map[string]string{"localclaw.tenant-id": "tenant-2"}
	c, rec = newContext(suite.echo, http.MethodGet, "/v1/agents/pairing?agentId=agent-b", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)

	suite.backend.ListErr = errors.New("daemon down")
	c, rec = newContext(suite.echo, http.MethodGet, "/v1/agents/pairing?agentId=agent-b", "", "tenant-1")
	assert.NoError(suite.T(), suite.handlers.PairingStream(c))
	assert.Equal(suite.T(), http.StatusInternalServerError, rec.Code)
	assert.Contains(suite.T(), rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
