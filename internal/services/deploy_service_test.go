package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"localclaw/internal/caching"
	"localclaw/internal/metrics"
	"localclaw/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type DeployServiceTestSuite struct {
	suite.Suite
	admission   *MockAdmissionService
	reaper      *MockReaperService
	models      *MockModelService
	provisioner *MockProvisionerService
	archive     *MockArchiveService
	metrics     *metrics.Metrics
	service     DeployService
	ctx         context.Context
}

func (suite *DeployServiceTestSuite) SetupTest() {
	suite.admission = &MockAdmissionService{}
	suite.reaper = &MockReaperService{}
	suite.models = &MockModelService{}
	suite.provisioner = &MockProvisionerService{}
	suite.archive = &MockArchiveService{}
	for _, m := range []interface{ Test(mock.TestingT) }{suite.admission, suite.reaper, suite.models, suite.provisioner, suite.archive} {
		m.Test(suite.T())
	}
	suite.metrics = metrics.NewMetrics(prometheus.NewRegistry())

	svc := NewDeployService(
		suite.admission,
		suite.reaper,
		suite.models,
		newTestSynthesizer(),
		suite.provisioner,
		suite.archive,
		caching.NewKeyedLocker(),
		DeployOptions{
			GatewayToken:  "localclaw_master_token",
			PublicBaseURL: "http://localhost",
			NamePrefixes:  agentPrefixes,
		},
		suite.metrics,
		zap.NewNop(),
	)
	svc.(*deployService).newSuffix = func() string { return "x1y2z3" }
	suite.service = svc
	suite.ctx = context.Background()
}

func (suite *DeployServiceTestSuite) TearDownTest() {
	suite.admission.AssertExpectations(suite.T())
	suite.reaper.AssertExpectations(suite.T())
	suite.models.AssertExpectations(suite.T())
	suite.provisioner.AssertExpectations(suite.T())
	suite.archive.AssertExpectations(suite.T())
}

func TestDeployServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DeployServiceTestSuite))
}

func (suite *DeployServiceTestSuite) allow() {
	suite.admission.On("CheckAndMaybeCharge", suite.ctx, "tenant-1", false).
		Return(&models.AdmissionDecision{Allowed: true, Remaining: 1200}, nil).Once()
}

func (suite *DeployServiceTestSuite) TestDeploy_LocalSuccess() {
	suite.allow()
	suite.reaper.On("ReclaimOrphans", suite.ctx, "agent-my-helper-x1y2z3").Return(ReapReport{Targets: []string{"agent-old-000000"}}).Once()
	suite.models.On("EnsureModel", suite.ctx, "qwen2.5:7b").Once()
	suite.provisioner.On("Provision", suite.ctx, mock.MatchedBy(func(req ProvisionRequest) bool {
		return req.AgentID == "agent-my-helper-x1y2z3" &&
			req.TenantID == "tenant-1" &&
			strings.Contains(string(req.Config), `"ollama/qwen2.5:7b"`)
	})).Return("49153", nil).Once()
	suite.archive.On("Store", suite.ctx, "agent-my-helper-x1y2z3", mock.MatchedBy(func(doc []byte) bool {
		return !strings.Contains(string(doc), "localclaw_master_token")
	})).Return(nil).Once()

	deployment, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{
		AgentName: "My Helper!",
		Provider:  "local",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), &models.Deployment{
		AgentID:      "agent-my-helper-x1y2z3",
		Port:         "49153",
		DashboardURL: "http://localhost:49153/?token=localclaw_master_token",
	}, deployment)
	assert.Equal(suite.T(), 1.0, testutil.ToFloat64(suite.metrics.Deployments.WithLabelValues("success")))
}

func (suite *DeployServiceTestSuite) TestDeploy_RemoteSkipsModelEnsure() {
	suite.allow()
	suite.reaper.On("ReclaimOrphans", suite.ctx, mock.Anything).Return(ReapReport{}).Once()
	suite.provisioner.On("Provision", suite.ctx, mock.Anything).Return("49200", nil).Once()
	suite.archive.On("Store", suite.ctx, mock.Anything, mock.Anything).Return(errors.New("archive down")).Once()

	deployment, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{
		AgentName: "bot",
		Provider:  "openai",
		APIKey:    "sk-live",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "49200", deployment.Port)
	suite.models.AssertNotCalled(suite.T(), "EnsureModel", mock.Anything, mock.Anything)
}

func (suite *DeployServiceTestSuite) TestDeploy_RedeployKeepsAgentID() {
	suite.allow()
	suite.reaper.On("ReclaimOrphans", suite.ctx, "telebot-legacy").Return(ReapReport{}).Once()
	suite.models.On("EnsureModel", suite.ctx, "qwen2.5:7b").Once()
	suite.provisioner.On("Provision", suite.ctx, mock.MatchedBy(func(req ProvisionRequest) bool {
		return req.AgentID == "telebot-legacy"
	})).Return("49300", nil).Once()
	suite.archive.On("Store", suite.ctx, "telebot-legacy", mock.Anything).Return(nil).Once()

	deployment, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{
		AgentID:  "telebot-legacy",
		Provider: "localclaw",
	})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "telebot-legacy", deployment.AgentID)
}

func (suite *DeployServiceTestSuite) TestDeploy_QuotaExceeded() {
	suite.admission.On("CheckAndMaybeCharge", suite.ctx, "tenant-1", false).
		Return(&models.AdmissionDecision{Allowed: false}, nil).Once()

	_, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{AgentName: "bot", Provider: "local"})
	assert.ErrorIs(suite.T(), err, ErrQuotaExceeded)
	suite.reaper.AssertNotCalled(suite.T(), "ReclaimOrphans", mock.Anything, mock.Anything)
	assert.Equal(suite.T(), 1.0, testutil.ToFloat64(suite.metrics.Deployments.WithLabelValues("quota_exceeded")))
}

func (suite *DeployServiceTestSuite) TestDeploy_TenantNotFound() {
	suite.admission.On("CheckAndMaybeCharge", suite.ctx, "ghost", false).Return(nil, ErrTenantNotFound).Once()

	_, err := suite.service.Deploy(suite.ctx, "ghost", &models.DeployRequest{AgentName: "bot", Provider: "local"})
	assert.ErrorIs(suite.T(), err, ErrTenantNotFound)
}

func (suite *DeployServiceTestSuite) TestDeploy_ValidationBeforeSideEffects() {
	cases := []*models.DeployRequest{
		{AgentName: "bot", Provider: "anthropic"},
		{AgentName: "!!!", Provider: "local"},
		{AgentID: "ollama-1", Provider: "local"},
		{AgentID: "agent-UPPER", Provider: "local"},
	}
	for _, req := range cases {
		_, err := suite.service.Deploy(suite.ctx, "tenant-1", req)
		var verr *ValidationError
		assert.ErrorAs(suite.T(), err, &verr, "%+v", req)
	}

	suite.allow()
	_, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{AgentName: "bot", Provider: "openai"})
	var verr *ValidationError
	require.ErrorAs(suite.T(), err, &verr)
	assert.Equal(suite.T(), "apiKey", verr.Field)
	suite.reaper.AssertNotCalled(suite.T(), "ReclaimOrphans", mock.Anything, mock.Anything)
}

func (suite *DeployServiceTestSuite) TestDeploy_ProvisioningFailure() {
	suite.allow()
	suite.reaper.On("ReclaimOrphans", suite.ctx, mock.Anything).Return(ReapReport{Failed: []string{"agent-stuck"}}).Once()
	suite.models.On("EnsureModel", suite.ctx, "qwen2.5:7b").Once()
	suite.provisioner.On("Provision", suite.ctx, mock.Anything).
		Return("", errors.Join(ErrProvisioningFailed, errors.New("pull access denied"))).Once()

	deployment, err := suite.service.Deploy(suite.ctx, "tenant-1", &models.DeployRequest{AgentName: "bot", Provider: "local"})
	assert.Nil(suite.T(), deployment)
	assert.ErrorIs(suite.T(), err, ErrProvisioningFailed)
	assert.Contains(suite.T(), err.Error(), "pull access denied")
	assert.Equal(suite.T(), 1.0, testutil.ToFloat64(suite.metrics.Deployments.WithLabelValues("failed")))
}

func (suite *DeployServiceTestSuite) TestDeploy_Unauthorized() {
	_, err := suite.service.Deploy(suite.ctx, "", &models.DeployRequest{AgentName: "bot", Provider: "local"})
	assert.ErrorIs(suite.T(), err, ErrUnauthorized)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "my-helper", Slug("  My Helper!  "))
	assert.Equal(t, "sales-bot-2", Slug("Sales__Bot #2"))
	assert.Equal(t, "", Slug("!!!"))
	assert.Equal(t, 32, len(Slug(strings.Repeat("a", 50))))
	assert.Equal(t, "a", Slug("a-"+strings.Repeat("-", 40)))
}
