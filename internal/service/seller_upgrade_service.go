package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/config"
	"github.com/spec-kit/marketplace-session/internal/observability"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

// UpgradeOutcome classifies the backend's answer to a seller upgrade request.
type UpgradeOutcome string

const (
	UpgradeIssued         UpgradeOutcome = "issued"
	UpgradeAlreadySeller  UpgradeOutcome = "already_seller"
	UpgradeRejected       UpgradeOutcome = "rejected"
	UpgradeNetworkFailure UpgradeOutcome = "network_failure"
)

// UpgradeResult is the interpreted response of one upgrade request.
type UpgradeResult struct {
	Outcome    UpgradeOutcome
	Credential string
	StatusCode int
	Message    string
	Err        error
}

type upgradeResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// SellerUpgradeService asks the backend to turn the current identity into a
// seller. Each call issues exactly one request; there are no retries.
type SellerUpgradeService struct {
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewSellerUpgradeService builds the service from backend settings.
func NewSellerUpgradeService(cfg config.BackendConfig, logger *zap.Logger, metrics *observability.Metrics) *SellerUpgradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SellerUpgradeService{
		endpoint: cfg.UpgradeURL(),
		timeout:  cfg.Timeout(),
		logger:   logger,
		metrics:  metrics,
	}
}

type agentReply struct {
	status int
	body   []byte
	errs   []error
}

// RequestUpgrade posts to the seller registration endpoint with credential as
// bearer. Cancelling ctx abandons the request and reports a network failure.
func (s *SellerUpgradeService) RequestUpgrade(ctx context.Context, credential string) UpgradeResult {
	replies := make(chan agentReply, 1)
	go func() {
		replies <- s.send(credential)
	}()

	var result UpgradeResult
	select {
	case <-ctx.Done():
		result = networkFailure(ctx.Err())
	case reply := <-replies:
		result = interpretUpgrade(reply, s.logger)
	}

	s.metrics.RecordUpgrade(string(result.Outcome))
	fields := []zap.Field{
		zap.String("outcome", string(result.Outcome)),
		zap.Int("status", result.StatusCode),
	}
	if result.Err != nil {
		fields = append(fields, zap.Error(result.Err))
	}
	s.logger.Info("seller upgrade requested", fields...)
	return result
}

func (s *SellerUpgradeService) send(credential string) agentReply {
	agent := fiber.Post(s.endpoint)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+credential)
	if s.timeout > 0 {
		agent.Timeout(s.timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return agentReply{errs: []error{err}}
	}
	status, body, errs := agent.Bytes()
	return agentReply{status: status, body: body, errs: errs}
}

func interpretUpgrade(reply agentReply, logger *zap.Logger) UpgradeResult {
	if len(reply.errs) > 0 {
		return networkFailure(errors.Join(reply.errs...))
	}

	var body upgradeResponse
	if len(reply.body) > 0 {
		// the status alone still classifies the reply
		if err := json.Unmarshal(reply.body, &body); err != nil {
			logger.Debug("upgrade response body not decodable",
				zap.Int("status", reply.status),
				zap.ByteString("body", reply.body),
				zap.Error(err))
		}
	}

	result := UpgradeResult{StatusCode: reply.status, Message: body.Message}
	switch {
	case reply.status == http.StatusOK || reply.status == http.StatusCreated:
		if body.Token == "" {
			result.Outcome = UpgradeRejected
			result.Err = apperrors.NewUpgradeRejected(reply.status, "upgrade response carried no token")
			return result
		}
		result.Outcome = UpgradeIssued
		result.Credential = body.Token
	case reply.status == http.StatusConflict:
		result.Outcome = UpgradeAlreadySeller
		result.Err = apperrors.NewUpgradeConflict(messageOr(body.Message, "identity is already a seller"))
	default:
		result.Outcome = UpgradeRejected
		result.Err = apperrors.NewUpgradeRejected(reply.status, messageOr(body.Message, http.StatusText(reply.status)))
	}
	return result
}

func networkFailure(err error) UpgradeResult {
	return UpgradeResult{Outcome: UpgradeNetworkFailure, Err: apperrors.NewTransportFailure(err)}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
