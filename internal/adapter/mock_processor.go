package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProcessor is a development/testing implementation of PaymentProcessor.
// It simulates a processor that authorizes immediately unless told otherwise.
type MockProcessor struct {
	mu             sync.Mutex
	logger         *zap.Logger
	authorizations map[string]*mockAuthorization
	byKey          map[string]string
	captureKeys    map[string]string
	failures       map[string][]error
}

type mockAuthorization struct {
	status AuthorizationStatus
}

// NewMockProcessor creates a new mock processor for development.
func NewMockProcessor(logger *zap.Logger) *MockProcessor {
	return &MockProcessor{
		logger:         logger,
		authorizations: make(map[string]*mockAuthorization),
		byKey:          make(map[string]string),
		captureKeys:    make(map[string]string),
		failures:       make(map[string][]error),
	}
}

// CreateAuthorization returns a mock authorization in the authorized state.
func (m *MockProcessor) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.nextFailure("create"); err != nil {
		return AuthorizationHandle{}, err
	}

	if id, ok := m.byKey[req.IdempotencyKey()]; ok {
		return AuthorizationHandle{ID: id, ClientSecret: id + "_secret_mock"}, nil
	}

	id := fmt.Sprintf("pi_mock_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
	m.authorizations[id] = &mockAuthorization{status: AuthorizationStatus{
		ID:               id,
		OrderID:          req.OrderID.String(),
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         strings.ToLower(req.Currency),
		Status:           StatusAuthorized,
	}}
	m.byKey[req.IdempotencyKey()] = id

	m.logger.Info("[MOCK PROCESSOR] authorization created",
		zap.String("authorization_id", id),
		zap.String("order_id", req.OrderID.String()),
		zap.Int64("amount_minor_units", req.AmountMinorUnits),
		zap.String("currency", req.Currency),
	)
	return AuthorizationHandle{ID: id, ClientSecret: id + "_secret_mock"}, nil
}

// ConfirmAuthorization returns the simulated status.
func (m *MockProcessor) ConfirmAuthorization(ctx context.Context, authorizationID string) (AuthorizationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.nextFailure("confirm"); err != nil {
		return AuthorizationStatus{}, err
	}
	a, ok := m.authorizations[authorizationID]
	if !ok {
		return AuthorizationStatus{ID: authorizationID, Status: StatusDeclined, DeclineReason: "no such authorization"}, nil
	}
	return a.status, nil
}

// Capture marks the authorization captured. Replays with the same key return
// the first outcome.
func (m *MockProcessor) Capture(ctx context.Context, authorizationID, idempotencyKey string) (CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.nextFailure("capture"); err != nil {
		return CaptureResult{}, err
	}

	a, ok := m.authorizations[authorizationID]
	if !ok {
		return CaptureResult{Status: StatusDeclined, DeclineReason: "no such authorization"}, nil
	}
	if prev, seen := m.captureKeys[idempotencyKey]; seen && prev == authorizationID {
		return CaptureResult{Status: a.status.Status, DeclineReason: a.status.DeclineReason}, nil
	}
	m.captureKeys[idempotencyKey] = authorizationID

	switch a.status.Status {
	case StatusAuthorized:
		a.status.Status = StatusCaptured
	case StatusCaptured:
	default:
		return CaptureResult{Status: a.status.Status, DeclineReason: a.status.DeclineReason}, nil
	}

	m.logger.Info("[MOCK PROCESSOR] authorization captured",
		zap.String("authorization_id", authorizationID),
		zap.String("idempotency_key", idempotencyKey),
	)
	if err := m.nextFailure("capture_response"); err != nil {
		return CaptureResult{}, err
	}
	return CaptureResult{Status: StatusCaptured}, nil
}

// Register installs an authorization with an arbitrary status, amount and currency.
func (m *MockProcessor) Register(status AuthorizationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := status
	m.authorizations[status.ID] = &mockAuthorization{status: s}
}

// SetStatus changes the status of an existing authorization.
func (m *MockProcessor) SetStatus(authorizationID string, status Status, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.authorizations[authorizationID]; ok {
		a.status.Status = status
		a.status.DeclineReason = reason
	}
}

// FailNext queues err to be returned by the next call of op: "create",
// "confirm" or "capture" fail before any effect; "capture_response" fails
// after the capture has been applied.
func (m *MockProcessor) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// StatusOf returns the current status of an authorization.
func (m *MockProcessor) StatusOf(authorizationID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.authorizations[authorizationID]; ok {
		return a.status.Status
	}
	return ""
}

func (m *MockProcessor) nextFailure(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	m.failures[op] = queue[1:]
	return queue[0]
}
