// Package policy provides tool authorization and access control.
// This file implements the approval-required tier: tool calls matched
// against a pattern list must be explicitly approved or denied before
// the Agent main loop's tool dispatch proceeds.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrApprovalRequired = errors.New("approval required")
	ErrApprovalDenied   = errors.New("approval denied")
	ErrApprovalExpired  = errors.New("approval expired")
)

// RiskLevel classifies how much scrutiny a tool call warrants before
// execution. It is a plain string enum local to this package; it carries no
// dependency on any wire format.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ApprovalRequest represents a pending or decided request to execute a tool.
type ApprovalRequest struct {
	ID           string
	ToolName     string
	ActorID      string
	Input        string // JSON-encoded tool call arguments
	RiskLevel    RiskLevel
	SessionID    string
	RequestedAt  time.Time
	ExpiresAt    time.Time
	Status       ApprovalStatus
	DecidedAt    *time.Time
	DecidedBy    string
	DenialReason string
}

// ApprovalStatus represents the current status of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDenied   ApprovalStatus = "denied"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ApprovalPolicy defines when approval is required for tool execution.
type ApprovalPolicy struct {
	// RequireApprovalForHighRisk requires approval for high/critical risk tools.
	RequireApprovalForHighRisk bool

	// AlwaysRequireApprovalFor lists tool name patterns (supporting the same
	// wildcard syntax as matchToolPattern) that always require approval.
	AlwaysRequireApprovalFor []string

	// NeverRequireApprovalFor lists tool name patterns that never require
	// approval, overriding AlwaysRequireApprovalFor and risk-level rules.
	NeverRequireApprovalFor []string

	// ApprovalTimeout is how long a pending approval request remains valid.
	ApprovalTimeout time.Duration

	// MaxAutoApprovePerSession limits how many calls at a given risk level
	// are auto-approved for one session before approval is required anyway.
	// Zero means unlimited.
	MaxAutoApprovePerSession map[RiskLevel]int
}

// DefaultApprovalPolicy returns sensible default approval settings: only
// high and critical risk tool calls require approval.
func DefaultApprovalPolicy() *ApprovalPolicy {
	return &ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            5 * time.Minute,
	}
}

// ApprovalManager manages the approval workflow for tool executions that a
// Policy marks as requiring approval before the Agent main loop dispatches
// them.
type ApprovalManager struct {
	mu       sync.RWMutex
	policy   *ApprovalPolicy
	requests map[string]*ApprovalRequest

	onApprovalRequired func(*ApprovalRequest)
	onApprovalDecided  func(*ApprovalRequest)

	sessionApprovals map[string]map[RiskLevel]int
}

// NewApprovalManager creates a new approval manager. A nil policy uses
// DefaultApprovalPolicy.
func NewApprovalManager(approvalPolicy *ApprovalPolicy) *ApprovalManager {
	if approvalPolicy == nil {
		approvalPolicy = DefaultApprovalPolicy()
	}
	return &ApprovalManager{
		policy:           approvalPolicy,
		requests:         make(map[string]*ApprovalRequest),
		sessionApprovals: make(map[string]map[RiskLevel]int),
	}
}

// SetApprovalRequiredHandler sets the callback invoked when a new approval
// request is created.
func (m *ApprovalManager) SetApprovalRequiredHandler(fn func(*ApprovalRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onApprovalRequired = fn
}

// SetApprovalDecidedHandler sets the callback invoked when a request is
// approved or denied.
func (m *ApprovalManager) SetApprovalDecidedHandler(fn func(*ApprovalRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onApprovalDecided = fn
}

// CheckApproval determines whether a tool call requires approval. It
// returns nil if execution can proceed immediately, or an error wrapping
// ErrApprovalRequired (with the new request's ID) otherwise.
func (m *ApprovalManager) CheckApproval(ctx context.Context, toolName, actorID, input, sessionID string, risk RiskLevel) error {
	if !m.needsApproval(toolName, risk, sessionID) {
		m.trackAutoApproval(sessionID, risk)
		return nil
	}

	req := &ApprovalRequest{
		ID:          generateApprovalID(),
		ToolName:    toolName,
		ActorID:     actorID,
		Input:       input,
		RiskLevel:   risk,
		SessionID:   sessionID,
		RequestedAt: time.Now(),
		ExpiresAt:   time.Now().Add(m.policy.ApprovalTimeout),
		Status:      ApprovalStatusPending,
	}

	m.mu.Lock()
	m.requests[req.ID] = req
	callback := m.onApprovalRequired
	m.mu.Unlock()

	if callback != nil {
		callback(req)
	}

	return fmt.Errorf("%w: request_id=%s", ErrApprovalRequired, req.ID)
}

// GetRequest returns an approval request by ID.
func (m *ApprovalManager) GetRequest(id string) (*ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("approval request not found: %s", id)
	}
	if req.Status == ApprovalStatusPending && time.Now().After(req.ExpiresAt) {
		req.Status = ApprovalStatusExpired
	}
	return req, nil
}

// Approve approves a pending approval request.
func (m *ApprovalManager) Approve(id, approverID string) error {
	m.mu.Lock()
	req, ok := m.requests[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("approval request not found: %s", id)
	}
	if req.Status != ApprovalStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("request already decided: %s", req.Status)
	}
	if time.Now().After(req.ExpiresAt) {
		req.Status = ApprovalStatusExpired
		m.mu.Unlock()
		return ErrApprovalExpired
	}

	now := time.Now()
	req.Status = ApprovalStatusApproved
	req.DecidedAt = &now
	req.DecidedBy = approverID
	callback := m.onApprovalDecided
	m.mu.Unlock()

	m.trackAutoApproval(req.SessionID, req.RiskLevel)

	if callback != nil {
		callback(req)
	}
	return nil
}

// Deny denies a pending approval request.
func (m *ApprovalManager) Deny(id, denierID, reason string) error {
	m.mu.Lock()
	req, ok := m.requests[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("approval request not found: %s", id)
	}
	if req.Status != ApprovalStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("request already decided: %s", req.Status)
	}

	now := time.Now()
	req.Status = ApprovalStatusDenied
	req.DecidedAt = &now
	req.DecidedBy = denierID
	req.DenialReason = reason
	callback := m.onApprovalDecided
	m.mu.Unlock()

	if callback != nil {
		callback(req)
	}
	return nil
}

// WaitForApproval blocks until the request is decided, expires, or ctx is
// cancelled.
func (m *ApprovalManager) WaitForApproval(ctx context.Context, requestID string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			req, err := m.GetRequest(requestID)
			if err != nil {
				return err
			}
			switch req.Status {
			case ApprovalStatusApproved:
				return nil
			case ApprovalStatusDenied:
				if req.DenialReason != "" {
					return fmt.Errorf("%w: %s", ErrApprovalDenied, req.DenialReason)
				}
				return ErrApprovalDenied
			case ApprovalStatusExpired:
				return ErrApprovalExpired
			case ApprovalStatusPending:
				continue
			}
		}
	}
}

// ListPending returns all currently pending approval requests, expiring any
// that are overdue as a side effect.
func (m *ApprovalManager) ListPending() []*ApprovalRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*ApprovalRequest
	now := time.Now()
	for _, req := range m.requests {
		if req.Status == ApprovalStatusPending {
			if now.After(req.ExpiresAt) {
				req.Status = ApprovalStatusExpired
			} else {
				pending = append(pending, req)
			}
		}
	}
	return pending
}

// ListBySession returns all approval requests created for a given session.
func (m *ApprovalManager) ListBySession(sessionID string) []*ApprovalRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*ApprovalRequest
	for _, req := range m.requests {
		if req.SessionID == sessionID {
			results = append(results, req)
		}
	}
	return results
}

// CleanupExpired expires overdue pending requests and evicts old decided or
// expired ones, returning the number evicted.
func (m *ApprovalManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	now := time.Now()
	for id, req := range m.requests {
		if req.Status == ApprovalStatusPending && now.After(req.ExpiresAt) {
			req.Status = ApprovalStatusExpired
		}
		if req.Status != ApprovalStatusPending && time.Since(req.ExpiresAt) > time.Hour {
			delete(m.requests, id)
			count++
		}
	}
	return count
}

func (m *ApprovalManager) needsApproval(toolName string, risk RiskLevel, sessionID string) bool {
	for _, t := range m.policy.NeverRequireApprovalFor {
		if t == toolName || matchToolPattern(t, toolName) {
			return false
		}
	}
	for _, t := range m.policy.AlwaysRequireApprovalFor {
		if t == toolName || matchToolPattern(t, toolName) {
			return true
		}
	}

	if m.policy.RequireApprovalForHighRisk && (risk == RiskHigh || risk == RiskCritical) {
		if limit, ok := m.policy.MaxAutoApprovePerSession[risk]; ok && limit > 0 {
			if m.getSessionApprovalCount(sessionID, risk) >= limit {
				return true
			}
			return false
		}
		return true
	}

	if limit, ok := m.policy.MaxAutoApprovePerSession[risk]; ok && limit > 0 {
		return m.getSessionApprovalCount(sessionID, risk) >= limit
	}

	return false
}

func (m *ApprovalManager) trackAutoApproval(sessionID string, risk RiskLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionApprovals[sessionID] == nil {
		m.sessionApprovals[sessionID] = make(map[RiskLevel]int)
	}
	m.sessionApprovals[sessionID][risk]++
}

func (m *ApprovalManager) getSessionApprovalCount(sessionID string, risk RiskLevel) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sessionApprovals[sessionID] == nil {
		return 0
	}
	return m.sessionApprovals[sessionID][risk]
}

// ResetSessionApprovals clears the auto-approval counters for a session.
func (m *ApprovalManager) ResetSessionApprovals(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessionApprovals, sessionID)
}

var approvalIDCounter int64
var approvalIDMu sync.Mutex

func generateApprovalID() string {
	approvalIDMu.Lock()
	defer approvalIDMu.Unlock()
	approvalIDCounter++
	return fmt.Sprintf("apr_%d_%d", time.Now().UnixNano(), approvalIDCounter)
}
