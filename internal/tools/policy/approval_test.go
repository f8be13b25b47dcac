package policy

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestApprovalManager_NoApprovalNeeded(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: false,
		ApprovalTimeout:            time.Minute,
	})

	err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskLow)
	if err != nil {
		t.Errorf("expected no approval needed, got %v", err)
	}
}

func TestApprovalManager_ApprovalRequired(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
	if err == nil {
		t.Error("expected approval required error")
	}
	if !strings.Contains(err.Error(), "approval required") {
		t.Errorf("expected 'approval required' in error, got %v", err)
	}
}

func TestApprovalManager_ApproveAndDeny(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	t.Run("approve request", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
		if err == nil {
			t.Fatal("expected approval required error")
		}

		requestID := extractRequestID(err.Error())
		if requestID == "" {
			t.Fatal("could not extract request ID from error")
		}

		if err := manager.Approve(requestID, "admin"); err != nil {
			t.Fatalf("unexpected error approving: %v", err)
		}

		req, err := manager.GetRequest(requestID)
		if err != nil {
			t.Fatalf("unexpected error getting request: %v", err)
		}
		if req.Status != ApprovalStatusApproved {
			t.Errorf("expected approved status, got %s", req.Status)
		}
		if req.DecidedBy != "admin" {
			t.Errorf("expected decided by 'admin', got %s", req.DecidedBy)
		}
	})

	t.Run("deny request", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "exec2", "actor-1", "{}", "session2", RiskHigh)
		requestID := extractRequestID(err.Error())

		if err := manager.Deny(requestID, "admin", "security concern"); err != nil {
			t.Fatalf("unexpected error denying: %v", err)
		}

		req, err := manager.GetRequest(requestID)
		if err != nil {
			t.Fatalf("unexpected error getting request: %v", err)
		}
		if req.Status != ApprovalStatusDenied {
			t.Errorf("expected denied status, got %s", req.Status)
		}
		if req.DenialReason != "security concern" {
			t.Errorf("expected denial reason 'security concern', got %s", req.DenialReason)
		}
	})
}

func TestApprovalManager_Expiration(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            10 * time.Millisecond,
	})

	err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
	requestID := extractRequestID(err.Error())

	time.Sleep(20 * time.Millisecond)

	req, err := manager.GetRequest(requestID)
	if err != nil {
		t.Fatalf("unexpected error getting request: %v", err)
	}
	if req.Status != ApprovalStatusExpired {
		t.Errorf("expected expired status, got %s", req.Status)
	}

	err = manager.Approve(requestID, "admin")
	if err == nil || !strings.Contains(err.Error(), "already decided") {
		t.Errorf("expected 'already decided' error, got %v", err)
	}
}

func TestApprovalManager_AlwaysNeverLists(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: false,
		ApprovalTimeout:            time.Minute,
		AlwaysRequireApprovalFor:   []string{"dangerous_tool"},
		NeverRequireApprovalFor:    []string{"safe_tool"},
	})

	t.Run("always requires approval", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "dangerous_tool", "actor-1", "{}", "session1", RiskLow)
		if err == nil || !strings.Contains(err.Error(), "approval required") {
			t.Error("expected approval required for always-approve tool")
		}
	})

	t.Run("never requires approval", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "safe_tool", "actor-1", "{}", "session1", RiskCritical)
		if err != nil {
			t.Errorf("expected no approval for never-approve tool, got %v", err)
		}
	})
}

func TestApprovalManager_RateLimit(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		ApprovalTimeout: time.Minute,
		MaxAutoApprovePerSession: map[RiskLevel]int{
			RiskMedium: 2,
		},
	})

	sessionID := "rate-limit-session"

	for i := 0; i < 2; i++ {
		err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", sessionID, RiskMedium)
		if err != nil {
			t.Errorf("request %d should be auto-approved, got %v", i+1, err)
		}
	}

	err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", sessionID, RiskMedium)
	if err == nil || !strings.Contains(err.Error(), "approval required") {
		t.Error("expected approval required after rate limit")
	}
}

func TestApprovalManager_ListPending(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	for i := 0; i < 3; i++ {
		manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
	}

	pending := manager.ListPending()
	if len(pending) != 3 {
		t.Errorf("expected 3 pending requests, got %d", len(pending))
	}
}

func TestApprovalManager_ListBySession(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	manager.CheckApproval(context.Background(), "exec1", "actor-1", "{}", "session1", RiskHigh)
	manager.CheckApproval(context.Background(), "exec2", "actor-1", "{}", "session1", RiskHigh)
	manager.CheckApproval(context.Background(), "exec3", "actor-1", "{}", "session2", RiskHigh)

	session1Requests := manager.ListBySession("session1")
	if len(session1Requests) != 2 {
		t.Errorf("expected 2 requests for session1, got %d", len(session1Requests))
	}

	session2Requests := manager.ListBySession("session2")
	if len(session2Requests) != 1 {
		t.Errorf("expected 1 request for session2, got %d", len(session2Requests))
	}
}

func TestApprovalManager_Callbacks(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	var requiredCalled, decidedCalled bool
	var lastRequired, lastDecided *ApprovalRequest

	manager.SetApprovalRequiredHandler(func(req *ApprovalRequest) {
		requiredCalled = true
		lastRequired = req
	})
	manager.SetApprovalDecidedHandler(func(req *ApprovalRequest) {
		decidedCalled = true
		lastDecided = req
	})

	err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
	if !requiredCalled {
		t.Error("expected approval required callback to be called")
	}
	if lastRequired == nil || lastRequired.ToolName != "exec" {
		t.Error("callback received wrong request")
	}

	requestID := extractRequestID(err.Error())
	manager.Approve(requestID, "admin")

	if !decidedCalled {
		t.Error("expected approval decided callback to be called")
	}
	if lastDecided == nil || lastDecided.Status != ApprovalStatusApproved {
		t.Error("callback received wrong decision")
	}
}

func TestApprovalManager_WaitForApproval(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            time.Minute,
	})

	t.Run("approved", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
		requestID := extractRequestID(err.Error())

		go func() {
			time.Sleep(50 * time.Millisecond)
			manager.Approve(requestID, "admin")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := manager.WaitForApproval(ctx, requestID); err != nil {
			t.Errorf("expected no error after approval, got %v", err)
		}
	})

	t.Run("denied", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "exec2", "actor-1", "{}", "session2", RiskHigh)
		requestID := extractRequestID(err.Error())

		go func() {
			time.Sleep(50 * time.Millisecond)
			manager.Deny(requestID, "admin", "not allowed")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err = manager.WaitForApproval(ctx, requestID)
		if err == nil {
			t.Error("expected error after denial")
		}
		if !strings.Contains(err.Error(), "denied") {
			t.Errorf("expected denial error, got %v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		err := manager.CheckApproval(context.Background(), "exec3", "actor-1", "{}", "session3", RiskHigh)
		requestID := extractRequestID(err.Error())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		err = manager.WaitForApproval(ctx, requestID)
		if err == nil || err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestApprovalManager_CleanupExpired(t *testing.T) {
	manager := NewApprovalManager(&ApprovalPolicy{
		RequireApprovalForHighRisk: true,
		ApprovalTimeout:            10 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		manager.CheckApproval(context.Background(), "exec", "actor-1", "{}", "session1", RiskHigh)
	}

	time.Sleep(20 * time.Millisecond)

	pending := manager.ListPending()
	if len(pending) != 0 {
		t.Errorf("expected 0 pending after expiration, got %d", len(pending))
	}
}

func TestDefaultApprovalPolicy(t *testing.T) {
	approvalPolicy := DefaultApprovalPolicy()

	if !approvalPolicy.RequireApprovalForHighRisk {
		t.Error("expected RequireApprovalForHighRisk to be true")
	}
	if approvalPolicy.ApprovalTimeout != 5*time.Minute {
		t.Errorf("expected 5 minute timeout, got %v", approvalPolicy.ApprovalTimeout)
	}
}

func extractRequestID(errMsg string) string {
	parts := strings.Split(errMsg, "request_id=")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
