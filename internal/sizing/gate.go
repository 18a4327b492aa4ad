package sizing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/pkg/logger"
)

// =============================================================================
// Gate - 사이징 전 리스크 한도 게이트
// =============================================================================

// GateMode 게이트 동작 모드
type GateMode string

const (
	GateModeEnforce GateMode = "enforce" // 실제 차단
	GateModeShadow  GateMode = "shadow"  // 로깅만, 실제 차단 안함
	GateModeOff     GateMode = "off"     // 비활성화
)

// ParseGateMode 문자열 → GateMode (빈 문자열 → enforce)
func ParseGateMode(s string) (GateMode, error) {
	switch GateMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GateModeEnforce:
		return GateModeEnforce, nil
	case GateModeShadow:
		return GateModeShadow, nil
	case GateModeOff:
		return GateModeOff, nil
	}
	return "", contracts.NewConfigError("sizing.ParseGateMode", "gate_mode", nil, "unknown gate mode %q", s)
}

// GateResult 게이트 체크 결과
type GateResult struct {
	Mode       GateMode         `json:"mode"`
	Passed     bool             `json:"passed"`
	Blocked    bool             `json:"blocked"`
	WouldBlock bool             `json:"would_block"` // Shadow 모드에서 차단됐을지 여부
	Reason     string           `json:"reason"`
	Violations []risk.Violation `json:"violations"`
	Warnings   []risk.Violation `json:"warnings"`
	CheckedAt  time.Time        `json:"checked_at"`
}

// ViolationMessages 위반 메시지 목록
func (r GateResult) ViolationMessages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Message)
	}
	return out
}

// Gate 리스크 한도 게이트
// ⭐ SSOT: 사이징 전 한도 체크는 여기서만
type Gate struct {
	mu     sync.RWMutex
	limits contracts.RiskLimits
	mode   GateMode
	logger *logger.Logger
}

// NewGate 새 게이트 생성 (빈 mode → enforce)
func NewGate(limits contracts.RiskLimits, mode GateMode, log *logger.Logger) *Gate {
	if mode == "" {
		mode = GateModeEnforce
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{limits: limits, mode: mode, logger: log.Component("gate")}
}

// Check 포트폴리오/지표로 한도 체크
func (g *Gate) Check(p *contracts.Portfolio, metrics *contracts.RiskMetrics) GateResult {
	g.mu.RLock()
	mode, limits := g.mode, g.limits
	g.mu.RUnlock()

	result := GateResult{
		Mode:       mode,
		Passed:     true,
		Violations: make([]risk.Violation, 0),
		Warnings:   make([]risk.Violation, 0),
		CheckedAt:  time.Now(),
	}

	if mode == GateModeOff || p == nil {
		result.Reason = "risk gate is disabled"
		return result
	}

	check := risk.CheckLimits(p, metrics, limits)
	result.Violations = check.Violations
	result.Warnings = check.Warnings
	result.CheckedAt = check.CheckedAt

	if check.Passed {
		result.Reason = "all risk checks passed"
		return result
	}

	result.WouldBlock = true
	result.Reason = buildBlockReason(check)

	switch mode {
	case GateModeShadow:
		g.logBlock(result, "🚨 SHADOW BLOCK: Would have blocked sizing")
	default:
		result.Passed = false
		result.Blocked = true
		g.logBlock(result, "🚫 ENFORCE BLOCK: Sizing blocked due to risk violations")
	}
	return result
}

// Hold 차단 시 현재 수량 유지 결정
func (g *Gate) Hold(symbol string, currentQuantity float64, method contracts.SizingMethod, result GateResult) contracts.SizingDecision {
	return contracts.SizingDecision{
		Symbol:         symbol,
		Action:         contracts.ActionHold,
		TargetQuantity: currentQuantity,
		Method:         method,
		Reason:         result.Reason,
		Violations:     result.ViolationMessages(),
	}
}

// SetMode 게이트 모드 변경
func (g *Gate) SetMode(mode GateMode) {
	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()

	g.logger.WithFields(map[string]interface{}{
		"mode": mode,
	}).Info("Risk gate mode changed")
}

// Mode 현재 게이트 모드
func (g *Gate) Mode() GateMode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// Limits 현재 한도
func (g *Gate) Limits() contracts.RiskLimits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

func (g *Gate) logBlock(result GateResult, msg string) {
	fields := map[string]interface{}{
		"mode":            result.Mode,
		"would_block":     result.WouldBlock,
		"violation_count": len(result.Violations),
	}
	for i, v := range result.Violations {
		fields[fmt.Sprintf("violation_%d_kind", i)] = v.Kind
		fields[fmt.Sprintf("violation_%d_value", i)] = v.Value
		fields[fmt.Sprintf("violation_%d_limit", i)] = v.Limit
	}

	if result.Blocked {
		g.logger.WithFields(fields).Error(msg)
		return
	}
	g.logger.WithFields(fields).Warn(msg)
}

// buildBlockReason 첫 위반 + 개수
func buildBlockReason(check *risk.LimitCheckResult) string {
	first, ok := check.FirstViolation()
	if !ok {
		return "no violations"
	}
	if len(check.Violations) == 1 {
		return "risk limit breached: " + first.Message
	}
	return fmt.Sprintf("risk limit breached: %s (+%d more)", first.Message, len(check.Violations)-1)
}
