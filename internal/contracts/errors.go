package contracts

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error kinds
// ⭐ SSOT: 엔진 전역 에러 분류는 여기서만
// =============================================================================

var (
	// ErrConfiguration 잘못된 입력/설정 (계산 불가)
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientData 관측치 부족
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotPositiveDefinite 공분산 행렬이 양의 정부호가 아님
	ErrNotPositiveDefinite = errors.New("covariance matrix is not positive definite")

	// ErrEmptyAssets 자산 목록이 비어 있음
	ErrEmptyAssets = errors.New("empty asset list")

	// ErrUnknownStrategy 알 수 없는 손절/익절 전략 태그
	ErrUnknownStrategy = errors.New("unknown strategy type")

	// ErrInvalidTransition 주문 상태 전이 위반
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrOrderNotFound 주문 ID 없음
	ErrOrderNotFound = errors.New("order not found")
)

// ConfigError 설정 에러 상세
// errors.Is(err, ErrConfiguration) 는 항상 true
type ConfigError struct {
	Op      string // 호출한 연산 (예: "covariance.Estimate")
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Is matches ErrConfiguration in addition to the wrapped error.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError ConfigError 생성 헬퍼
func NewConfigError(op, field string, err error, format string, args ...interface{}) error {
	return &ConfigError{
		Op:      op,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsConfigurationError 설정 에러 여부
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
