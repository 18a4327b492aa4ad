package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockrisk/pkg/config"
)

// Logger zerolog 래퍼
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// 공통 필드 키
// 리스크/손절/사이징 로그를 같은 키로 검색하기 위함
const (
	FieldComponent = "component"
	FieldSymbol    = "symbol"
	FieldProfile   = "profile"
	FieldOrder     = "order_id"
	FieldJob       = "job"
)

// New 설정 기반 로거 (api/scheduler 상주 프로세스)
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
func New(cfg *config.Config) *Logger {
	l := build(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	return &Logger{zlog: l.zlog.With().Str("env", cfg.Env).Logger()}
}

// NewWithWriter w 로 JSON 기록 (CLI, 테스트 캡처)
func NewWithWriter(w io.Writer, level string) *Logger {
	return build(w, "json", level)
}

// Nop 아무것도 기록하지 않는 로거
// logger 없이 생성되는 계산기/엔진의 기본값
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func build(w io.Writer, format, level string) *Logger {
	if format == "console" || format == "pretty" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zlog := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &Logger{zlog: zlog}
}

// ParseLevel 문자열 → 레벨 (모르는 값/빈 값 → info)
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Level 현재 최소 레벨
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// Component 하위 모듈 이름 (risk, stoploss, sizing, refdata, scheduler)
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldComponent, name).Logger()}
}

// WithSymbol 종목 코드
func (l *Logger) WithSymbol(symbol string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldSymbol, symbol).Logger()}
}

// WithProfile 리스크 프로파일 (경로 또는 ID)
func (l *Logger) WithProfile(profile string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldProfile, profile).Logger()}
}

// WithOrder 손절/익절 주문
func (l *Logger) WithOrder(orderID, symbol string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldOrder, orderID).Str(FieldSymbol, symbol).Logger()}
}

// WithJob 스케줄러 잡 이름
func (l *Logger) WithJob(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(FieldJob, name).Logger()}
}
