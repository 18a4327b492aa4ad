package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/wonny/stockrisk/internal/refdata"
	"github.com/wonny/stockrisk/internal/strategyconfig"
	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/database"
	"github.com/wonny/stockrisk/pkg/logger"
	"github.com/wonny/stockrisk/pkg/redis"
)

// ═══════════════════════════════════════════════════════════
// 커맨드 공통 초기화
// 환경변수 → 로거 → 리스크 프로파일 순서
// ═══════════════════════════════════════════════════════════

// app 커맨드 공통 의존성
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	runtime *strategyconfig.Runtime
	yaml    []byte // 프로파일 원본 (기본 프로파일이면 nil)
}

// bootstrap 단발성 커맨드용 초기화
// 로그는 stderr 로 보내 표 출력과 섞이지 않게 함
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	return newApp(cfg, logger.NewWithWriter(os.Stderr, level))
}

// bootstrapDaemon api/scheduler 같은 상주 프로세스용 초기화
func bootstrapDaemon() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return newApp(cfg, logger.New(cfg))
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	rt, data, err := loadRuntime(cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, runtime: rt, yaml: data}, nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := godotenv.Overload(configFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", configFile, err)
		}
	}
	if env != "" {
		if err := os.Setenv("ENV", env); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// loadRuntime 리스크 프로파일 로드 후 Runtime 생성
// --profile 없이 기본 경로 파일도 없으면 기본 프로파일에 환경변수 기본값 적용
func loadRuntime(cfg *config.Config, log *logger.Logger) (*strategyconfig.Runtime, []byte, error) {
	path := profilePath
	if path == "" {
		path = cfg.Risk.ProfilePath
	}

	profile, data, err := strategyconfig.Load(path)
	switch {
	case err == nil:
		log.WithProfile(path).Debug("Risk profile loaded")
	case errors.Is(err, fs.ErrNotExist) && profilePath == "":
		def := defaultProfile(cfg)
		profile, data = &def, nil
		log.WithProfile(path).Info("Risk profile not found, using defaults")
	default:
		return nil, nil, fmt.Errorf("load risk profile: %w", err)
	}

	rt, err := profile.Build(log)
	if err != nil {
		return nil, nil, fmt.Errorf("build risk runtime: %w", err)
	}
	return rt, data, nil
}

// defaultProfile 환경변수(RISK_*)로 조정한 기본 프로파일
func defaultProfile(cfg *config.Config) strategyconfig.Config {
	profile := strategyconfig.Default()
	profile.VaR.Confidence = cfg.Risk.ConfidenceLevel
	profile.Sizing.LotSize = cfg.Risk.LotSize
	profile.Gate.Mode = cfg.Risk.GateMode
	if cfg.Risk.Simulations > 0 {
		profile.VaR.MonteCarlo.NumSimulations = cfg.Risk.Simulations
	}
	profile.VaR.MonteCarlo.Seed = cfg.Risk.Seed
	return profile
}

// openDatabase DATABASE_URL 이 있을 때만 연결 (없으면 nil)
func (a *app) openDatabase() (*database.DB, error) {
	if !a.cfg.Database.Enabled() {
		a.log.Info("DATABASE_URL not set, running without persistence")
		return nil, nil
	}

	db, err := database.New(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.log.Info("Connected to database")
	return db, nil
}

// referenceSource 참조 데이터 소스 선택
// 우선순위: --refdata 파일 → REFDATA_BASE_URL (Redis 캐시) → DB 테이블
func (a *app) referenceSource(path string, db *database.DB) (refdata.Source, func(), error) {
	noop := func() {}

	if path != "" {
		src, err := refdata.LoadStaticFile(path)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	}

	if a.cfg.RefData.BaseURL != "" {
		httpSource := refdata.NewHTTPSource(a.cfg, a.log)
		if !a.cfg.Redis.Enabled {
			return httpSource, noop, nil
		}

		client, err := redis.New(a.cfg)
		if err != nil {
			a.log.WithError(err).Warn("Redis unavailable, reference data is not cached")
			return httpSource, noop, nil
		}
		closer := func() { _ = client.Close() }

		// API 서버와 스케줄러가 같은 초당 한도를 공유
		if a.cfg.RefData.RateLimit >= 1 {
			limit := redis.RefDataRateLimit
			limit.Limit = int(a.cfg.RefData.RateLimit)
			httpSource.WithSharedLimiter(redis.NewRateLimiter(client), limit)
		}

		cache := redis.NewCache(client)
		return refdata.NewCachedSource(httpSource, cache, a.cfg.RefData.CacheTTL, a.log), closer, nil
	}

	if db != nil {
		return refdata.NewRepository(db.Pool), noop, nil
	}
	return nil, noop, nil
}

// loadDirectory 참조 데이터 디렉터리 초기 적재
// 소스가 없으면 빈 디렉터리 (섹터/유동성 리스크는 MissingLiquidity 로 보고)
func (a *app) loadDirectory(ctx context.Context, source refdata.Source, symbols []string) *refdata.Directory {
	dir := refdata.NewDirectory()
	if source == nil {
		return dir
	}

	n, err := dir.Refresh(ctx, source, symbols)
	if err != nil {
		a.log.WithError(err).Warn("Reference data refresh failed")
	}
	a.log.WithField("records", n).Debug("Reference data loaded")
	return dir
}

// readJSON 입력 파일("-" 이면 stdin)을 dest 로 디코딩
func readJSON(path string, dest interface{}) error {
	if path == "" {
		return fmt.Errorf("--input is required")
	}

	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
	}

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
