// Package refdata provides sector and average-volume reference data for the
// risk calculator.
package refdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Record 종목 참조 데이터
type Record struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Sector        string    `json:"sector"`
	AverageVolume float64   `json:"average_volume"` // 주
	UpdatedAt     time.Time `json:"updated_at"`
}

// Source 참조 데이터 공급원 (static, HTTP, DB, 캐시)
type Source interface {
	Fetch(ctx context.Context, symbols []string) ([]Record, error)
}

// =============================================================================
// Directory - 메모리 조회 테이블
// =============================================================================

// Directory 종목 → 참조 데이터
// ⭐ SSOT: risk.SectorLookup / risk.VolumeLookup 구현체는 이것 하나
type Directory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewDirectory 빈 디렉터리
func NewDirectory() *Directory {
	return &Directory{records: make(map[string]Record)}
}

// Put 레코드 추가/갱신 (빈 심볼 무시)
func (d *Directory) Put(records ...Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range records {
		if r.Symbol == "" {
			continue
		}
		d.records[r.Symbol] = r
	}
}

// Get 종목 레코드
func (d *Directory) Get(symbol string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[symbol]
	return r, ok
}

// Sector implements risk.SectorLookup
func (d *Directory) Sector(symbol string) (string, bool) {
	r, ok := d.Get(symbol)
	if !ok || r.Sector == "" {
		return "", false
	}
	return r.Sector, true
}

// AverageVolume implements risk.VolumeLookup
func (d *Directory) AverageVolume(symbol string) (float64, bool) {
	r, ok := d.Get(symbol)
	if !ok || r.AverageVolume <= 0 {
		return 0, false
	}
	return r.AverageVolume, true
}

// Symbols 등록 종목 (정렬)
func (d *Directory) Symbols() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.records))
	for s := range d.records {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len 등록 종목 수
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Missing symbols 중 디렉터리에 없는 종목
func (d *Directory) Missing(symbols []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var missing []string
	for _, s := range symbols {
		if _, ok := d.records[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// Refresh source 에서 받아 디렉터리 갱신, 반영된 레코드 수 반환
// symbols 가 비면 source 전체
func (d *Directory) Refresh(ctx context.Context, source Source, symbols []string) (int, error) {
	records, err := source.Fetch(ctx, symbols)
	if err != nil {
		return 0, fmt.Errorf("refresh reference data: %w", err)
	}
	d.Put(records...)
	return len(records), nil
}
