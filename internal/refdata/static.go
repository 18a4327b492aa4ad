package refdata

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource 고정 레코드 (테스트, 오프라인 CLI)
type StaticSource struct {
	records map[string]Record
}

// NewStaticSource 레코드 목록으로 생성
func NewStaticSource(records []Record) *StaticSource {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[r.Symbol] = r
	}
	return &StaticSource{records: m}
}

// staticFile YAML 참조 데이터 파일 형식
type staticFile struct {
	Securities []struct {
		Symbol        string  `yaml:"symbol"`
		Name          string  `yaml:"name"`
		Sector        string  `yaml:"sector"`
		AverageVolume float64 `yaml:"average_volume"`
	} `yaml:"securities"`
}

// LoadStaticFile YAML 파일에서 StaticSource 생성
func LoadStaticFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data file: %w", err)
	}

	var file staticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse reference data file: %w", err)
	}

	records := make([]Record, 0, len(file.Securities))
	for _, s := range file.Securities {
		if s.Symbol == "" {
			return nil, fmt.Errorf("reference data file %s: security without symbol", path)
		}
		records = append(records, Record{
			Symbol:        s.Symbol,
			Name:          s.Name,
			Sector:        s.Sector,
			AverageVolume: s.AverageVolume,
		})
	}
	return NewStaticSource(records), nil
}

// Fetch implements Source
func (s *StaticSource) Fetch(_ context.Context, symbols []string) ([]Record, error) {
	if len(symbols) == 0 {
		out := make([]Record, 0, len(s.records))
		for _, r := range s.records {
			out = append(out, r)
		}
		return out, nil
	}

	out := make([]Record, 0, len(symbols))
	for _, sym := range symbols {
		if r, ok := s.records[sym]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
