package stoploss

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wonny/stockrisk/internal/contracts"
)

// snapshotVersion 스냅샷 포맷 버전
const snapshotVersion = 1

type snapshot struct {
	Version int                       `msgpack:"version"`
	Orders  []contracts.StopLossOrder `msgpack:"orders"`
}

// Snapshot 전체 주문을 msgpack 으로 직렬화
func (r *Registry) Snapshot() ([]byte, error) {
	data, err := msgpack.Marshal(snapshot{Version: snapshotVersion, Orders: r.All()})
	if err != nil {
		return nil, fmt.Errorf("marshal registry snapshot: %w", err)
	}
	return data, nil
}

// Restore 스냅샷을 레지스트리로 복원 (기존 주문은 모두 대체)
func (r *Registry) Restore(data []byte) error {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal registry snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported registry snapshot version %d", snap.Version)
	}

	r.mu.Lock()
	r.orders = make([]contracts.StopLossOrder, 0, len(snap.Orders))
	r.bySymbol = make(map[string][]int)
	r.byID = make(map[string]int)
	for _, o := range snap.Orders {
		r.insertLocked(o)
	}
	r.mu.Unlock()

	return nil
}
