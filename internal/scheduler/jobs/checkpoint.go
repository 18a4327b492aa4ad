package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/pkg/logger"
)

// OrderCheckpointJob 주문 레지스트리 스냅샷을 파일로 저장 (재시작 복구용)
type OrderCheckpointJob struct {
	registry *stoploss.Registry
	path     string
	logger   *logger.Logger
}

// NewOrderCheckpointJob creates a new checkpoint job
func NewOrderCheckpointJob(registry *stoploss.Registry, path string, log *logger.Logger) *OrderCheckpointJob {
	return &OrderCheckpointJob{
		registry: registry,
		path:     path,
		logger:   log,
	}
}

// Name returns the job name
func (j *OrderCheckpointJob) Name() string {
	return "order_checkpoint"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *OrderCheckpointJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run writes the registry snapshot atomically
func (j *OrderCheckpointJob) Run(ctx context.Context) error {
	data, err := j.registry.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot registry: %w", err)
	}

	if dir := filepath.Dir(j.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	j.logger.WithField("orders", j.registry.Len()).Debug("Order checkpoint written")
	return nil
}

// RestoreCheckpoint 파일이 있으면 레지스트리 복구 (없으면 false)
func RestoreCheckpoint(registry *stoploss.Registry, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := registry.Restore(data); err != nil {
		return false, err
	}
	return true, nil
}
