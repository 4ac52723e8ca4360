package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

const (
	digestFileName   = "analysis_output.txt"
	velocityFileName = "weekly_velocity.svg"
	statusFileName   = "status_distribution.svg"
	priorityFileName = "priority_breakdown.svg"
)

// Run writes the digest and the chart files into outputDir.
func (a *Analyzer) Run(records []store.TaskRecord, now time.Time, outputDir string) error {
	digest, err := a.Digest(records, now)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create analysis dir: %w", err)
	}

	digestPath := filepath.Join(outputDir, digestFileName)
	if err := os.WriteFile(digestPath, []byte(digest), 0o644); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	a.logger.Info("analysis digest written", zap.String("path", digestPath))

	views := a.views(records)
	charts := map[string]string{
		velocityFileName: VelocityChart(views, now),
		statusFileName:   StatusChart(views),
		priorityFileName: PriorityChart(views),
	}
	for name, svg := range charts {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
			return fmt.Errorf("write chart %s: %w", name, err)
		}
	}
	a.logger.Info("charts written", zap.String("dir", outputDir), zap.Int("count", len(charts)))
	return nil
}
