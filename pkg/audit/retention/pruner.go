package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fleetgrid/warden/pkg/audit"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep entries.
	// 0 means keep entries forever (no pruning).
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned entries to a JSONL archive file
	// before they are removed from the live log.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory archive files are written to.
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the total number of retained entries. 0 means
	// unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:       365,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: true,
		ArchivePath:         "data/archives/",
		MaxRecords:          0,
	}
}

// Pruner enforces the retention policy on the audit log's storage.
type Pruner struct {
	storage   audit.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a retention pruner over the given storage.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune runs one retention cycle: age-based pruning first, then the
// optional total-count cap. Returns how many entries were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("audit pruning completed, nothing to remove")
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{End: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, query); err != nil {
			return 0, err
		}
	}
	return p.storage.Delete(ctx, query)
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// Entries come back in Seq order, so the overflow is the head of the
	// slice. Deleting by the cutoff entry's timestamp keeps the retained
	// set a contiguous chain suffix.
	overflow := count - p.config.MaxRecords
	oldest, err := p.storage.Query(ctx, &audit.Query{Limit: int(overflow)})
	if err != nil {
		return 0, fmt.Errorf("query oldest entries: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[len(oldest)-1].Timestamp
	query := &audit.Query{End: &cutoff}

	if p.config.ArchiveBeforeDelete {
		if err := p.archiveEntries(oldest); err != nil {
			return 0, err
		}
	}
	return p.storage.Delete(ctx, query)
}

// archive writes all entries a query matches to a JSONL archive file.
func (p *Pruner) archive(ctx context.Context, query *audit.Query) error {
	entries, err := p.storage.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query entries for archive: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	return p.archiveEntries(entries)
}

// archiveEntries appends entries, one JSON object per line, to a dated
// archive file. Entries keep their chain hashes, so an archived window can
// still be verified against the live log's oldest PrevHash.
func (p *Pruner) archiveEntries(entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.config.ArchivePath, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	name := fmt.Sprintf("audit-%s.jsonl", time.Now().Format("2006-01-02-150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write archive entry: %w", err)
		}
	}

	p.logger.Info("audit entries archived",
		"archive_file", path,
		"entry_count", len(entries),
	)
	return nil
}

// Start begins scheduled pruning. Call during application startup.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning. Call during graceful shutdown.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled pruning time, nil if unscheduled.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
