package tracker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

// Record is a single row of an EpisodeLog. Snake sessions write one row
// per episode and Cart-Pole sessions one row per iteration.
type Record struct {
	Kind          string  `parquet:"kind"`
	Frame         int64   `parquet:"frame"`
	Episode       int64   `parquet:"episode"`
	Iteration     int64   `parquet:"iteration"`
	Reward        float64 `parquet:"reward"`
	Fruits        int64   `parquet:"fruits"`
	AverageReward float64 `parquet:"average_reward"`
	AverageFruits float64 `parquet:"average_fruits"`
	AverageSteps  float64 `parquet:"average_steps"`
	Epsilon       float64 `parquet:"epsilon"`
	FPS           float64 `parquet:"fps"`
	Loss          float64 `parquet:"loss"`
}

// EpisodeLog tracks the end of every episode and iteration and saves
// them as a zstd compressed parquet file
type EpisodeLog struct {
	filename string
	records  []Record
}

// NewEpisodeLog returns a new EpisodeLog which saves to filename
func NewEpisodeLog(filename string) *EpisodeLog {
	return &EpisodeLog{filename: filename}
}

// Track records EpisodeEnd and IterationEnd events and ignores all
// others
func (l *EpisodeLog) Track(e event.Event) {
	if e.Kind != event.EpisodeEnd && e.Kind != event.IterationEnd {
		return
	}
	l.records = append(l.records, Record{
		Kind:          e.Kind.String(),
		Frame:         int64(e.Frame),
		Episode:       int64(e.Episode),
		Iteration:     int64(e.Iteration),
		Reward:        e.Reward,
		Fruits:        int64(e.Fruits),
		AverageReward: e.AverageReward,
		AverageFruits: e.AverageFruits,
		AverageSteps:  e.AverageSteps,
		Epsilon:       e.Epsilon,
		FPS:           e.FPS,
		Loss:          e.Loss,
	})
}

// Records returns the records tracked so far
func (l *EpisodeLog) Records() []Record {
	return l.records
}

// Save writes all tracked records to disk. The file is written to a
// temporary path and renamed so that readers never see a partial log.
func (l *EpisodeLog) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.filename), 0o755); err != nil {
		return fmt.Errorf("save: create log dir: %w", err)
	}

	tmpPath := l.filename + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, l.records,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "episode_log_v1"),
	); err != nil {
		return fmt.Errorf("save: write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, l.filename); err != nil {
		return fmt.Errorf("save: rename parquet: %w", err)
	}
	return nil
}

// LoadData loads and returns the records saved by an EpisodeLog
func LoadData(filename string) ([]Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("loadData: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("loadData: %w", err)
	}

	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	records := make([]Record, reader.NumRows())
	n, err := reader.Read(records)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("loadData: could not decode data: %w", err)
	}
	return records[:n], nil
}
