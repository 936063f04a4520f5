package flow

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// Window is one bounded partition of a bulk dataset, processed as a
	// unit of parallel work
	Window struct {
		ID      int `json:"window_id"`
		Offset  int `json:"offset"`
		Records int `json:"records"`
	}

	// WindowFunc processes one window and reports its outcome counts
	WindowFunc func(ctx context.Context, w Window) (api.WindowCounts, error)

	// SampleReport is the verdict of pre-backfill sample validation
	SampleReport struct {
		SampleSize     int     `json:"sample_size"`
		ValidRecords   int     `json:"valid_records"`
		InvalidRecords int     `json:"invalid_records"`
		Score          float64 `json:"validation_score"`
		SampleValid    bool    `json:"sample_validated"`
	}

	// Backfill executes windows with bounded parallelism. Per-window
	// failures are counted, never aborting sibling windows
	Backfill struct {
		parallelism int
		process     WindowFunc
	}
)

// SampleValidThreshold is the minimum fraction of parseable sampled
// records for a backfill to proceed
const SampleValidThreshold = 0.8

// PlanWindows partitions a total record count into windows of the given
// size. The final window holds the remainder and is never empty unless
// the total is zero
func PlanWindows(total, size int) []Window {
	if total <= 0 || size <= 0 {
		return nil
	}

	count := (total + size - 1) / size
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		offset := i * size
		records := size
		if offset+records > total {
			records = total - offset
		}
		windows = append(windows, Window{
			ID:      i,
			Offset:  offset,
			Records: records,
		})
	}
	return windows
}

// ValidateSample parses up to sampleSize records of CSV data against
// its header. A record is valid when its field count matches the header
func ValidateSample(csvData string, sampleSize int) *SampleReport {
	lines := strings.Split(strings.TrimSpace(csvData), "\n")
	if len(lines) < 2 {
		return &SampleReport{}
	}

	fields := len(strings.Split(lines[0], ","))
	records := lines[1:]
	if sampleSize > 0 && len(records) > sampleSize {
		records = records[:sampleSize]
	}

	report := &SampleReport{SampleSize: len(records)}
	for _, record := range records {
		if strings.TrimSpace(record) == "" ||
			len(strings.Split(record, ",")) != fields {
			report.InvalidRecords++
			continue
		}
		report.ValidRecords++
	}
	report.Score = float64(report.ValidRecords) / float64(report.SampleSize)
	report.SampleValid = report.Score >= SampleValidThreshold
	return report
}

// NewBackfill creates a backfill engine running windows through process
// with at most parallelism in flight
func NewBackfill(parallelism int, process WindowFunc) *Backfill {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Backfill{
		parallelism: parallelism,
		process:     process,
	}
}

// Execute runs all windows and aggregates their counts. A window whose
// processor errors contributes all its records as failed
func (b *Backfill) Execute(
	ctx context.Context, windows []Window,
) api.ManifestCounts {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, b.parallelism)
	)

	counts := api.ManifestCounts{Windows: len(windows)}
	for _, w := range windows {
		counts.TotalRecords += w.Records

		wg.Add(1)
		sem <- struct{}{}
		go func(w Window) {
			defer wg.Done()
			defer func() { <-sem }()

			wc, err := b.process(ctx, w)
			if err != nil {
				slog.Error("Backfill window failed",
					slog.Int("window_id", w.ID),
					slog.Int("records", w.Records),
					slog.Any("error", err))
				wc = api.WindowCounts{
					Window:  w.ID,
					Records: w.Records,
					Failed:  w.Records,
				}
			}

			mu.Lock()
			counts.FailedRecords += wc.Failed
			counts.PerWindow = append(counts.PerWindow, wc)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	sort.Slice(counts.PerWindow, func(i, j int) bool {
		return counts.PerWindow[i].Window < counts.PerWindow[j].Window
	})
	return counts
}

// WithinTolerance reports whether the failed-record share is acceptable
func WithinTolerance(counts api.ManifestCounts, tolerance float64) bool {
	if counts.TotalRecords == 0 {
		return true
	}
	ratio := float64(counts.FailedRecords) / float64(counts.TotalRecords)
	return ratio <= tolerance
}
