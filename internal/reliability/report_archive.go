package reliability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/research"
)

// ObjectUploader is the slice of the object-store client the archive uses.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// SnapshotSource provides the final state of a batch for archival.
type SnapshotSource interface {
	BatchStatus(ctx context.Context, batchID string) (*research.ProgressSnapshot, error)
}

// ReportArchive uploads a JSON report of every completed batch to the object
// store. It subscribes to batch completion events; a failed upload is logged
// and dropped, the batch result itself lives in the research store.
type ReportArchive struct {
	uploader ObjectUploader
	source   SnapshotSource
	log      zerolog.Logger
}

// archivedReport is the stored report format.
type archivedReport struct {
	BatchID    string                      `json:"batch_id"`
	ArchivedAt time.Time                   `json:"archived_at"`
	Completed  int                         `json:"completed"`
	Total      int                         `json:"total"`
	Stats      research.ScoreStats         `json:"stats"`
	Securities []research.SecurityProgress `json:"securities"`
}

// NewReportArchive creates the archive service.
func NewReportArchive(uploader ObjectUploader, source SnapshotSource, log zerolog.Logger) *ReportArchive {
	return &ReportArchive{
		uploader: uploader,
		source:   source,
		log:      log.With().Str("service", "report_archive").Logger(),
	}
}

// Register subscribes the archive to batch completion events. Bus handlers
// run on the emitting goroutine and must not block, so the upload itself is
// handed off to its own goroutine.
func (a *ReportArchive) Register(bus *events.Bus) {
	bus.Subscribe(events.BatchCompleted, func(event *events.Event) {
		data, ok := event.GetTypedData().(*events.BatchCompletedData)
		if !ok {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := a.Archive(ctx, data.BatchID); err != nil {
				a.log.Error().Err(err).Str("batch_id", data.BatchID).Msg("report archival failed")
			}
		}()
	})
}

// Archive uploads the report for one batch.
func (a *ReportArchive) Archive(ctx context.Context, batchID string) error {
	snap, err := a.source.BatchStatus(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch state: %w", err)
	}

	report := archivedReport{
		BatchID:    batchID,
		ArchivedAt: time.Now().UTC(),
		Completed:  snap.CompletedSecurities,
		Total:      snap.TotalSecurities,
		Stats:      research.BatchScoreStats(*snap),
		Securities: snap.Securities,
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/%s.json", report.ArchivedAt.Format("2006-01-02"), batchID)
	if err := a.uploader.Upload(ctx, key, body); err != nil {
		return err
	}
	a.log.Info().Str("batch_id", batchID).Str("key", key).Msg("batch report archived")
	return nil
}
