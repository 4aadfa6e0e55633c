package analysis

import (
	"context"

	"resumind-backend/internal/queue"
)

// OrphanReporter is told about blobs a failed analysis left behind.
type OrphanReporter interface {
	ReportOrphans(ctx context.Context, report OrphanReport) error
}

// OrphanReport describes one failed analysis' uploaded blobs.
type OrphanReport struct {
	AnalysisID string
	RequestID  string
	Stage      Stage
	Reason     string
	Paths      []string
}

// QueueReporter publishes orphan reports to a queue for the sweeper worker.
type QueueReporter struct {
	Queue queue.Client
}

func (r QueueReporter) ReportOrphans(ctx context.Context, report OrphanReport) error {
	msg := queue.NewOrphanMessage(report.AnalysisID, string(report.Stage), report.Reason, report.Paths)
	msg.RequestID = report.RequestID
	return r.Queue.Send(ctx, msg)
}
