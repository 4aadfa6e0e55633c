package main

// Build the orphan sweeper Lambda (go-fitz links MuPDF, so cgo stays on):
//   GOOS=linux GOARCH=amd64 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resumind-backend/internal/bootstrap"
	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/telemetry"
	"resumind-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	sweeper  workerproc.Sweeper
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	sweeper = built.Sweeper()
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return sweepBatch(ctx, sweeper, event), nil
}

// sweepBatch reports sweep failures back to SQS for redelivery. Unparseable
// records are dropped.
func sweepBatch(ctx context.Context, s workerproc.Sweeper, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		msg, res, err := workerproc.HandleMessage(ctx, s, record.Body)
		metrics.IncOrphanSweep(workerproc.Outcome(res, err))
		if err == nil {
			continue
		}
		fields := map[string]any{
			"analysis_id":    msg.AnalysisID,
			"sqs_message_id": record.MessageId,
			"error":          err.Error(),
		}
		if workerproc.IsUnrecoverable(err) {
			telemetry.Error("lambda.orphan.unrecoverable", fields)
			continue
		}
		telemetry.Error("lambda.orphan.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
