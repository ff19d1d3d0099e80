package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"patent-backend/internal/bootstrap"
	"patent-backend/internal/shared/config"
	"patent-backend/internal/shared/metrics"
	"patent-backend/internal/shared/telemetry"
	"patent-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	notifier workerproc.Notifier
)

func initApp() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	notifier = app.Notifications
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, notifier, event), nil
}

// processBatch reports retryable failures back to SQS. Messages that can
// never succeed are logged and acknowledged.
func processBatch(ctx context.Context, n workerproc.Notifier, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		err := workerproc.Process(ctx, n, "lambda", record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerEvents("completed")
		case workerproc.Unrecoverable(err):
			telemetry.Error("lambda_worker.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncWorkerEvents("dropped")
		default:
			telemetry.Error("lambda_worker.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncWorkerEvents("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
