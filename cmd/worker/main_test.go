package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"patent-backend/internal/queue"
	"patent-backend/internal/shared/telemetry"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeNotifier struct {
	err error
}

func (f fakeNotifier) HandleStatusChanged(ctx context.Context, msg queue.Message, channel string) error {
	return f.err
}

func sqsMessage(t *testing.T, id, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func statusBody(t *testing.T) string {
	t.Helper()
	msg := queue.StatusChanged("app-1", "student-1", "Submitted", "Reviewed by PCC Admin", time.Now())
	msg.RequestID = "req-1"
	raw, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	telemetry.SetLogger(zap.NewNop())
	client := &fakeSQS{}
	handleMessage(context.Background(), fakeNotifier{}, client, "queue", sqsMessage(t, "m1", statusBody(t)))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	telemetry.SetLogger(zap.NewNop())
	client := &fakeSQS{}
	handleMessage(context.Background(), fakeNotifier{err: errors.New("boom")}, client, "queue", sqsMessage(t, "m2", statusBody(t)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnprocessableMessages(t *testing.T) {
	telemetry.SetLogger(zap.NewNop())
	for _, body := range []string{"{bad-json", "", `{"type":"status_changed","applicantId":"student-1"}`} {
		client := &fakeSQS{}
		handleMessage(context.Background(), fakeNotifier{}, client, "queue", sqsMessage(t, "m3", body))
		if len(client.deleted) != 1 {
			t.Fatalf("body %q: expected delete, got %d", body, len(client.deleted))
		}
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqsMessage(t, "m4", "")); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
