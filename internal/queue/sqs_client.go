package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

const defaultRegion = "us-east-1"

// AttrType carries Message.Type as an SQS message attribute so consumers
// and redrive tooling can filter without decoding the body.
const AttrType = "type"

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient publishes workflow events to one SQS queue. FIFO queues are
// grouped per application so transitions arrive in commit order.
type SQSClient struct {
	api      sqsSender
	queueURL string
	fifo     bool
}

func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL)
}

func newSQSClient(api sqsSender, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, errors.New("EVENTS_SQS_QUEUE_URL is required")
	}
	return &SQSClient{
		api:      api,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}, nil
}

func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	input, err := s.sendInput(msg)
	if err != nil {
		return err
	}
	if _, err := s.api.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

func (s *SQSClient) sendInput(msg Message) (*sqs.SendMessageInput, error) {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("encode sqs message: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			AttrType: {DataType: aws.String("String"), StringValue: aws.String(msg.Type)},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(msg.ApplicationID)
		input.MessageDeduplicationId = aws.String(dedupID(msg))
	}
	return input, nil
}

// dedupID is stable for one transition, so a retried publish inside the
// FIFO dedup window is dropped by SQS.
func dedupID(msg Message) string {
	key := strings.Join([]string{msg.ApplicationID, msg.From, msg.To, msg.At}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

var _ Client = (*SQSClient)(nil)
