package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"patent-backend/internal/queue"
	"patent-backend/internal/shared/metrics"
	"patent-backend/internal/shared/telemetry"
	"patent-backend/internal/workflow"
)

// Service turns workflow events into notifications.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, Now: time.Now}
}

// HandleStatusChanged records a notification for the applicant. The
// notification ID derives from the event, so redelivered messages are
// stored once.
func (s *Service) HandleStatusChanged(ctx context.Context, msg queue.Message, channel string) error {
	if msg.Type != queue.TypeStatusChanged {
		return fmt.Errorf("%w: type %q", ErrInvalidEvent, msg.Type)
	}
	if strings.TrimSpace(msg.ApplicationID) == "" || strings.TrimSpace(msg.ApplicantID) == "" {
		return fmt.Errorf("%w: application and applicant ids required", ErrInvalidEvent)
	}

	created := msg.OccurredAt()
	if created.IsZero() {
		created = s.now()
	}
	n := Notification{
		ID:            eventID(msg),
		UserID:        msg.ApplicantID,
		ApplicationID: msg.ApplicationID,
		Message:       describe(msg),
		FromStatus:    msg.From,
		ToStatus:      msg.To,
		CreatedAt:     created,
	}
	if err := s.Repo.Create(ctx, n); err != nil {
		return err
	}

	metrics.IncNotificationsDelivered(channel)
	telemetry.Info("notification.created", map[string]any{
		"application_id": msg.ApplicationID,
		"user_id":        msg.ApplicantID,
		"to":             msg.To,
		"channel":        channel,
		"request_id":     msg.RequestID,
	})
	return nil
}

// List returns a user's notifications.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	return s.Repo.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks a notification read for its owner.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.Repo.MarkRead(ctx, userID, id, s.now())
}

// InlineClient delivers queue messages straight to the service, for
// deployments without a queue.
func (s *Service) InlineClient() queue.Client {
	return queue.ClientFunc(func(ctx context.Context, msg queue.Message) error {
		return s.HandleStatusChanged(ctx, msg, "inline")
	})
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func eventID(msg queue.Message) string {
	key := strings.Join([]string{msg.ApplicationID, msg.From, msg.To, msg.At}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func describe(msg queue.Message) string {
	title := msg.Title
	if title == "" {
		title = "Your application"
	} else {
		title = fmt.Sprintf("Your application %q", title)
	}
	switch workflow.Status(msg.To) {
	case workflow.StatusRejected:
		return title + " was rejected."
	case workflow.StatusPatentGranted:
		return title + " has been granted a patent."
	case workflow.StatusPatentRefused:
		return title + " was refused a patent."
	}
	if from, ok := workflow.IndexOf(workflow.Status(msg.From)); ok {
		if to, ok := workflow.IndexOf(workflow.Status(msg.To)); ok && to < from {
			return fmt.Sprintf("%s was moved back to %q.", title, msg.To)
		}
	}
	return fmt.Sprintf("%s moved to %q.", title, msg.To)
}
