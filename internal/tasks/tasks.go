package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"releasefinder/internal/metrics"
)

type Kind string

const (
	KindFileSearch      Kind = "file_search"
	KindProcessDownload Kind = "process_download"
)

// Message is one job handed to the download workers.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"userId"`
	ReleaseID string    `json:"releaseId"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Engine    string    `json:"engine,omitempty"`
	OptionID  string    `json:"optionId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

var ErrInvalidMessage = errors.New("invalid task message")

// Publisher hands messages to the external task queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// NewMessage fills in the id and creation time.
func NewMessage(kind Kind, userID, releaseID, artist, title string) Message {
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    strings.TrimSpace(userID),
		ReleaseID: strings.TrimSpace(releaseID),
		Artist:    strings.TrimSpace(artist),
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now().UTC(),
	}
}

func (m Message) Validate() error {
	switch m.Kind {
	case KindFileSearch:
	case KindProcessDownload:
		if strings.TrimSpace(m.OptionID) == "" {
			return fmt.Errorf("%w: option id is required for %s", ErrInvalidMessage, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if m.ID == "" || m.ReleaseID == "" || m.UserID == "" {
		return fmt.Errorf("%w: id, user and release are required", ErrInvalidMessage)
	}
	return nil
}

func Encode(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// LogPublisher only logs messages. It is used when no queue is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		metrics.TasksPublishedTotal.WithLabelValues(string(msg.Kind), "invalid").Inc()
		return err
	}
	p.logger.Info("task queue disabled, dropping message",
		slog.String("id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.String("user", msg.UserID),
		slog.String("release", msg.ReleaseID),
	)
	metrics.TasksPublishedTotal.WithLabelValues(string(msg.Kind), "dropped").Inc()
	return nil
}
