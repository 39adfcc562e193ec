// Package publisher ships audit events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "covera/pkg/platform/audit"
)

// DefaultTopic is the audit event topic.
const DefaultTopic = "covera.audit"

// Kafka publishes audit events synchronously. A failed produce surfaces to the
// caller; audit emission is best-effort at the service layer, not here.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// payload is the JSON structure published to Kafka.
type payload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Principal string `json:"principal"`
	PolicyID  int64  `json:"policy_id,omitempty"`
	ClaimID   int    `json:"claim_id,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewKafka connects to the given brokers and ensures the topic exists.
func NewKafka(ctx context.Context, brokers []string, topic string) (*Kafka, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	// CreateTopic returns an error response when the topic already exists;
	// only transport-level failures are fatal here.
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		if pingErr := client.Ping(ctx); pingErr != nil {
			client.Close()
			return nil, fmt.Errorf("kafka unreachable: %w", pingErr)
		}
	}

	return &Kafka{client: client, topic: topic}, nil
}

// Append publishes an audit event, blocking until the broker acknowledges it.
func (k *Kafka) Append(ctx context.Context, event audit.Event) error {
	body := payload{
		ID:        uuid.NewString(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    string(event.Action),
		Principal: event.Principal.String(),
		PolicyID:  int64(event.PolicyID),
		ClaimID:   int(event.ClaimID),
		Amount:    int64(event.Amount),
		RequestID: event.RequestID,
	}
	value, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.PolicyID.String()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
