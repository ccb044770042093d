package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"bustix/internal/logger"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

type NATSConfig struct {
	URL       string
	ClusterID string
	ClientID  string
}

// NATSClient publishes and consumes notification events on NATS Streaming.
type NATSClient struct {
	conn stan.Conn
}

func NewNATSClient(cfg NATSConfig) (*NATSClient, error) {
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])
	conn, err := stan.Connect(cfg.ClusterID, clientID,
		stan.NatsURL(cfg.URL),
		stan.Pings(10, 5),
		stan.SetConnectionLostHandler(func(_ stan.Conn, err error) {
			logger.Get().Error("nats streaming connection lost", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS Streaming: %w", err)
	}
	logger.Get().Info("connected to NATS Streaming", "url", cfg.URL, "cluster", cfg.ClusterID, "client", clientID)
	return &NATSClient{conn: conn}, nil
}

func (nc *NATSClient) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// SubscribeQueue registers a durable queue subscription with manual acks; a
// handler error leaves the message unacked for redelivery.
func (nc *NATSClient) SubscribeQueue(subject, queue string, handle func(Event) error) (stan.Subscription, error) {
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(msg *stan.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.WithFields("subject", subject).Error("discarding malformed event", "error", err)
			_ = msg.Ack()
			return
		}
		if err := handle(ev); err != nil {
			logger.WithFields("subject", subject, "request_id", ev.RequestID).Warn("event handling failed", "error", err)
			return
		}
		_ = msg.Ack()
	},
		stan.DurableName(subject+"-"+queue+"-durable"),
		stan.SetManualAckMode(),
		stan.AckWait(30*time.Second),
		stan.MaxInflight(8),
	)
	if err != nil {
		return nil, fmt.Errorf("queue subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

func (nc *NATSClient) Close() error {
	if nc.conn != nil {
		return nc.conn.Close()
	}
	return nil
}
