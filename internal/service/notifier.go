package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notification is the body delivered to external sinks.
type Notification struct {
	EventType string    `json:"eventType"`
	Payload   any       `json:"payload"`
	SentAt    time.Time `json:"sentAt"`
}

// Notifier delivers a notification to one external sink. Best-effort; callers log and ignore errors.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier POSTs the notification as JSON to a fixed URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook sink. The request deadline comes from ctx.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{}}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// RedisNotifier publishes the notification on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis and pings it with a short timeout.
func NewRedisNotifier(addr, password string, db int, channel string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisNotifier{client: client, channel: channel}, nil
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

func (r *RedisNotifier) Close() error { return r.client.Close() }

// AMQPNotifier publishes the notification to a durable RabbitMQ queue.
type AMQPNotifier struct {
	url   string
	queue string
}

// NewAMQPNotifier creates a RabbitMQ sink. Each publish dials its own connection.
func NewAMQPNotifier(url, queue string) *AMQPNotifier {
	return &AMQPNotifier{url: url, queue: queue}
}

func (a *AMQPNotifier) Notify(ctx context.Context, n Notification) error {
	dialTimeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(dl)
	}
	conn, err := amqp.DialConfig(a.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", a.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.SentAt,
		Type:         n.EventType,
		Body:         body,
	})
}

// KafkaNotifier writes the notification to a Kafka topic keyed by event type.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a Kafka sink. Call Close when shutting down.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(n.EventType), Value: body})
}

func (k *KafkaNotifier) Close() error { return k.writer.Close() }

// MultiNotifier fans a notification out to every configured sink.
type MultiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier groups sinks; nil entries are skipped.
func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiNotifier) Len() int { return len(m.sinks) }

// Notify delivers to all sinks concurrently; each gets the full ctx deadline.
func (m *MultiNotifier) Notify(ctx context.Context, n Notification) error {
	errList := make([]error, len(m.sinks))
	var g errgroup.Group
	for i, s := range m.sinks {
		i, s := i, s
		g.Go(func() error {
			errList[i] = s.Notify(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errList...)
}

// Close closes every sink that holds resources.
func (m *MultiNotifier) Close() error {
	var errList []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errList = append(errList, err)
			}
		}
	}
	return errors.Join(errList...)
}

// NewNotifierFromConfig builds the sinks enabled in cfg. Unreachable Redis is logged and skipped.
func NewNotifierFromConfig(cfg *config.Config, log *zap.Logger) *MultiNotifier {
	var sinks []Notifier
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.RedisAddr != "" {
		rn, err := NewRedisNotifier(cfg.Notify.RedisAddr, cfg.Notify.RedisPass, cfg.Notify.RedisDB, cfg.Notify.RedisChannel)
		if err != nil {
			log.Warn("redis notifier disabled", zap.Error(err))
		} else {
			sinks = append(sinks, rn)
		}
	}
	if cfg.Notify.AMQPURL != "" {
		sinks = append(sinks, NewAMQPNotifier(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue))
	}
	if len(cfg.Notify.KafkaBrokers) > 0 && cfg.Notify.KafkaTopic != "" {
		sinks = append(sinks, NewKafkaNotifier(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic))
	}
	log.Info("external notifiers configured", zap.Int("sinks", len(sinks)))
	return NewMultiNotifier(sinks...)
}
