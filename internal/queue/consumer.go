package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const securityLogFile = "security.log"

// StartSessionConsumer connects to the broker, declares the session events
// queue (durable) and appends every event to <logDir>/security.log as one
// human-readable line. Dialling is retried with exponential backoff and the
// consumer reconnects whenever the delivery stream ends. It returns only when
// ctx is cancelled.
func StartSessionConsumer(ctx context.Context, url, queueName, logDir string, log zerolog.Logger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // until ctx is cancelled

	for {
		var conn *amqp.Connection
		dial := func() error {
			c, err := amqp.Dial(url)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}
		notify := func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("retry_in", wait).Msg("session-consumer: dial failed")
		}
		if err := backoff.RetryNotify(dial, backoff.WithContext(bo, ctx), notify); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		err := consumeLoop(ctx, conn, queueName, logDir, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("session-consumer: consume loop ended; reconnecting")
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName, logDir string, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("session-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(logDir, d.Body); err != nil {
			log.Error().Err(err).Msg("session-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one SessionEvent and appends it to the security log.
func HandleMessage(logDir string, body []byte) error {
	var ev SessionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.PrincipalID == "" {
		return errors.New("event without type or principal")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, securityLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single log line.
func FormatEvent(ev SessionEvent) string {
	line := fmt.Sprintf("[%s] %s | principal_id=%s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.PrincipalID)
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	if ev.Type == EventReuseDetected {
		line += fmt.Sprintf(" | revoked=%t", ev.Revoked)
	}
	return line + "\n"
}
