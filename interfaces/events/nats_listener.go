// Package events consumes export backend notifications from NATS. A
// file-created notification short-circuits polling: the bridge checks the
// backend immediately instead of waiting for the next throttled poll.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/pkg/schema"
)

const handleTimeout = 30 * time.Second

// Listener subscribes to file-created notifications and feeds them to the
// status bridge. Malformed payloads are logged and dropped; the intake path
// never fails a message back to the broker.
type Listener struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	bridge  *bridge.Bridge
	subject string
	logger  *zap.Logger
}

// NewListener connects to NATS. The connection reconnects indefinitely so a
// broker restart does not orphan running operations.
func NewListener(url, subject string, statusBridge *bridge.Bridge, logger *zap.Logger) (*Listener, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Listener{
		conn:    conn,
		bridge:  statusBridge,
		subject: subject,
		logger:  logger,
	}, nil
}

// Start subscribes to the notification subject.
func (l *Listener) Start() error {
	sub, err := l.conn.Subscribe(l.subject, l.handle)
	if err != nil {
		return err
	}
	l.sub = sub
	l.logger.Info("listening for report file notifications", zap.String("subject", l.subject))
	return nil
}

func (l *Listener) handle(msg *nats.Msg) {
	var event schema.FileCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		l.logger.Warn("dropping undecodable notification", zap.Error(err))
		return
	}

	instanceID, err := bridge.ParseSubject(event.Subject)
	if err != nil {
		l.logger.Warn("dropping notification with unparseable subject",
			zap.String("subject", event.Subject),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	l.bridge.CheckOnNotification(ctx, instanceID)
}

// Close drains the subscription and connection.
func (l *Listener) Close() {
	if l.conn != nil {
		_ = l.conn.Drain()
	}
}
