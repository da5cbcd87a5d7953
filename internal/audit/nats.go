package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hearth-panel/hearth-ctl/internal/logging"
)

// Publisher publishes activity events to NATS as JSON on
// "{subject}.{event type}", e.g. hearth.activity.server:create.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subject string) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("hearth-ctl"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event Event) string {
	return p.subject + "." + string(event.Type)
}

// Record implements Recorder.
func (p *Publisher) Record(ctx context.Context, event Event) error {
	if p.nc == nil || p.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.nc.Publish(p.Subject(event), payload)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			logging.Debug("nats drain failed", "error", err)
		}
		p.nc.Close()
	}
}
