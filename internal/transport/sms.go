package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"treksafer/internal/config"
	"treksafer/internal/router"
)

const defaultSMSContext = "treksafer"

// inboundSMS is one message event from the gateway.
type inboundSMS struct {
	FromNumber string `json:"from_number"`
	Body       string `json:"body"`
}

// outboundSMS is the reply event published back through the gateway.
type outboundSMS struct {
	ToNumber   string `json:"to_number"`
	FromNumber string `json:"from_number"`
	Body       string `json:"body"`
}

// smsTransport bridges the SMS gateway's message bus: one long-lived
// subscription on the inbound subject, replies published on the outbound
// subject from the configured sending number.
type smsTransport struct {
	cfg    config.TransportConfig
	svc    router.Service
	logger *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

func newSMSTransport(cfg config.TransportConfig, svc router.Service, logger *slog.Logger) (Transport, error) {
	if cfg.Context == "" {
		cfg.Context = defaultSMSContext
	}
	return &smsTransport{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With("component", "sms-transport", "context", cfg.Context),
	}, nil
}

func (t *smsTransport) Name() string { return "sms" }

func (t *smsTransport) inboundSubject() string  { return fmt.Sprintf("sms.%s.inbound", t.cfg.Context) }
func (t *smsTransport) outboundSubject() string { return fmt.Sprintf("sms.%s.outbound", t.cfg.Context) }

func (t *smsTransport) Listen(ctx context.Context) error {
	conn, err := nats.Connect(t.cfg.GatewayURL,
		nats.UserInfo(t.cfg.ProjectID, t.cfg.APIToken),
		nats.Name("treksafer-sms"),
	)
	if err != nil {
		return fmt.Errorf("sms transport connect to gateway: %w", err)
	}

	sub, err := conn.Subscribe(t.inboundSubject(), t.handle)
	if err != nil {
		conn.Close()
		return fmt.Errorf("sms transport subscribe %s: %w", t.inboundSubject(), err)
	}

	t.mu.Lock()
	t.conn = conn
	t.sub = sub
	t.mu.Unlock()

	t.logger.Info("subscribed", "subject", t.inboundSubject())
	<-ctx.Done()
	return nil
}

func (t *smsTransport) handle(msg *nats.Msg) {
	var in inboundSMS
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		t.logger.Warn("undecodable inbound SMS event", "error", err)
		return
	}

	t.logger.Info("inbound SMS", "from", in.FromNumber)
	response := t.svc.Handle(in.Body)

	payload, err := json.Marshal(outboundSMS{
		ToNumber:   in.FromNumber,
		FromNumber: t.cfg.PhoneNumber,
		Body:       response,
	})
	if err != nil {
		t.logger.Error("failed to encode outbound SMS", "error", err)
		return
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Publish(t.outboundSubject(), payload); err != nil {
		t.logger.Error("failed to publish outbound SMS", "to", in.FromNumber, "error", err)
	}
}

func (t *smsTransport) Stop(ctx context.Context) error {
	t.mu.Lock()
	conn, sub := t.conn, t.sub
	t.conn, t.sub = nil, nil
	t.mu.Unlock()

	if sub != nil {
		_ = sub.Drain()
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}
