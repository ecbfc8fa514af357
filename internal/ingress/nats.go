package ingress

import (
	"context"
	"fmt"

	gonats "github.com/nats-io/nats.go"

	"github.com/data-tracks/DataTracks/internal/queue"
	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/pkg/log"
	"github.com/data-tracks/DataTracks/pkg/nats"
)

// natsSource decodes trains from a NATS subject and pushes them onto a
// station's inbound line, built on the teacher's pkg/nats.Client.
type natsSource struct {
	client  *nats.Client
	subject string
}

// newNatsSource builds a natsSource from a parsed binding's params: `url`
// (required) and `subject` (required).
func newNatsSource(params map[string]string) (*natsSource, error) {
	url, subject, err := natsParams(params)
	if err != nil {
		return nil, err
	}
	client, err := nats.NewClient(&nats.NatsConfig{Address: url})
	if err != nil {
		return nil, fmt.Errorf("ingress: nats source: %w", err)
	}
	return &natsSource{client: client, subject: subject}, nil
}

// Run subscribes to the bound subject and forwards every decodable
// message onto line until ctx is cancelled. Messages that fail to decode
// as a Train are logged and dropped rather than stalling the subject.
func (s *natsSource) Run(ctx context.Context, line *queue.Line) error {
	ch := make(chan *gonats.Msg, 64)
	if err := s.client.SubscribeChan(s.subject, ch); err != nil {
		return fmt.Errorf("ingress: nats source subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			t, err := train.Decode(msg.Data)
			if err != nil {
				log.Warnf("ingress: nats source: dropping undecodable message on %q: %v", s.subject, err)
				continue
			}
			if err := line.Send(ctx, t); err != nil {
				return err
			}
		}
	}
}

// Close releases the underlying NATS connection.
func (s *natsSource) Close() error {
	s.client.Close()
	return nil
}

// natsSink drains a station's outbound line and republishes every train
// as an encoded message on a NATS subject.
type natsSink struct {
	client  *nats.Client
	subject string
}

// newNatsSink builds a natsSink from a parsed binding's params: `url`
// (required) and `subject` (required).
func newNatsSink(params map[string]string) (*natsSink, error) {
	url, subject, err := natsParams(params)
	if err != nil {
		return nil, err
	}
	client, err := nats.NewClient(&nats.NatsConfig{Address: url})
	if err != nil {
		return nil, fmt.Errorf("ingress: nats sink: %w", err)
	}
	return &natsSink{client: client, subject: subject}, nil
}

// Run drains line and publishes each train until ctx is cancelled or the
// line closes.
func (s *natsSink) Run(ctx context.Context, line *queue.Line) error {
	for {
		t, ok, err := line.Receive(ctx)
		if err != nil {
			return nil
		}
		if !ok {
			return nil
		}
		if err := s.client.Publish(s.subject, train.Encode(t)); err != nil {
			return fmt.Errorf("ingress: nats sink publish: %w", err)
		}
	}
}

// Close releases the underlying NATS connection.
func (s *natsSink) Close() error {
	s.client.Close()
	return nil
}

func natsParams(params map[string]string) (url, subject string, err error) {
	url, ok := params["url"]
	if !ok || url == "" {
		return "", "", fmt.Errorf("ingress: nats binding missing required param %q", "url")
	}
	subject, ok = params["subject"]
	if !ok || subject == "" {
		return "", "", fmt.Errorf("ingress: nats binding missing required param %q", "subject")
	}
	return url, subject, nil
}
