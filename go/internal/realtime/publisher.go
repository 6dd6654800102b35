package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher forwards a change event to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, ev datastore.ChangeEvent) error
}

type JetStreamPublisher struct {
	js     jetstream.JetStream
	config JetStreamConfig
	clock  clockwork.Clock
}

// NewJetStreamPublisher makes sure the change stream exists and returns a publisher for it
func NewJetStreamPublisher(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	p := &JetStreamPublisher{js: js, config: cfg, clock: clockwork.NewRealClock()}
	if err := p.ensureStream(ctx); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Scoreboard table change notifications",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := p.streamConfig()

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("updated JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, ev datastore.ChangeEvent) error {
	subject := p.config.Subject(ev.Table)
	eventID := uuid.New()

	data, err := encodeChange(eventID, ev, p.clock.Now())
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Change-Op":    []string{string(ev.Op)},
			"Change-Table": []string{string(ev.Table)},
		},
	},
		jetstream.WithMsgID(eventID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("record_id", ev.RecordID.String()).
		Uint64("sequence", ack.Sequence).
		Msg("published change")
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates &&
		len(a.Subjects) == len(b.Subjects) &&
		(len(a.Subjects) == 0 || a.Subjects[0] == b.Subjects[0])
}
