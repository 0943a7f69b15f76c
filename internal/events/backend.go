package events

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Supported backends.
const (
	BackendNone      = "none"
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Config selects the message bus.
type Config struct {
	Backend     string
	NATSURL     string
	TopicPrefix string
}

// Open builds a Publisher for cfg.Backend. It returns nil for BackendNone.
func Open(cfg Config, logger *slog.Logger, recorder Recorder) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	var (
		pub message.Publisher
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendGoChannel:
		pub = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	case BackendNATS:
		pub, err = newNATSPublisher(cfg.NATSURL, logger, wmLogger)
	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewPublisher(pub, Options{
		TopicPrefix: cfg.TopicPrefix,
		Recorder:    recorder,
		Logger:      logger,
	}), nil
}

func newNATSPublisher(url string, logger *slog.Logger, wmLogger watermill.LoggerAdapter) (message.Publisher, error) {
	if url == "" {
		url = natsgo.DefaultURL
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("room-booking"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill NATS publisher: %w", err)
	}
	return pub, nil
}
