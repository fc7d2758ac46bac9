package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrTopicNotReady = errors.New("snapshot topic not ready")

const (
	snapshotPartitions  = 4
	partitionPolls      = 5
	partitionPollPeriod = 200 * time.Millisecond
)

// TopicEnsurer makes sure the snapshot topic can take writes.
type TopicEnsurer interface {
	EnsureTopic(ctx context.Context) error
}

// TopicBootstrap creates the snapshot topic through the cluster controller and waits for
// its partitions. Once the topic has been seen ready the check is skipped for good;
// until then every call retries, so a broker that comes up late is picked up by a later cycle.
type TopicBootstrap struct {
	brokers []string
	topic   kafka.TopicConfig
	dialer  KafkaDialer
	sleeper Sleeper
	logger  *zap.Logger

	mu    sync.Mutex
	ready bool
}

var _ TopicEnsurer = (*TopicBootstrap)(nil)

func NewTopicBootstrap(brokers []string, topic string, dialer KafkaDialer, sleeper Sleeper, logger *zap.Logger) *TopicBootstrap {
	return &TopicBootstrap{
		brokers: brokers,
		topic: kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     snapshotPartitions,
			ReplicationFactor: 1,
		},
		dialer:  dialer,
		sleeper: sleeper,
		logger:  logger.With(zap.String("topic", topic)),
	}
}

func (b *TopicBootstrap) EnsureTopic(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ready {
		return nil
	}

	conn, err := b.dialAny(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// A failed create is not fatal: the topic may exist already or be auto-created.
	if err := b.create(ctx, conn); err != nil {
		b.logger.Warn("Snapshot topic creation failed", zap.Error(err))
	}

	partitions, err := b.awaitPartitions(ctx, conn)
	if err != nil {
		return err
	}

	b.ready = true
	b.logger.Info("Snapshot topic ready", zap.Int("partitions", partitions))
	return nil
}

func (b *TopicBootstrap) dialAny(ctx context.Context) (KafkaConn, error) {
	var lastErr error
	for _, addr := range b.brokers {
		conn, err := b.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dial brokers %v: %w", b.brokers, lastErr)
}

func (b *TopicBootstrap) create(ctx context.Context, conn KafkaConn) error {
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}

	controllerConn, err := b.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(b.topic)
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	return err
}

func (b *TopicBootstrap) awaitPartitions(ctx context.Context, conn KafkaConn) (int, error) {
	var lastErr error
	for i := 0; i < partitionPolls; i++ {
		partitions, err := conn.ReadPartitions(b.topic.Topic)
		if err == nil && len(partitions) > 0 {
			return len(partitions), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		b.sleeper.Sleep(partitionPollPeriod)
	}
	if lastErr == nil {
		return 0, ErrTopicNotReady
	}
	return 0, fmt.Errorf("%w: %v", ErrTopicNotReady, lastErr)
}
