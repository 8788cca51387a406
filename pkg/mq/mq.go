package mq

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"dsfuzz/config"
)

const connectionPoolSize = 4

type RabbitMQ interface {
	// GetChannel returns a fresh channel on a live connection, or nil when
	// no connection can be established. Callers own closing the channel.
	GetChannel() *amqp.Channel
}

type rabbitMQImpl struct {
	logger *zap.Logger
	url    string
	ctx    context.Context

	mu          sync.Mutex
	connections []*mqConnection
}

type mqConnection struct {
	conn      *amqp.Connection
	closeChan chan *amqp.Error
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

type RabbitMQParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func NewRabbitMQ(p RabbitMQParams) RabbitMQ {
	mqCtx, cancel := context.WithCancel(context.Background())

	svc := &rabbitMQImpl{
		logger: p.Logger.Named("mq"),
		url:    p.Config.RabbitMQURL,
		ctx:    mqCtx,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			svc.logger.Debug("initializing RabbitMQ connection pool", zap.Int("pool_size", connectionPoolSize))
			for i := 0; i < connectionPoolSize; i++ {
				conn, err := svc.dial()
				if err != nil {
					svc.logger.Error("failed to create initial RabbitMQ connection", zap.Error(err))
					return err
				}
				svc.mu.Lock()
				svc.connections = append(svc.connections, conn)
				svc.mu.Unlock()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
	return svc
}

func (r *rabbitMQImpl) GetChannel() *amqp.Channel {
	conn, err := r.activeConnection()
	if err != nil {
		r.logger.Error("no RabbitMQ connection available", zap.Error(err))
		return nil
	}
	ch, err := conn.conn.Channel()
	if err != nil {
		r.logger.Error("failed to open RabbitMQ channel", zap.Error(err))
		return nil
	}
	return ch
}

func (r *rabbitMQImpl) activeConnection() (*mqConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alive := r.connections[:0]
	for _, conn := range r.connections {
		conn.mu.Lock()
		if !conn.closed {
			alive = append(alive, conn)
		}
		conn.mu.Unlock()
	}
	r.connections = alive

	// top the pool back up after broker-side closes
	for len(r.connections) < connectionPoolSize {
		conn, err := r.dial()
		if err != nil {
			r.logger.Error("failed to replenish RabbitMQ connection", zap.Error(err))
			break
		}
		r.connections = append(r.connections, conn)
	}

	if len(r.connections) == 0 {
		return nil, errors.New("no active RabbitMQ connections")
	}
	return r.connections[rand.Intn(len(r.connections))], nil
}

func (r *rabbitMQImpl) dial() (*mqConnection, error) {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return nil, err
	}
	mConn := &mqConnection{
		conn:      conn,
		closeChan: make(chan *amqp.Error),
		logger:    r.logger,
	}
	go mConn.monitor(r.ctx)
	return mConn, nil
}

// monitor marks the connection closed when the broker drops it, and closes
// it when the app shuts down.
func (c *mqConnection) monitor(ctx context.Context) {
	c.conn.NotifyClose(c.closeChan)

	select {
	case err := <-c.closeChan:
		c.logger.Warn("RabbitMQ connection closed", zap.Error(err))
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	case <-ctx.Done():
	}

	c.conn.Close()
}
