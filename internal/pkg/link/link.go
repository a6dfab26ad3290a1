package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/config"
	"github.com/anicoll/dronelink/internal/pkg/model"
	ws "github.com/anicoll/dronelink/pkg/sockets"
)

var ErrNotConnected = errors.New("link not connected")

const defaultPingInterval = 4 * time.Second

// MessageHandler receives every decoded inbound message, in arrival order.
type MessageHandler interface {
	HandleMessage(msg model.Message)
}

type service struct {
	cfg     *config.LinkConfig
	handler MessageHandler
	errChan chan error
	logger  *zap.Logger

	mu   sync.RWMutex
	conn ws.Connection
}

func New(cfg *config.LinkConfig, handler MessageHandler, errChan chan error) *service {
	return &service{
		cfg:     cfg,
		handler: handler,
		errChan: errChan,
		logger:  zap.L(), // returns the global logger.
	}
}

func (s *service) sendIfErr(err error) {
	if err == nil || s.errChan == nil {
		return
	}
	select {
	case s.errChan <- err:
	default:
		s.logger.Error("error channel full, dropping error", zap.Error(err))
	}
}

// Connect dials the link. Inbound frames are decoded and handed to the handler
// until the connection drops; Done reports when that happens.
func (s *service) Connect(ctx context.Context) error {
	pingInterval := s.cfg.PingInterval
	if pingInterval == 0 {
		pingInterval = defaultPingInterval
	}
	opts := []func(*ws.Conn){
		ws.OnMessage(s.onMessage),
		ws.OnError(s.onError),
		ws.WithPingInterval(pingInterval),
	}
	if s.cfg.InsecureSkipVerify {
		opts = append(opts, ws.InsecureSkipVerify())
	}
	conn := ws.New(opts...)

	// installed before dialing so replies to the first inbound frames can be sent.
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Debug("connecting to", zap.String("url", s.cfg.URL))
	if err := conn.Dial(ctx, s.cfg.URL); err != nil {
		s.logger.Error("failed to connect to", zap.String("url", s.cfg.URL), zap.Error(err))
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		return err
	}
	s.logger.Info("successfully connected to", zap.String("url", s.cfg.URL))
	return nil
}

// Done is closed when the current connection stops reading.
func (s *service) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.conn.Done()
}

func (s *service) Send(msg model.Message) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := model.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.ID, err)
	}
	return conn.Send(ws.Msg{Body: data})
}

func (s *service) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *service) onMessage(data []byte, _ ws.Connection) {
	msg, err := model.DecodeFrame(data)
	if err != nil {
		s.logger.Warn("dropping undecodable frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}
	s.handler.HandleMessage(msg)
}

func (s *service) onError(err error) {
	s.logger.Warn("link error", zap.Error(err))
	s.sendIfErr(fmt.Errorf("link %s: %w", s.cfg.URL, err))
}

// HandlerFunc adapts a function to a MessageHandler.
type HandlerFunc func(msg model.Message)

func (f HandlerFunc) HandleMessage(msg model.Message) {
	f(msg)
}
