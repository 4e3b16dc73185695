package broadcast

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dialAttemptTimeout  = 4 * time.Second
	minDialBackoff      = 200 * time.Millisecond
	maxDialBackoff      = 2 * time.Second
	defaultWriteTimeout = time.Second
)

// MeshConfig configures a QUIC relay between processes.
type MeshConfig struct {
	// ListenAddr is the UDP address to accept peers on. Empty derives it
	// from the channel name.
	ListenAddr string
	// Peers are addresses this node dials. Every node dials every other
	// node; inbound streams are read-only and outbound streams write-only.
	Peers        []string
	WriteTimeout time.Duration
}

// Mesh relays a local Channel to remote processes over QUIC. Messages
// published locally are written to every connected peer; messages read
// from peers are republished on the local channel.
type Mesh struct {
	config   MeshConfig
	local    Channel
	logger   *zap.Logger
	quicConf *quic.Config

	mu      sync.Mutex
	senders map[string]*meshSender
	addr    net.Addr
	ready   chan struct{}
}

type meshSender struct {
	mu     sync.Mutex
	conn   *quic.Conn
	stream *quic.Stream
}

// NewMesh creates a relay for local.
func NewMesh(local Channel, config MeshConfig, logger *zap.Logger) *Mesh {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr(local.Name())
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteTimeout
	}
	return &Mesh{
		config:   config,
		local:    local,
		logger:   logger.With(zap.String("channel", local.Name())),
		quicConf: defaultQUICConfig(),
		senders:  make(map[string]*meshSender),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (mesh *Mesh) Ready() <-chan struct{} {
	return mesh.ready
}

// Addr returns the bound listen address, or nil before Ready.
func (mesh *Mesh) Addr() net.Addr {
	mesh.mu.Lock()
	defer mesh.mu.Unlock()
	return mesh.addr
}

// Connected returns the number of peers with an open outbound stream.
func (mesh *Mesh) Connected() int {
	mesh.mu.Lock()
	defer mesh.mu.Unlock()
	return len(mesh.senders)
}

// Run listens, dials peers and relays until ctx is done.
func (mesh *Mesh) Run(ctx context.Context) error {
	tlsConf, err := newServerTLSConfig()
	if err != nil {
		return fmt.Errorf("mesh tls config: %w", err)
	}

	listener, err := quic.ListenAddr(mesh.config.ListenAddr, tlsConf, mesh.quicConf)
	if err != nil {
		return fmt.Errorf("mesh listen: %w", err)
	}

	mesh.mu.Lock()
	mesh.addr = listener.Addr()
	mesh.mu.Unlock()
	close(mesh.ready)
	mesh.logger.Info("Broadcast mesh listening",
		zap.String("addr", listener.Addr().String()),
		zap.Strings("peers", mesh.config.Peers))

	unsubscribe := mesh.local.Subscribe(mesh.forward)
	defer unsubscribe()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-groupCtx.Done()
		return listener.Close()
	})

	for _, peerAddr := range mesh.config.Peers {
		group.Go(func() error {
			mesh.dialLoop(groupCtx, peerAddr)
			return nil
		})
	}

	group.Go(func() error {
		for {
			conn, err := listener.Accept(groupCtx)
			if err != nil {
				if groupCtx.Err() != nil {
					return nil
				}
				return fmt.Errorf("mesh accept: %w", err)
			}
			group.Go(func() error {
				mesh.handleIncoming(groupCtx, conn)
				return nil
			})
		}
	})

	err = group.Wait()
	mesh.closeSenders()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (mesh *Mesh) handleIncoming(ctx context.Context, conn *quic.Conn) {
	logger := mesh.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("Accepted mesh peer")

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.CloseWithError(0, "shutdown")
		case <-conn.Context().Done():
		}
	}()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Debug("Mesh peer closed before opening a stream", zap.Error(err))
		return
	}

	err = readFrames(ctx, stream, func(payload []byte) {
		msg, err := Decode(payload)
		if err != nil {
			logger.Warn("Dropping malformed mesh frame", zap.Error(err))
			return
		}
		if err := mesh.local.Publish(msg); err != nil {
			logger.Warn("Republishing mesh message failed", zap.Error(err))
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Debug("Mesh peer stream ended", zap.Error(err))
	}
	_ = conn.CloseWithError(0, "bye")
}

// dialLoop keeps one outbound stream to addr open, reconnecting with
// exponential backoff.
func (mesh *Mesh) dialLoop(ctx context.Context, addr string) {
	logger := mesh.logger.With(zap.String("peer", addr))
	backoff := minDialBackoff

	for ctx.Err() == nil {
		sender, err := mesh.dial(ctx, addr)
		if err != nil {
			logger.Debug("Mesh dial failed", zap.Error(err))
			if !sleepContext(ctx, backoff) {
				return
			}
			if backoff < maxDialBackoff {
				backoff *= 2
			}
			continue
		}

		backoff = minDialBackoff
		logger.Info("Connected to mesh peer")
		mesh.mu.Lock()
		mesh.senders[addr] = sender
		mesh.mu.Unlock()

		select {
		case <-ctx.Done():
		case <-sender.conn.Context().Done():
			logger.Info("Mesh peer connection ended, reconnecting")
		}

		mesh.mu.Lock()
		if mesh.senders[addr] == sender {
			delete(mesh.senders, addr)
		}
		mesh.mu.Unlock()
		sender.close("bye")
	}
}

func (mesh *Mesh) dial(ctx context.Context, addr string) (*meshSender, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, dialAttemptTimeout)
	defer cancel()

	conn, err := quic.DialAddr(attemptCtx, addr, newClientTLSConfig(), mesh.quicConf)
	if err != nil {
		return nil, fmt.Errorf("quic dial: %w", err)
	}
	stream, err := conn.OpenStreamSync(attemptCtx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &meshSender{conn: conn, stream: stream}, nil
}

// forward writes a locally published message to every connected peer.
func (mesh *Mesh) forward(msg Message) {
	payload, err := Encode(msg)
	if err != nil {
		mesh.logger.Warn("Cannot encode message for mesh", zap.Error(err))
		return
	}

	mesh.mu.Lock()
	senders := make(map[string]*meshSender, len(mesh.senders))
	for addr, sender := range mesh.senders {
		senders[addr] = sender
	}
	mesh.mu.Unlock()

	for addr, sender := range senders {
		if err := sender.write(payload, mesh.config.WriteTimeout); err != nil {
			mesh.logger.Warn("Mesh write failed, dropping connection",
				zap.String("peer", addr), zap.Error(err))
			sender.close("write failed")
		}
	}
}

func (mesh *Mesh) closeSenders() {
	mesh.mu.Lock()
	senders := mesh.senders
	mesh.senders = make(map[string]*meshSender)
	mesh.mu.Unlock()
	for _, sender := range senders {
		sender.close("shutdown")
	}
}

func (sender *meshSender) write(payload []byte, timeout time.Duration) error {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return writeFrame(sender.stream, payload, timeout)
}

func (sender *meshSender) close(reason string) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	_ = sender.stream.Close()
	_ = sender.conn.CloseWithError(0, reason)
}

func sleepContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
