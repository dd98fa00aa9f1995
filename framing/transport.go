package framing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const (
	tcpScheme       = "tcp://"
	readChunkBytes  = 64 * 1024
	defaultDialWait = 10 * time.Second
)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(l log.Logger) Option {
	return func(t *Transport) {
		t.log = l
	}
}

// WithMaxFrameSize bounds the size of response payloads.
func WithMaxFrameSize(n uint32) Option {
	return func(t *Transport) {
		t.maxFrameSize = n
	}
}

// WithReadChunk sets the size of the buffer used for each socket read.
func WithReadChunk(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.readChunk = n
		}
	}
}

// Transport owns one stream connection and exchanges length-prefixed frames
// over it, strictly one request at a time.
type Transport struct {
	conn         net.Conn
	decoder      *Decoder
	log          log.Logger
	maxFrameSize uint32
	readChunk    int

	inFlight  atomic.Bool
	broken    error
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Dial connects to address. A plain path is a unix stream socket, a
// "tcp://host:port" address selects TCP.
func Dial(ctx context.Context, address string, opts ...Option) (*Transport, error) {
	network, target := "unix", address
	if strings.HasPrefix(address, tcpScheme) {
		network, target = "tcp", strings.TrimPrefix(address, tcpScheme)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDialWait)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, target)
	if err != nil {
		return nil, &ConnectionError{Address: address, Err: err}
	}
	t := New(conn, opts...)
	t.log.Debug("Connected", "network", network, "address", target)
	return t, nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:      conn,
		log:       log.Root(),
		readChunk: readChunkBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.decoder = NewDecoder(t.maxFrameSize)
	return t
}

// Send writes payload as one frame and waits for one complete response frame.
// Only one Send may be outstanding; a concurrent call fails with
// ErrSendInProgress. Cancelling ctx aborts the wait by expiring the socket
// deadline.
//
// A failed Send leaves the request and response streams out of step, so the
// transport is closed and every later Send fails with ErrClosed.
func (t *Transport) Send(ctx context.Context, payload []byte) ([]byte, error) {
	if t == nil {
		return nil, ErrClosed
	}
	if !t.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSendInProgress
	}
	defer t.inFlight.Store(false)
	if t.broken != nil {
		return nil, fmt.Errorf("%w after earlier failure: %v", ErrClosed, t.broken)
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}

	response, err := t.exchange(ctx, payload)
	if err != nil {
		t.broken = err
		t.log.Warn("Closing connection after failed exchange", "error", err)
		_ = t.Close()
		return nil, err
	}
	return response, nil
}

func (t *Transport) exchange(ctx context.Context, payload []byte) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			_ = t.conn.SetDeadline(time.Time{})
		}
	}()

	if _, err := t.conn.Write(Encode(payload)); err != nil {
		return nil, t.wrapIOError(ctx, "write", err)
	}

	buf := make([]byte, t.readChunk)
	var pending [][]byte
	for len(pending) == 0 {
		n, err := t.conn.Read(buf)
		if n > 0 {
			frames, ferr := t.decoder.Feed(buf[:n])
			if ferr != nil {
				return nil, ferr
			}
			pending = frames
		}
		if len(pending) > 0 {
			break
		}
		if errors.Is(err, io.EOF) {
			return nil, &IncompleteFrameError{
				Received: t.decoder.Buffered(),
				Expected: t.decoder.expected,
				State:    t.decoder.State(),
			}
		}
		if err != nil {
			return nil, t.wrapIOError(ctx, "read", err)
		}
	}
	if extra := len(pending) - 1; extra > 0 || t.decoder.Partial() {
		return nil, &UnexpectedDataError{Frames: extra, Partial: t.decoder.Partial()}
	}
	return pending[0], nil
}

func (t *Transport) wrapIOError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s frame: %w", op, err)
}

type closeWriter interface {
	CloseWrite() error
}

// Close half-closes the write side and releases the connection. It is
// idempotent and safe to call on a nil Transport.
func (t *Transport) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if cw, ok := t.conn.(closeWriter); ok {
			_ = cw.CloseWrite()
		}
		t.closeErr = t.conn.Close()
		t.log.Debug("Connection closed")
	})
	return t.closeErr
}
