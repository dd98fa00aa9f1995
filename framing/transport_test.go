package framing

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortSocketPath returns a socket path that fits the unix path length limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pf")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

// serve accepts a single connection and hands it to handler.
func serve(t *testing.T, handler func(conn net.Conn)) string {
	t.Helper()
	path := shortSocketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()
	return path
}

func readFrame(conn net.Conn) ([]byte, error) {
	var prefix [LengthPrefixBytes]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// echo answers every frame with the same payload, writing the response in
// chunks of at most chunk bytes.
func echo(chunk int) func(conn net.Conn) {
	return func(conn net.Conn) {
		for {
			payload, err := readFrame(conn)
			if err != nil {
				return
			}
			out := Encode(payload)
			for len(out) > 0 {
				n := min(chunk, len(out))
				if _, err := conn.Write(out[:n]); err != nil {
					return
				}
				out = out[n:]
			}
		}
	}
}

func dial(t *testing.T, path string, opts ...Option) *Transport {
	t.Helper()
	opts = append([]Option{WithLogger(log.NewLogger(log.DiscardHandler()))}, opts...)
	tr, err := Dial(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTransport_RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 3, 4, 5, 1024, 64*1024 + 17, 300_000}
	for _, chunk := range []int{1 << 20, 7} {
		path := serve(t, echo(chunk))
		tr := dial(t, path, WithReadChunk(1000))

		for _, size := range sizes {
			if chunk == 7 && size > 5000 {
				continue
			}
			payload := bytes.Repeat([]byte{byte(size)}, size)
			resp, err := tr.Send(context.Background(), payload)
			require.NoError(t, err, "size %d", size)
			assert.Len(t, resp, size)
			assert.True(t, bytes.Equal(payload, resp), "size %d", size)
		}
	}
}

func TestTransport_IncompleteFrame(t *testing.T) {
	path := serve(t, func(conn net.Conn) {
		if _, err := readFrame(conn); err != nil {
			return
		}
		var prefix [LengthPrefixBytes]byte
		binary.LittleEndian.PutUint32(prefix[:], 10)
		_, _ = conn.Write(prefix[:])
	})
	tr := dial(t, path)

	resp, err := tr.Send(context.Background(), []byte("ping"))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, IsIncompleteFrame(err))

	var incomplete *IncompleteFrameError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, AwaitingPayload, incomplete.State)
	assert.Equal(t, uint32(10), incomplete.Expected)
	assert.Equal(t, 0, incomplete.Received)
}

func TestTransport_ClosedWithoutResponse(t *testing.T) {
	path := serve(t, func(conn net.Conn) {
		_, _ = readFrame(conn)
	})
	tr := dial(t, path)

	_, err := tr.Send(context.Background(), []byte("ping"))
	var incomplete *IncompleteFrameError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, AwaitingLength, incomplete.State)
}

func TestTransport_ConnectionError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	tr, err := Dial(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, tr)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), path)
}

func TestTransport_RejectsConcurrentSend(t *testing.T) {
	release := make(chan struct{})
	path := serve(t, func(conn net.Conn) {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		<-release
		_, _ = conn.Write(Encode(payload))
	})
	tr := dial(t, path)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = tr.Send(context.Background(), []byte("first"))
	}()

	require.Eventually(t, func() bool { return tr.inFlight.Load() }, time.Second, time.Millisecond)
	_, err := tr.Send(context.Background(), []byte("second"))
	assert.ErrorIs(t, err, ErrSendInProgress)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestTransport_ContextCancelUnblocksSend(t *testing.T) {
	path := serve(t, func(conn net.Conn) {
		_, _ = readFrame(conn)
		time.Sleep(2 * time.Second)
	})
	tr := dial(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Send(ctx, []byte("ping"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_CloseIsIdempotent(t *testing.T) {
	path := serve(t, echo(1<<20))
	tr := dial(t, path)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Send(context.Background(), []byte("after close"))
	assert.ErrorIs(t, err, ErrClosed)

	var never *Transport
	assert.NoError(t, never.Close())
}

func TestTransport_FailedSendClosesTransport(t *testing.T) {
	served := make(chan struct{})
	path := serve(t, func(conn net.Conn) {
		defer close(served)
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		time.Sleep(300 * time.Millisecond)
		_, _ = conn.Write(Encode(payload))
		if payload, err = readFrame(conn); err == nil {
			_, _ = conn.Write(Encode(payload))
		}
	})
	tr := dial(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := tr.Send(ctx, []byte("first"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	resp, err := tr.Send(context.Background(), []byte("second"))
	require.ErrorIs(t, err, ErrClosed, "late answer to the first request must not pair with the second")
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "deadline exceeded")
	<-served
}

func TestTransport_UnrequestedFrames(t *testing.T) {
	tests := []struct {
		name    string
		extra   []byte
		frames  int
		partial bool
	}{
		{"extra frame", Encode([]byte("surprise")), 1, false},
		{"partial extra frame", Encode([]byte("surprise"))[:6], 0, true},
		{"extra length prefix only", Encode([]byte("surprise"))[:LengthPrefixBytes], 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := serve(t, func(conn net.Conn) {
				payload, err := readFrame(conn)
				if err != nil {
					return
				}
				_, _ = conn.Write(append(Encode(payload), tt.extra...))
				_, _ = io.Copy(io.Discard, conn)
			})
			tr := dial(t, path)

			_, err := tr.Send(context.Background(), []byte("ping"))
			var dataErr *UnexpectedDataError
			require.ErrorAs(t, err, &dataErr)
			assert.Equal(t, tt.frames, dataErr.Frames)
			assert.Equal(t, tt.partial, dataErr.Partial)

			_, err = tr.Send(context.Background(), []byte("again"))
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}
