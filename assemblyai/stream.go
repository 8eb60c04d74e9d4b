package assemblyai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"maxiwhisper/log"
	"maxiwhisper/session"
)

type stream struct {
	ctx         context.Context
	conn        *websocket.Conn
	events      chan session.Event
	cancel      context.CancelFunc
	formatTurns bool

	closing   atomic.Bool
	closeOnce sync.Once
	sendErr   atomic.Pointer[error]

	sentBytes atomic.Int64
}

func newStream(ctx context.Context, conn *websocket.Conn, audio io.Reader, chunk int, formatTurns bool) *stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &stream{
		ctx:         ctx,
		conn:        conn,
		events:      make(chan session.Event),
		cancel:      cancel,
		formatTurns: formatTurns,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.send(gctx, audio, chunk) })
	g.Go(func() error {
		defer close(s.events)
		return s.receive(gctx)
	})
	go func() {
		if err := g.Wait(); err != nil && !s.closing.Load() {
			log.Debugf("assemblyai: stream finished: %v", err)
		}
	}()
	return s
}

func (s *stream) Events() <-chan session.Event {
	return s.events
}

// Close stops both directions without waiting for a close handshake. The
// server may already have hung up, so close errors are only logged.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
		if err := s.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
			log.Debugf("assemblyai: close: %v", err)
		}
	})
	return nil
}

// send copies audio to the socket in fixed-size chunks and asks the server
// to terminate once the reader is exhausted.
func (s *stream) send(ctx context.Context, audio io.Reader, chunk int) error {
	buf := make([]byte, chunk)
	for {
		n, err := io.ReadFull(audio, buf)
		if n > 0 {
			if werr := s.conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				return s.failSend(fmt.Errorf("send audio: %w", werr))
			}
			s.sentBytes.Add(int64(n))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return s.failSend(fmt.Errorf("read audio: %w", err))
		}
	}

	log.Debugf("assemblyai: audio done (%d bytes), terminating", s.sentBytes.Load())
	if err := s.conn.Write(ctx, websocket.MessageText, terminateMessage); err != nil {
		return s.failSend(fmt.Errorf("send terminate: %w", err))
	}
	return nil
}

func (s *stream) failSend(err error) error {
	s.sendErr.Store(&err)
	return err
}

// receive is the only writer of s.events.
func (s *stream) receive(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if s.closing.Load() || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			var ce websocket.CloseError
			if p := s.sendErr.Load(); p != nil {
				err = *p
			} else if errors.As(err, &ce) {
				err = fmt.Errorf("closed with status %d: %s", ce.Code, ce.Reason)
			}
			s.emit(session.ErrorEvent{Err: err})
			return err
		}

		ev, ok, err := decode(data, s.formatTurns)
		if err != nil {
			log.Warnf("assemblyai: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if !s.emit(ev) {
			return ErrClosed
		}
		switch ev.(type) {
		case session.TerminationEvent:
			return nil
		case session.ErrorEvent:
			return ErrClosed
		}
	}
}

// emit blocks until the consumer takes ev, so events keep their order. It
// gives up only when the stream is closed.
func (s *stream) emit(ev session.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}
