package ragclient

import (
	"context"
	"io"
)

// Stream delivers the response body as ordered byte chunks. Recv returns
// io.EOF on clean end of stream, the context error after cancellation, and
// the transport error otherwise. Close cancels the underlying request.
type Stream interface {
	Recv() ([]byte, error)
	Close() error
}

type byteStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks <-chan []byte
	errc   <-chan error
}

// newByteStream runs the transport loop in its own goroutine, which owns
// the response body for its whole lifetime.
func newByteStream(ctx context.Context, run func(context.Context, chan<- []byte) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan []byte, 16)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := run(streamCtx, ch); err != nil {
			errc <- err
		}
	}()
	return &byteStream{ctx: streamCtx, cancel: cancel, chunks: ch, errc: errc}
}

func (s *byteStream) Recv() ([]byte, error) {
	// Non-blocking drain: consume any buffered chunk before checking
	// ctx.Done() so trailing data is not dropped when both are ready.
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, s.finish()
		}
		return chunk, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, s.finish()
		}
		return chunk, nil
	}
}

// finish reports the run loop's terminal condition once the chunk channel
// is closed: the transport error if there was one, io.EOF otherwise.
func (s *byteStream) finish() error {
	select {
	case err := <-s.errc:
		return err
	default:
		return io.EOF
	}
}

func (s *byteStream) Close() error {
	s.cancel()
	return nil
}
