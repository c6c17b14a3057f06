package progress

import (
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/domain"
	"github.com/mobiledepot/appfetch/internal/util/ratelimiter"
)

// Tracker holds the reporting state for a single transfer: the running
// byte counter, the throttle window, and the completion latch. One
// Tracker belongs to exactly one transfer and is not restarted.
type Tracker struct {
	total       uint64
	transferred uint64
	limiter     *ratelimiter.Limiter
	sink        domain.ProgressSink
	didFinish   bool
}

// NewTracker creates a tracker for a transfer of total bytes, invoking
// sink at most once per interval plus exactly one completion event.
func NewTracker(total uint64, interval time.Duration, sink domain.ProgressSink) *Tracker {
	return &Tracker{
		total:   total,
		limiter: ratelimiter.New(interval),
		sink:    sink,
	}
}

// Advance records n freshly transferred bytes and invokes the sink if
// the throttle window allows it. Reaching the total fires the
// completion event immediately, bypassing the throttle.
func (t *Tracker) Advance(n int) {
	if t.didFinish || n <= 0 {
		return
	}

	t.transferred += uint64(n)

	if t.transferred >= t.total {
		t.complete()
		return
	}

	if allowed, _ := t.limiter.Allow(); allowed {
		t.sink(domain.ProgressEvent{
			BytesTransferred: t.transferred,
			TotalBytes:       t.total,
			Percent:          float64(t.transferred) / float64(t.total),
			IsComplete:       false,
		})
	}
}

// Finish fires the completion event if it has not fired yet. Called on
// stream end, which may arrive before the byte counter reaches the
// advertised total.
func (t *Tracker) Finish() {
	if t.didFinish {
		return
	}
	t.complete()
}

func (t *Tracker) complete() {
	t.didFinish = true

	transferred := t.transferred
	if transferred > t.total {
		transferred = t.total
	}
	t.sink(domain.ProgressEvent{
		BytesTransferred: transferred,
		TotalBytes:       t.total,
		Percent:          float64(transferred) / float64(t.total),
		IsComplete:       true,
	})
}

// reader feeds every chunk read from the wrapped stream into the tracker
type reader struct {
	r io.Reader
	t *Tracker
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.t.Advance(n)
	}
	if err == io.EOF {
		r.t.Finish()
	}
	return n, err
}

// WrapReader attaches progress reporting to a response body. The
// contentLength argument is the raw Content-Length header value; if it
// is missing, non-numeric, or not positive, reporting is disabled for
// the transfer and the stream is returned unmodified. A disabled
// progress bar is not a transfer error.
func WrapReader(r io.Reader, contentLength string, interval time.Duration, sink domain.ProgressSink, log *zap.Logger) io.Reader {
	if sink == nil {
		return r
	}

	total, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || total <= 0 {
		log.Warn("content length unavailable, progress reporting disabled",
			zap.String("content_length", contentLength))
		return r
	}

	return &reader{
		r: r,
		t: NewTracker(uint64(total), interval, sink),
	}
}
