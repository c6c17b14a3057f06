package domain

// ProgressEvent describes the state of an in-flight transfer at one
// point in time. Events are produced by the progress tracker and handed
// to a caller-supplied sink; they are never persisted.
type ProgressEvent struct {
	BytesTransferred uint64
	TotalBytes       uint64
	Percent          float64 // 0..1
	IsComplete       bool
}

// ProgressSink receives transfer progress events. It is invoked
// synchronously on the goroutine driving the stream read and must not
// block for long.
type ProgressSink func(ProgressEvent)
