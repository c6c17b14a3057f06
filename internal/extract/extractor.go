package extract

import (
	"context"
	"runtime"

	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/domain"
)

// Strategy is a single way of unpacking an archive. Strategies are
// tried in order; a failing strategy falls through to the next one.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, archivePath, outputDir string) error
}

// Extractor unpacks tar-family archives using an ordered strategy list.
type Extractor struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New creates an extractor with the default strategy order: the system
// tar tool first, then the in-process implementation. Windows ships
// without a usable bundled tar, so it goes straight to the in-process
// strategy.
func New(log *zap.Logger) *Extractor {
	var strategies []Strategy
	if runtime.GOOS != "windows" {
		strategies = append(strategies, &SystemTar{})
	}
	strategies = append(strategies, NewGoTar(log))

	return &Extractor{
		strategies: strategies,
		logger:     log,
	}
}

// NewWithStrategies creates an extractor with an explicit strategy list.
func NewWithStrategies(log *zap.Logger, strategies ...Strategy) *Extractor {
	return &Extractor{
		strategies: strategies,
		logger:     log,
	}
}

// Extract unpacks archivePath into outputDir. Each strategy failure is
// logged as a warning and the next strategy is tried; when every
// strategy has failed the last error is returned as an ExtractionError.
// Partial output written by a failing strategy is left in place.
func (e *Extractor) Extract(ctx context.Context, archivePath, outputDir string) error {
	var lastErr error

	for i, s := range e.strategies {
		if i > 0 {
			e.logger.Debug("falling back to next extraction strategy",
				zap.String("strategy", s.Name()),
				zap.String("archive", archivePath))
		}

		err := s.Extract(ctx, archivePath, outputDir)
		if err == nil {
			return nil
		}

		e.logger.Warn("extraction strategy failed",
			zap.String("strategy", s.Name()),
			zap.String("archive", archivePath),
			zap.Error(err))
		lastErr = err
	}

	return &domain.ExtractionError{Archive: archivePath, Err: lastErr}
}
