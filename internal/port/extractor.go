package port

import "context"

// Extractor unpacks a tar-family archive into an output directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, outputDir string) error
}
