package extract

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// GoTar is the in-process fallback strategy. It reads the archive
// format directly: an optional gzip layer (detected by magic bytes)
// over a tar stream. Entry names are joined under the output directory
// with securejoin so a crafted archive cannot escape it.
type GoTar struct {
	logger *zap.Logger
}

// NewGoTar creates the in-process strategy
func NewGoTar(log *zap.Logger) *GoTar {
	return &GoTar{logger: log}
}

// Name returns the strategy name
func (g *GoTar) Name() string {
	return "go-tar"
}

// Extract unpacks archivePath into outputDir.
func (g *GoTar) Extract(ctx context.Context, archivePath, outputDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	br := bufio.NewReader(f)

	var stream io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to read gzip header: %w", err)
		}
		defer gz.Close()
		stream = gz
	}

	tr := tar.NewReader(stream)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed archive: %w", err)
		}

		path, err := securejoin.SecureJoin(outputDir, header.Name)
		if err != nil {
			return fmt.Errorf("unsafe entry path %s: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", path, err)
			}
		case tar.TypeReg:
			if err := g.writeFile(path, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create parent dir for %s: %w", path, err)
			}
			os.Remove(path)
			if err := os.Symlink(header.Linkname, path); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", path, err)
			}
		default:
			g.logger.Debug("skipping unsupported archive entry",
				zap.String("name", header.Name),
				zap.Uint8("type", header.Typeflag))
		}
	}
}

func (g *GoTar) writeFile(path string, r io.Reader, mode os.FileMode) error {
	// Some archives omit directory entries for intermediate paths
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", path, err)
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return out.Close()
}
