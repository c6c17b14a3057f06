package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// SystemTar invokes the platform tar tool as a subprocess. Standard
// streams are inherited so the tool's own progress and error output
// reach the operator directly.
type SystemTar struct{}

// Name returns the strategy name
func (s *SystemTar) Name() string {
	return "system-tar"
}

// Extract runs tar -xf <archive> -C <outputDir> and waits for it to exit.
func (s *SystemTar) Extract(ctx context.Context, archivePath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "tar", "-xf", archivePath, "-C", outputDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tar invocation failed: %w", err)
	}
	return nil
}
