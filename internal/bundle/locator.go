package bundle

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mobiledepot/appfetch/internal/domain"
)

// DefaultExtensions are the installable bundle suffixes. An .app bundle
// is a directory; .apk and .ipa are single files.
var DefaultExtensions = []string{".apk", ".app", ".ipa"}

// PackageExtensions are the suffixes that denote a directly installable
// package file, downloadable as-is with no extraction step.
var PackageExtensions = []string{".apk", ".ipa"}

// Matches reports whether name carries one of the given suffixes.
func Matches(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Locate searches rootDir recursively for entries matching the bundle
// extensions. Matched directories are not descended into, so files
// inside an .app bundle never count as candidates. Exactly one match is
// returned as an absolute path; zero matches is ErrBundleNotFound and
// two or more is an AmbiguousBundleError carrying every candidate.
func Locate(rootDir string, extensions []string) (string, error) {
	var candidates []domain.BundleCandidate

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == rootDir {
			return nil
		}
		if !Matches(d.Name(), extensions) {
			return nil
		}

		candidates = append(candidates, domain.BundleCandidate{
			Name: d.Name(),
			Path: path,
		})
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", rootDir, err)
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w in %s", domain.ErrBundleNotFound, rootDir)
	case 1:
		abs, err := filepath.Abs(candidates[0].Path)
		if err != nil {
			return "", err
		}
		return abs, nil
	default:
		return "", &domain.AmbiguousBundleError{Candidates: candidates}
	}
}
