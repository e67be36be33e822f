package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	underscores = regexp.MustCompile(`_+`)
)

// SafeFileKey maps a URL to a filesystem-safe artifact key: scheme stripped,
// reserved characters replaced with underscores, runs of underscores
// collapsed.
func SafeFileKey(rawURL string) string {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		key = strings.TrimPrefix(key, u.Scheme+"://")
	}
	key = unsafeChars.ReplaceAllString(key, "_")
	key = underscores.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// FileSystemSink persists audit artifacts beneath one base directory:
// detail records under detail/, summaries under summary/, performance
// reports under reports/.
type FileSystemSink struct {
	baseDir string
	logger  *zap.Logger
}

// NewFileSystemSink creates the sink rooted at baseDir, creating the
// artifact subdirectories up front.
func NewFileSystemSink(baseDir string, logger *zap.Logger) (*FileSystemSink, error) {
	for _, sub := range []string{"detail", "summary", "reports"} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("create sink dir %s: %w", sub, err)
		}
	}
	return &FileSystemSink{baseDir: baseDir, logger: logger}, nil
}

// SaveDetail writes the full page record, keyed by its URL.
func (s *FileSystemSink) SaveDetail(rec PageRecord) (string, error) {
	path := filepath.Join(s.baseDir, "detail", SafeFileKey(rec.URL)+".json")
	if err := s.writeJSON(path, rec); err != nil {
		return "", fmt.Errorf("write detail record: %w", err)
	}
	return path, nil
}

// SaveSummary writes the condensed projection to the summary location.
func (s *FileSystemSink) SaveSummary(sum PageSummary) (string, error) {
	path := filepath.Join(s.baseDir, "summary", SafeFileKey(sum.URL)+".json")
	if err := s.writeJSON(path, sum); err != nil {
		return "", fmt.Errorf("write summary record: %w", err)
	}
	return path, nil
}

// SaveReport writes the performance-report artifact for the URL.
func (s *FileSystemSink) SaveReport(rawURL string, data []byte) (string, error) {
	path := filepath.Join(s.baseDir, "reports", SafeFileKey(rawURL)+"-perf.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write performance report: %w", err)
	}
	return path, nil
}

// SaveManifest writes the run-level aggregate document.
func (s *FileSystemSink) SaveManifest(manifest RunManifest) (string, error) {
	path := filepath.Join(s.baseDir, fmt.Sprintf("run-%s.json", manifest.RunID))
	if err := s.writeJSON(path, manifest); err != nil {
		return "", fmt.Errorf("write run manifest: %w", err)
	}
	return path, nil
}

func (s *FileSystemSink) writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("artifact written", zap.String("path", path))
	return nil
}
