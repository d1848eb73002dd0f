package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileSystemSink saves downloaded documents under a flat raw directory.
type FileSystemSink struct {
	root   string
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewFileSystemSink returns a sink rooted at dir.
func NewFileSystemSink(root string, logger *zap.Logger) (*FileSystemSink, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("raw directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{
		root:   filepath.Clean(root),
		logger: logger,
	}, nil
}

// Root returns the directory documents are written to.
func (s *FileSystemSink) Root() string {
	return s.root
}

// Save writes body to the sanitized filename for rawURL. An existing file with the
// same name is replaced.
func (s *FileSystemSink) Save(ctx context.Context, rawURL, contentType string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if len(body) == 0 {
		return "", errors.New("empty document body")
	}
	name := SanitizeFilename(rawURL)
	if name == "" {
		return "", fmt.Errorf("no filename for %q", rawURL)
	}
	name += missingExtension(rawURL, contentType)
	target := filepath.Join(s.root, name)
	if filepath.Dir(target) != s.root {
		return "", fmt.Errorf("filename %q escapes raw directory", name)
	}
	if err := s.ensureRoot(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", target, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write document %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close document %s: %w", target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename document %s: %w", target, err)
	}
	s.logger.Debug("document saved", zap.String("url", rawURL), zap.String("path", target), zap.Int("bytes", len(body)))
	return target, nil
}

func (s *FileSystemSink) ensureRoot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("create raw dir %s: %w", s.root, err)
	}
	s.ready = true
	return nil
}

// missingExtension returns ".pdf" for PDF payloads whose URL path has no extension,
// so downstream stages can recognize the file type from its name.
func missingExtension(rawURL, contentType string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Ext(u.Path) != "" {
		return ""
	}
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return ".pdf"
	}
	return ""
}
