// Package storage stages remote documents on local disk so they can be
// uploaded to the agent platform as files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileBytes caps a single staged document.
const MaxFileBytes = 50 << 20

var ErrUnsupportedURL = errors.New("unsupported document url")

// Source fetches documents for the URL schemes it supports.
type Source interface {
	Supports(u *url.URL) bool
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

type StagedFile struct {
	Name      string
	Path      string
	SourceURL string
	Size      int64
}

// Batch is one staging directory. Cleanup removes it and everything in it.
type Batch struct {
	Dir   string
	Files []StagedFile
}

func (b *Batch) Cleanup() error {
	if b == nil || b.Dir == "" {
		return nil
	}
	return os.RemoveAll(b.Dir)
}

type Stager struct {
	dir     string
	sources []Source
}

// NewStager stages under dir using the first source that supports each URL.
func NewStager(dir string, sources ...Source) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Stager{dir: dir, sources: sources}
}

// Stage downloads every URL into a fresh directory. On error nothing is
// left behind.
func (s *Stager) Stage(ctx context.Context, rawURLs []string) (*Batch, error) {
	if len(rawURLs) == 0 {
		return nil, fmt.Errorf("no document urls")
	}

	dir := filepath.Join(s.dir, "kb-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	batch := &Batch{Dir: dir}

	for i, raw := range rawURLs {
		file, err := s.stageOne(ctx, dir, i, raw)
		if err != nil {
			_ = batch.Cleanup()
			return nil, err
		}
		batch.Files = append(batch.Files, file)
	}
	return batch, nil
}

func (s *Stager) stageOne(ctx context.Context, dir string, index int, raw string) (StagedFile, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return StagedFile{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	src := s.sourceFor(u)
	if src == nil {
		return StagedFile{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}

	body, err := src.Open(ctx, u)
	if err != nil {
		return StagedFile{}, fmt.Errorf("failed to fetch %s: %w", redact(u), err)
	}
	defer body.Close()

	name := fileName(u, index)
	dst := filepath.Join(dir, fmt.Sprintf("%02d-%s", index, name))
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("failed to create staged file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(body, MaxFileBytes+1))
	if err != nil {
		return StagedFile{}, fmt.Errorf("failed to write staged file: %w", err)
	}
	if n > MaxFileBytes {
		return StagedFile{}, fmt.Errorf("document %s exceeds %d bytes", redact(u), MaxFileBytes)
	}

	return StagedFile{Name: name, Path: dst, SourceURL: raw, Size: n}, nil
}

func (s *Stager) sourceFor(u *url.URL) Source {
	for _, src := range s.sources {
		if src.Supports(u) {
			return src
		}
	}
	return nil
}

// fileName keeps the last path element, which for signed storage URLs is
// the object name, minus any escaping.
func fileName(u *url.URL, index int) string {
	p := u.Path
	if u.Scheme == "gs" {
		p = u.Host + "/" + strings.TrimPrefix(u.Path, "/")
	}
	base, err := url.PathUnescape(path.Base(p))
	if err != nil {
		base = path.Base(p)
	}
	base = filepath.Base(base)
	if base == "." || base == "/" || base == "" {
		return fmt.Sprintf("document-%d", index)
	}
	return base
}

// redact drops query strings, which carry access tokens on signed URLs.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}
