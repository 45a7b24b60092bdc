// Package docstore stores the raw uploaded files behind an abstract
// filesystem so the same code serves local disk in production and an
// in-memory scheme in tests.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Service reads and writes source documents by their stored path.
type Service interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	Load(ctx context.Context, storedPath string) ([]byte, error)
	Exists(ctx context.Context, storedPath string) (bool, error)
	Delete(ctx context.Context, storedPath string) error
	// URL returns the absolute location of a stored file, scheme included,
	// for viewers that open the source document directly.
	URL(storedPath string) string
}

type afsStore struct {
	svc     afs.Service
	baseURL string
}

// New creates a Service rooted at baseURL. The URL uses afs scheme syntax,
// e.g. file:///var/lib/intake/docs or mem://intake/docs.
func New(baseURL string) Service {
	return &afsStore{svc: afs.New(), baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Save writes data under a fresh unique name and returns the stored path
// (relative to the base URL) to persist on the document row.
func (s *afsStore) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	storedPath := fmt.Sprintf("%s-%s", uuid.New().String()[:8], sanitize(fileName))
	dest := url.Join(s.baseURL, storedPath)
	if err := s.svc.Upload(ctx, dest, os.FileMode(0o644), bytes.NewReader(data)); err != nil {
		return "", eris.Wrapf(err, "docstore: upload %s", storedPath)
	}
	return storedPath, nil
}

func (s *afsStore) Load(ctx context.Context, storedPath string) ([]byte, error) {
	data, err := s.svc.DownloadWithURL(ctx, url.Join(s.baseURL, storedPath))
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: download %s", storedPath)
	}
	return data, nil
}

func (s *afsStore) Exists(ctx context.Context, storedPath string) (bool, error) {
	ok, err := s.svc.Exists(ctx, url.Join(s.baseURL, storedPath))
	return ok, eris.Wrapf(err, "docstore: exists %s", storedPath)
}

func (s *afsStore) Delete(ctx context.Context, storedPath string) error {
	err := s.svc.Delete(ctx, url.Join(s.baseURL, storedPath))
	return eris.Wrapf(err, "docstore: delete %s", storedPath)
}

func (s *afsStore) URL(storedPath string) string {
	return url.Join(s.baseURL, storedPath)
}

// sanitize keeps the base name and replaces characters that are unsafe in
// object paths.
func sanitize(fileName string) string {
	name := path.Base(fileName)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
