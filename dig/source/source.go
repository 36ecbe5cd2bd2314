package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Common error types used by file handle providers
var (
	ErrFileNameEmpty = errors.New("file name cannot be empty")
	ErrRangeRequest  = errors.New("remote store does not support range requests")
)

// Kind identifies where a handle's bytes come from.
type Kind string

const (
	KindLocal  Kind = "local"
	KindServer Kind = "server"
)

// Handle exposes raw byte access to a .dig container. Implementations own
// the underlying resource; Close releases it.
type Handle interface {
	io.ReaderAt
	io.Closer
	Size() (int64, error)
	Kind() Kind
}

// LocalHandle reads a .dig file from the local filesystem.
type LocalHandle struct {
	path string
	f    *os.File
}

// OpenLocal opens fileName under dir. An empty dir means the current
// working directory.
func OpenLocal(fileName, dir string) (*LocalHandle, error) {
	if fileName == "" {
		return nil, ErrFileNameEmpty
	}
	path := fileName
	if dir != "" {
		path = filepath.Join(dir, fileName)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dig file %s: %w", path, err)
	}
	return &LocalHandle{path: path, f: f}, nil
}

func (h *LocalHandle) ReadAt(p []byte, off int64) (int, error) { return h.f.ReadAt(p, off) }

func (h *LocalHandle) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", h.path, err)
	}
	return fi.Size(), nil
}

func (h *LocalHandle) Close() error { return h.f.Close() }
func (h *LocalHandle) Kind() Kind   { return KindLocal }

// RemoteStore resolves a document id to ranged byte access. The wire
// protocol is the store's concern; the core only consumes bytes.
type RemoteStore interface {
	ReadRange(docID string, off int64, p []byte) (int, error)
	Length(docID string) (int64, error)
}

// ServerHandle reads a .dig file attached to a remote document.
type ServerHandle struct {
	docID string
	store RemoteStore
}

// OpenServer wraps a remote document id in a Handle. The store argument is
// required; HTTPStore is the stock implementation.
func OpenServer(docID string, store RemoteStore) (*ServerHandle, error) {
	if docID == "" {
		return nil, fmt.Errorf("document id cannot be empty: %w", ErrFileNameEmpty)
	}
	return &ServerHandle{docID: docID, store: store}, nil
}

func (h *ServerHandle) ReadAt(p []byte, off int64) (int, error) {
	return h.store.ReadRange(h.docID, off, p)
}

func (h *ServerHandle) Size() (int64, error) { return h.store.Length(h.docID) }
func (h *ServerHandle) Close() error         { return nil }
func (h *ServerHandle) Kind() Kind           { return KindServer }

// HTTPStore fetches document bytes over HTTP range requests from a base
// endpoint, e.g. a CouchDB attachment URL.
type HTTPStore struct {
	Endpoint string
	Client   *http.Client
}

func (s *HTTPStore) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPStore) url(docID string) string {
	return fmt.Sprintf("%s/%s", s.Endpoint, docID)
}

func (s *HTTPStore) ReadRange(docID string, off int64, p []byte) (int, error) {
	req, err := http.NewRequest(http.MethodGet, s.url(docID), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build range request for %s: %w", docID, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))
	resp, err := s.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("range request for %s failed: %w", docID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("%w: got status %s for %s", ErrRangeRequest, resp.Status, docID)
	}
	n, err := io.ReadFull(resp.Body, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (s *HTTPStore) Length(docID string) (int64, error) {
	resp, err := s.client().Head(s.url(docID))
	if err != nil {
		return 0, fmt.Errorf("head request for %s failed: %w", docID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("head request for %s: got status %s", docID, resp.Status)
	}
	return resp.ContentLength, nil
}
