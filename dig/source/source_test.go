package source

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.dig"), []byte("0123456789"), 0o644))

	h, err := OpenLocal("run.dig", dir)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, KindLocal, h.Kind())

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	buf := make([]byte, 4)
	_, err = h.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf))
}

func TestOpenLocalEmptyName(t *testing.T) {
	_, err := OpenLocal("", t.TempDir())
	assert.ErrorIs(t, err, ErrFileNameEmpty)
}

func TestOpenLocalMissing(t *testing.T) {
	_, err := OpenLocal("nope.dig", t.TempDir())
	assert.Error(t, err)
}

func TestOpenServerEmptyDocID(t *testing.T) {
	_, err := OpenServer("", &HTTPStore{})
	assert.ErrorIs(t, err, ErrFileNameEmpty)
}

// rangeServer serves a fixed body with bytes= range support, the way a
// CouchDB attachment endpoint would.
func rangeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			return
		}
		rng := r.Header.Get("Range")
		if rng == "" {
			fmt.Fprint(w, body)
			return
		}
		var start, end int
		_, err := fmt.Sscanf(strings.TrimPrefix(rng, "bytes="), "%d-%d", &start, &end)
		require.NoError(t, err)
		if end >= len(body) {
			end = len(body) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, body[start:end+1])
	}))
}

func TestServerHandleRangeReads(t *testing.T) {
	srv := rangeServer(t, "abcdefghij")
	defer srv.Close()

	h, err := OpenServer("2e32e344", &HTTPStore{Endpoint: srv.URL})
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, KindServer, h.Kind())

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	buf := make([]byte, 3)
	n, err := h.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "efg", string(buf))
}

func TestServerHandleNoRangeSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // full body, range ignored
	}))
	defer srv.Close()

	h, err := OpenServer("2e32e344", &HTTPStore{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = h.ReadAt(make([]byte, 3), 0)
	assert.ErrorIs(t, err, ErrRangeRequest)
}
