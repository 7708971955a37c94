package fetchhash

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x40, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHashForCachesByURL(t *testing.T) {
	assert := assert.New(t)
	data := testPNG(t)

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(data)
	}))
	defer srv.Close()

	f := New(5*time.Second, 1<<20)
	code, err := f.HashFor(context.Background(), srv.URL+"/img.png")
	require.NoError(t, err)
	assert.NotZero(code)

	// Second lookup is served from the memo cache, no network call
	again, err := f.HashFor(context.Background(), srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(code, again)
	assert.Equal(1, requests)

	// Same bytes under a different url hash to the same code
	other, err := f.HashFor(context.Background(), srv.URL+"/copy.png")
	require.NoError(t, err)
	assert.Equal(code, other)
}

func TestHashForStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(5*time.Second, 1<<20)
	_, err := f.HashFor(context.Background(), srv.URL+"/gone.png")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestHashForNotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not pixels</html>"))
	}))
	defer srv.Close()

	f := New(5*time.Second, 1<<20)
	_, err := f.HashFor(context.Background(), srv.URL+"/page")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestHashForSizeBound(t *testing.T) {
	data := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f := New(5*time.Second, int64(len(data)-1))
	_, err := f.HashFor(context.Background(), srv.URL+"/big.png")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestHashForTimeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer srv.Close()
	defer close(done)

	f := New(50*time.Millisecond, 1<<20)
	_, err := f.HashFor(context.Background(), srv.URL+"/slow.png")
	assert.ErrorIs(t, err, ErrFetch)
}

func TestHashForCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(5*time.Second, 1<<20)
	_, err := f.HashFor(ctx, srv.URL+"/img.png")
	assert.ErrorIs(t, err, ErrFetch)
}
