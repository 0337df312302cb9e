package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/storage"
	"storefront/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memHost struct {
	mu      sync.Mutex
	objects map[string][]byte
	n       int
	failDel error
}

func newMemHost() *memHost {
	return &memHost{objects: map[string][]byte{}}
}

func (h *memHost) Upload(_ context.Context, data []byte, ext, _ string) (*storage.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n++
	key := "products/img-" + string(rune('0'+h.n)) + ext
	h.objects[key] = data
	return &storage.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (h *memHost) Delete(_ context.Context, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failDel != nil {
		return h.failDel
	}
	delete(h.objects, key)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspectImage(t *testing.T) {
	info, err := InspectImage(pngBytes(t, 200, 150))
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 150, info.Height)
	assert.Equal(t, ".png", info.Ext)

	_, err = InspectImage(pngBytes(t, 50, 300))
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "dimensions")

	_, err = InspectImage([]byte("%PDF-1.4 not an image"))
	assert.Contains(t, err.Error(), "unsupported image format")

	_, err = InspectImage(make([]byte, MaxImageBytes+1))
	assert.Contains(t, err.Error(), "exceeds 5 MB")

	_, err = InspectImage(nil)
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestUploadStoresOnHostAndRecordsMetadata(t *testing.T) {
	st := storetest.New()
	host := newMemHost()
	svc := NewImageService(st, host, time.Second)
	pid := seedProduct(t, st, "Serum", "20", true)

	img, err := svc.Upload(context.Background(), pngBytes(t, 300, 300), &pid)
	require.NoError(t, err)
	assert.NotZero(t, img.ID)
	assert.Equal(t, "png", img.Format)
	assert.Contains(t, host.objects, img.StorageKey)

	list, err := svc.List(context.Background(), &pid)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(context.Background(), img.ID))
	assert.Empty(t, host.objects)
	assert.True(t, apperr.Is(svc.Delete(context.Background(), img.ID), apperr.NotFound))
}

func TestUploadForUnknownProductCleansHost(t *testing.T) {
	host := newMemHost()
	svc := NewImageService(storetest.New(), host, time.Second)
	pid := int64(404)

	_, err := svc.Upload(context.Background(), pngBytes(t, 300, 300), &pid)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Empty(t, host.objects)
}

func TestUploadWithoutHostIsUnavailable(t *testing.T) {
	svc := NewImageService(storetest.New(), nil, time.Second)

	_, err := svc.Upload(context.Background(), pngBytes(t, 300, 300), nil)
	assert.True(t, apperr.Is(err, apperr.Unavailable))
	assert.ErrorIs(t, err, storage.ErrNotConfigured)

	_, err = svc.UploadFromURL(context.Background(), "https://example.com/a.png", nil)
	assert.True(t, apperr.Is(err, apperr.Unavailable))
}

func TestDeleteKeepsMetadataWhenHostFails(t *testing.T) {
	st := storetest.New()
	host := newMemHost()
	svc := NewImageService(st, host, time.Second)

	img, err := svc.Upload(context.Background(), pngBytes(t, 300, 300), nil)
	require.NoError(t, err)

	host.failDel = errors.New("access denied")
	assert.True(t, apperr.Is(svc.Delete(context.Background(), img.ID), apperr.Unavailable))

	_, err = st.GetImage(context.Background(), img.ID)
	assert.NoError(t, err)
}

func TestUploadFromURL(t *testing.T) {
	body := pngBytes(t, 120, 120)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/slow.png":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc := NewImageService(storetest.New(), newMemHost(), 100*time.Millisecond)
	ctx := context.Background()

	img, err := svc.UploadFromURL(ctx, srv.URL+"/ok.png", nil)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Width)

	_, err = svc.UploadFromURL(ctx, srv.URL+"/slow.png", nil)
	assert.True(t, apperr.Is(err, apperr.Timeout), "got %v", err)

	_, err = svc.UploadFromURL(ctx, srv.URL+"/missing.png", nil)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "status 404")

	_, err = svc.UploadFromURL(ctx, "ftp://example.com/a.png", nil)
	assert.Equal(t, []string{"url"}, fieldsOf(t, err))
}

func TestUploadFromURLStopsAtSizeLimit(t *testing.T) {
	const streamed = 64 << 20
	var sent atomic.Int64
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/declared.png":
			w.Header().Set("Content-Length", strconv.Itoa(MaxImageBytes+1))
			w.WriteHeader(http.StatusOK)
		case "/stream.png":
			defer close(done)
			chunk := bytes.Repeat([]byte{0xff}, 64<<10)
			for sent.Load() < streamed {
				if _, err := w.Write(chunk); err != nil {
					return
				}
				w.(http.Flusher).Flush()
				sent.Add(int64(len(chunk)))
			}
		}
	}))
	defer srv.Close()

	svc := NewImageService(storetest.New(), newMemHost(), 10*time.Second)
	ctx := context.Background()

	_, err := svc.UploadFromURL(ctx, srv.URL+"/declared.png", nil)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "image exceeds 5 MB")

	_, err = svc.UploadFromURL(ctx, srv.URL+"/stream.png", nil)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Contains(t, err.Error(), "image exceeds 5 MB")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server kept streaming after the client gave up")
	}
	assert.Less(t, sent.Load(), int64(streamed))
}
