package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"objgate/apperrors"
	"objgate/controllers"
	"objgate/metrics"
	"objgate/services/objects"
	"objgate/storage/storagetest"

	"github.com/gin-gonic/gin"
)

const bucket = "uploads"

type harness struct {
	engine *gin.Engine
	mem    *storagetest.Memory
}

func newHarness(t *testing.T, maxUpload int64) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storagetest.NewMemory()
	mem.AddBucket(bucket)
	svc := objects.NewService(mem, bucket, log.New(io.Discard, "", 0))

	opts := Options{CorsOrigin: "*", Metrics: metrics.New()}
	r := NewEngine(opts)
	RegisterRoutes(r, Controllers{
		Home:    controllers.NewHomeController(bucket, ""),
		Objects: controllers.NewObjectController(svc, "", maxUpload),
		Health:  controllers.NewHealthController("test", mem),
	}, opts)
	return &harness{engine: r, mem: mem}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) upload(t *testing.T, body []byte, contentType string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := h.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("upload content type = %q", ct)
	}
	u, err := url.Parse(strings.TrimSpace(w.Body.String()))
	if err != nil || !strings.HasPrefix(u.Path, "/objects/") {
		t.Fatalf("upload returned %q", w.Body.String())
	}
	return u.Path
}

func TestHomeIsStatic(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("content type = %q", w.Header().Get("Content-Type"))
	}
	for op, n := range h.mem.Calls {
		if n != 0 {
			t.Fatalf("home page called backend op %s", op)
		}
	}
}

func TestUploadThenFetchRoundTrip(t *testing.T) {
	h := newHarness(t, 0)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)

	path := h.upload(t, payload, "application/pdf")

	w := h.do(httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Fatalf("fetched %d bytes, want %d", w.Body.Len(), len(payload))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("missing ETag")
	}
}

func TestUploadURLUsesRequestHost(t *testing.T) {
	h := newHarness(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
	req.Host = "files.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	w := h.do(req)
	if !strings.HasPrefix(w.Body.String(), "https://files.example.com/objects/") {
		t.Fatalf("url = %q", w.Body.String())
	}
}

func TestFetchMissingIs404(t *testing.T) {
	h := newHarness(t, 0)
	w := h.do(httptest.NewRequest(http.MethodGet, "/objects/never-uploaded", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	w = h.do(httptest.NewRequest(http.MethodHead, "/objects/never-uploaded", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("HEAD status = %d", w.Code)
	}
}

func TestHeadReportsSize(t *testing.T) {
	h := newHarness(t, 0)
	path := h.upload(t, []byte("twelve bytes"), "")

	w := h.do(httptest.NewRequest(http.MethodHead, path, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Content-Length") != "12" {
		t.Fatalf("content length = %q", w.Header().Get("Content-Length"))
	}
}

func TestListJSONContainsEveryUploadAndEachIsFetchable(t *testing.T) {
	h := newHarness(t, 0)
	want := map[string]string{}
	for _, body := range []string{"a", "b", "c"} {
		path := h.upload(t, []byte(body), "text/plain")
		want[strings.TrimPrefix(path, "/objects/")] = body
	}

	req := httptest.NewRequest(http.MethodGet, "/objects", nil)
	req.Header.Set("Accept", "application/json")
	w := h.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var listing struct {
		Bucket  string
		Count   int
		Objects []struct {
			Key string
			URL string
		}
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v\n%s", err, w.Body.String())
	}
	if listing.Bucket != bucket || listing.Count != 3 || len(listing.Objects) != 3 {
		t.Fatalf("listing = %+v", listing)
	}
	for _, o := range listing.Objects {
		body, ok := want[o.Key]
		if !ok {
			t.Fatalf("unexpected key %s", o.Key)
		}
		u, err := url.Parse(o.URL)
		if err != nil {
			t.Fatal(err)
		}
		fw := h.do(httptest.NewRequest(http.MethodGet, u.Path, nil))
		if fw.Code != http.StatusOK || fw.Body.String() != body {
			t.Fatalf("fetch %s: %d %q", o.Key, fw.Code, fw.Body.String())
		}
	}
}

func TestNestedKeysAreListedAndFetchable(t *testing.T) {
	h := newHarness(t, 0)
	const key = "dir/sub dir/file.txt"
	if _, err := h.mem.PutObject(context.Background(), bucket, key, strings.NewReader("nested"), 6, "text/plain"); err != nil {
		t.Fatal(err)
	}

	w := h.do(httptest.NewRequest(http.MethodGet, "/objects?format=json", nil))
	var listing struct {
		Objects []struct {
			Key string
			URL string
		}
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode: %v\n%s", err, w.Body.String())
	}
	if len(listing.Objects) != 1 || listing.Objects[0].Key != key {
		t.Fatalf("listing = %+v", listing)
	}
	link := listing.Objects[0].URL
	if link != "http://example.com/objects/dir/sub%20dir/file.txt" {
		t.Fatalf("url = %q", link)
	}

	fw := h.do(httptest.NewRequest(http.MethodGet, link, nil))
	if fw.Code != http.StatusOK || fw.Body.String() != "nested" {
		t.Fatalf("fetch %s: %d %q", link, fw.Code, fw.Body.String())
	}
	hw := h.do(httptest.NewRequest(http.MethodHead, link, nil))
	if hw.Code != http.StatusOK || hw.Header().Get("Content-Length") != "6" {
		t.Fatalf("head %s: %d", link, hw.Code)
	}
}

func TestFetchWithoutKeyIs404(t *testing.T) {
	h := newHarness(t, 0)
	if w := h.do(httptest.NewRequest(http.MethodGet, "/objects/", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if n := h.mem.CallCount("get"); n != 0 {
		t.Fatalf("empty key reached the backend")
	}
}

func TestListHTMLByDefault(t *testing.T) {
	h := newHarness(t, 0)
	path := h.upload(t, []byte("hello"), "")
	key := strings.TrimPrefix(path, "/objects/")

	w := h.do(httptest.NewRequest(http.MethodGet, "/objects", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("content type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), key) {
		t.Fatalf("index does not mention %s", key)
	}
}

func TestListFailureIs500(t *testing.T) {
	h := newHarness(t, 0)
	h.mem.Failures["list"] = apperrors.StorageRead(errors.New("boom"), "list")
	w := h.do(httptest.NewRequest(http.MethodGet, "/objects", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadFailureIs500(t *testing.T) {
	h := newHarness(t, 0)
	h.mem.Failures["put"] = apperrors.StorageWrite(errors.New("boom"), "put")
	w := h.do(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x")))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestConnectivityFailureIs502(t *testing.T) {
	h := newHarness(t, 0)
	h.mem.Failures["get"] = apperrors.Connectivity(errors.New("refused"), "get")
	w := h.do(httptest.NewRequest(http.MethodGet, "/objects/any", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUploadOverLimitIs413(t *testing.T) {
	h := newHarness(t, 4)
	w := h.do(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("too long")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
	if n := h.mem.CallCount("put"); n != 0 {
		t.Fatalf("oversized declared body reached the backend")
	}
}

func TestReadyReflectsBackend(t *testing.T) {
	h := newHarness(t, 0)
	if w := h.do(httptest.NewRequest(http.MethodGet, "/ready", nil)); w.Code != http.StatusOK {
		t.Fatalf("ready = %d", w.Code)
	}
	h.mem.Failures["ping"] = apperrors.Connectivity(errors.New("dial tcp 10.0.0.7:9000: connection refused"), "ping")
	w := h.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "10.0.0.7") || strings.Contains(body, "refused") {
		t.Fatalf("readiness body leaks backend detail: %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 0)
	h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	w := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "objgate_http_requests_total") {
		t.Fatalf("metrics: %d\n%s", w.Code, w.Body.String())
	}
}

// zeroReader yields n zero bytes without allocating them up front
type zeroReader struct{ n int64 }

func (z *zeroReader) Read(p []byte) (int, error) {
	if z.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > z.n {
		p = p[:z.n]
	}
	clear(p)
	z.n -= int64(len(p))
	return len(p), nil
}

func TestUploadStreamsLargeBody(t *testing.T) {
	if testing.Short() {
		t.Skip("streams a large payload")
	}
	h := newHarness(t, 0)
	h.mem.Discard = true

	const size = 128 << 20
	req := httptest.NewRequest(http.MethodPost, "/upload", &zeroReader{n: size})
	req.ContentLength = -1

	w := h.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	key := strings.TrimPrefix(strings.TrimSpace(w.Body.String()), "http://example.com/objects/")
	w = h.do(httptest.NewRequest(http.MethodHead, "/objects/"+key, nil))
	if w.Header().Get("Content-Length") != "134217728" {
		t.Fatalf("stored size = %q", w.Header().Get("Content-Length"))
	}
}
