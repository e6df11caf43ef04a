package preview

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/smeltjs/smelt/internal/config"
	"github.com/smeltjs/smelt/internal/publicdir"
)

func TestPublicFileServedWithForcedScriptType(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "app.abc123.js", "console.log('bundle')")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/app.abc123.js", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != scriptContentType {
		t.Fatalf("Content-Type = %q, want %q", ct, scriptContentType)
	}
	if body := readBody(t, resp); body != "console.log('bundle')" {
		t.Fatalf("body = %q", body)
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("static responses should carry an ETag")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("every response should carry a request id")
	}
}

func TestPublicFileWinsOverFallback(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>shell</html>")
	writeDistFile(t, dist, "assets/app.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	// Even an HTML-accepting request must get the asset bytes, never the
	// root document, when the path is indexed.
	resp := doRequest(t, app, "GET", "/assets/app.js", map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "export {}" {
		t.Fatalf("asset request resolved to the wrong content: %q", body)
	}
}

func TestRootServesIndexDocument(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>root</html>")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<html>root</html>" {
		t.Fatalf("body = %q", body)
	}
	// Served by the public-file middleware, so it validates with an ETag.
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("indexed root document should carry an ETag")
	}
}

func TestDirectoryRequestResolvesIndex(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "docs/index.html", "<html>docs</html>")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/docs/", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<html>docs</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestSpaFallbackForHTMLNavigation(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>app shell</html>")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/some/client/route", map[string]string{
		"Accept": "text/html,application/xhtml+xml;q=0.9",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<html>app shell</html>" {
		t.Fatalf("fallback should serve the root document, got %q", body)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control = %q, want no-cache", cc)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestSpaFallbackSkippedWithoutHTMLAccept(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>app shell</html>")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/api/data.json", map[string]string{
		"Accept": "*/*",
	})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNotFoundWhenRootDocumentMissing(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "assets/app.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/some/route", map[string]string{
		"Accept": "text/html",
	})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCustomHeadersOnEveryResponse(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>shell</html>")
	writeDistFile(t, dist, "app.js", "export {}")
	app := newPreviewApp(t, dist, func(opts *Options) {
		opts.Headers = config.HeaderMap{
			"X-Served-By": {"smelt"},
			"X-Multi":     {"one", "two"},
		}
	})

	requests := []struct {
		name   string
		path   string
		accept string
		status int
	}{
		{"static hit", "/app.js", "", fiber.StatusOK},
		{"spa fallback", "/client/route", "text/html", fiber.StatusOK},
		{"not found", "/client/route", "", fiber.StatusNotFound},
	}
	for _, rc := range requests {
		t.Run(rc.name, func(t *testing.T) {
			headers := map[string]string{}
			if rc.accept != "" {
				headers["Accept"] = rc.accept
			}
			resp := doRequest(t, app, "GET", rc.path, headers)
			if resp.StatusCode != rc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, rc.status)
			}
			if got := resp.Header.Get("X-Served-By"); got != "smelt" {
				t.Fatalf("X-Served-By = %q on %s", got, rc.name)
			}
			if got := resp.Header.Values("X-Multi"); len(got) != 2 {
				t.Fatalf("X-Multi = %v, want both values", got)
			}
		})
	}
}

func TestIfNoneMatchAnswersNotModified(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "app.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	first := doRequest(t, app, "GET", "/app.js", nil)
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("first response should carry an ETag")
	}

	second := doRequest(t, app, "GET", "/app.js", map[string]string{
		"If-None-Match": etag,
	})
	if second.StatusCode != fiber.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.StatusCode)
	}
	if body := readBody(t, second); body != "" {
		t.Fatalf("304 must carry no body, got %q", body)
	}
	if got := second.Header.Get("ETag"); got != etag {
		t.Fatalf("304 should repeat the validator, got %q", got)
	}
}

func TestHeadRequestOmitsBody(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "app.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "HEAD", "/app.js", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "" {
		t.Fatalf("HEAD must not return a body, got %q", body)
	}
}

func TestCorsHeadersWhenEnabled(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "app.js", "export {}")
	app := newPreviewApp(t, dist, func(opts *Options) {
		opts.CORS = true
	})

	resp := doRequest(t, app, "GET", "/app.js", map[string]string{
		"Origin": "http://example.com",
	})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("CORS middleware should answer cross-origin requests")
	}
}

func TestCorsHeadersAbsentByDefault(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "app.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/app.js", map[string]string{
		"Origin": "http://example.com",
	})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("CORS should stay off unless configured, got %q", got)
	}
}

func TestCompressionAppliesWhenRequested(t *testing.T) {
	dist := t.TempDir()
	payload := strings.Repeat("const answer = 42;\n", 400)
	writeDistFile(t, dist, "big.js", payload)
	app := newPreviewApp(t, dist, nil)

	resp := doRequest(t, app, "GET", "/big.js", map[string]string{
		"Accept-Encoding": "gzip",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", enc)
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer zr.Close()
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != payload {
		t.Fatalf("decompressed body differs from the file content")
	}
}

func TestVanishedFileFallsThroughToFallback(t *testing.T) {
	dist := t.TempDir()
	writeDistFile(t, dist, "index.html", "<html>shell</html>")
	writeDistFile(t, dist, "gone.js", "export {}")
	app := newPreviewApp(t, dist, nil)

	if err := os.Remove(filepath.Join(dist, "gone.js")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	resp := doRequest(t, app, "GET", "/gone.js", map[string]string{
		"Accept": "text/html",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want fallback 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "<html>shell</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestBuildAppValidatesInputs(t *testing.T) {
	dist := t.TempDir()
	index, err := publicdir.Scan(dist)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := buildApp(Options{DistDir: dist}, index, nil); err == nil {
		t.Fatalf("nil logger should be rejected")
	}
	if _, err := buildApp(Options{DistDir: dist}, nil, logger); err == nil {
		t.Fatalf("nil index should be rejected")
	}
	if _, err := buildApp(Options{}, index, logger); err == nil {
		t.Fatalf("empty dist directory should be rejected")
	}
}

// newPreviewApp assembles the middleware chain over dist the way New does,
// without opening a socket.
func newPreviewApp(t *testing.T, dist string, mutate func(*Options)) *fiber.App {
	t.Helper()

	opts := Options{
		Host:    DefaultHost,
		Port:    DefaultPort,
		DistDir: dist,
		Root:    dist,
	}
	if mutate != nil {
		mutate(&opts)
	}

	index, err := publicdir.Scan(dist)
	if err != nil {
		t.Fatalf("scan dist: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := buildApp(opts, index, logger)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, "http://preview.local"+target, nil)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
