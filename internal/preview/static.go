package preview

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/smeltjs/smelt/internal/publicdir"
)

// scriptContentType is forced for JavaScript module extensions regardless
// of the generic MIME guess; module loaders reject ambiguous script types.
const scriptContentType = "text/javascript"

// publicFileMiddleware serves request paths present in the snapshot index
// and delegates everything else. Membership is a map lookup, so unknown
// paths cost no filesystem call.
func publicFileMiddleware(index *publicdir.Index) fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		rel, ok := lookupIndexPath(index, requestPath(c))
		if !ok {
			return c.Next()
		}
		return servePublicFile(c, index.Root(), rel)
	}
}

// lookupIndexPath maps a request path onto an indexed file. Directory
// requests (trailing slash, or the bare root) resolve to the directory's
// index.html.
func lookupIndexPath(index *publicdir.Index, reqPath string) (string, bool) {
	rel := publicdir.Normalize(reqPath)
	switch {
	case rel == "":
		rel = "index.html"
	case strings.HasSuffix(reqPath, "/"):
		rel += "/index.html"
	}
	if index.Has(rel) {
		return rel, true
	}
	return "", false
}

// servePublicFile streams one indexed file with validator headers. A file
// that vanished since the scan falls through to the next middleware, since
// the snapshot never promised it still exists.
func servePublicFile(c fiber.Ctx, root, rel string) error {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Next()
		}
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("open %s: %v", rel, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return c.Next()
	}

	etag := weakETag(info)
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderLastModified, info.ModTime().UTC().Format(http.TimeFormat))

	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && etagMatches(match, etag) {
		return c.SendStatus(fiber.StatusNotModified)
	}

	if ct := contentTypeFor(rel); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	} else {
		c.Response().Header.Del(fiber.HeaderContentType)
	}
	c.Response().Header.SetContentLength(int(info.Size()))
	c.Status(fiber.StatusOK)

	if c.Method() == fiber.MethodHead {
		return nil
	}
	if _, err := io.Copy(c.Response().BodyWriter(), f); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read %s: %v", rel, err))
	}
	return nil
}

// spaFallbackMiddleware rewrites HTML navigations that matched no file onto
// the site's root document, so client-side routers receive their app shell
// on deep links. The document is stat'ed per request rather than through
// the snapshot: a dist directory populated after startup still gets its
// root served.
func spaFallbackMiddleware(distDir string) fiber.Handler {
	indexPath := filepath.Join(distDir, "index.html")
	return func(c fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}
		if !acceptsHTML(c) {
			return c.Next()
		}
		return serveFallbackDocument(c, indexPath)
	}
}

// acceptsHTML reports whether the request is an HTML navigation. A bare
// */* does not qualify, so asset fetches and API probes miss the fallback.
func acceptsHTML(c fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), "text/html")
}

func serveFallbackDocument(c fiber.Ctx, indexPath string) error {
	f, err := os.Open(indexPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Next()
		}
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("open root document: %v", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return c.Next()
	}

	// One document answers many client routes; make clients revalidate
	// instead of caching a per-route copy.
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Response().Header.SetContentLength(int(info.Size()))
	c.Status(fiber.StatusOK)

	if c.Method() == fiber.MethodHead {
		return nil
	}
	if _, err := io.Copy(c.Response().BodyWriter(), f); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read root document: %v", err))
	}
	return nil
}

// contentTypeFor guesses a Content-Type from the file extension, forcing
// text/javascript for script modules. An empty return means the type stays
// unset.
func contentTypeFor(rel string) string {
	ext := strings.ToLower(path.Ext(rel))
	switch ext {
	case ".js", ".mjs", ".cjs":
		return scriptContentType
	}
	return mime.TypeByExtension(ext)
}

// weakETag derives the validator from file metadata, matching what common
// static servers emit. Weak, because metadata equality does not guarantee
// byte equality.
func weakETag(info fs.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().UnixNano())
}

// etagMatches implements the If-None-Match list check against one tag.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
