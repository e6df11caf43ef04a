package preview

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smeltjs/smelt/internal/logging"
	"github.com/smeltjs/smelt/internal/publicdir"
)

const contextKeyRequestID = "_smelt_request_id"

// buildApp assembles the Fiber application with the middleware chain in its
// fixed order. Public-file lookup runs before the SPA fallback; swapping the
// two would turn every hashed asset request into a copy of the root
// document, so the order lives in exactly one place.
func buildApp(opts Options, index *publicdir.Index, logger *logrus.Logger) (*fiber.App, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if index == nil {
		return nil, errors.New("public files index is required")
	}
	if opts.DistDir == "" {
		return nil, errors.New("dist directory is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	app.Use(accessLogMiddleware(logger))
	app.Use(compress.New())
	if opts.CORS {
		app.Use(cors.New())
	}
	if len(opts.Headers) > 0 {
		app.Use(customHeadersMiddleware(opts.Headers))
	}
	app.Use(publicFileMiddleware(index))
	app.Use(spaFallbackMiddleware(opts.DistDir))

	return app, nil
}

// requestIDMiddleware tags every request with a fresh identifier, stored in
// Locals for the access log and echoed as X-Request-ID.
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the identifier stored by the request-id middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func accessLogMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := logging.RequestFields(RequestID(c), c.Method(), requestPath(c), status)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		logger.WithFields(fields).Debug("request_complete")
		return err
	}
}

// customHeadersMiddleware stamps the configured headers before delegating,
// so they reach every response: static hits, fallback documents, and the
// default not-found responder alike.
func customHeadersMiddleware(headers map[string][]string) fiber.Handler {
	return func(c fiber.Ctx) error {
		for name, values := range headers {
			for i, value := range values {
				if i == 0 {
					c.Set(name, value)
				} else {
					c.Response().Header.Add(name, value)
				}
			}
		}
		return c.Next()
	}
}

func requestPath(c fiber.Ctx) string {
	if path := string(c.Request().URI().Path()); path != "" {
		return path
	}
	return "/"
}
