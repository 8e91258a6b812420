package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"devfeed/aggregator"
	"devfeed/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

type ServerConfig struct {
	// Lifetime of the server. Refreshes requested over the API are cancelled
	// when it is done. Defaults to context.Background()
	Context context.Context

	// The aggregator holding the feed state
	Aggregator *aggregator.Aggregator

	// Broadcast channels to pass state changes to SSE clients
	Broadcaster *Broadcaster

	// Comma separated list of origins allowed by CORS
	CorsOrigins string

	// Interval between SSE keep-alive pings, defaults to 5 seconds
	KeepAlive time.Duration
}

type filterRequest struct {
	Category string `json:"category"`
}

// Returns a fiber.App instance to be used as an HTTP server for the devfeed API
func Server(config *ServerConfig) *fiber.App {

	agg := config.Aggregator
	bc := config.Broadcaster

	serverCtx := config.Context
	if serverCtx == nil {
		serverCtx = context.Background()
	}

	keepAlive := config.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 5 * time.Second
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/events"
		},
	}))

	origins := config.CorsOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Cache-Control, Content-Type",
		AllowCredentials: origins != "*",
	}))

	// The keyword table never changes while running
	app.Use(cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Method() != fiber.MethodGet || c.Path() != "/api/categories"
		},
		Expiration: time.Hour,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/feed", func(c *fiber.Ctx) error {
		if filter := c.Query("filter"); filter != "" {
			if !agg.Categories().Has(filter) {
				return c.Status(fiber.StatusBadRequest).SendString("Unknown category")
			}
			return c.JSON(agg.ViewWith(filter))
		}
		return c.JSON(agg.View())
	})

	api.Put("/filter", func(c *fiber.Ctx) error {
		var req filterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid request body")
		}
		if !agg.Categories().Has(req.Category) {
			return c.Status(fiber.StatusBadRequest).SendString("Unknown category")
		}

		agg.SetFilter(req.Category)
		log.WithFields(log.Fields{
			"category": req.Category,
		}).Info("Filter changed")

		return c.JSON(agg.View())
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(agg.Stats())
	})

	api.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(agg.Snapshot())
	})

	api.Get("/categories", func(c *fiber.Ctx) error {
		return c.JSON(agg.Categories().Names())
	})

	// Ids may be AT-URIs, clients send them path escaped
	api.Get("/posts/:id", func(c *fiber.Ctx) error {
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid post id")
		}
		post, ok := agg.Post(id)
		if !ok {
			return c.Status(fiber.StatusNotFound).SendString("Post not found")
		}
		return c.JSON(post)
	})

	api.Post("/refresh", func(c *fiber.Ctx) error {
		go func() {
			err := agg.Refresh(serverCtx)
			if err != nil && !errors.Is(err, aggregator.ErrSuperseded) && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("Requested refresh failed")
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(agg.Snapshot())
	})

	api.Delete("/events", func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		bc.RemoveClient(key)
		return c.Status(200).SendString("OK")
	})

	api.Get("/events", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		stateChannel := make(chan models.StateEvent, 10)
		statisticsChannel := make(chan models.StatisticsEvent, 10)

		bc.AddClient(key, stateChannel, statisticsChannel)

		// Current state first so clients can render without polling
		initial := agg.Snapshot()

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			aliveTicker := time.NewTicker(keepAlive)
			defer aliveTicker.Stop()
			defer func() {
				log.Infof("Cleaning up SSE stream for client: %s", key)
				bc.RemoveClient(key)
			}()

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := writeEvent(w, "state", initial); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-aliveTicker.C:
					fmt.Fprintf(w, "event: ping\ndata: \n\n")
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case state, ok := <-stateChannel:
					if !ok {
						return
					}
					if err := writeEvent(w, "state", state); err != nil {
						log.Warnf("Failed to send state event to client %s: %v", key, err)
						return
					}

				case stats, ok := <-statisticsChannel:
					if !ok {
						return
					}
					if err := writeEvent(w, "statistics", stats); err != nil {
						log.Warnf("Failed to send statistics event to client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
