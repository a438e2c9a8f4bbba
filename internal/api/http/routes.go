package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/soarbot/internal/store"
)

var validate = validator.New()

// NewApp builds the Fiber app with the shared error handler, middleware and
// health endpoint.
func NewApp(name string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": name,
		})
	})
	return app
}

// RegisterRoutes wires the read-only status handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reader store.Reader) {
	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		limit, err := parseLimit(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := reader.Runs(c.UserContext(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load run metrics")
		}
		return c.JSON(fiber.Map{
			"count": len(runs),
			"runs":  runs,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		run, err := reader.LatestRun(c.UserContext())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load run metrics")
		}
		return c.JSON(run)
	})

	v1.Get("/notifications", func(c *fiber.Ctx) error {
		var req notificationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := reader.Notifications(c.UserContext(), store.NotificationFilter{
			SubscriberID: req.Subscriber,
			StationID:    req.Station,
			Limit:        req.Limit,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load notification history")
		}
		return c.JSON(fiber.Map{
			"count":         len(records),
			"notifications": records,
		})
	})
}

// RegisterMetrics mounts a net/http metrics handler at /metrics.
func RegisterMetrics(app *fiber.App, h http.Handler) {
	app.Get("/metrics", adaptor.HTTPHandler(h))
}

type limitQuery struct {
	Limit int `validate:"gte=1,lte=500"`
}

func parseLimit(c *fiber.Ctx) (int, error) {
	q := limitQuery{Limit: store.DefaultLimit}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.New("limit must be an integer")
		}
		q.Limit = n
	}
	if err := validate.Struct(q); err != nil {
		return 0, err
	}
	return q.Limit, nil
}

// notificationsQuery holds query parameters for the notification history endpoint.
type notificationsQuery struct {
	Subscriber string `validate:"omitempty,max=128"`
	Station    string `validate:"omitempty,max=64"`
	Limit      int
}

func (q *notificationsQuery) bind(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	q.Limit = limit
	q.Subscriber = c.Query("subscriber")
	q.Station = c.Query("station")
	return nil
}
