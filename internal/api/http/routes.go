package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/assistant-api-facade/internal/common"
	"github.com/i474232898/assistant-api-facade/internal/external"
	"github.com/i474232898/assistant-api-facade/internal/pairing"
	"github.com/i474232898/assistant-api-facade/internal/transport"
)

var validate = validator.New()

// Facade is what the routes need from the external API manager.
type Facade interface {
	KnowledgeMode() external.KnowledgeMode
	WeatherAvailable() bool

	Geolocate(ctx context.Context, address string) (map[string]any, error)

	KnowledgeSpoken(ctx context.Context, query, units string, coords *external.Coordinate) (*external.Answer, error)
	KnowledgeSimple(ctx context.Context, query, units string, coords *external.Coordinate) (*external.Answer, error)
	KnowledgeFull(ctx context.Context, query, units string, coords *external.Coordinate) (*external.Answer, error)
	KnowledgeXML(ctx context.Context, query, units string, coords *external.Coordinate) (*external.Answer, error)

	WeatherCurrent(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error)
	WeatherHourly(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error)
	WeatherDaily(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error)
	WeatherOneCall(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error)
}

type knowledgeFunc func(ctx context.Context, query, units string, coords *external.Coordinate) (*external.Answer, error)

type weatherFunc func(ctx context.Context, lat, lon float64, units, lang string) (json.RawMessage, error)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, api Facade, pairings *pairing.Registry) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "assistant-api-facade",
			"knowledge": api.KnowledgeMode(),
			"weather":   api.WeatherAvailable(),
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/geolocation", func(c *fiber.Ctx) error {
		q := geolocationQuery{Location: c.Query("location")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := api.Geolocate(c.UserContext(), q.Location)
		if err != nil {
			return err
		}
		return niceJSON(c, common.MapToCamelCase(res))
	})

	v1.Get("/knowledge/spoken", knowledgeHandler(api.KnowledgeSpoken))
	v1.Get("/knowledge/simple", knowledgeHandler(api.KnowledgeSimple))
	v1.Get("/knowledge/full", knowledgeHandler(api.KnowledgeFull))
	v1.Get("/knowledge/xml", knowledgeHandler(api.KnowledgeXML))

	v1.Get("/weather/current", weatherHandler(api.WeatherCurrent))
	v1.Get("/weather/hourly", weatherHandler(api.WeatherHourly))
	v1.Get("/weather/daily", weatherHandler(api.WeatherDaily))
	v1.Get("/weather/onecall", weatherHandler(api.WeatherOneCall))

	v1.Post("/pairing", func(c *fiber.Ctx) error {
		p, err := pairings.Issue()
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	v1.Get("/pairing/:code", func(c *fiber.Ctx) error {
		code, err := parseCode(c)
		if err != nil {
			return err
		}
		p, err := pairings.Lookup(code)
		if err != nil {
			return err
		}
		return c.JSON(p)
	})

	v1.Delete("/pairing/:code", func(c *fiber.Ctx) error {
		code, err := parseCode(c)
		if err != nil {
			return err
		}
		p, err := pairings.Claim(code)
		if err != nil {
			return err
		}
		return c.JSON(p)
	})
}

// ErrorHandler renders errors as {"error": true, "message": ...}. Upstream
// failures map to 502 so callers can tell them apart from an empty 204.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
	case errors.Is(err, transport.ErrUpstream):
		code = fiber.StatusBadGateway
	case errors.Is(err, pairing.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, pairing.ErrExhausted):
		code = fiber.StatusServiceUnavailable
	}

	if code >= fiber.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func knowledgeHandler(fetch knowledgeFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q knowledgeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ans, err := fetch(c.UserContext(), q.Input, q.Units, q.coordinate())
		if err != nil {
			return err
		}
		if ans == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}

		c.Set("X-Knowledge-Source", string(ans.Source))
		switch ans.Format {
		case external.FormatJSON:
			return niceJSON(c, ans.Data)
		case external.FormatXML:
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
			return c.SendString(ans.Text)
		default:
			c.Set(fiber.HeaderContentType, http.DetectContentType([]byte(ans.Text)))
			return c.SendString(ans.Text)
		}
	}
}

func weatherHandler(fetch weatherFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q weatherQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := fetch(c.UserContext(), q.Coords.Lat, q.Coords.Lon, q.Units, q.Lang)
		if err != nil {
			return err
		}
		if res == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}

		// Decode only to re-indent; numbers keep their upstream text.
		dec := json.NewDecoder(bytes.NewReader(res))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return err
		}
		return niceJSON(c, doc)
	}
}

// niceJSON writes v with sorted keys and four space indentation.
func niceJSON(c *fiber.Ctx, v any) error {
	body, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(body)
}

type geolocationQuery struct {
	Location string `validate:"required"`
}

// coordQuery holds a latitude/longitude pair from the query string.
type coordQuery struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

// parseCoords reads lat and lon. Both must be given together; when neither
// is given the result is nil.
func parseCoords(c *fiber.Ctx) (*coordQuery, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("lat and lon query parameters must be given together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, errors.New("invalid lon")
	}

	q := &coordQuery{Lat: lat, Lon: lon}
	if err := validate.Struct(q); err != nil {
		return nil, err
	}
	return q, nil
}

// knowledgeQuery holds query parameters for the knowledge endpoints.
type knowledgeQuery struct {
	Input  string `validate:"required"`
	Units  string
	Coords *coordQuery
}

func (k *knowledgeQuery) bind(c *fiber.Ctx) error {
	k.Input = c.Query("input")
	k.Units = c.Query("units")

	coords, err := parseCoords(c)
	if err != nil {
		return err
	}
	k.Coords = coords

	return validate.Struct(k)
}

func (k *knowledgeQuery) coordinate() *external.Coordinate {
	if k.Coords == nil {
		return nil
	}
	return &external.Coordinate{Lat: k.Coords.Lat, Lon: k.Coords.Lon}
}

// weatherQuery holds query parameters for the weather endpoints.
type weatherQuery struct {
	Coords *coordQuery `validate:"required"`
	Units  string
	Lang   string
}

func (w *weatherQuery) bind(c *fiber.Ctx) error {
	coords, err := parseCoords(c)
	if err != nil {
		return err
	}
	if coords == nil {
		return errors.New("lat and lon query parameters are required")
	}
	w.Coords = coords
	w.Units = c.Query("units")
	w.Lang = c.Query("lang")

	return validate.Struct(w)
}

type pairingCode struct {
	Code string `validate:"required,len=6,alphanum"`
}

func parseCode(c *fiber.Ctx) (string, error) {
	p := pairingCode{Code: c.Params("code")}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return p.Code, nil
}
