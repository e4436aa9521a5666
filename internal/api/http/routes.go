package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/txcoastal/station-data-aggregation/internal/hydro"
	"github.com/txcoastal/station-data-aggregation/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *hydro.Service, st *store.MemoryStore) {
	v1 := app.Group("/api/v1")

	// Live read straight from the station's network. The station path
	// segment takes comma-separated site numbers for multi-gauge reads.
	v1.Get("/stations/:station/data", func(c *fiber.Ctx) error {
		var req dataQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		station, err := hydro.ClassifyStation(req.stationIDs()...)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		opts, err := req.toReadOptions()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table := service.Read(c.UserContext(), station, opts)
		if table == nil {
			return fiber.NewError(fiber.StatusNotFound, "no data for requested station")
		}
		return c.JSON(table)
	})

	// Most recent table the background refresh saved for a station.
	v1.Get("/stations/:station/latest", func(c *fiber.Ctx) error {
		snapshot, err := st.GetLatest(c.Params("station"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no stored data for requested station")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch stored data")
		}
		return c.JSON(snapshot)
	})

	// All stored snapshots for a station fetched inside [from, to].
	v1.Get("/stations/:station/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		station := c.Params("station")
		snapshots, err := st.GetRange(station, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no stored data for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch stored data")
		}

		return c.JSON(fiber.Map{
			"station":   station,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

// dataQuery holds the query parameters of a live station read.
type dataQuery struct {
	Station string `validate:"required"`
	Start   string
	End     string
	Zone    string

	Period string
	Base   int
	How    string `validate:"omitempty,oneof=instant mean"`
	Label  string `validate:"omitempty,oneof=left center"`

	Freq     string `validate:"omitempty,oneof=iv dv"`
	Variable string `validate:"omitempty,oneof=flow height storage"`
	Binning  string `validate:"omitempty,oneof=mon day hour min"`
	Datum    string `validate:"omitempty,oneof=MSL MHHW MHW MLW MLLW MTL"`
	Feed     string `validate:"omitempty,oneof=met salt ven wave"`

	Model bool
	Layer int
}

func (q *dataQuery) bind(c *fiber.Ctx) error {
	q.Station = c.Params("station")
	q.Start = c.Query("start")
	q.End = c.Query("end")
	q.Zone = c.Query("tz")

	q.Period = c.Query("period")
	q.Base = c.QueryInt("base", 0)
	q.How = c.Query("how")
	q.Label = c.Query("label")

	q.Freq = c.Query("freq")
	q.Variable = c.Query("var")
	q.Binning = c.Query("binning")
	q.Datum = c.Query("datum")
	q.Feed = c.Query("feed")

	q.Model = c.QueryBool("model", false)
	q.Layer = c.QueryInt("layer", 0)
	return nil
}

func (q *dataQuery) stationIDs() []string {
	return strings.Split(q.Station, ",")
}

func (q *dataQuery) toReadOptions() (hydro.ReadOptions, error) {
	opts := hydro.ReadOptions{
		Zone:     q.Zone,
		Freq:     q.Freq,
		Variable: q.Variable,
		Binning:  q.Binning,
		Datum:    q.Datum,
		Feed:     q.Feed,
		Model:    q.Model,
		Layer:    q.Layer,
	}

	if q.Start != "" {
		start, err := hydro.ParseDate(q.Start)
		if err != nil {
			return opts, err
		}
		opts.Start = &start
	}
	if q.End != "" {
		end, err := hydro.ParseDate(q.End)
		if err != nil {
			return opts, err
		}
		opts.End = &end
	}
	if (opts.Start == nil) != (opts.End == nil) {
		return opts, errors.New("start and end query parameters must be given together")
	}

	if q.Period != "" {
		if _, err := hydro.ParsePeriod(q.Period); err != nil {
			return opts, err
		}
		opts.Resample = &hydro.Directive{
			Period: q.Period,
			Base:   q.Base,
			How:    hydro.How(q.How),
			Label:  hydro.LabelPlacement(q.Label),
		}
	}
	return opts, nil
}

// historyQuery holds the query parameters of the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
