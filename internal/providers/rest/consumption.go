package rest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"octopyenergy/internal/model"
	"octopyenergy/internal/providers"
)

const consumptionPathTemplate = "/v1/electricity-meter-points/{mpan}/meters/{serial}/consumption"

// Done is returned by ConsumptionReader.Next once every page has been read.
var Done = errors.New("rest: no more readings")

var ErrInvalidPeriod = errors.New("rest: period start must be before period end")

type consumptionQuery struct {
	periodFrom time.Time
	periodTo   time.Time
	hasPeriod  bool
	grouping   model.Grouping
}

type ConsumptionOption func(*consumptionQuery)

// WithPeriod restricts readings to the half-open range [from, to).
func WithPeriod(from, to time.Time) ConsumptionOption {
	return func(q *consumptionQuery) {
		q.periodFrom = from
		q.periodTo = to
		q.hasPeriod = true
	}
}

func WithGrouping(grouping model.Grouping) ConsumptionOption {
	return func(q *consumptionQuery) {
		q.grouping = grouping
	}
}

func (q consumptionQuery) values() url.Values {
	params := url.Values{}
	if q.hasPeriod {
		params.Set("period_from", q.periodFrom.Format(time.RFC3339Nano))
		params.Set("period_to", q.periodTo.Format(time.RFC3339Nano))
	}
	// Half-hour grouping requires *not* passing the parameter at all.
	if value := q.grouping.REST(); value != "" {
		params.Set("group_by", value)
	}
	return params
}

// ElectricityMeterConsumption returns a reader over the consumption history of
// one meter. Nothing is fetched until the first call to Next.
func (s *Session) ElectricityMeterConsumption(mpan, serialNumber string, opts ...ConsumptionOption) (*ConsumptionReader, error) {
	if strings.TrimSpace(mpan) == "" || strings.TrimSpace(serialNumber) == "" {
		return nil, errors.New("rest: mpan and meter serial number are required")
	}
	query := consumptionQuery{grouping: model.GroupingHalfHour}
	for _, opt := range opts {
		opt(&query)
	}
	if !query.grouping.Valid() {
		return nil, fmt.Errorf("rest: unknown grouping %q", string(query.grouping))
	}
	if query.hasPeriod && !query.periodFrom.Before(query.periodTo) {
		return nil, ErrInvalidPeriod
	}

	path := strings.NewReplacer(
		"{mpan}", url.PathEscape(mpan),
		"{serial}", url.PathEscape(serialNumber),
	).Replace(consumptionPathTemplate)
	first, err := s.APIURL(path)
	if err != nil {
		return nil, err
	}
	if params := query.values(); len(params) > 0 {
		first.RawQuery = params.Encode()
	}

	return &ConsumptionReader{
		fetcher: s,
		metrics: s.metrics,
		nextURL: first.String(),
		logger: s.logger.With(
			zap.String("mpan", mpan),
			zap.String("meter", serialNumber),
			zap.String("grouping", query.grouping.String()),
		),
	}, nil
}

type pageFetcher interface {
	GetJSON(ctx context.Context, endpoint string, dest any) error
	APIURL(ref string) (*url.URL, error)
}

type consumptionPage struct {
	Next    *string           `json:"next"`
	Results *[]map[string]any `json:"results"`
}

// ConsumptionReader walks the cursor-linked pages of a consumption resource,
// holding one decoded page at a time. It is forward-only and not safe for
// concurrent use.
type ConsumptionReader struct {
	fetcher pageFetcher
	metrics *providers.Metrics
	logger  *zap.Logger
	results []model.ConsumptionReading
	nextURL string
	err     error
}

// Next returns the next reading, fetching the following page when the current
// one is exhausted. It returns Done at the end of the sequence. A failed fetch
// ends the sequence: the same error is returned from then on.
func (r *ConsumptionReader) Next(ctx context.Context) (model.ConsumptionReading, error) {
	if len(r.results) > 0 {
		reading := r.results[0]
		r.results = r.results[1:]
		return reading, nil
	}
	if r.err != nil {
		return model.ConsumptionReading{}, r.err
	}
	if r.nextURL == "" {
		return model.ConsumptionReading{}, Done
	}

	if err := r.fetch(ctx); err != nil {
		r.err = err
		r.nextURL = ""
		r.results = nil
		return model.ConsumptionReading{}, err
	}
	return r.Next(ctx)
}

// NextURL is the page that will be fetched once the buffer runs out, or the
// empty string when no page is left.
func (r *ConsumptionReader) NextURL() string {
	return r.nextURL
}

// All adapts the reader to a range-over-func sequence. Iteration stops after
// the first error, which is yielded with a zero reading.
func (r *ConsumptionReader) All(ctx context.Context) iter.Seq2[model.ConsumptionReading, error] {
	return func(yield func(model.ConsumptionReading, error) bool) {
		for {
			reading, err := r.Next(ctx)
			if errors.Is(err, Done) {
				return
			}
			if !yield(reading, err) || err != nil {
				return
			}
		}
	}
}

func (r *ConsumptionReader) fetch(ctx context.Context) error {
	endpoint := r.nextURL
	var page consumptionPage
	if err := r.fetcher.GetJSON(ctx, endpoint, &page); err != nil {
		return err
	}
	r.metrics.PagesFetched.Inc()
	if page.Results == nil {
		return &model.MissingFieldError{Record: "consumption page", Field: "results"}
	}

	results := make([]model.ConsumptionReading, 0, len(*page.Results))
	for i, raw := range *page.Results {
		reading, err := model.ReadingFromFlat(raw)
		if err != nil {
			return fmt.Errorf("rest: page %s result %d: %w", endpoint, i, err)
		}
		results = append(results, reading)
	}
	r.metrics.ReadingsDecoded.WithLabelValues(apiName).Add(float64(len(results)))

	next := ""
	if page.Next != nil && strings.TrimSpace(*page.Next) != "" {
		resolved, err := r.fetcher.APIURL(*page.Next)
		if err != nil {
			return err
		}
		next = resolved.String()
	}

	r.logger.Debug("fetched consumption page",
		zap.String("url", endpoint),
		zap.Int("results", len(results)),
		zap.Bool("has_next", next != ""),
	)
	r.results = results
	r.nextURL = next
	return nil
}
