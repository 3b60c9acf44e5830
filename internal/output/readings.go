package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"octopyenergy/internal/model"
)

// ReadingWriter renders readings one at a time. Close must be called to flush
// buffered output.
type ReadingWriter interface {
	Write(reading model.ConsumptionReading) error
	Close() error
}

func NewReadingWriter(w io.Writer, format Format) (ReadingWriter, error) {
	switch format {
	case FormatText:
		tw := tabwriter.NewWriter(w, 26, 8, 1, ' ', 0)
		fmt.Fprintln(tw, strings.Join([]string{"Interval Start", "Interval End", "kWh"}, "\t"))
		return &textReadingWriter{w: tw}, nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"Interval Start", "Interval End", "Consumption"}); err != nil {
			return nil, err
		}
		return &csvReadingWriter{w: cw}, nil
	case FormatJSON:
		return &jsonReadingWriter{w: w, readings: make([]readingJSON, 0)}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

type textReadingWriter struct {
	w   *tabwriter.Writer
	sum float64
}

func (t *textReadingWriter) Write(reading model.ConsumptionReading) error {
	t.sum += reading.Consumption
	_, err := fmt.Fprintf(t.w, "%s\t%s\t%s\n",
		reading.IntervalStart.Format(time.RFC3339),
		reading.IntervalEnd.Format(time.RFC3339),
		formatFloat(reading.Consumption),
	)
	return err
}

func (t *textReadingWriter) Close() error {
	fmt.Fprintf(t.w, "\tSum:\t%s\n", formatFloat(t.sum))
	return t.w.Flush()
}

type csvReadingWriter struct {
	w *csv.Writer
}

func (c *csvReadingWriter) Write(reading model.ConsumptionReading) error {
	return c.w.Write([]string{
		reading.IntervalStart.Format(time.RFC3339),
		reading.IntervalEnd.Format(time.RFC3339),
		formatFloat(reading.Consumption),
	})
}

func (c *csvReadingWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

type readingJSON struct {
	Consumption   float64   `json:"consumption"`
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
}

func toReadingJSON(reading model.ConsumptionReading) readingJSON {
	return readingJSON{
		Consumption:   reading.Consumption,
		IntervalStart: reading.IntervalStart,
		IntervalEnd:   reading.IntervalEnd,
	}
}

type jsonReadingWriter struct {
	w        io.Writer
	readings []readingJSON
}

func (j *jsonReadingWriter) Write(reading model.ConsumptionReading) error {
	j.readings = append(j.readings, toReadingJSON(reading))
	return nil
}

func (j *jsonReadingWriter) Close() error {
	return writeJSON(j.w, j.readings)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(value)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
