package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingField    = errors.New("model: missing field")
	ErrInvalidInterval = errors.New("model: interval start is not before interval end")
)

// MissingFieldError reports a payload that lacks a required key, or carries it
// with a value of the wrong type.
type MissingFieldError struct {
	Record string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("model: %s record: missing or invalid field %q", e.Record, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

const (
	readingRecord = "consumption"
	tariffRecord  = "tariff"

	readingWrapperKey = "node"
	tariffWrapperKey  = "tariff"
)

// ReadingFromFlat builds a reading from a REST result:
// {"consumption": 0.209, "interval_start": "...", "interval_end": "..."}.
func ReadingFromFlat(record map[string]any) (ConsumptionReading, error) {
	return buildReading(record, "consumption", "interval_start", "interval_end")
}

// ReadingFromNested builds a reading from a GraphQL consumption node,
// optionally wrapped in a connection edge: {"node": {"value": "0.209", "startAt": ..., "endAt": ...}}.
// The wrapper is unwrapped once; deeper nesting is rejected as malformed.
func ReadingFromNested(record map[string]any) (ConsumptionReading, error) {
	inner, err := unwrapOnce(record, readingWrapperKey, readingRecord)
	if err != nil {
		return ConsumptionReading{}, err
	}
	return buildReading(inner, "value", "startAt", "endAt")
}

// TariffFromFlat builds a tariff from {"display_name": ..., "unit_rate": ...}.
func TariffFromFlat(record map[string]any) (Tariff, error) {
	return buildTariff(record, "display_name", "unit_rate")
}

// TariffFromNested builds a tariff from a GraphQL agreement or tariff object.
// An agreement ({"tariff": {...}}) is unwrapped once.
func TariffFromNested(record map[string]any) (Tariff, error) {
	inner, err := unwrapOnce(record, tariffWrapperKey, tariffRecord)
	if err != nil {
		return Tariff{}, err
	}
	return buildTariff(inner, "displayName", "unitRate")
}

func unwrapOnce(record map[string]any, wrapperKey, recordName string) (map[string]any, error) {
	raw, ok := record[wrapperKey]
	if !ok {
		return record, nil
	}
	inner, ok := raw.(map[string]any)
	if !ok {
		return nil, &MissingFieldError{Record: recordName, Field: wrapperKey}
	}
	return inner, nil
}

func buildReading(record map[string]any, amountKey, startKey, endKey string) (ConsumptionReading, error) {
	amount, ok := getFloat(record, amountKey)
	if !ok {
		return ConsumptionReading{}, &MissingFieldError{Record: readingRecord, Field: amountKey}
	}
	start, err := getTime(record, startKey)
	if err != nil {
		return ConsumptionReading{}, err
	}
	end, err := getTime(record, endKey)
	if err != nil {
		return ConsumptionReading{}, err
	}
	if !start.Before(end) {
		return ConsumptionReading{}, fmt.Errorf("%w: %s >= %s", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return ConsumptionReading{
		Consumption:   amount,
		IntervalStart: start,
		IntervalEnd:   end,
	}, nil
}

func buildTariff(record map[string]any, nameKey, rateKey string) (Tariff, error) {
	name, ok := getString(record, nameKey)
	if !ok {
		return Tariff{}, &MissingFieldError{Record: tariffRecord, Field: nameKey}
	}
	rate, ok := getFloat(record, rateKey)
	if !ok {
		return Tariff{}, &MissingFieldError{Record: tariffRecord, Field: rateKey}
	}
	return Tariff{DisplayName: name, UnitRate: rate}, nil
}

func getTime(record map[string]any, key string) (time.Time, error) {
	raw, ok := getString(record, key)
	if !ok {
		return time.Time{}, &MissingFieldError{Record: readingRecord, Field: key}
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("model: %s record: field %q: %w", readingRecord, key, err)
	}
	return parsed, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

// ParseTimestamp parses an ISO 8601 timestamp with an explicit offset ("Z",
// "+00:00" or "+0000"). Timestamps without an offset are rejected.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 timestamp %q", value)
}

func getString(record map[string]any, key string) (string, bool) {
	value, ok := record[key]
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	default:
		return "", false
	}
}

// getFloat accepts JSON numbers as well as decimal strings; GraphQL returns
// Decimal scalars such as "0.20900000000000000000". Non-finite and hex values
// are rejected.
func getFloat(record map[string]any, key string) (float64, bool) {
	value, ok := record[key]
	if !ok {
		return 0, false
	}
	var parsed float64
	switch typed := value.(type) {
	case float64:
		parsed = typed
	case float32:
		parsed = float64(typed)
	case int:
		parsed = float64(typed)
	case int64:
		parsed = float64(typed)
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		parsed = f
	case string:
		text := strings.TrimSpace(typed)
		if strings.ContainsAny(text, "xX") {
			return 0, false
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		parsed = f
	default:
		return 0, false
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
