package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	decoder := json.NewDecoder(bytes.NewReader([]byte(payload)))
	decoder.UseNumber()
	var record map[string]any
	if err := decoder.Decode(&record); err != nil {
		t.Fatalf("decode %q: %v", payload, err)
	}
	return record
}

func wantReading() ConsumptionReading {
	return ConsumptionReading{
		Consumption:   0.209,
		IntervalStart: time.Date(2021, 11, 6, 23, 30, 0, 0, time.UTC),
		IntervalEnd:   time.Date(2021, 11, 7, 0, 0, 0, 0, time.UTC),
	}
}

func TestReadingFromFlat(t *testing.T) {
	t.Parallel()

	record := decode(t, `{"consumption":0.209,"interval_start":"2021-11-06T23:30:00Z","interval_end":"2021-11-07T00:00:00Z"}`)
	got, err := ReadingFromFlat(record)
	if err != nil {
		t.Fatalf("ReadingFromFlat: %v", err)
	}
	if want := wantReading(); !got.Equal(want) {
		t.Fatalf("reading=%v want %v", got, want)
	}
}

func TestReadingFromNested_UnwrapsNodeAndNormalizesOffset(t *testing.T) {
	t.Parallel()

	record := decode(t, `{"node":{"value":"0.20900000000000000000","startAt":"2021-11-06T23:30:00+00:00","endAt":"2021-11-07T00:00:00+00:00"}}`)
	got, err := ReadingFromNested(record)
	if err != nil {
		t.Fatalf("ReadingFromNested: %v", err)
	}
	if want := wantReading(); !got.Equal(want) {
		t.Fatalf("reading=%v want %v", got, want)
	}

	flat, err := ReadingFromFlat(decode(t, `{"consumption":0.209,"interval_start":"2021-11-06T23:30:00Z","interval_end":"2021-11-07T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("ReadingFromFlat: %v", err)
	}
	if !got.Equal(flat) {
		t.Fatalf("nested=%v flat=%v, want equal", got, flat)
	}
}

func TestReadingFromNested_WithoutWrapper(t *testing.T) {
	t.Parallel()

	got, err := ReadingFromNested(decode(t, `{"value":"1.5","startAt":"2021-11-06T23:30:00+01:00","endAt":"2021-11-07T00:00:00+01:00"}`))
	if err != nil {
		t.Fatalf("ReadingFromNested: %v", err)
	}
	if start, want := got.IntervalStart.UTC(), time.Date(2021, 11, 6, 22, 30, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start=%v want %v", start, want)
	}
	if got.Consumption != 1.5 {
		t.Fatalf("consumption=%v want 1.5", got.Consumption)
	}
}

func TestReadingFromNested_UnwrapsOnlyOnce(t *testing.T) {
	t.Parallel()

	_, err := ReadingFromNested(decode(t, `{"node":{"node":{"value":"1","startAt":"2021-11-06T23:30:00Z","endAt":"2021-11-07T00:00:00Z"}}}`))
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("err=%v want ErrMissingField", err)
	}
}

func TestReadingFromFlat_MissingField(t *testing.T) {
	t.Parallel()

	_, err := ReadingFromFlat(decode(t, `{"consumption":0.209,"interval_start":"2021-11-06T23:30:00Z"}`))
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("err=%v want *MissingFieldError", err)
	}
	if got, want := missing.Field, "interval_end"; got != want {
		t.Fatalf("field=%q want %q", got, want)
	}
}

func TestReadingFromFlat_RejectsNonFiniteConsumption(t *testing.T) {
	t.Parallel()

	for _, value := range []any{"NaN", "Inf", "-Infinity", "0x1p-2", " 0X10 ", math.NaN(), math.Inf(1)} {
		record := map[string]any{
			"consumption":    value,
			"interval_start": "2021-11-06T23:30:00Z",
			"interval_end":   "2021-11-07T00:00:00Z",
		}
		_, err := ReadingFromFlat(record)
		var missing *MissingFieldError
		if !errors.As(err, &missing) || missing.Field != "consumption" {
			t.Fatalf("consumption %v: err=%v want missing consumption", value, err)
		}
	}
}

func TestReadingFromFlat_RejectsInvertedInterval(t *testing.T) {
	t.Parallel()

	_, err := ReadingFromFlat(decode(t, `{"consumption":1,"interval_start":"2021-11-07T00:00:00Z","interval_end":"2021-11-06T23:30:00Z"}`))
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err=%v want ErrInvalidInterval", err)
	}
}

func TestReadingFromFlat_RejectsTimestampWithoutOffset(t *testing.T) {
	t.Parallel()

	_, err := ReadingFromFlat(decode(t, `{"consumption":1,"interval_start":"2021-11-06T23:30:00","interval_end":"2021-11-07T00:00:00Z"}`))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestParseTimestamp_EquivalentOffsets(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"2021-11-06T23:30:00Z",
		"2021-11-06T23:30:00+00:00",
		"2021-11-06T23:30:00+0000",
		"2021-11-07T00:30:00+01:00",
		"2021-11-06T23:30:00.000Z",
	}
	want := time.Date(2021, 11, 6, 23, 30, 0, 0, time.UTC)
	for _, input := range inputs {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", input, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTimestamp(%q)=%v want %v", input, got, want)
		}
	}
}

func TestTariffFromNested(t *testing.T) {
	t.Parallel()

	wrapped, err := TariffFromNested(decode(t, `{"tariff":{"displayName":"Agile Octopus","unitRate":"20.1600000000"}}`))
	if err != nil {
		t.Fatalf("TariffFromNested: %v", err)
	}
	bare, err := TariffFromNested(decode(t, `{"displayName":"Agile Octopus","unitRate":20.16}`))
	if err != nil {
		t.Fatalf("TariffFromNested: %v", err)
	}
	want := Tariff{DisplayName: "Agile Octopus", UnitRate: 20.16}
	if wrapped != want || bare != want {
		t.Fatalf("wrapped=%+v bare=%+v want %+v", wrapped, bare, want)
	}
}

func TestTariffFromNested_MissingRate(t *testing.T) {
	t.Parallel()

	_, err := TariffFromNested(decode(t, `{"tariff":{"displayName":"Flexible Octopus"}}`))
	var missing *MissingFieldError
	if !errors.As(err, &missing) || missing.Field != "unitRate" {
		t.Fatalf("err=%v want missing unitRate", err)
	}
}

func TestTariffFromFlat(t *testing.T) {
	t.Parallel()

	got, err := TariffFromFlat(decode(t, `{"display_name":"Go","unit_rate":7.5}`))
	if err != nil {
		t.Fatalf("TariffFromFlat: %v", err)
	}
	if want := (Tariff{DisplayName: "Go", UnitRate: 7.5}); got != want {
		t.Fatalf("tariff=%+v want %+v", got, want)
	}
}
