package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"octopyenergy/internal/model"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan2 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "csv": FormatCSV, " json ": FormatJSON} {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q)=%q, %v want %q", input, got, err, want)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Fatalf("expected error for yaml")
	}
}

func TestReadingWriter_CSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewReadingWriter(&buf, FormatCSV)
	if err != nil {
		t.Fatalf("NewReadingWriter: %v", err)
	}
	if err := w.Write(model.ConsumptionReading{Consumption: 0.209, IntervalStart: jan1, IntervalEnd: jan2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := "Interval Start,Interval End,Consumption\n2024-01-01T00:00:00Z,2024-01-02T00:00:00Z,0.209\n"
	if got := buf.String(); got != want {
		t.Fatalf("csv=%q want %q", got, want)
	}
}

func TestReadingWriter_TextSum(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewReadingWriter(&buf, FormatText)
	if err != nil {
		t.Fatalf("NewReadingWriter: %v", err)
	}
	for _, amount := range []float64{1.5, 2.25} {
		if err := w.Write(model.ConsumptionReading{Consumption: amount, IntervalStart: jan1, IntervalEnd: jan2}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Sum:") || !strings.Contains(out, "3.75") {
		t.Fatalf("text output missing sum:\n%s", out)
	}
	if got, want := strings.Count(out, "\n"), 4; got != want {
		t.Fatalf("lines=%d want %d:\n%s", got, want, out)
	}
}

func TestReadingWriter_JSONEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewReadingWriter(&buf, FormatJSON)
	if err != nil {
		t.Fatalf("NewReadingWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, want := strings.TrimSpace(buf.String()), "[]"; got != want {
		t.Fatalf("json=%q want %q", got, want)
	}
}

func TestWriteTariffs_CSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteTariffs(&buf, FormatCSV, map[string]model.Tariff{
		"1200000000002": {DisplayName: "Agile Octopus", UnitRate: 19.95},
		"1200000000001": {DisplayName: "Flexible Octopus", UnitRate: 24.5},
	})
	if err != nil {
		t.Fatalf("WriteTariffs: %v", err)
	}
	want := "MPAN,Tariff Name,Unit Rate\n" +
		"1200000000001,Flexible Octopus,24.5\n" +
		"1200000000002,Agile Octopus,19.95\n"
	if got := buf.String(); got != want {
		t.Fatalf("csv=%q want %q", got, want)
	}
}

func snapshots() map[string]model.MeterPointSnapshot {
	return map[string]model.MeterPointSnapshot{
		"1200000000001": {
			Tariff: model.Tariff{DisplayName: "Flexible Octopus", UnitRate: 24.5},
			Consumption: map[string]model.ConsumptionReading{
				"21L000001": {Consumption: 812.5, IntervalStart: jan1, IntervalEnd: jan2},
			},
		},
	}
}

func TestWriteSnapshots_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteSnapshots(&buf, FormatText, snapshots()); err != nil {
		t.Fatalf("WriteSnapshots: %v", err)
	}
	want := "MPAN 1200000000001 - Tariff Flexible Octopus (24.5 p/kWh)\n" +
		"  21L000001 reads 812.5 kWh as of 2024-01-02T00:00:00Z\n"
	if got := buf.String(); got != want {
		t.Fatalf("text=%q want %q", got, want)
	}
}

func TestWriteSnapshots_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteSnapshots(&buf, FormatJSON, snapshots()); err != nil {
		t.Fatalf("WriteSnapshots: %v", err)
	}
	var decoded []snapshotJSON
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || len(decoded[0].Meters) != 1 {
		t.Fatalf("decoded=%+v", decoded)
	}
	if got, want := decoded[0].Meters[0].Reading.Consumption, 812.5; got != want {
		t.Fatalf("consumption=%v want %v", got, want)
	}
}
