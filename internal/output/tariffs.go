package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"octopyenergy/internal/model"
)

// WriteTariffs renders one row per meter point, ordered by MPAN.
func WriteTariffs(w io.Writer, format Format, tariffs map[string]model.Tariff) error {
	mpans := sortedKeys(tariffs)
	switch format {
	case FormatText:
		for _, mpan := range mpans {
			tariff := tariffs[mpan]
			if _, err := fmt.Fprintf(w, "MPAN %s - Tariff %s (%s p/kWh)\n", mpan, tariff.DisplayName, formatFloat(tariff.UnitRate)); err != nil {
				return err
			}
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"MPAN", "Tariff Name", "Unit Rate"}); err != nil {
			return err
		}
		for _, mpan := range mpans {
			tariff := tariffs[mpan]
			if err := cw.Write([]string{mpan, tariff.DisplayName, formatFloat(tariff.UnitRate)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		out := make([]tariffJSON, 0, len(mpans))
		for _, mpan := range mpans {
			out = append(out, toTariffJSON(mpan, tariffs[mpan]))
		}
		return writeJSON(w, out)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

type tariffJSON struct {
	MPAN        string  `json:"mpan,omitempty"`
	DisplayName string  `json:"display_name"`
	UnitRate    float64 `json:"unit_rate"`
}

func toTariffJSON(mpan string, tariff model.Tariff) tariffJSON {
	return tariffJSON{MPAN: mpan, DisplayName: tariff.DisplayName, UnitRate: tariff.UnitRate}
}

type meterJSON struct {
	SerialNumber string      `json:"serial_number"`
	Reading      readingJSON `json:"reading"`
}

type snapshotJSON struct {
	MPAN   string      `json:"mpan"`
	Tariff tariffJSON  `json:"tariff"`
	Meters []meterJSON `json:"meters"`
}

// WriteSnapshots renders the current consumption and tariff of each meter
// point. CSV has one row per meter.
func WriteSnapshots(w io.Writer, format Format, snapshots map[string]model.MeterPointSnapshot) error {
	mpans := sortedKeys(snapshots)
	switch format {
	case FormatText:
		for _, mpan := range mpans {
			snapshot := snapshots[mpan]
			if _, err := fmt.Fprintf(w, "MPAN %s - Tariff %s (%s p/kWh)\n", mpan, snapshot.Tariff.DisplayName, formatFloat(snapshot.Tariff.UnitRate)); err != nil {
				return err
			}
			for _, serial := range sortedKeys(snapshot.Consumption) {
				reading := snapshot.Consumption[serial]
				if _, err := fmt.Fprintf(w, "  %s reads %s kWh as of %s\n", serial, formatFloat(reading.Consumption), reading.IntervalEnd.Format(time.RFC3339)); err != nil {
					return err
				}
			}
		}
		return nil
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"MPAN", "Tariff Name", "Unit Rate", "Meter", "Consumption", "Interval Start", "Interval End"}); err != nil {
			return err
		}
		for _, mpan := range mpans {
			snapshot := snapshots[mpan]
			for _, serial := range sortedKeys(snapshot.Consumption) {
				reading := snapshot.Consumption[serial]
				if err := cw.Write([]string{
					mpan,
					snapshot.Tariff.DisplayName,
					formatFloat(snapshot.Tariff.UnitRate),
					serial,
					formatFloat(reading.Consumption),
					reading.IntervalStart.Format(time.RFC3339),
					reading.IntervalEnd.Format(time.RFC3339),
				}); err != nil {
					return err
				}
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		out := make([]snapshotJSON, 0, len(mpans))
		for _, mpan := range mpans {
			snapshot := snapshots[mpan]
			tariff := toTariffJSON("", snapshot.Tariff)
			item := snapshotJSON{MPAN: mpan, Tariff: tariff, Meters: make([]meterJSON, 0, len(snapshot.Consumption))}
			for _, serial := range sortedKeys(snapshot.Consumption) {
				item.Meters = append(item.Meters, meterJSON{SerialNumber: serial, Reading: toReadingJSON(snapshot.Consumption[serial])})
			}
			out = append(out, item)
		}
		return writeJSON(w, out)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
