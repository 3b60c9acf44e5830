package graphql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"octopyenergy/internal/model"
	"octopyenergy/internal/providers"
)

// ActiveElectricityTariffs returns the tariff of every active electricity
// agreement on the account, keyed by MPAN. A meter point with more than one
// active agreement is a TopologyError: no tariff is returned for the account
// rather than an arbitrary one of them.
func (s *Session) ActiveElectricityTariffs(ctx context.Context, accountNumber string) (map[string]model.Tariff, error) {
	data, err := s.Execute(ctx, activeTariffQuery, map[string]any{"accountNumber": accountNumber})
	if err != nil {
		return nil, err
	}
	account, err := objectAt(data, "account", "account")
	if err != nil {
		return nil, err
	}
	agreements, err := listAt(account, "electricityAgreements", "account")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(agreements))
	tariffs := make(map[string]model.Tariff, len(agreements))
	for _, agreement := range agreements {
		meterPoint, err := objectAt(agreement, "meterPoint", "agreement")
		if err != nil {
			return nil, err
		}
		mpan, err := stringAt(meterPoint, "mpan", "meter point")
		if err != nil {
			return nil, err
		}
		tariff, err := model.TariffFromNested(agreement)
		if err != nil {
			return nil, fmt.Errorf("graphql: meter point %s: %w", mpan, err)
		}
		counts[mpan]++
		tariffs[mpan] = tariff
	}
	for mpan, count := range counts {
		if count != 1 {
			return nil, &providers.TopologyError{MPAN: mpan, Kind: "active agreements", Count: count}
		}
	}

	s.logger.Debug("fetched active tariffs",
		zap.String("account", accountNumber),
		zap.Int("meter_points", len(tariffs)),
	)
	return tariffs, nil
}

// CurrentElectricityConsumptionAndTariff returns, per MPAN, the latest
// quarterly consumption of each meter together with the meter point's tariff.
// A meter point must have exactly one agreement and each meter exactly one
// consumption bucket; anything else is a TopologyError.
func (s *Session) CurrentElectricityConsumptionAndTariff(ctx context.Context, accountNumber string) (map[string]model.MeterPointSnapshot, error) {
	startAt := s.now().UTC().Add(-s.config.Lookback)
	data, err := s.Execute(ctx, consumptionAndRateQuery, map[string]any{
		"accountNumber": accountNumber,
		"startAt":       startAt.Format(time.RFC3339),
		"grouping":      model.GroupingQuarter.GraphQL(),
	})
	if err != nil {
		return nil, err
	}
	properties, err := listAt(data, "properties", "query")
	if err != nil {
		return nil, err
	}

	snapshots := make(map[string]model.MeterPointSnapshot)
	for _, property := range properties {
		meterPoints, err := listAt(property, "electricityMeterPoints", "property")
		if err != nil {
			return nil, err
		}
		for _, meterPoint := range meterPoints {
			mpan, snapshot, err := s.meterPointSnapshot(meterPoint)
			if err != nil {
				return nil, err
			}
			snapshots[mpan] = snapshot
		}
	}

	s.logger.Debug("fetched consumption and tariff",
		zap.String("account", accountNumber),
		zap.Time("start_at", startAt),
		zap.Int("meter_points", len(snapshots)),
	)
	return snapshots, nil
}

func (s *Session) meterPointSnapshot(meterPoint map[string]any) (string, model.MeterPointSnapshot, error) {
	mpan, err := stringAt(meterPoint, "mpan", "meter point")
	if err != nil {
		return "", model.MeterPointSnapshot{}, err
	}
	agreements, err := listAt(meterPoint, "agreements", "meter point")
	if err != nil {
		return "", model.MeterPointSnapshot{}, err
	}
	if len(agreements) != 1 {
		return "", model.MeterPointSnapshot{}, &providers.TopologyError{MPAN: mpan, Kind: "agreements", Count: len(agreements)}
	}
	tariff, err := model.TariffFromNested(agreements[0])
	if err != nil {
		return "", model.MeterPointSnapshot{}, fmt.Errorf("graphql: meter point %s: %w", mpan, err)
	}

	meters, err := listAt(meterPoint, "meters", "meter point")
	if err != nil {
		return "", model.MeterPointSnapshot{}, err
	}
	consumption := make(map[string]model.ConsumptionReading, len(meters))
	for _, meter := range meters {
		serial, err := stringAt(meter, "serialNumber", "meter")
		if err != nil {
			return "", model.MeterPointSnapshot{}, err
		}
		connection, err := objectAt(meter, "consumption", "meter")
		if err != nil {
			return "", model.MeterPointSnapshot{}, err
		}
		edges, err := listAt(connection, "edges", "consumption")
		if err != nil {
			return "", model.MeterPointSnapshot{}, err
		}
		if len(edges) != 1 {
			return "", model.MeterPointSnapshot{}, &providers.TopologyError{MPAN: mpan, Serial: serial, Kind: "consumption edges", Count: len(edges)}
		}
		reading, err := model.ReadingFromNested(edges[0])
		if err != nil {
			return "", model.MeterPointSnapshot{}, fmt.Errorf("graphql: meter %s: %w", serial, err)
		}
		s.metrics.ReadingsDecoded.WithLabelValues(apiName).Inc()
		consumption[serial] = reading
	}

	return mpan, model.MeterPointSnapshot{Consumption: consumption, Tariff: tariff}, nil
}

func objectAt(record map[string]any, key, recordName string) (map[string]any, error) {
	value, ok := record[key].(map[string]any)
	if !ok {
		return nil, &model.MissingFieldError{Record: recordName, Field: key}
	}
	return value, nil
}

func listAt(record map[string]any, key, recordName string) ([]map[string]any, error) {
	raw, ok := record[key].([]any)
	if !ok {
		return nil, &model.MissingFieldError{Record: recordName, Field: key}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		value, ok := item.(map[string]any)
		if !ok {
			return nil, &model.MissingFieldError{Record: recordName, Field: key}
		}
		out = append(out, value)
	}
	return out, nil
}

func stringAt(record map[string]any, key, recordName string) (string, error) {
	value, ok := record[key].(string)
	if !ok || value == "" {
		return "", &model.MissingFieldError{Record: recordName, Field: key}
	}
	return value, nil
}
