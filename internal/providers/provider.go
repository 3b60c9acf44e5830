package providers

import (
	"context"

	"octopyenergy/internal/model"
)

// TariffProvider lists the active electricity tariff of every meter point on an
// account, keyed by MPAN.
type TariffProvider interface {
	Name() string
	ActiveElectricityTariffs(ctx context.Context, accountNumber string) (map[string]model.Tariff, error)
}

// SnapshotProvider returns, per MPAN, the latest quarterly reading of each meter
// and the active tariff.
type SnapshotProvider interface {
	Name() string
	CurrentElectricityConsumptionAndTariff(ctx context.Context, accountNumber string) (map[string]model.MeterPointSnapshot, error)
}
