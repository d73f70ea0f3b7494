package service

import (
    "context"

    "github.com/iliyamo/ecotour-booking/internal/config"
    "github.com/iliyamo/ecotour-booking/internal/model"
)

// Quote is the priced breakdown of one booking request.
type Quote struct {
    Items      []model.BookingItem
    Subtotal   int64
    ServiceFee int64
}

// Pricer turns visitor and vehicle counts into a Quote.  The booking flow
// treats it as opaque; tariffs are configuration, not business logic.
type Pricer interface {
    Quote(ctx context.Context, destinationID uint64, visitors model.VisitorCounts, vehicles model.VehicleCounts) (Quote, error)
}

// TariffPricer prices every destination with the same per-head and
// per-vehicle tariffs plus a flat service fee.
type TariffPricer struct {
    cfg config.PricingConfig
}

func NewTariffPricer(cfg config.PricingConfig) *TariffPricer { return &TariffPricer{cfg: cfg} }

func (p *TariffPricer) Quote(_ context.Context, _ uint64, v model.VisitorCounts, veh model.VehicleCounts) (Quote, error) {
    lines := []struct {
        category string
        qty      int
        price    int64
    }{
        {model.ItemAdult, v.Adults, p.cfg.Adult},
        {model.ItemChild, v.Children, p.cfg.Child},
        {model.ItemSenior, v.Seniors, p.cfg.Senior},
        {model.ItemMotorcycle, veh.Motorcycles, p.cfg.Motorcycle},
        {model.ItemCar, veh.Cars, p.cfg.Car},
        {model.ItemBus, veh.Buses, p.cfg.Bus},
    }
    q := Quote{ServiceFee: p.cfg.ServiceFee}
    for _, l := range lines {
        if l.qty <= 0 {
            continue
        }
        sub := int64(l.qty) * l.price
        q.Items = append(q.Items, model.BookingItem{
            Category:  l.category,
            Quantity:  l.qty,
            UnitPrice: l.price,
            Subtotal:  sub,
        })
        q.Subtotal += sub
    }
    return q, nil
}
