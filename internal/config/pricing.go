package config

// PricingConfig holds the tariff table used by the default pricer.  All
// amounts are whole currency units (rupiah), per person or per vehicle.
// The table is deployment configuration; the booking core treats the
// resulting quote as opaque.
type PricingConfig struct {
    Adult      int64
    Child      int64
    Senior     int64
    Motorcycle int64
    Car        int64
    Bus        int64
    ServiceFee int64 // flat fee added once per booking
}

// LoadPricingConfig reads TARIFF_* variables, defaulting to the published
// weekday rates.
func LoadPricingConfig() PricingConfig {
    return PricingConfig{
        Adult:      envInt64("TARIFF_ADULT", 50000),
        Child:      envInt64("TARIFF_CHILD", 25000),
        Senior:     envInt64("TARIFF_SENIOR", 30000),
        Motorcycle: envInt64("TARIFF_MOTORCYCLE", 5000),
        Car:        envInt64("TARIFF_CAR", 10000),
        Bus:        envInt64("TARIFF_BUS", 25000),
        ServiceFee: envInt64("SERVICE_FEE", 2500),
    }
}
