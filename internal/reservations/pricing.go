package reservations

import "github.com/shopspring/decimal"

// TierRate holds the prices of a 30-minute and a 60-minute unit.
type TierRate struct {
	HalfHour decimal.Decimal
	Hour     decimal.Decimal
}

// RateTable is the resolved price table of a resource. Slots starting at or
// after Cutoff are priced with the Night tier.
type RateTable struct {
	Day    TierRate
	Night  TierRate
	Cutoff TimeOfDay
}

// RawRates mirrors the nullable price columns of a resource row.
type RawRates struct {
	DayHalfHour   *decimal.Decimal
	DayHour       *decimal.Decimal
	NightHalfHour *decimal.Decimal
	NightHour     *decimal.Decimal
	// Legacy flat prices predate the day/night split.
	LegacyHalfHour *decimal.Decimal
	LegacyHour     *decimal.Decimal
	Cutoff         *TimeOfDay
}

var (
	DefaultRates = RateTable{
		Day:    TierRate{HalfHour: decimal.NewFromInt(25), Hour: decimal.NewFromInt(50)},
		Night:  TierRate{HalfHour: decimal.NewFromInt(35), Hour: decimal.NewFromInt(70)},
		Cutoff: 18 * 60,
	}
)

// ResolveRates applies the single precedence rule for every field:
// tiered column, then legacy flat column, then DefaultRates.
func ResolveRates(raw RawRates) RateTable {
	rt := RateTable{
		Day: TierRate{
			HalfHour: pick(DefaultRates.Day.HalfHour, raw.DayHalfHour, raw.LegacyHalfHour),
			Hour:     pick(DefaultRates.Day.Hour, raw.DayHour, raw.LegacyHour),
		},
		Night: TierRate{
			HalfHour: pick(DefaultRates.Night.HalfHour, raw.NightHalfHour, raw.LegacyHalfHour),
			Hour:     pick(DefaultRates.Night.Hour, raw.NightHour, raw.LegacyHour),
		},
		Cutoff: DefaultRates.Cutoff,
	}
	if raw.Cutoff != nil {
		rt.Cutoff = *raw.Cutoff
	}
	return rt
}

func pick(def decimal.Decimal, candidates ...*decimal.Decimal) decimal.Decimal {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return def
}

// TierFor returns the tier that prices a slot starting at start.
func (rt RateTable) TierFor(start TimeOfDay) TierRate {
	if start >= rt.Cutoff {
		return rt.Night
	}
	return rt.Day
}

// MaxCost is the first amount the cost column (NUMERIC(10,2)) cannot hold.
var MaxCost = decimal.New(1, 8)

// ValidateCost accepts non-negative amounts below MaxCost with at most two
// decimal places, the values the store keeps without rounding.
func ValidateCost(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThanOrEqual(MaxCost) || !d.Equal(d.Round(2)) {
		return ErrInvalidCost
	}
	return nil
}

// Price computes the cost of [start, end) on a resource. A non-nil override
// replaces the computed value; whether the caller may override is decided by
// the caller's role, not here.
func Price(rates RateTable, hours OperatingHours, slot Interval, override *decimal.Decimal) (decimal.Decimal, error) {
	if slot.End <= slot.Start {
		return decimal.Zero, ErrInvalidInterval
	}
	if !hours.Contains(slot) {
		return decimal.Zero, &OutOfHoursError{Hours: hours}
	}
	if override != nil {
		if err := ValidateCost(*override); err != nil {
			return decimal.Zero, err
		}
		return override.Round(2), nil
	}

	tier := rates.TierFor(slot.Start)
	minutes := slot.Minutes()
	switch {
	case minutes <= 30:
		return tier.HalfHour, nil
	case minutes <= 60:
		return tier.Hour, nil
	case minutes <= 90:
		return tier.Hour.Add(tier.HalfHour), nil
	case minutes <= 120:
		return tier.Hour.Mul(decimal.NewFromInt(2)), nil
	default:
		return tier.Hour.Mul(decimal.NewFromInt(int64(minutes))).Div(decimal.NewFromInt(60)).Round(2), nil
	}
}
