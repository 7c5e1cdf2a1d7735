package reservations

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

var testHours = OperatingHours{Open: MustTimeOfDay("08:00"), Close: MustTimeOfDay("23:00")}

func slot(start, end string) Interval {
	return Interval{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPrice_Buckets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		slot Interval
		want string
	}{
		{"half hour", slot("08:00", "08:30"), "25"},
		{"one hour", slot("08:00", "09:00"), "50"},
		{"ninety minutes", slot("08:00", "09:30"), "75"},
		{"two hours", slot("08:00", "10:00"), "100"},
		{"forty minutes rounds up to hour", slot("10:00", "10:40"), "50"},
		{"ends at cutoff is day", slot("17:00", "18:00"), "50"},
		{"starts at cutoff is night", slot("18:00", "19:00"), "70"},
		{"night half hour", slot("20:00", "20:30"), "35"},
		{"night ninety", slot("19:00", "20:30"), "105"},
		{"three hours prorated", slot("08:00", "11:00"), "150"},
		{"two and a half hours prorated", slot("08:00", "10:30"), "125"},
		{"odd minutes prorated and rounded", slot("08:00", "10:07"), "105.83"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Price(DefaultRates, testHours, tc.slot, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestPrice_Deterministic(t *testing.T) {
	t.Parallel()

	s := slot("09:15", "11:50")
	first, err := Price(DefaultRates, testHours, s, nil)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	for i := 0; i < 50; i++ {
		got, _ := Price(DefaultRates, testHours, s, nil)
		if !got.Equal(first) {
			t.Fatalf("run %d: expected %s, got %s", i, first, got)
		}
	}
}

func TestPrice_Override(t *testing.T) {
	t.Parallel()

	t.Run("replaces computed cost", func(t *testing.T) {
		o := dec("12.5")
		got, err := Price(DefaultRates, testHours, slot("08:00", "10:00"), &o)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Equal(o) {
			t.Fatalf("expected %s, got %s", o, got)
		}
	})

	t.Run("zero is allowed", func(t *testing.T) {
		o := decimal.Zero
		got, err := Price(DefaultRates, testHours, slot("08:00", "09:00"), &o)
		if err != nil || !got.IsZero() {
			t.Fatalf("expected zero cost, got %s (%v)", got, err)
		}
	})

	t.Run("negative rejected", func(t *testing.T) {
		o := dec("-1")
		_, err := Price(DefaultRates, testHours, slot("08:00", "09:00"), &o)
		if !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("expected ErrInvalidCost, got %v", err)
		}
	})
}

func TestValidateCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"80.50", true},
		{"80.500", true},
		{"99999999.99", true},
		{"-0.01", false},
		{"10.005", false},
		{"100000000", false},
		{"1e12", false},
	}
	for _, tt := range tests {
		err := ValidateCost(dec(tt.in))
		if tt.ok && err != nil {
			t.Fatalf("%s: expected valid, got %v", tt.in, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("%s: expected ErrInvalidCost, got %v", tt.in, err)
		}
	}
}

func TestPrice_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := Price(DefaultRates, testHours, slot("09:00", "09:00"), nil); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for empty slot, got %v", err)
	}
	if _, err := Price(DefaultRates, testHours, slot("10:00", "09:00"), nil); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval for reversed slot, got %v", err)
	}

	_, err := Price(DefaultRates, testHours, slot("07:30", "08:30"), nil)
	var ooh *OutOfHoursError
	if !errors.As(err, &ooh) {
		t.Fatalf("expected OutOfHoursError, got %v", err)
	}
	if ooh.Error() != "the selected time is outside operating hours (08:00 - 23:00)" {
		t.Fatalf("unexpected message %q", ooh.Error())
	}

	if _, err := Price(DefaultRates, testHours, slot("22:30", "23:30"), nil); !errors.As(err, &ooh) {
		t.Fatalf("expected OutOfHoursError past close, got %v", err)
	}
	if _, err := Price(DefaultRates, testHours, slot("22:00", "23:00"), nil); err != nil {
		t.Fatalf("slot ending at close should be allowed, got %v", err)
	}
}

func TestResolveRates_Precedence(t *testing.T) {
	t.Parallel()

	ptr := func(s string) *decimal.Decimal {
		d := dec(s)
		return &d
	}
	cutoff := MustTimeOfDay("19:30")

	t.Run("defaults when nothing set", func(t *testing.T) {
		rt := ResolveRates(RawRates{})
		if !rt.Day.Hour.Equal(dec("50")) || !rt.Night.HalfHour.Equal(dec("35")) || rt.Cutoff != DefaultRates.Cutoff {
			t.Fatalf("unexpected defaults %+v", rt)
		}
	})

	t.Run("legacy fills both tiers", func(t *testing.T) {
		rt := ResolveRates(RawRates{LegacyHalfHour: ptr("20"), LegacyHour: ptr("40")})
		if !rt.Day.HalfHour.Equal(dec("20")) || !rt.Night.HalfHour.Equal(dec("20")) {
			t.Fatalf("expected legacy half hour on both tiers, got %+v", rt)
		}
		if !rt.Day.Hour.Equal(dec("40")) || !rt.Night.Hour.Equal(dec("40")) {
			t.Fatalf("expected legacy hour on both tiers, got %+v", rt)
		}
	})

	t.Run("tiered wins over legacy per field", func(t *testing.T) {
		rt := ResolveRates(RawRates{
			DayHour:        ptr("55"),
			NightHalfHour:  ptr("38"),
			LegacyHalfHour: ptr("20"),
			LegacyHour:     ptr("40"),
			Cutoff:         &cutoff,
		})
		if !rt.Day.Hour.Equal(dec("55")) || !rt.Day.HalfHour.Equal(dec("20")) {
			t.Fatalf("unexpected day tier %+v", rt.Day)
		}
		if !rt.Night.HalfHour.Equal(dec("38")) || !rt.Night.Hour.Equal(dec("40")) {
			t.Fatalf("unexpected night tier %+v", rt.Night)
		}
		if rt.Cutoff != cutoff {
			t.Fatalf("expected cutoff %s, got %s", cutoff, rt.Cutoff)
		}
	})
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	good := map[string]TimeOfDay{
		"00:00":    0,
		"08:30":    8*60 + 30,
		"18:00:00": 18 * 60,
		"24:00":    24 * 60,
	}
	for in, want := range good {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %d, got %d", in, want, got)
		}
		if in != "18:00:00" && got.String() != in {
			t.Fatalf("%q: round trip gave %q", in, got.String())
		}
	}

	for _, in := range []string{"", "8:00", "08:60", "24:30", "08:00:15", "ab:cd", "08-00"} {
		if _, err := ParseTimeOfDay(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
