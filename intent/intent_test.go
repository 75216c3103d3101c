package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		chart   ChartKind
		derived DerivedKind
		want    Variant
	}{
		{ChartTimeSeries, DerivedNone, VariantClosePrice},
		{ChartHistogram, DerivedNone, VariantReturnHistogram},
		{ChartBoxplot, DerivedNone, VariantMonthlyCloseBoxplot},
		{ChartVolume, DerivedNone, VariantDailyVolume},
		{ChartHeatmap, DerivedNone, VariantCorrelationMatrix},
		{ChartBoxplot, DerivedDailyReturnsBoxplot, VariantDailyReturnsBoxplot},
		{ChartTimeSeries, DerivedRollingAvg, VariantRollingAverage},
		{ChartBar, DerivedSectorMarketCap, VariantSectorMarketCap},
		{ChartPie, DerivedSectorMarketCap, VariantSectorMarketCapPie},
		{ChartScatter, DerivedVolumePriceScatter, VariantVolumePriceScatter},
	}
	for _, tt := range tests {
		t.Run(string(tt.chart)+"/"+string(tt.derived), func(t *testing.T) {
			got, err := Resolve(tt.chart, tt.derived)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("radar", DerivedNone)
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = Resolve(ChartBar, "alpha")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestEveryDerivedKindResolves(t *testing.T) {
	seen := map[Variant]bool{}
	for kind := range derivedVariants {
		v, err := Resolve(ChartTimeSeries, kind)
		require.NoError(t, err)
		seen[v] = true
	}
	for chart := range chartDefaults {
		v, err := Resolve(chart, DerivedNone)
		require.NoError(t, err)
		seen[v] = true
	}
	for _, v := range Variants() {
		assert.True(t, seen[v], "variant %s is unreachable", v)
	}
}

func TestNormalizeCrossSectionalKeepsAsOf(t *testing.T) {
	in := New(ChartBar, DerivedTopMarketCap)
	r := YearRange(2024)
	in.DateRange = &r

	require.NoError(t, in.Normalize())
	require.NotNil(t, in.AsOf)
	assert.Nil(t, in.DateRange)
	assert.Equal(t, Date(2024, time.December, 31), *in.AsOf)
	assert.NoError(t, in.Validate())
}

func TestNormalizeSeriesExpandsAsOf(t *testing.T) {
	in := New(ChartTimeSeries, DerivedNone)
	in.PrimaryTicker = "MSFT"
	asOf := Date(2025, time.April, 25)
	in.AsOf = &asOf

	require.NoError(t, in.Normalize())
	require.NotNil(t, in.DateRange)
	assert.Nil(t, in.AsOf)
	assert.Equal(t, asOf, in.DateRange.End)
	assert.Equal(t, Date(2024, time.April, 26), in.DateRange.Start)
}

func TestValidate(t *testing.T) {
	r := DateRange{Start: Date(2024, time.June, 1), End: Date(2024, time.May, 1)}
	in := New(ChartTimeSeries, DerivedNone)
	in.DateRange = &r
	assert.ErrorIs(t, in.Validate(), ErrInvalid)

	heat := New(ChartHeatmap, DerivedCorrelationMatrix)
	y := YearRange(2024)
	heat.DateRange = &y
	heat.TickerSet = []string{"AAPL"}
	assert.ErrorIs(t, heat.Validate(), ErrInvalid)

	heat.TickerSet = []string{"AAPL", "MSFT"}
	assert.NoError(t, heat.Validate())
}

func TestMonthRange(t *testing.T) {
	r := MonthRange(2024, time.February)
	assert.Equal(t, Date(2024, time.February, 1), r.Start)
	assert.Equal(t, Date(2024, time.February, 29), r.End)
}
