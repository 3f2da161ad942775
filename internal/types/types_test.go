package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthDay(t *testing.T) {
	tests := []struct {
		in      string
		want    MonthDay
		wantErr bool
	}{
		{in: "01-04", want: MonthDay{Month: time.April, Day: 1}},
		{in: "1-4", want: MonthDay{Month: time.April, Day: 1}},
		{in: "29-02", want: MonthDay{Month: time.February, Day: 29}},
		{in: "31-02", wantErr: true},
		{in: "01/04", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonthDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthDay_In(t *testing.T) {
	leap := MonthDay{Month: time.February, Day: 29}

	d, ok := leap.In(2024)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, ok = leap.In(2023)
	assert.False(t, ok)
}

func TestMonthDay_BeforeAndString(t *testing.T) {
	a := MonthDay{Month: time.April, Day: 30}
	b := MonthDay{Month: time.May, Day: 1}

	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
	assert.Equal(t, "30-04", a.String())
}

func TestQuantityMeta(t *testing.T) {
	require.Len(t, Quantities, 5)
	assert.Equal(t, "Hpl", Peilbesluitpeil.Meta().ParameterID)
	assert.Equal(t, "Peilbesluitpeil eerste bovengrens", EersteBovengrens.Meta().LongName)
	assert.Equal(t, "tweede_ondergrens", TweedeOndergrens.String())
	assert.Equal(t, "quantity(9)", Quantity(9).String())
}
