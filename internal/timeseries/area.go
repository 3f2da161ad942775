package timeseries

import (
	"time"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/regime"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
)

// Series is the complete event list of one quantity of one area.
type Series struct {
	PGID     string
	Quantity types.Quantity

	// Start and End span the whole area: first row start to last row end.
	Start, End time.Time

	Events []Event
}

// BuildArea synthesizes the series of every quantity of group, in output
// order. All regimes are built before any series is returned, so a defect in
// any row yields an error and no partial output for the area.
func BuildArea(group types.AreaGroup) ([]Series, error) {
	regimes := make([][]*regime.Regime, len(types.Quantities))
	for qi, q := range types.Quantities {
		regimes[qi] = make([]*regime.Regime, len(group.Rows))
		for ri, row := range group.Rows {
			r, err := regime.Build(row, q)
			if err != nil {
				return nil, err
			}
			regimes[qi][ri] = r
		}
	}

	series := make([]Series, len(types.Quantities))
	for qi, q := range types.Quantities {
		s := Series{PGID: group.PGID, Quantity: q, Start: dateOnly(group.Start()), End: dateOnly(group.End())}
		last := len(group.Rows) - 1
		for ri, row := range group.Rows {
			s.Events = append(s.Events, Synthesize(regimes[qi][ri], row.Start, row.End, ri == 0, ri == last)...)
		}
		series[qi] = s
	}

	return series, nil
}
