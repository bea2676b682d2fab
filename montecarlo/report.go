// montecarlo/report.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package montecarlo

import (
	"encoding/csv"
	"encoding/json"
	"io"
	gomath "math"
	"strconv"

	"github.com/mmp/arrivals/math"

	"github.com/iancoleman/orderedmap"
)

var csvHeader = []string{
	"arrival_rate", "days", "arrivals_per_day", "diverted_per_day",
	"congestion_rate", "congestion_low", "congestion_high",
	"avg_delay_min", "avg_delay_low", "avg_delay_high",
	"diversion_rate", "diversion_low", "diversion_high",
}

func formatFloat(v float64) string {
	if gomath.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes one line per row, with a header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatFloat(r.ArrivalRate, 'g', -1, 64),
			strconv.Itoa(r.Days),
			formatFloat(r.ArrivalsPerDay),
			formatFloat(r.DivertedPerDay),
		}
		for _, ci := range []math.Interval{r.CongestionRate, r.AverageDelay, r.DiversionRate} {
			rec = append(rec, formatFloat(ci.Mean), formatFloat(ci.Low), formatFloat(ci.High))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonFloat maps NaN and infinities, which JSON cannot represent, to null.
func jsonFloat(v float64) any {
	if !math.IsFinite(v) {
		return nil
	}
	return v
}

func jsonInterval(ci math.Interval) *orderedmap.OrderedMap {
	o := orderedmap.New()
	o.Set("mean", jsonFloat(ci.Mean))
	o.Set("low", jsonFloat(ci.Low))
	o.Set("high", jsonFloat(ci.High))
	o.Set("n", ci.N)
	return o
}

// WriteJSON writes the rows as an indented JSON array whose objects keep
// the same field order as the CSV output.
func WriteJSON(w io.Writer, rows []Row) error {
	out := make([]*orderedmap.OrderedMap, 0, len(rows))
	for _, r := range rows {
		o := orderedmap.New()
		o.Set("arrival_rate", r.ArrivalRate)
		o.Set("days", r.Days)
		o.Set("arrivals_per_day", jsonFloat(r.ArrivalsPerDay))
		o.Set("diverted_per_day", jsonFloat(r.DivertedPerDay))
		o.Set("congestion_rate", jsonInterval(r.CongestionRate))
		o.Set("avg_delay_min", jsonInterval(r.AverageDelay))
		o.Set("diversion_rate", jsonInterval(r.DiversionRate))
		out = append(out, o)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
