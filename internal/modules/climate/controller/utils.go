package controller

import (
	"errors"
	"net/http"
	"strconv"

	"climate-server/internal/modules/climate/types"
)

func parseID(r *http.Request) (int64, error) {
	s := r.PathValue("id")
	if s == "" {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid id (expected integer)")
	}
	return id, nil
}

// datedValuesToMap keys rows by date. A later row replaces an earlier one with
// the same date; overwritten counts those replacements.
func datedValuesToMap(rows []types.DatedValue) (out map[string]*float64, overwritten int) {
	out = make(map[string]*float64, len(rows))
	for _, row := range rows {
		if _, ok := out[row.Date]; ok {
			overwritten++
		}
		out[row.Date] = row.Value
	}
	return out, overwritten
}
