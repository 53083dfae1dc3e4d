package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"
)

var csvHeader = []string{"at", "actor", "action", "entity", "entity_id", "meta"}

// WriteCSV writes entries as CSV with a header row.
func WriteCSV(w io.Writer, rows []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return err
			}
			meta = string(raw)
		}
		record := []string{row.At.UTC().Format(time.RFC3339), row.Actor, row.Action, row.Entity, row.EntityID, meta}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
