package deliverylog

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader is the first row of an exported log.
var CSVHeader = []string{"email", "status", "error", "time"}

// WriteCSV renders entries as comma separated rows under CSVHeader. Fields
// holding commas, quotes or newlines are quoted with inner quotes doubled.
// Time is unix milliseconds.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Recipient,
			string(e.Status),
			e.Error,
			strconv.FormatInt(e.Time.UnixMilli(), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
