package recipients

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

var ErrRegistry = errx.NewRegistry("RECIPIENTS")

var (
	CodeUnsupportedFormat = ErrRegistry.Register("UNSUPPORTED_FORMAT", errx.TypeValidation, 400, "Unsupported file type")
	CodeMalformed         = ErrRegistry.Register("MALFORMED", errx.TypeValidation, 400, "Recipient file could not be parsed")
)

// Format of an uploaded recipient list
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MaxUploadBytes bounds how much of an upload is read.
const MaxUploadBytes = 32 << 20

// DetectFormat picks a format from the file name, falling back to content
// sniffing when the extension is missing or unknown.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".txt":
		return FormatText, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	case "":
	default:
		return "", ErrRegistry.New(CodeUnsupportedFormat).WithDetail("filename", filename)
	}

	m := mimetype.Detect(data)
	switch {
	case m.Is(mimeXLSX):
		return FormatXLSX, nil
	case m.Is("application/json"):
		return FormatJSON, nil
	case m.Is("text/csv"):
		return FormatCSV, nil
	case m.Is("text/plain"):
		return FormatText, nil
	default:
		return "", ErrRegistry.New(CodeUnsupportedFormat).WithDetail("mime", m.String())
	}
}

// Parse reads an uploaded list and returns the valid addresses in file order.
func Parse(r io.Reader, filename string) ([]string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes))
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeMalformed, err)
	}

	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}

	var raw []string
	switch format {
	case FormatCSV:
		raw, err = parseCSV(data)
	case FormatJSON:
		raw, err = parseJSON(data)
	case FormatXLSX:
		raw, err = parseXLSX(data)
	default:
		raw = strings.Split(string(data), "\n")
	}
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeMalformed, err).WithDetail("format", string(format))
	}

	return Filter(raw), nil
}

func parseCSV(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rec := range records {
		out = append(out, rec...)
	}
	return out, nil
}

// parseJSON accepts ["a@x.com", ...] or [{"email": "a@x.com"}, ...].
func parseJSON(data []byte) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			out = append(out, obj.Email)
		}
	}
	return out, nil
}

// parseXLSX flattens the cells of the first sheet row by row.
func parseXLSX(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	var out []string
	for _, row := range rows {
		out = append(out, row...)
	}
	return out, nil
}
