package recipients_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/recipients"
	"github.com/xuri/excelize/v2"
)

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"a@x.com":         true,
		"first.last@a.io": true,
		"not-an-email":    false,
		"a@x":             false,
		"a b@x.com":       false,
		"@x.com":          false,
		"":                false,
	}
	for in, want := range cases {
		if got := recipients.Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := recipients.SplitList("a@x.com, not-an-email, b@x.com")
	want := []string{"a@x.com", "b@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitList = %v, want %v", got, want)
	}
	if len(recipients.SplitList(" , ,")) != 0 {
		t.Fatal("expected no recipients")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		want     []string
	}{
		{"text lines", "list.txt", "a@x.com\r\nbad\n\nb@x.com\n", []string{"a@x.com", "b@x.com"}},
		{"csv cells", "list.csv", "a@x.com,c@x.com\nname,b@x.com\n", []string{"a@x.com", "c@x.com", "b@x.com"}},
		{"json strings", "list.json", `["a@x.com", " b@x.com "]`, []string{"a@x.com", "b@x.com"}},
		{"json objects", "list.json", `[{"email":"a@x.com"},{"name":"x"}]`, []string{"a@x.com"}},
		{"sniffed json", "", `["a@x.com"]`, []string{"a@x.com"}},
		{"sniffed text", "", "a@x.com\nb@x.com\n", []string{"a@x.com", "b@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recipients.Parse(strings.NewReader(tt.body), tt.filename)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := recipients.Parse(strings.NewReader("x"), "list.xls")
	if !errx.IsCode(err, recipients.CodeUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}

	_, err = recipients.Parse(strings.NewReader("not a zip"), "list.xlsx")
	if !errx.IsCode(err, recipients.CodeMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}

	_, err = recipients.Parse(strings.NewReader(`{"not":"an array"}`), "list.json")
	if !errx.IsCode(err, recipients.CodeMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestParse_XLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"a@x.com", "name"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Bob", " b@x.com "}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := f.SetCellValue("Sheet1", "A4", "a@x.com"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetCellValue("Other", "A1", "c@x.com"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := recipients.Parse(buf, "List.XLSX")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"a@x.com", "b@x.com", "a@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
