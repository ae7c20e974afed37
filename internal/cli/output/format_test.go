package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "table", FormatTable.String())
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "yaml", FormatYAML.String())
}

func TestPrinterPrintln(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable)

	printer.Println("test message")
	assert.Contains(t, buf.String(), "test message")
}

type fakeRenderer struct{}

func (fakeRenderer) Headers() []string   { return []string{"PATH"} }
func (fakeRenderer) Rows() [][]string    { return [][]string{{"/tmp/a"}} }

func TestPrinterPrint(t *testing.T) {
	t.Run("table falls through to TableRenderer", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatTable)
		require.NoError(t, printer.Print(fakeRenderer{}))
		assert.Contains(t, buf.String(), "/tmp/a")
	})

	t.Run("table without TableRenderer falls back to JSON", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatTable)
		require.NoError(t, printer.Print(map[string]string{"path": "/tmp/a"}))
		assert.Contains(t, buf.String(), "/tmp/a")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatJSON)
		require.NoError(t, printer.Print(map[string]string{"path": "/tmp/a"}))
		assert.Contains(t, buf.String(), "/tmp/a")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatYAML)
		require.NoError(t, printer.Print(map[string]string{"path": "/tmp/a"}))
		assert.Contains(t, buf.String(), "/tmp/a")
	})

	t.Run("unknown format errors", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, Format("xml"))
		assert.Error(t, printer.Print(map[string]string{"path": "/tmp/a"}))
	})
}
