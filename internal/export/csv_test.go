package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportAutoDetectsFields(t *testing.T) {
	records := []Record{
		{"b": "2", "a": "1"},
		{"a": "3", "c": "4"},
	}

	out, err := Export(records, Options{})
	require.NoError(t, err)

	// Header is the sorted union of keys; missing cells are empty
	assert.Equal(t, "a,b,c\n1,2,\n3,,4\n", string(out))
}

func TestExportFixedFields(t *testing.T) {
	records := []Record{
		{"name": "lobby", "floor": 1, "extra": "ignored"},
		{"name": "garage", "floor": -1},
	}

	out, err := Export(records, Options{Fields: []string{"name", "floor"}})
	require.NoError(t, err)
	assert.Equal(t, "name,floor\nlobby,1\ngarage,-1\n", string(out))
}

func TestExportNoHeader(t *testing.T) {
	out, err := Export([]Record{{"a": "1"}}, Options{Fields: []string{"a"}, NoHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(out))
}

func TestExportEmpty(t *testing.T) {
	out, err := Export(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "\n", string(out))

	out, err = Export(nil, Options{NoHeader: true})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExportQuoting(t *testing.T) {
	records := []Record{{"note": `said "hi", left`}}

	out, err := Export(records, Options{Fields: []string{"note"}, NoHeader: true})
	require.NoError(t, err)
	assert.Equal(t, "\"said \"\"hi\"\", left\"\n", string(out))
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"int", 42, "42"},
		{"float", 3.5, "3.5"},
		{"float trims zeros", float64(10), "10"},
		{"bool", true, "true"},
		{"time", ts, "2026-01-15T09:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestExportReport(t *testing.T) {
	report := Report{
		Title: "Daily Access Summary",
		Sections: []ReportSection{
			{
				Name:    "By Door",
				Fields:  []string{"door", "attempts"},
				Records: []Record{{"door": "lobby", "attempts": 12}},
			},
			{
				Name:    "By Result",
				Fields:  []string{"result", "count"},
				Records: []Record{{"result": "SUCCESS", "count": 10}},
			},
		},
	}

	out, err := ExportReport(report)
	require.NoError(t, err)

	want := "Daily Access Summary\n\nBy Door\ndoor,attempts\nlobby,12\n\nBy Result\nresult,count\nSUCCESS,10\n\n"
	assert.Equal(t, want, string(out))
}
