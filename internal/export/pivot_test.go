package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessSample() []Record {
	return []Record{
		{"door": "lobby", "result": "SUCCESS", "duration": 2},
		{"door": "lobby", "result": "SUCCESS", "duration": 4},
		{"door": "lobby", "result": "INVALID_PIN", "duration": 1},
		{"door": "garage", "result": "SUCCESS", "duration": 6},
	}
}

func TestPivotCount(t *testing.T) {
	records, fields, err := Pivot(accessSample(), PivotSpec{
		RowField:    "door",
		ColumnField: "result",
		Aggregate:   AggCount,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"door", "INVALID_PIN", "SUCCESS"}, fields)
	require.Len(t, records, 2)

	// Rows come back sorted by row key
	assert.Equal(t, "garage", records[0]["door"])
	assert.Nil(t, records[0]["INVALID_PIN"])
	assert.Equal(t, 1, records[0]["SUCCESS"])

	assert.Equal(t, "lobby", records[1]["door"])
	assert.Equal(t, 1, records[1]["INVALID_PIN"])
	assert.Equal(t, 2, records[1]["SUCCESS"])
}

func TestPivotNumericAggregates(t *testing.T) {
	spec := PivotSpec{RowField: "door", ColumnField: "result", ValueField: "duration"}

	tests := []struct {
		agg  Aggregate
		want interface{}
	}{
		{AggSum, float64(6)},
		{AggAvg, float64(3)},
		{AggMin, float64(2)},
		{AggMax, float64(4)},
	}

	for _, tt := range tests {
		t.Run(string(tt.agg), func(t *testing.T) {
			spec.Aggregate = tt.agg
			records, _, err := Pivot(accessSample(), spec)
			require.NoError(t, err)
			// lobby x SUCCESS aggregates durations 2 and 4
			assert.Equal(t, tt.want, records[1]["SUCCESS"])
		})
	}
}

func TestPivotDistinct(t *testing.T) {
	records := []Record{
		{"building": "hq", "result": "SUCCESS", "user": "u1"},
		{"building": "hq", "result": "SUCCESS", "user": "u1"},
		{"building": "hq", "result": "SUCCESS", "user": "u2"},
	}

	out, _, err := Pivot(records, PivotSpec{
		RowField:    "building",
		ColumnField: "result",
		ValueField:  "user",
		Aggregate:   AggDistinct,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out[0]["SUCCESS"])
}

func TestPivotValidation(t *testing.T) {
	tests := []struct {
		name string
		spec PivotSpec
	}{
		{"missing row field", PivotSpec{ColumnField: "result", Aggregate: AggCount}},
		{"missing column field", PivotSpec{RowField: "door", Aggregate: AggCount}},
		{"unknown aggregate", PivotSpec{RowField: "door", ColumnField: "result", Aggregate: "median"}},
		{"sum without value field", PivotSpec{RowField: "door", ColumnField: "result", Aggregate: AggSum}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Pivot(accessSample(), tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestExportPivot(t *testing.T) {
	out, err := ExportPivot(accessSample(), PivotSpec{
		RowField:    "door",
		ColumnField: "result",
		Aggregate:   AggCount,
	})
	require.NoError(t, err)

	want := "door,INVALID_PIN,SUCCESS\ngarage,,1\nlobby,1,2\n"
	assert.Equal(t, want, string(out))
}

func TestAggregateIsValid(t *testing.T) {
	for _, agg := range []Aggregate{AggSum, AggAvg, AggMin, AggMax, AggCount, AggDistinct} {
		assert.True(t, agg.IsValid())
	}
	assert.False(t, Aggregate("median").IsValid())
	assert.False(t, Aggregate("").IsValid())
}
