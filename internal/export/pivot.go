package export

import (
	"fmt"
	"sort"
	"strconv"
)

// Aggregate identifies a pivot aggregation function
type Aggregate string

const (
	AggSum      Aggregate = "sum"
	AggAvg      Aggregate = "avg"
	AggMin      Aggregate = "min"
	AggMax      Aggregate = "max"
	AggCount    Aggregate = "count"
	AggDistinct Aggregate = "distinct"
)

// IsValid checks if the aggregate is a known function
func (a Aggregate) IsValid() bool {
	switch a {
	case AggSum, AggAvg, AggMin, AggMax, AggCount, AggDistinct:
		return true
	default:
		return false
	}
}

// PivotSpec describes a pivot table over a record set: one output row per
// distinct RowField value, one output column per distinct ColumnField value,
// cells aggregating ValueField
type PivotSpec struct {
	RowField    string
	ColumnField string
	ValueField  string
	Aggregate   Aggregate
}

// Pivot builds the pivot table as records suitable for Export. The first
// column carries the row key under the RowField name; remaining columns are
// the distinct column-field values in sorted order.
func Pivot(records []Record, spec PivotSpec) ([]Record, []string, error) {
	if spec.RowField == "" || spec.ColumnField == "" {
		return nil, nil, fmt.Errorf("pivot requires row and column fields")
	}
	if !spec.Aggregate.IsValid() {
		return nil, nil, fmt.Errorf("unknown pivot aggregate: %s", spec.Aggregate)
	}
	if spec.ValueField == "" && spec.Aggregate != AggCount {
		return nil, nil, fmt.Errorf("pivot aggregate %s requires a value field", spec.Aggregate)
	}

	type cellKey struct{ row, col string }
	cells := make(map[cellKey]*accumulator)
	rowKeys := make([]string, 0)
	colKeys := make([]string, 0)
	seenRows := make(map[string]struct{})
	seenCols := make(map[string]struct{})

	for _, record := range records {
		row := formatValue(record[spec.RowField])
		col := formatValue(record[spec.ColumnField])

		if _, ok := seenRows[row]; !ok {
			seenRows[row] = struct{}{}
			rowKeys = append(rowKeys, row)
		}
		if _, ok := seenCols[col]; !ok {
			seenCols[col] = struct{}{}
			colKeys = append(colKeys, col)
		}

		key := cellKey{row, col}
		acc, ok := cells[key]
		if !ok {
			acc = newAccumulator()
			cells[key] = acc
		}
		acc.add(record[spec.ValueField])
	}

	sort.Strings(rowKeys)
	sort.Strings(colKeys)

	out := make([]Record, 0, len(rowKeys))
	for _, row := range rowKeys {
		record := Record{spec.RowField: row}
		for _, col := range colKeys {
			if acc, ok := cells[cellKey{row, col}]; ok {
				record[col] = acc.result(spec.Aggregate)
			} else {
				record[col] = nil
			}
		}
		out = append(out, record)
	}

	fields := append([]string{spec.RowField}, colKeys...)
	return out, fields, nil
}

// ExportPivot pivots records and renders the result as CSV
func ExportPivot(records []Record, spec PivotSpec) ([]byte, error) {
	pivoted, fields, err := Pivot(records, spec)
	if err != nil {
		return nil, err
	}
	return Export(pivoted, Options{Fields: fields})
}

// accumulator collects values for one pivot cell
type accumulator struct {
	count    int
	sum      float64
	min      float64
	max      float64
	numeric  int
	distinct map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{distinct: make(map[string]struct{})}
}

func (a *accumulator) add(v interface{}) {
	a.count++
	a.distinct[formatValue(v)] = struct{}{}

	f, ok := toFloat(v)
	if !ok {
		return
	}
	if a.numeric == 0 || f < a.min {
		a.min = f
	}
	if a.numeric == 0 || f > a.max {
		a.max = f
	}
	a.sum += f
	a.numeric++
}

func (a *accumulator) result(agg Aggregate) interface{} {
	switch agg {
	case AggSum:
		return a.sum
	case AggAvg:
		if a.numeric == 0 {
			return nil
		}
		return a.sum / float64(a.numeric)
	case AggMin:
		if a.numeric == 0 {
			return nil
		}
		return a.min
	case AggMax:
		if a.numeric == 0 {
			return nil
		}
		return a.max
	case AggCount:
		return a.count
	case AggDistinct:
		return len(a.distinct)
	default:
		return nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
