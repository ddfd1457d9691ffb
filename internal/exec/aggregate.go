package exec

import (
	"fmt"
	"math"

	"github.com/tuannm99/reldb/internal/optimize"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// toFloat coerces a numeric Value to float64; ok is false for null or
// non-numeric values, which aggregates must then simply skip.
func toFloat(v typesystem.Value) (float64, bool) {
	switch v.Tag {
	case typesystem.Int32:
		return float64(v.I32), true
	case typesystem.Int64:
		return float64(v.I64), true
	case typesystem.Float64:
		return v.F64, true
	default:
		return 0, false
	}
}

func aggName(spec optimize.AggSpec) string {
	if spec.Alias != "" {
		return spec.Alias
	}
	return fmt.Sprintf("%s(%s)", aggFuncName(spec.Func), spec.Col)
}

func aggFuncName(f optimize.AggFunc) string {
	switch f {
	case optimize.Count:
		return "count"
	case optimize.CountCol:
		return "count"
	case optimize.Sum:
		return "sum"
	case optimize.Avg:
		return "avg"
	case optimize.Min:
		return "min"
	case optimize.Max:
		return "max"
	case optimize.Stddev:
		return "stddev"
	case optimize.Geomean:
		return "geomean"
	case optimize.Distinct:
		return "distinct_count"
	default:
		return "agg"
	}
}

// computeAgg folds one AggSpec over a group of rows. Every aggregate but
// Count/CountCol/Distinct ignores nulls and returns Null when no non-null
// input was seen (the spec's "empty group aggregates to NULL, not zero"
// rule); Distinct always returns a count and counts null as one value.
func computeAgg(spec optimize.AggSpec, rows []Record) typesystem.Value {
	switch spec.Func {
	case optimize.Count:
		return typesystem.NewInt64(int64(len(rows)))

	case optimize.CountCol:
		var n int64
		for _, r := range rows {
			if v, ok := r.Col(spec.Col); ok && !v.IsNull() {
				n++
			}
		}
		return typesystem.NewInt64(n)

	case optimize.Distinct:
		// Null counts as a single distinct value if present at all
		// (spec.md: "treating null as a single value"), not discarded.
		seen := make(map[string]struct{})
		sawNull := false
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok {
				continue
			}
			if v.IsNull() {
				sawNull = true
				continue
			}
			seen[joinKey(v)] = struct{}{}
		}
		n := len(seen)
		if sawNull {
			n++
		}
		return typesystem.NewInt64(int64(n))

	case optimize.Sum:
		var sum float64
		var n int
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok {
				continue
			}
			if f, ok := toFloat(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return typesystem.NewNull()
		}
		return typesystem.NewFloat64(sum)

	case optimize.Avg:
		var sum float64
		var n int
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok {
				continue
			}
			if f, ok := toFloat(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return typesystem.NewNull()
		}
		return typesystem.NewFloat64(sum / float64(n))

	case optimize.Min, optimize.Max:
		var best *typesystem.Value
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok || v.IsNull() {
				continue
			}
			if best == nil {
				cp := v
				best = &cp
				continue
			}
			c := v.Compare(*best)
			if (spec.Func == optimize.Min && c < 0) || (spec.Func == optimize.Max && c > 0) {
				cp := v
				best = &cp
			}
		}
		if best == nil {
			return typesystem.NewNull()
		}
		return *best

	case optimize.Stddev:
		var vals []float64
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok {
				continue
			}
			if f, ok := toFloat(v); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			return typesystem.NewNull()
		}
		var mean float64
		for _, f := range vals {
			mean += f
		}
		mean /= float64(len(vals))
		var variance float64
		for _, f := range vals {
			d := f - mean
			variance += d * d
		}
		variance /= float64(len(vals))
		return typesystem.NewFloat64(math.Sqrt(variance))

	case optimize.Geomean:
		var logSum float64
		var n int
		for _, r := range rows {
			v, ok := r.Col(spec.Col)
			if !ok {
				continue
			}
			f, ok := toFloat(v)
			if !ok || f <= 0 {
				continue // non-positive values have no real geometric mean contribution
			}
			logSum += math.Log(f)
			n++
		}
		if n == 0 {
			return typesystem.NewNull()
		}
		return typesystem.NewFloat64(math.Exp(logSum / float64(n)))

	default:
		return typesystem.NewNull()
	}
}

func newAggregateIter(child Iterator, aggs []optimize.AggSpec) (Iterator, error) {
	rows, err := materialize(child)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(aggs))
	vals := make([]typesystem.Value, len(aggs))
	for i, spec := range aggs {
		names[i] = aggName(spec)
		vals[i] = computeAgg(spec, rows)
	}
	return &sliceIterator{
		cols: names,
		rows: []Record{{Cols: names, Vals: vals}},
	}, nil
}

func groupKeyString(r Record, keys []string) string {
	s := ""
	for _, k := range keys {
		v, _ := r.Col(k)
		s += joinKey(v) + "\x00"
	}
	return s
}

func newGroupByIter(child Iterator, keys []string, aggs []optimize.AggSpec) (Iterator, error) {
	rows, err := materialize(child)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	groups := make(map[string][]Record)
	keyRows := make(map[string]Record)
	for _, r := range rows {
		k := groupKeyString(r, keys)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			keyRows[k] = r
		}
		groups[k] = append(groups[k], r)
	}

	aggNames := make([]string, len(aggs))
	for i, spec := range aggs {
		aggNames[i] = aggName(spec)
	}
	outCols := append(append([]string{}, keys...), aggNames...)

	out := make([]Record, 0, len(order))
	for _, k := range order {
		members := groups[k]
		vals := make([]typesystem.Value, 0, len(outCols))
		for _, col := range keys {
			v, _ := keyRows[k].Col(col)
			vals = append(vals, v)
		}
		for _, spec := range aggs {
			vals = append(vals, computeAgg(spec, members))
		}
		out = append(out, Record{Cols: outCols, Vals: vals})
	}

	return &sliceIterator{cols: outCols, rows: out}, nil
}
