// Package aggregate shapes raw engine result rows into stable, deterministic
// user-facing summaries. All functions are pure: same rows in, same output
// out, no I/O.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ggonzalez94/bark-bot/internal/model"
)

// AllocationThreshold is the minimum share of total value a row must hold to
// appear in chart input. Rows below it are dropped, not merged.
const AllocationThreshold = 0.01

// Number extracts a numeric field from a row. Engine rows carry numbers as
// float64, integers or strings depending on the column type; nil and
// unparseable values report ok=false.
func Number(row model.ResultRow, field string) (float64, bool) {
	switch v := row[field].(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String extracts a field as display text. Nil becomes the empty string.
func String(row model.ResultRow, field string) string {
	switch v := row[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatValue renders a monetary field for display. Null or unparseable
// values render as "N/A"; they are never coerced to zero in displayed text.
func FormatValue(row model.ResultRow, field string) string {
	n, ok := Number(row, field)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.3f", n)
}

// LatestSnapshot retains only the rows carrying the maximum timestamp value
// (ties all retained), sorted descending by the magnitude field. It returns
// the snapshot rows and the timestamp label of the group. Empty input yields
// a nil set.
func LatestSnapshot(rows model.ResultSet, timeField, magnitudeField string) (model.ResultSet, string) {
	if len(rows) == 0 {
		return nil, ""
	}

	maxLabel := String(rows[0], timeField)
	for _, row := range rows[1:] {
		label := String(row, timeField)
		if compareTimestamps(label, maxLabel) > 0 {
			maxLabel = label
		}
	}

	snapshot := make(model.ResultSet, 0, len(rows))
	for _, row := range rows {
		if String(row, timeField) == maxLabel {
			snapshot = append(snapshot, row)
		}
	}

	sortByFieldDesc(snapshot, magnitudeField)
	return snapshot, maxLabel
}

// SortByValueDesc returns the rows sorted descending by a monetary field.
// Missing and null values sort as zero; the input slice is not mutated.
func SortByValueDesc(rows model.ResultSet, valueField string) model.ResultSet {
	sorted := make(model.ResultSet, len(rows))
	copy(sorted, rows)
	sortByFieldDesc(sorted, valueField)
	return sorted
}

func sortByFieldDesc(rows model.ResultSet, field string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, _ := Number(rows[i], field)
		b, _ := Number(rows[j], field)
		return a > b
	})
}

// Allocation is one asset's share of the summed portfolio value.
type Allocation struct {
	Label string
	Value float64
	Share float64
}

// FilterAllocations computes each row's share of the summed value field and
// retains only rows at or above the 1% threshold, descending by value. The
// result is exactly what chart rendering receives; rows below the threshold
// are dropped, never merged into an "other" bucket. All-null values yield an
// empty set.
func FilterAllocations(rows model.ResultSet, labelField, valueField string) []Allocation {
	var total float64
	for _, row := range rows {
		if v, ok := Number(row, valueField); ok {
			total += v
		}
	}
	if total <= 0 {
		return nil
	}

	allocations := make([]Allocation, 0, len(rows))
	for _, row := range rows {
		v, ok := Number(row, valueField)
		if !ok {
			continue
		}
		share := v / total
		if share < AllocationThreshold {
			continue
		}
		allocations = append(allocations, Allocation{
			Label: String(row, labelField),
			Value: v,
			Share: share,
		})
	}

	sort.SliceStable(allocations, func(i, j int) bool {
		return allocations[i].Value > allocations[j].Value
	})
	return allocations
}

// PnLEntry is one holding's profit-and-loss delta with its sign class, used
// to pick a display style per row.
type PnLEntry struct {
	Symbol   string
	Delta    float64
	Negative bool
}

// PnLSummary carries the per-row deltas and the aggregate sum across all
// rows for the single summary caption.
type PnLSummary struct {
	Entries []PnLEntry
	Total   float64
}

// ProfitAndLoss computes per-row deltas (current price minus cost basis,
// scaled by holding size where one is present) and the aggregate total. The
// caption sign comes from the aggregate, not from any individual row.
func ProfitAndLoss(rows model.ResultSet, symbolField, balanceField, priceField, costField string) PnLSummary {
	summary := PnLSummary{Entries: make([]PnLEntry, 0, len(rows))}
	for _, row := range rows {
		price, _ := Number(row, priceField)
		cost, _ := Number(row, costField)
		scale := 1.0
		if balance, ok := Number(row, balanceField); ok {
			scale = balance
		}
		delta := (price - cost) * scale
		summary.Entries = append(summary.Entries, PnLEntry{
			Symbol:   String(row, symbolField),
			Delta:    delta,
			Negative: delta < 0,
		})
		summary.Total += delta
	}
	return summary
}

// FormatSigned renders a delta with an explicit "+" or "-" prefix.
func FormatSigned(v float64) string {
	return fmt.Sprintf("%+.3f", v)
}

// TruncateSymbol shortens a display symbol to at most max runes for compact
// chart legends. Cosmetic only; never applied to values used for sorting,
// filtering or totals.
func TruncateSymbol(symbol string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(symbol)
	if len(runes) <= max {
		return symbol
	}
	return string(runes[:max])
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.000 UTC",
	"2006-01-02 15:04:05 UTC",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareTimestamps orders two timestamp labels, preferring parsed time
// comparison and falling back to lexicographic order for unknown formats
// (stable for the engine's fixed-format columns).
func compareTimestamps(a, b string) int {
	ta, okA := parseTimestamp(a)
	tb, okB := parseTimestamp(b)
	if okA && okB {
		switch {
		case ta.After(tb):
			return 1
		case ta.Before(tb):
			return -1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
