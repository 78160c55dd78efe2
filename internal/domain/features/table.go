// Package features turns samples and reference tables into regression-ready
// feature tables.
package features

import (
	"fmt"
	"time"
)

// Column names shared by both grains.
const (
	ColGame             = "game_name"
	ColDate             = "date"
	ColTimestamp        = "timestamp"
	ColPlayers          = "players"
	ColMaxCount         = "max_count"
	ColIsWeekend        = "is_weekend"
	ColPrice            = "price_usd"
	ColDaysSinceRelease = "days_since_release"
	ColDayIndex         = "day_index"
	ColHour             = "hour"
	ColDayOfWeek        = "day_of_week"
	ColDowSin           = "dow_sin"
	ColDowCos           = "dow_cos"
	ColHourSin          = "hour_sin"
	ColHourCos          = "hour_cos"

	GenrePrefix = "genre_"
)

// Grain names.
const (
	GrainTimestamp = "timestamp"
	GrainDaily     = "daily"
)

// IdentifierColumns are the non-numeric columns a fit leaves out.
var IdentifierColumns = []string{ColGame, ColDate, ColTimestamp} //nolint:gochecknoglobals // fixed column set

// Kind is the value type of a column.
type Kind int

// Column kinds.
const (
	KindNumeric Kind = iota
	KindText
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is one named, typed column. Only the slice matching Kind is set.
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Texts   []string
	Times   []time.Time
}

// Len returns the number of values held.
func (c *Column) Len() int {
	switch c.Kind {
	case KindText:
		return len(c.Texts)
	case KindTime:
		return len(c.Times)
	default:
		return len(c.Numbers)
	}
}

// Table is an ordered set of equally long columns.
type Table struct {
	Grain  string
	Target string
	// Origin is the earliest date of the batch; day_index counts from it.
	Origin time.Time

	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable creates an empty table.
func NewTable(grain, target string) *Table {
	return &Table{Grain: grain, Target: target, index: make(map[string]int)}
}

// Add appends a column. All columns must have the same length and
// unique names.
func (t *Table) Add(c *Column) error {
	if _, dup := t.index[c.Name]; dup {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(t.columns) > 0 && c.Len() != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.rows)
	}
	t.rows = c.Len()
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// AddNumeric appends a numeric column.
func (t *Table) AddNumeric(name string, values []float64) error {
	return t.Add(&Column{Name: name, Kind: KindNumeric, Numbers: values})
}

// AddText appends a text column.
func (t *Table) AddText(name string, values []string) error {
	return t.Add(&Column{Name: name, Kind: KindText, Texts: values})
}

// AddTime appends a time column.
func (t *Table) AddTime(name string, values []time.Time) error {
	return t.Add(&Column{Name: name, Kind: KindTime, Times: values})
}

// Len returns the row count.
func (t *Table) Len() int { return t.rows }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Row returns the numeric values of row i keyed by column name, leaving out
// the target and every non-numeric column.
func (t *Table) Row(i int) map[string]float64 {
	out := make(map[string]float64, len(t.columns))
	for _, c := range t.columns {
		if c.Kind != KindNumeric || c.Name == t.Target {
			continue
		}
		out[c.Name] = c.Numbers[i]
	}
	return out
}
