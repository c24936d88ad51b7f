package monitor

import (
	"fmt"
	"sort"
	"strings"

	"progtop/internal/progstats"
)

// Column names a sortable table column.
type Column string

const (
	SortID        Column = "id"
	SortType      Column = "type"
	SortName      Column = "name"
	SortPeriodAvg Column = "period-avg"
	SortTotalAvg  Column = "total-avg"
	SortEvents    Column = "events"
	SortCPU       Column = "cpu"
)

var columns = []Column{SortID, SortType, SortName, SortPeriodAvg, SortTotalAvg, SortEvents, SortCPU}

// ParseColumn validates a user-supplied sort column name.
func ParseColumn(s string) (Column, error) {
	for _, c := range columns {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown sort column %q (one of: %s)", s, columnNames())
}

func columnNames() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func matchesFilter(p *progstats.Program, filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	return strings.Contains(strings.ToLower(p.Name), filter) ||
		strings.Contains(strings.ToLower(p.Type), filter)
}

// sortRows orders rows for display. Name and type sort ascending, the numeric
// columns descending so the busiest programs surface first.
func sortRows(rows []Row, col Column) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		switch col {
		case SortType:
			return a.Type < b.Type
		case SortName:
			return a.Name < b.Name
		case SortPeriodAvg:
			return a.PeriodAverageRuntimeNs() > b.PeriodAverageRuntimeNs()
		case SortTotalAvg:
			return a.TotalAverageRuntimeNs() > b.TotalAverageRuntimeNs()
		case SortEvents:
			return a.EventsPerSecond() > b.EventsPerSecond()
		case SortCPU:
			return a.CPUTimePercent() > b.CPUTimePercent()
		default:
			return a.ID < b.ID
		}
	})
}
