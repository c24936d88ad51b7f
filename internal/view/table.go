package view

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"progtop/internal/monitor"
)

// maxHoldersShown caps the Held By column; the rest collapse into a count.
const maxHoldersShown = 3

// IsTerminal reports whether f is attached to a terminal, deciding between
// the refreshing display and a one-shot plain table.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Clear wipes the terminal before a refresh.
func Clear(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}

// Render writes one sample as a table.
func Render(w io.Writer, s *monitor.Sample) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"ID", "Type", "Name",
		"Period Avg (ns)", "Total Avg (ns)", "Events/sec", "Total CPU %",
		"Held By",
	})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for i := range s.Rows {
		row := &s.Rows[i]
		table.Append([]string{
			strconv.FormatUint(uint64(row.ID), 10),
			row.Type,
			row.Name,
			humanize.Comma(int64(row.PeriodAverageRuntimeNs())),
			humanize.Comma(int64(row.TotalAverageRuntimeNs())),
			humanize.Comma(row.EventsPerSecond()),
			FormatPercent(row.CPUTimePercent()),
			FormatHolders(row.Holders),
		})
	}
	table.Render()

	if s.Dropped > 0 {
		fmt.Fprintf(w, "\n%d holder records dropped: output buffer full\n", s.Dropped)
	}
}

// FormatHolders renders the holding processes as "comm(pid)" pairs.
func FormatHolders(holders []monitor.Holder) string {
	if len(holders) == 0 {
		return "-"
	}

	parts := make([]string, 0, maxHoldersShown+1)
	for i, h := range holders {
		if i == maxHoldersShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(holders)-maxHoldersShown))
			break
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", h.Comm, h.Pid))
	}
	return strings.Join(parts, ", ")
}
