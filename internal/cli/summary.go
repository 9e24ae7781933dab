package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/adc-ontology-enricher/internal/domain"
)

// printSummary writes the per-domain outcome of a run as a table. Resolved
// counts are green, unknowns yellow and registry failures red.
func printSummary(w io.Writer, s *domain.RunSummary) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "  records: %d  drugs: %d  duration: %s\n", s.Records, s.Drugs, s.Duration.Round(time.Millisecond))
	if s.Ambiguous > 0 {
		fmt.Fprintf(w, "  %s\n", color.YellowString("%d records joined by ambiguous name", s.Ambiguous))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-20s %8s %8s %8s %8s %10s\n", "DOMAIN", "FIELDS", "RESOLVED", "UNKNOWN", "ERRORS", "DURATION")
	fmt.Fprintln(w, strings.Repeat("-", 67))
	for _, d := range s.Domains {
		if d.Skipped {
			fmt.Fprintf(w, "%-20s %s\n", d.Domain, color.YellowString("skipped (registry disabled)"))
			continue
		}
		unknown := d.Statuses[domain.StatusUnknown]
		resolved := d.Statuses.Total() - unknown

		fmt.Fprintf(w, "%-20s %8d %s %s %s %10s\n",
			d.Domain,
			d.Fields,
			colorCount(resolved, color.GreenString),
			colorCount(unknown, color.YellowString),
			colorCount(d.UpstreamErrors, color.RedString),
			d.Duration.Round(time.Millisecond),
		)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Output:     %s\n", s.OutputPath)
	if s.Unknowns > 0 {
		fmt.Fprintf(w, "Unknowns:   %d\n", s.Unknowns)
	}
	if s.Dictionary > 0 {
		fmt.Fprintf(w, "Dictionary: %d entries\n", s.Dictionary)
	}
	if s.SinkRecords > 0 {
		fmt.Fprintf(w, "Database:   %d drug rows\n", s.SinkRecords)
	}
}

// colorCount pads n before coloring so escape codes do not break alignment.
func colorCount(n int, paint func(format string, a ...interface{}) string) string {
	cell := fmt.Sprintf("%8d", n)
	if n == 0 {
		return cell
	}
	return paint(cell)
}
