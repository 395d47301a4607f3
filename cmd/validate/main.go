// Command validate checks a saved USGS GeoJSON FeatureCollection against the
// ingestion rules before it is backfilled: every feature is run through the
// same parser the pipeline uses, natural keys are checked for collisions, and
// a summary of the accepted events is printed.
//
// Usage:
//
//	go run ./cmd/validate -file data/usgs_2024.json [-max-reject-ratio 0.05]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Bhupin123/Sismicity/internal/adapter/usgs"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/forecast"
)

// maxListedErrors caps the per-phase detail printed in the report.
const maxListedErrors = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to a USGS GeoJSON FeatureCollection")
	maxRejectRatio := flag.Float64("max-reject-ratio", 0.05, "fail when more than this share of features is rejected")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if code := run(f, os.Stdout, *maxRejectRatio); code != 0 {
		os.Exit(code)
	}
}

func run(r io.Reader, out io.Writer, maxRejectRatio float64) int {
	fmt.Fprintln(out, "=== Seismic Catalog Validation ===")
	fmt.Fprintln(out)

	features, err := usgs.DecodeFeatureCollection(r)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	parse, events := validateParsing(features, maxRejectRatio)
	phases := []*phase{
		parse,
		validateUniqueness(events),
		validateChronology(events),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-30s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	printSummary(out, len(features), events)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxListedErrors {
				fmt.Fprintf(out, "  ... %d more\n", len(p.errors)-maxListedErrors)
				break
			}
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateParsing runs every feature through the ingestion parser. Individual
// rejections are expected (USGS publishes some events without a magnitude);
// the phase fails only when the reject ratio exceeds the threshold.
func validateParsing(features []domain.RawFeature, maxRejectRatio float64) (*phase, []domain.Event) {
	p := &phase{name: "Feature parsing"}
	events := make([]domain.Event, 0, len(features))
	var rejected []string

	for i, f := range features {
		e, err := domain.ParseFeatureBytes(f.Payload)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("feature %d (%s): %s", i, f.ID, rejectLabel(err)))
			continue
		}
		events = append(events, e)
	}

	if len(features) > 0 {
		ratio := float64(len(rejected)) / float64(len(features))
		if ratio > maxRejectRatio {
			p.errorf("%d of %d features rejected (%.1f%% > %.1f%%)",
				len(rejected), len(features), ratio*100, maxRejectRatio*100)
			p.errors = append(p.errors, rejected...)
		}
	}
	return p, events
}

func rejectLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingMagnitude):
		return "missing magnitude"
	case errors.Is(err, domain.ErrInvalidEvent):
		return err.Error()
	default:
		return "undecodable: " + err.Error()
	}
}

// naturalKey mirrors the store's uniqueness constraint.
type naturalKey struct {
	at       time.Time
	lat, lon float64
	mag      float64
}

func validateUniqueness(events []domain.Event) *phase {
	p := &phase{name: "Natural key uniqueness"}
	ids := make(map[string]int, len(events))
	keys := make(map[naturalKey]string, len(events))

	for i, e := range events {
		if prev, ok := ids[e.ID]; ok {
			p.errorf("id %s appears at features %d and %d", e.ID, prev, i)
		}
		ids[e.ID] = i

		k := naturalKey{at: e.OccurredAt, lat: e.Latitude, lon: e.Longitude, mag: e.Magnitude}
		if prev, ok := keys[k]; ok && prev != e.ID {
			p.errorf("%s and %s share time, position and magnitude; the store keeps only one", prev, e.ID)
		}
		keys[k] = e.ID
	}
	return p
}

// validateChronology flags events stamped in the future, which would skew
// recency counts in hotspot scoring.
func validateChronology(events []domain.Event) *phase {
	p := &phase{name: "Event chronology"}
	now := domain.Now()
	for _, e := range events {
		if e.OccurredAt.After(now) {
			p.errorf("%s occurs in the future (%s)", e.ID, e.OccurredAt.Format(time.RFC3339))
		}
	}
	return p
}

func printSummary(out io.Writer, total int, events []domain.Event) {
	s := forecast.Summarize(forecast.Window{Events: events})
	fmt.Fprintf(out, "Features: %d total, %d accepted, %d rejected\n", total, len(events), total-len(events))
	if s.TotalEvents == 0 {
		return
	}
	fmt.Fprintf(out, "Magnitude: min %.1f, avg %.2f, max %.1f; major events: %d\n",
		s.MinMagnitude, s.AvgMagnitude, s.MaxMagnitude, s.MajorCount)
	fmt.Fprintf(out, "Span: %s to %s\n", s.Earliest.Format(time.RFC3339), s.Latest.Format(time.RFC3339))

	bands := make([]string, 0, len(s.BandCounts))
	for b := range s.BandCounts {
		bands = append(bands, string(b))
	}
	sort.Strings(bands)
	for _, b := range bands {
		fmt.Fprintf(out, "  %-9s %d\n", b, s.BandCounts[domain.Band(b)])
	}
}
