package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jooooscha/minicaldav/caldav"
	"github.com/jooooscha/minicaldav/ical"
)

const prodID = "-//minicaldav//EN"

func newEventsCmd(opts *globalOptions) *cobra.Command {
	var (
		from   string
		to     string
		asICS  bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "events [CALENDAR]",
		Short: "Print the events of one calendar, or of all calendars",
		Long: `Print the events of the calendars of the configured account.

CALENDAR selects a calendar by display name or URL. A URL that discovery
did not return is fetched as is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTimeFlag("from", from)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag("to", to)
			if err != nil {
				return err
			}
			if !start.IsZero() && !end.IsZero() && !end.After(start) {
				return fmt.Errorf("--to must be after --from")
			}

			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			cals, err := s.client.DiscoverCalendars(cmd.Context(), s.cfg.ServerURL)
			if err != nil {
				return fmt.Errorf("failed to discover calendars: %w", err)
			}
			if len(args) == 1 {
				cals, err = selectCalendars(cals, args[0])
				if err != nil {
					return err
				}
			}

			var all []caldav.Event
			failures := 0
			for _, cal := range eventCalendars(cals) {
				events, resErrs, err := s.client.FetchEventsInRange(cmd.Context(), cal, start, end)
				if err != nil {
					return fmt.Errorf("failed to fetch events of %s: %w", cal.Name(), err)
				}
				for _, re := range resErrs {
					s.log.WithFields(logrus.Fields{
						"calendar": cal.Name(),
						"href":     re.Href,
					}).WithError(re.Err).Warn("skipping resource")
				}
				failures += len(resErrs)
				all = append(all, events...)

				if !asICS {
					printEvents(cmd.OutOrStdout(), cal, events)
				}
			}

			if asICS {
				if err := writeICS(cmd.OutOrStdout(), all); err != nil {
					return err
				}
			}
			if strict && failures > 0 {
				return fmt.Errorf("%d resources could not be read", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only events ending after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Only events starting before this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&asICS, "ics", false, "Print the events as one iCalendar stream")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any resource could not be read")

	return cmd
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD or RFC 3339", name, value)
	}
	return t, nil
}

// eventCalendars drops the calendars that cannot hold events.
func eventCalendars(cals []caldav.Calendar) []caldav.Calendar {
	var out []caldav.Calendar
	for _, cal := range cals {
		if cal.Supports(goical.CompEvent) {
			out = append(out, cal)
		}
	}
	return out
}

// selectCalendars picks the calendars matching name, by URL or display name.
func selectCalendars(cals []caldav.Calendar, name string) ([]caldav.Calendar, error) {
	var out []caldav.Calendar
	for _, cal := range cals {
		if cal.URL == name || strings.EqualFold(cal.DisplayName, name) {
			out = append(out, cal)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return []caldav.Calendar{{URL: name}}, nil
	}
	return nil, fmt.Errorf("no calendar named %q", name)
}

func printEvents(w io.Writer, cal caldav.Calendar, events []caldav.Event) {
	fmt.Fprintf(w, "%s (%d events)\n", cal.Name(), len(events))

	sorted := make([]caldav.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return startOf(sorted[i]).Before(startOf(sorted[j]))
	})

	for _, ev := range sorted {
		when := "(no start)"
		if ev.Start != nil {
			when = ev.Start.String()
		}
		line := fmt.Sprintf("  %s  %s", when, ev.Summary)
		if ev.Location != "" {
			line += " @ " + ev.Location
		}
		if ev.RecurrenceID != nil {
			line += " [override]"
		}
		fmt.Fprintln(w, line)
	}
}

func startOf(ev caldav.Event) time.Time {
	if ev.Start == nil {
		return time.Time{}
	}
	return ev.Start.Time
}

// writeICS wraps the VEVENTs in a single VCALENDAR, preceded by the
// VTIMEZONEs of their source calendars. A TZID is written once.
func writeICS(w io.Writer, events []caldav.Event) error {
	cal := ical.NewComponent(goical.CompCalendar)
	cal.Add(ical.NewProperty(goical.PropVersion, "2.0"))
	cal.Add(ical.NewProperty(goical.PropProductID, prodID))

	seen := map[string]bool{}
	for _, ev := range events {
		for _, tz := range ev.Timezones {
			p := tz.Prop(goical.PropTimezoneID)
			if p == nil || seen[p.Value] {
				continue
			}
			seen[p.Value] = true
			cal.Children = append(cal.Children, tz)
		}
	}
	for _, ev := range events {
		if ev.Component != nil {
			cal.Children = append(cal.Children, ev.Component)
		}
	}
	return ical.NewEncoder(w).Encode(cal)
}
