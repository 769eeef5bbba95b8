package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	goical "github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/jooooscha/minicaldav/ical"
)

func newParseCmd(opts *globalOptions) *cobra.Command {
	var (
		encode bool
		events bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "parse [FILE]",
		Short: "Parse an iCalendar file and print its structure",
		Long: `Parse an iCalendar file and print its component tree.

FILE defaults to standard input; "-" reads standard input as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger(cmd)

			var r io.Reader = cmd.InOrStdin()
			name := "stdin"
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r, name = f, args[0]
			}

			forest, err := ical.Parse(r)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", name, err)
			}
			log.WithField("components", len(forest)).Debug("parsed " + name)

			out := cmd.OutOrStdout()
			switch {
			case strict:
				enc := goical.NewEncoder(out)
				for _, c := range forest {
					if c.Kind != ical.KindCalendar {
						return fmt.Errorf("top-level %s is not a VCALENDAR", c.Name)
					}
					if err := enc.Encode(&goical.Calendar{Component: c.ICal()}); err != nil {
						return fmt.Errorf("invalid calendar: %w", err)
					}
				}
				return nil
			case encode:
				text, err := ical.Encode(forest)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, text)
				return err
			case events:
				var resolver ical.TimezoneResolver
				if opts.flags.ResolveTimezones {
					resolver = ical.ZoneDatabase
				}
				evs, err := ical.Events(forest, resolver)
				if err != nil {
					return err
				}
				for _, ev := range evs {
					printEvent(out, ev)
				}
				return nil
			default:
				for _, c := range forest {
					printTree(out, c, 0)
				}
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&encode, "encode", false, "Re-encode the parsed components as iCalendar text")
	cmd.Flags().BoolVar(&events, "events", false, "Decode and print the events")
	cmd.Flags().BoolVar(&strict, "strict", false, "Re-encode each calendar with go-ical, which rejects calendars missing required properties")

	return cmd
}

func printTree(w io.Writer, c *ical.Component, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s\n", indent, c.Name)
	for _, p := range c.Props {
		fmt.Fprintf(w, "%s  %s = %s\n", indent, p.Name, p.Value)
	}
	for _, child := range c.Children {
		printTree(w, child, depth+1)
	}
}

func printEvent(w io.Writer, ev ical.Event) {
	fmt.Fprintf(w, "%s\n", ev.UID)
	fmt.Fprintf(w, "  summary: %s\n", ev.Summary)
	if ev.Start != nil {
		fmt.Fprintf(w, "  start:   %s\n", ev.Start)
	}
	if ev.End != nil {
		fmt.Fprintf(w, "  end:     %s\n", ev.End)
	}
	if ev.RecurrenceID != nil {
		fmt.Fprintf(w, "  recurrence-id: %s\n", ev.RecurrenceID)
	}
	if ev.Location != "" {
		fmt.Fprintf(w, "  location: %s\n", ev.Location)
	}
	if len(ev.Categories) > 0 {
		fmt.Fprintf(w, "  categories: %s\n", strings.Join(ev.Categories, ", "))
	}
}
