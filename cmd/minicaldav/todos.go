package main

import (
	"fmt"
	"io"
	"sort"

	goical "github.com/emersion/go-ical"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jooooscha/minicaldav/caldav"
)

func newTodosCmd(opts *globalOptions) *cobra.Command {
	var (
		all    bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "todos [CALENDAR]",
		Short: "Print the to-dos of the task calendars",
		Long: `Print the to-dos of every calendar that can hold VTODOs.

Completed and cancelled to-dos are hidden unless --all is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			failures := 0
			for _, cal := range cals {
				if !cal.Supports(goical.CompToDo) {
					continue
				}
				todos, resErrs, err := s.client.FetchTodos(cmd.Context(), cal)
				if err != nil {
					return fmt.Errorf("failed to fetch to-dos of %s: %w", cal.Name(), err)
				}
				for _, re := range resErrs {
					s.log.WithFields(logrus.Fields{
						"calendar": cal.Name(),
						"href":     re.Href,
					}).WithError(re.Err).Warn("skipping resource")
				}
				failures += len(resErrs)
				printTodos(cmd.OutOrStdout(), cal, todos, all)
			}

			if strict && failures > 0 {
				return fmt.Errorf("%d resources could not be read", failures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include completed and cancelled to-dos")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any resource could not be read")

	return cmd
}

func done(td caldav.Todo) bool {
	return td.Status == "COMPLETED" || td.Status == "CANCELLED" || td.Completed != nil
}

// printTodos lists open to-dos by due date; undated ones come last.
func printTodos(w io.Writer, cal caldav.Calendar, todos []caldav.Todo, all bool) {
	var shown []caldav.Todo
	for _, td := range todos {
		if all || !done(td) {
			shown = append(shown, td)
		}
	}
	fmt.Fprintf(w, "%s (%d to-dos)\n", cal.Name(), len(shown))

	sort.SliceStable(shown, func(i, j int) bool {
		a, b := shown[i].Due, shown[j].Due
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Time.Before(b.Time)
	})

	for _, td := range shown {
		mark := "[ ]"
		if done(td) {
			mark = "[x]"
		}
		line := fmt.Sprintf("  %s %s", mark, td.Summary)
		if td.Due != nil {
			line += " (due " + td.Due.String() + ")"
		}
		if td.Priority > 0 {
			line += fmt.Sprintf(" !%d", td.Priority)
		}
		fmt.Fprintln(w, line)
	}
}
