package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCalendarsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars of the configured account",
		Args:  cobra.NoArgs,
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
			s.log.WithField("count", len(cals)).Debug("discovered calendars")

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOMPONENTS\tCTAG\tURL")
			for _, cal := range cals {
				components := strings.Join(cal.Components, ",")
				if components == "" {
					components = "-"
				}
				ctag := cal.CTag
				if ctag == "" {
					ctag = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cal.Name(), components, ctag, cal.URL)
			}
			return w.Flush()
		},
	}
}
