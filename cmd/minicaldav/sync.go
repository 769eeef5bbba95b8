package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jooooscha/minicaldav/internal/config"
	calsync "github.com/jooooscha/minicaldav/internal/sync"
)

func newSyncCmd(opts *globalOptions) *cobra.Command {
	var (
		weeks     int
		weeksPast int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Report which events changed since the previous sync",
		Long: `Discover the calendars, fetch the ones whose ctag changed and print the
resources that were added, changed or removed since the previous run.

The ctags and etags of each run are kept in a state file (--state).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("weeks") {
				s.cfg.SyncWindowWeeks = weeks
			}
			if cmd.Flags().Changed("weeks-past") {
				s.cfg.SyncWindowWeeksPast = weeksPast
			}
			if err := s.cfg.Validate(); err != nil {
				return err
			}

			cals, err := s.client.DiscoverCalendars(cmd.Context(), s.cfg.ServerURL)
			if err != nil {
				return fmt.Errorf("failed to discover calendars: %w", err)
			}

			syncer := calsync.NewSyncer(s.client, calsync.NewFileStateStore(s.cfg.StatePath), s.log,
				calsync.WithWindow(s.cfg.SyncWindowWeeks, s.cfg.SyncWindowWeeksPast))

			reports, err := syncer.Sync(cmd.Context(), eventCalendars(cals))
			printReports(cmd.OutOrStdout(), reports)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			for _, r := range reports {
				if r.Err != nil {
					return fmt.Errorf("%s could not be synced: %w", r.Calendar.Name(), r.Err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.flags.StatePath, "state", "", "Path of the sync state file (default "+config.DefaultStatePath+")")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "Weeks to sync, starting with the current one (0 means all)")
	cmd.Flags().IntVar(&weeksPast, "weeks-past", 0, "Weeks before the current one to sync")

	return cmd
}

func printReports(w io.Writer, reports []calsync.Report) {
	for _, r := range reports {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s: error: %v\n", r.Calendar.Name(), r.Err)
			continue
		case r.Unchanged:
			fmt.Fprintf(w, "%s: unchanged\n", r.Calendar.Name())
			continue
		}

		fmt.Fprintf(w, "%s: %d added, %d changed, %d removed, %d failed\n",
			r.Calendar.Name(), len(r.Added), len(r.Changed), len(r.Removed), len(r.Failed))
		for _, href := range r.Added {
			fmt.Fprintf(w, "  + %s\n", href)
		}
		for _, href := range r.Changed {
			fmt.Fprintf(w, "  ~ %s\n", href)
		}
		for _, href := range r.Removed {
			fmt.Fprintf(w, "  - %s\n", href)
		}
		for _, re := range r.Failed {
			fmt.Fprintf(w, "  ! %s: %v\n", re.Href, re.Err)
		}
	}
}
