package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/presence-desk/internal/domain"
	"github.com/spec-kit/presence-desk/internal/service"
	"github.com/spec-kit/presence-desk/internal/tracker"
)

func statusesCmd(configFile *string) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "statuses",
		Short: "Resolve and print the status id map of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile, "statuses")
			if err != nil {
				return err
			}
			defer rt.logger.Sync() //nolint:errcheck

			settings := rt.resolver.TrackerSettings()
			if project == "" {
				project = settings.StaffProjectID
			}
			client := tracker.NewClient(settings, rt.cfg.Desk.TrackerTimeout, rt.logger.Named("tracker"), rt.metrics)
			directory := service.NewStatusDirectory(client, settings.StatusIDs, rt.logger.Named("statuses"))

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ids := directory.Resolve(ctx, project)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project %s\n", project)
			for _, key := range domain.StatusKeys {
				fmt.Fprintf(out, "  %-10s %d\n", key, ids.ID(key))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id (defaults to projectIds.staff)")
	return cmd
}
