package main

import (
	"context"
	"time"

	"shipnotify/internal/client"
	"shipnotify/internal/domain/notification"

	"github.com/spf13/cobra"
)

var sinceFlag string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch notifications missed since a cursor",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := accessToken()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		api := client.NewAPI(cfg.Realtime.BaseURL, token, cfg.Realtime.SyncLimit)
		items, lastID, err := api.SyncMissed(ctx, notification.ID(sinceFlag))
		if err != nil {
			return err
		}

		inbox := client.NewInbox()
		inbox.AddNotifications(items)
		inbox.SetLastSyncID(lastID)
		printInbox(inbox)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&sinceFlag, "since", "", "last notification id already seen")
}
