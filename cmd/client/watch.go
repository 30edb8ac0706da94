package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipnotify/internal/client"
	"shipnotify/internal/domain/notification"
	"shipnotify/internal/realtime"

	"github.com/spf13/cobra"
)

const clearExpiredEvery = 5 * time.Minute

var (
	watchShipments []string
	noBanners      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and print notifications as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := accessToken()
		if err != nil {
			return err
		}
		rt := cfg.Realtime

		inbox := client.NewInbox()
		cache := client.NewQueryCache()
		api := client.NewAPI(rt.BaseURL, token, rt.SyncLimit)
		router := realtime.NewEventRouter(inbox, cache, client.NewLogPresenter(slog.Default(), !noBanners))

		mgr := realtime.NewManager(realtime.Options{
			Dialer: realtime.NewWebSocketDialer(rt.WSURL, rt.HandshakeTimeout),
			Syncer: api,
			Inbox:  inbox,
			Router: router,
			Policy: realtime.Policy{
				BaseDelay:   rt.BaseDelay,
				CapDelay:    rt.CapDelay,
				MaxAttempts: rt.MaxAttempts,
			},
			Heartbeat: rt.Heartbeat,
		})
		defer mgr.Close()

		mgr.AddListener(inbox.SetConnectionStatus)
		mgr.AddListener(func(s realtime.ConnectionStatus) {
			fmt.Printf("[%s] %s\n", client.LabelFor(s), s)
			if s == realtime.StatusConnected {
				for _, tn := range watchShipments {
					if err := mgr.Subscribe(tn); err != nil {
						slog.Warn("shipment subscription failed", "tracking_number", tn, "error", err)
					}
				}
				fmt.Printf("%d unread\n", inbox.UnreadCount())
			}
		})

		if err := mgr.Connect(token); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ticker := time.NewTicker(clearExpiredEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "disconnecting")
				_ = mgr.Disconnect()
				printInbox(inbox)
				inbox.Reset()
				return nil
			case <-ticker.C:
				if n := inbox.ClearExpired(); n > 0 {
					slog.Info("expired notifications cleared", "count", n)
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchShipments, "shipment", nil, "tracking numbers to follow (repeatable)")
	watchCmd.Flags().BoolVar(&noBanners, "no-banners", false, "do not show notification banners")
}

func printInbox(inbox *client.Inbox) {
	items := inbox.List(notification.Filters{})
	fmt.Printf("%d notifications, %d unread, cursor %q\n", len(items), inbox.UnreadCount(), inbox.LastSyncID())
	for _, n := range items {
		fmt.Printf("  %s  %-8s %-22s %s\n", n.Timestamp.Local().Format(time.DateTime), n.Priority, n.Type, n.Title)
	}
}
