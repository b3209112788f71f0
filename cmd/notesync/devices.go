package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		GroupID: "account",
		Short:   "Show the account this device is logged in as",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx, store)
			if err != nil {
				return err
			}

			user, err := a.transport(sess.Token).Me(ctx)
			if err != nil {
				return explainSyncError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> on device %s\n", user.Username, user.Email, a.cfg.DeviceID)
			return nil
		},
	}
}

func newDevicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		GroupID: "account",
		Short:   "List devices logged in to this account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx, store)
			if err != nil {
				return err
			}

			devices, err := a.transport(sess.Token).Devices(ctx)
			if err != nil {
				return explainSyncError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tDEVICE\tSINCE\t")
			for _, d := range devices {
				mark := ""
				if d.Current {
					mark = "(this device)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.SessionID, d.DeviceID, d.CreatedAt.Local().Format(time.DateTime), mark)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <session-id>",
		Short: "Sign a device out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			sess, err := a.session(ctx, store)
			if err != nil {
				return err
			}

			if err := a.transport(sess.Token).RevokeDevice(ctx, args[0]); err != nil {
				return explainSyncError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", args[0])
			return nil
		},
	})

	return cmd
}
