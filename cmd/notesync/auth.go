package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"notesync/internal/domain"
	"notesync/internal/local"
)

func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:     "register <email>",
		GroupID: "account",
		Short:   "Create an account on the sync server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			if username == "" {
				username, _, _ = strings.Cut(args[0], "@")
			}

			err = a.transport("").Register(cmd.Context(), &domain.RegisterRequest{
				Username: username,
				Email:    args[0],
				Password: pw,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run 'notesync login %s' to start syncing.\n", args[0], args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (defaults to the email's local part)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:     "login <email>",
		GroupID: "account",
		Short:   "Log in and store the session locally",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}

			res, err := a.transport("").Login(ctx, &domain.LoginRequest{
				Email:    args[0],
				Password: pw,
				DeviceID: a.cfg.DeviceID,
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			sess := &local.Session{
				Token:     res.AccessToken,
				Email:     args[0],
				ExpiresAt: res.ExpiresAt.UnixMilli(),
			}
			if res.User != nil {
				sess.UserID = res.User.ID
			}
			if err := store.SetSession(ctx, sess); err != nil {
				return err
			}

			a.logger.Info(ctx, "logged in", "user_id", sess.UserID, "device_id", a.cfg.DeviceID)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		GroupID: "account",
		Short:   "End the session on the server and forget it locally",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}

			sess, err := store.GetSession(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}

			if err := a.transport(sess.Token).Logout(ctx); err != nil {
				// The local session is dropped regardless; a server that
				// cannot be reached will expire it on its own.
				a.logger.Warn(ctx, "server logout failed", "error", err)
			}
			if err := store.ClearSession(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
