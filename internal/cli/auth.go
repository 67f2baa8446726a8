package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"learnlab-client/internal/domain"
)

func newLoginCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login [username-or-email]",
		Short: "Sign in and persist the session",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.RunE = run(opts, func(ctx context.Context, rt *runtime, args []string) error {
		var username string
		if len(args) == 1 {
			username = args[0]
		} else if username, _ = rt.ask("Username or email: "); username == "" {
			return errors.New("username is required")
		}
		if password == "" {
			password, _ = rt.askSecret("Password: ")
		}
		user, err := rt.store.Login(ctx, username, password)
		if err != nil {
			return failure(rt.store.Err(), err)
		}
		rt.printf("Signed in as %s (%s)\n", user.Username, user.FullName)
		return nil
	})
	return cmd
}

func newRegisterCmd(opts *options) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Username, "username", "", "account username")
	cmd.Flags().StringVar(&reg.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (prompted when omitted)")
	cmd.RunE = run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
		if reg.Email == "" {
			reg.Email, _ = rt.ask("Email: ")
		}
		if reg.Username == "" {
			reg.Username, _ = rt.ask("Username: ")
		}
		if reg.FullName == "" {
			reg.FullName, _ = rt.ask("Full name: ")
		}
		if reg.Password == "" {
			reg.Password, _ = rt.askSecret("Password: ")
		}
		user, err := rt.store.Register(ctx, reg)
		if err != nil {
			return failure(rt.store.Err(), err)
		}
		rt.printf("Welcome, %s. You are signed in as %s\n", user.FullName, user.Username)
		return nil
	})
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the tokens",
		Args:  cobra.NoArgs,
		RunE: run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
			if _, err := rt.tokens.Restore(ctx); err != nil {
				return err
			}
			if err := rt.store.Logout(ctx); err != nil {
				return err
			}
			rt.printf("Signed out\n")
			return nil
		}),
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
			user, err := rt.requireUser(ctx)
			if err != nil {
				return err
			}
			rt.printf("%s\t%s\t%s\n", user.Username, user.Email, user.FullName)
			return nil
		}),
	}
}
