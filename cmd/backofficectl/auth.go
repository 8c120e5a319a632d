package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"storefront/backoffice/internal/client"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BACKOFFICE_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			c := client.New(a.apiURL)
			session, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.store.Save(c.BaseURL(), session); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.Flags().StringVar(&password, "password", "", "Password (or BACKOFFICE_PASSWORD)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, s, err := a.store.Load(); err == nil {
				s.Clear()
			}
			if err := a.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the operator behind the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			if claims := s.Claims(); claims != nil && claims.Expired(time.Now()) {
				return fmt.Errorf("session expired at %s; run login again", claims.ExpiresAt.Format(time.RFC3339))
			}
			user, err := c.Me(cmd.Context(), s)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(user)
			}
			fmt.Fprintf(a.out, "%s (%s)\n", user.Email, user.ID)
			if claims := s.Claims(); claims != nil && !claims.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "token expires %s\n", claims.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
