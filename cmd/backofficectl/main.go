package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"storefront/backoffice/internal/client"

	"github.com/spf13/cobra"
)

const defaultAPI = "http://localhost:8080"

// app carries what every command needs.
type app struct {
	store  *client.SessionStore
	out    io.Writer
	apiURL string
	asJSON bool
}

// session loads the saved session and a client for the API it was issued by.
// An explicit --api flag wins over the saved URL.
func (a *app) session(cmd *cobra.Command) (*client.Client, *client.Session, error) {
	baseURL, s, err := a.store.Load()
	if errors.Is(err, client.ErrNoSession) {
		return nil, nil, client.ErrNotAuthenticated
	}
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("api") || baseURL == "" {
		baseURL = a.apiURL
	}
	return client.New(baseURL), s, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "backofficectl",
		Short:         "Storefront backoffice CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("BACKOFFICE_API", defaultAPI), "Backoffice API base URL")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print raw JSON")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProductsCmd(a),
		newOrdersCmd(a),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	store, err := client.DefaultSessionStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a := &app{store: store, out: os.Stdout}
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
