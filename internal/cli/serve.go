package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/config"
	"github.com/roach88/listsync/internal/devserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	Secret string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference remote store",
		Long: `Run an in-memory remote store serving every kind over REST.

Collections are seeded from the config's devserver.seed and users from
devserver.users. Data is lost on exit. POST /admin/reset restores the seed
and /admin/faults injects failures for testing clients.

Examples:
  listsync serve
  listsync serve --addr 127.0.0.1:3001
  listsync serve --config listsync.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "token signing secret (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	srv, err := newDevserver(cfg, opts)
	if err != nil {
		return err
	}

	addr := cfg.Devserver.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan string, 1)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		if bound, ok := <-ready; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", bound)
		}
	}()

	err = srv.Serve(ctx, addr, ready)
	close(ready)
	<-printed
	if err != nil {
		return WrapExitError(ExitFailure, "devserver failed", err)
	}
	return nil
}

func newDevserver(cfg config.Config, opts *ServeOptions) (*devserver.Server, error) {
	kinds, err := loadKinds(cfg.Kinds)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load kinds", err)
	}
	seed, err := cfg.Devserver.SeedFields()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid seed", err)
	}

	users := make([]devserver.User, len(cfg.Devserver.Users))
	for i, u := range cfg.Devserver.Users {
		users[i] = devserver.User{Username: u.Username, Name: u.Name, Password: u.Password}
	}

	secret := cfg.Devserver.Secret
	if opts.Secret != "" {
		secret = opts.Secret
	}

	srv, err := devserver.New(devserver.Config{
		Kinds:    kinds,
		Users:    users,
		Seed:     seed,
		Secret:   []byte(secret),
		TokenTTL: cfg.Devserver.TokenTTL,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start devserver", err)
	}
	return srv, nil
}
