// Command contentd serves a content collection over TCP or vsock.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/contentauction/config"
	"github.com/cloudx-io/contentauction/ledger"
	"github.com/cloudx-io/contentauction/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "contentd",
		Short:         "Content collection daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd(), newKeygenCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	v := config.NewViper()
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the content wire protocol",
		Long: `Serves the content wire protocol: one JSON request per connection,
answered with one JSON response.

WARNING: requests are not authenticated. The acting account is the
request's "from" field, so any client that can connect can act as the
owner or spend approved buyer allowances. Do not expose the TCP listener
beyond trusted clients.

Settings are read from --config, then CONTENTD_* environment variables
(e.g. CONTENTD_CONTENT_OWNER), then flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml)")
	flags.String("listen-network", "tcp", "Listener type: tcp or vsock")
	flags.String("listen-address", "127.0.0.1:5000", "TCP listen address")
	flags.Uint32("vsock-port", 5000, "vsock listen port")
	flags.Int("max-workers", 16, "Connections served concurrently")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("dev", false, "Human readable development logging")
	flags.String("signing-key", "", "Path to the receipt signing key PEM (ephemeral key when empty)")

	bindFlags(v, cmd, map[string]string{
		config.KeyListenNetwork:  "listen-network",
		config.KeyListenAddress:  "listen-address",
		config.KeyVsockPort:      "vsock-port",
		config.KeyMaxWorkers:     "max-workers",
		config.KeyLogLevel:       "log-level",
		config.KeyDev:            "dev",
		config.KeySigningKeyPath: "signing-key",
	})
	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	keys, err := loadKeys(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := newServer(cfg, keys, ledger.SystemClock{}, logger)
	if err != nil {
		return err
	}

	listener, err := server.Listen(cfg.ListenNetwork, cfg.ListenAddress, cfg.VsockPort)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, listener)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
		return nil
	})
	return g.Wait()
}

func newKeygenCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen --out <path>",
		Short: "Generate a receipt signing key",
		Long: `Generates a P-256 receipt signing key. The private key is written to
--out and the public key PEM, as published by key_request, to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := server.NewKeyManager()
			if err != nil {
				return err
			}
			privateKeyPEM, err := keys.PrivateKeyPEM()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, privateKeyPEM, 0o600); err != nil {
				return fmt.Errorf("failed to write signing key: %w", err)
			}
			publicKeyPEM, err := keys.PublicKeyPEM()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), publicKeyPEM)
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Path to write the private key PEM (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
