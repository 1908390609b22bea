package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zoomi/household-auth/internal/client"
	"github.com/zoomi/household-auth/internal/config"
	"github.com/zoomi/household-auth/internal/identity"
	"github.com/zoomi/household-auth/internal/localstore"
	"github.com/zoomi/household-auth/internal/pairing"
)

// app is the device core assembled once per command invocation.
type app struct {
	local    *localstore.SQLiteStore
	identity *client.IdentityClient
	gateway  *client.GatewayClient
	pairing  *pairing.Service
	store    *identity.Store
}

var (
	backendURL string
	storePath  string
	device     *app
)

var rootCmd = &cobra.Command{
	Use:   "device",
	Short: "Zoomi device identity CLI",
	Long: `device drives the device side of Zoomi sign-in and pairing.

Example usage:
  device status                          # Resolve and print who is using this device
  device signin --email a@b.c --password secret1
  device pair ABC234                     # Link this device to a child
  device use <childID>                   # Parent: choose the child to view
  device code <childID>                  # Show a linking code for a child
  device watch                           # Follow identity changes until Ctrl-C`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeApp()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL (default from ZOOMI_BACKEND_URL)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "device store file (default from ZOOMI_STORE_PATH)")
}

func initApp() error {
	cfg, err := config.LoadDevice()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}

	setupLogging(cfg.LogLevel)

	device, err = newApp(cfg)
	return err
}

func newApp(cfg *config.DeviceConfig) (*app, error) {
	local, err := localstore.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening device store: %w", err)
	}

	base := client.New(cfg.BackendURL, cfg.RequestTimeout(), local)
	identityClient := client.NewIdentityClient(base)
	gatewayClient := client.NewGatewayClient(base)
	pairingService := pairing.NewService(gatewayClient, local)

	return &app{
		local:    local,
		identity: identityClient,
		gateway:  gatewayClient,
		pairing:  pairingService,
		store:    identity.NewStore(identityClient, gatewayClient, pairingService),
	}, nil
}

func closeApp() {
	if device == nil {
		return
	}
	device.store.Close()
	if err := device.local.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close device store")
	}
	device = nil
}

// start runs the cold-start resolution. A resolution fault is not fatal: the
// state still holds the identity to land on.
func (a *app) start(ctx context.Context) identity.State {
	if err := a.store.Start(ctx); err != nil {
		log.Debug().Err(err).Msg("cold start resolution reported a fault")
	}
	return a.store.Snapshot()
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
