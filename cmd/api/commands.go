package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yigit/libris/internal/bootstrap"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/seed"
	"github.com/yigit/libris/internal/server"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "libris",
		Short:         "Library catalog and circulation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", bootstrap.DefaultConfigPath, "path to the YAML config file")

	serve := newServeCommand(&configPath)
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		newMigrateCommand(&configPath),
		newSeedCommand(&configPath),
		newCreateAdminCommand(&configPath),
	)
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := server.NewServer(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			return srv.Run()
		},
	}
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the %s driver, got %q", config.DriverPostgres, cfg.Database.Driver)
			}

			store, err := bootstrap.SetupStore(cmd.Context(), cfg, true, lgr)
			if err != nil {
				return err
			}
			defer store.Close()

			lgr.Info().Msg("Database migrations successfully applied.")
			return nil
		},
	}
}

func newSeedCommand(configPath *string) *cobra.Command {
	var sampleBooks bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin and, optionally, a sample catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(*configPath)
			if err != nil {
				return err
			}
			if cfg.Seed.AdminPassword == "" {
				return errors.New("seed.admin_password (SEED_ADMIN_PASSWORD) must be set")
			}

			store, err := bootstrap.SetupStore(cmd.Context(), cfg, true, lgr)
			if err != nil {
				return err
			}
			defer store.Close()

			return bootstrap.SeedDefaultData(cmd.Context(), cfg, store, sampleBooks, lgr)
		},
	}
	cmd.Flags().BoolVar(&sampleBooks, "sample-books", false, "also add a small starter catalog")
	return cmd
}

func newCreateAdminCommand(configPath *string) *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("create-admin requires the %s driver", config.DriverPostgres)
			}

			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			store, err := bootstrap.SetupStore(cmd.Context(), cfg, true, lgr)
			if err != nil {
				return err
			}
			defer store.Close()

			admin, err := seed.CreateAdmin(cmd.Context(), store.Repos.UserRepository, seed.Admin{
				Username: username,
				Email:    email,
				Password: password,
			}, lgr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %q ready (id %d)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads the password twice without echo
func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("create-admin must be run from a terminal")
	}

	read := func(prompt string) (string, error) {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	password, err := read("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
