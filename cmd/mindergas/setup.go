package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/setup"
)

var (
	setupAPIKey  string
	setupOptions optionFlags
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Add a MinderGas installation",
	Long: `Validates the API key against MinderGas and stores a new installation.

The API key can be found on the MinderGas website under "Mijn account" > "API".
Each key can only be configured once.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupAPIKey, "api-key", "", "MinderGas API key (required)")
	_ = setupCmd.MarkFlagRequired("api-key")
	setupOptions.register(setupCmd)
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	validate := setup.ClientValidator(func(apiKey string) *mindergas.Client {
		return newAPIClient(cfg, apiKey, nil)
	})

	inst, err := setup.Register(cmd.Context(), db, validate, setupOptions.installation(setupAPIKey))
	switch {
	case errors.Is(err, setup.ErrAlreadyConfigured):
		return fmt.Errorf("this API key is already configured")
	case errors.Is(err, setup.ErrInvalidAuth):
		return fmt.Errorf("MinderGas rejected the API key: %w", err)
	case errors.Is(err, setup.ErrCannotConnect):
		return fmt.Errorf("could not reach MinderGas: %w", err)
	case err != nil:
		return err
	}

	fmt.Printf("✓ Added installation %s (%s)\n", inst.ID, inst.DisplayName())
	printOptions(inst)
	return nil
}
