package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/homeassistant"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
)

var postCmd = &cobra.Command{
	Use:   "post <id>",
	Short: "Post today's meter reading now",
	Long: `Reads the configured meter sensor from Home Assistant and submits its value to
MinderGas for today's date. Requires the home_assistant section in config.yaml.

Every attempt is recorded; see 'mindergas history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPost,
}

func init() {
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}

	ha, err := homeassistant.NewClient(cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating Home Assistant client: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	inst, err := findInstallation(db, args[0])
	if err != nil {
		return err
	}

	client := newAPIClient(cfg, inst.APIKey, nil)
	defer client.Close()

	u := updater.New(*inst, client, state.New(inst.ID, inst.APIKey), logger,
		updater.WithStateLookup(ha),
		updater.WithReadingLog(db),
		updater.WithLocation(loc),
	)
	if err := u.PostReading(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("✓ Posted meter reading for %s\n", inst.DisplayName())
	return nil
}
