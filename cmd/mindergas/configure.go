package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/setup"
	"github.com/jgoulah/mindergas/pkg/models"
)

var configureOptions optionFlags

var configureCmd = &cobra.Command{
	Use:   "configure <id>",
	Short: "Change the options of an installation",
	Long: `Updates the options of an existing installation. Only the flags given are changed.
The ID may be shortened to any unique prefix.

Changes take effect the next time 'mindergas run' starts.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigure,
}

func init() {
	configureOptions.register(configureCmd)
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
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

	updated, err := setup.Configure(db, inst.ID, configureOptions.changed(cmd))
	if err != nil {
		return err
	}

	fmt.Printf("✓ Updated installation %s (%s)\n", updated.ID, updated.DisplayName())
	printOptions(updated)
	return nil
}

// printOptions shows the schedule-related options of inst
func printOptions(inst *models.Installation) {
	if inst.UpdateStats {
		jitter := ""
		if inst.UpdateJitter > 0 {
			jitter = fmt.Sprintf(" (+ up to %d min)", inst.UpdateJitter)
		}
		fmt.Printf("  Statistics refresh: daily at %s%s\n", inst.UpdateTime, jitter)
	} else {
		fmt.Println("  Statistics refresh: disabled")
	}

	switch {
	case !inst.PostMeterReading:
		fmt.Println("  Meter reading post: disabled")
	case inst.RandomizePostTime:
		fmt.Printf("  Meter reading post: random time between %s and %s from %s\n",
			config.PostWindowStart, config.PostWindowEnd, inst.PostMeterEntityID)
	default:
		fmt.Printf("  Meter reading post: daily at %s from %s\n", inst.PostTime, inst.PostMeterEntityID)
	}
}
