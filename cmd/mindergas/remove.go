package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/publisher"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an installation",
	Long: `Deletes an installation and its meter reading history. When MQTT is enabled the
Home Assistant discovery entries of the installation are removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	inst, err := findInstallation(db, args[0])
	if err != nil {
		return err
	}

	if cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("creating MQTT publisher: %w", err)
		}
		err = pub.RemoveDiscovery(*inst)
		pub.Close()
		if err != nil {
			return fmt.Errorf("removing discovery entries: %w", err)
		}
	}

	if err := db.DeleteInstallation(inst.ID); err != nil {
		return fmt.Errorf("deleting installation: %w", err)
	}

	fmt.Printf("✓ Removed installation %s (%s)\n", inst.ID, inst.DisplayName())
	return nil
}
