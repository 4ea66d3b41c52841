package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured installations",
	Long:  `Displays all installations stored in the database with their schedules.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	installs, err := db.ListInstallations()
	if err != nil {
		return fmt.Errorf("listing installations: %w", err)
	}

	if len(installs) == 0 {
		fmt.Println("No installations configured. Run 'mindergas setup --api-key <key>' to add one.")
		return nil
	}

	fmt.Println("------------------------------------------------------------------------")
	fmt.Printf("%-10s  %-20s  %-8s  %-14s  %s\n", "ID", "Name", "Stats", "Post", "Added")
	fmt.Println("------------------------------------------------------------------------")

	for _, inst := range installs {
		stats := "off"
		if inst.UpdateStats {
			stats = inst.UpdateTime
		}

		post := "off"
		switch {
		case inst.PostMeterReading && inst.RandomizePostTime:
			post = "random"
		case inst.PostMeterReading:
			post = inst.PostTime
		}

		fmt.Printf("%-10s  %-20s  %-8s  %-14s  %s\n",
			inst.ShortID(), inst.DisplayName(), stats, post, humanize.Time(inst.CreatedAt))
	}

	fmt.Println("------------------------------------------------------------------------")
	fmt.Printf("%d installation(s)\n", len(installs))
	return nil
}
