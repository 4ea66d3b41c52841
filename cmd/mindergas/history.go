package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show meter reading submissions",
	Long:  `Displays the meter reading submissions recorded for an installation, newest first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "Maximum number of entries to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	readings, err := db.ListReadings(inst.ID, historyLimit)
	if err != nil {
		return fmt.Errorf("listing readings: %w", err)
	}

	if len(readings) == 0 {
		fmt.Printf("No meter readings recorded for %s\n", inst.DisplayName())
		return nil
	}

	fmt.Printf("\n%s Meter Readings:\n", inst.DisplayName())
	fmt.Println("----------------------------------------------------------------")
	fmt.Printf("%-12s  %12s  %-8s  %s\n", "Date", "Reading", "Result", "Submitted")
	fmt.Println("----------------------------------------------------------------")

	var failed int
	for _, r := range readings {
		result := "✓"
		if !r.Success {
			result = "FAILED"
			failed++
		}
		fmt.Printf("%-12s  %12s  %-8s  %s\n",
			r.Date.Format("2006-01-02"), humanize.FormatFloat("#,###.###", r.Reading), result, humanize.Time(r.CreatedAt))
		if r.Error != "" {
			fmt.Printf("              %s\n", r.Error)
		}
	}

	fmt.Println("----------------------------------------------------------------")
	fmt.Printf("%d submissions, %d failed\n", len(readings), failed)
	return nil
}
