package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/mindergas/internal/sensor"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <id>",
	Short: "Fetch the latest statistics for an installation",
	Long: `Runs one refresh cycle against MinderGas and prints the resulting sensor values.
Nothing is published or stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
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

	client := newAPIClient(cfg, inst.APIKey, nil)
	defer client.Close()

	st := state.New(inst.ID, inst.APIKey)
	res := updater.New(*inst, client, st, logger).Refresh(cmd.Context())

	fmt.Printf("\n%s (%s): %s\n", inst.DisplayName(), inst.ShortID(), res.Outcome())
	fmt.Println("----------------------------------------------------")
	for _, r := range sensor.Render(st.Snapshot()) {
		value := r.Value.State()
		if r.Value.Unit != "" {
			value += " " + r.Value.Unit
		}
		fmt.Printf("%-30s  %s\n", r.Name, value)
	}
	fmt.Println("----------------------------------------------------")

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d requests failed (see log for details)", res.Failed, res.Fetched+res.Empty+res.Failed)
	}
	if res.Empty > 0 {
		fmt.Printf("%d statistic(s) not available yet\n", res.Empty)
	}
	return nil
}
