// Package main provides the unified CLI entry point for the garden-hub services.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agrohub.dev/garden-hub/internal/robotsim"
)

var robotSimCmd = &cobra.Command{
	Use:   "robot-sim",
	Short: "Run a simulated robot platform",
	Long: `Run a simulated scanning robot that:
- Polls the hub for its desired command
- Runs a synthetic scan pass when commanded to start
- Submits scans, reports the stop, and clears the command cell`,
	RunE: runRobotSim,
}

func init() {
	rootCmd.AddCommand(robotSimCmd)

	// Simulator-specific flags
	robotSimCmd.Flags().String("hub-url", "http://localhost:8080", "base URL of the hub")
	robotSimCmd.Flags().String("robot-id", "", "robot identifier the operator bound in the bot")
	robotSimCmd.Flags().Duration("poll-interval", 5*time.Second, "command poll interval")
	robotSimCmd.Flags().StringSlice("plant-ids", nil, "QR plant labels the simulated camera recognizes")

	// Bind flags to viper
	_ = viper.BindPFlag("robotsim.hub_url", robotSimCmd.Flags().Lookup("hub-url"))
	_ = viper.BindPFlag("robotsim.robot_id", robotSimCmd.Flags().Lookup("robot-id"))
	_ = viper.BindPFlag("robotsim.poll_interval", robotSimCmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("robotsim.plant_ids", robotSimCmd.Flags().Lookup("plant-ids"))
}

func runRobotSim(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting robot simulator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim, err := robotsim.New(&robotsim.Config{
		Logger:       logger,
		HubURL:       viper.GetString("robotsim.hub_url"),
		RobotID:      viper.GetString("robotsim.robot_id"),
		PollInterval: viper.GetDuration("robotsim.poll_interval"),
		PlantIDs:     viper.GetStringSlice("robotsim.plant_ids"),
	})
	if err != nil {
		logger.Error("failed to create robot simulator", "error", err)
		return err
	}

	if err := sim.Run(ctx); err != nil {
		logger.Error("robot simulator error", "error", err)
		return err
	}

	logger.Info("robot simulator stopped")
	return nil
}
