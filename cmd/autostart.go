package main

import (
	"fmt"
	"os"
	"path/filepath"

	"studytimer/internal/platform"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting the host bridge at login",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start `studytimer serve` at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		command := []string{execPath, "serve", "--config", configPath}
		if err := platform.NewService().EnableAutostart(appName, command); err != nil {
			return err
		}
		logger.Info("Autostart enabled", zap.Strings("command", command))
		fmt.Fprintln(cmd.OutOrStdout(), "Autostart enabled.")
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop starting the host bridge at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := platform.NewService().DisableAutostart(appName); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled.")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether autostart is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := platform.NewService().AutostartEnabled(appName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled: %t\n", enabled)
		return nil
	},
}

func init() {
	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
}
