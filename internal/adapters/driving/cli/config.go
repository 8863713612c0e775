package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every config key and value",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one config value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set one config value",
	Long: `Sets a dotted config key (e.g. workers.count, hybrid.alpha,
cache.ttl) and writes the config file. Durations accept Go syntax
("30s", "720h"); booleans accept true/false.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore compiled-in defaults",
	RunE:  runConfigReset,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	for _, kv := range configStore.List() {
		cmd.Printf("%-24s %s\n", kv.Key, kv.Value)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	value, err := configStore.Get(args[0])
	if err != nil {
		return usageErrorf("%v", err)
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if err := configStore.Set(args[0], args[1]); err != nil {
		return usageErrorf("%v", err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runConfigReset(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if err := configStore.Reset(); err != nil {
		return err
	}
	cmd.Printf("reset %s to defaults\n", configStore.Path())
	return nil
}
