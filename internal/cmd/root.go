package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weftlabs/weft/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "File-based AI agent workflow engine",
	Long: `Weft coordinates a pipeline of AI agents through filesystem mailboxes.
Prompts are queued as markdown files, agents poll their inboxes and write
hash-verified results, and each feature advances through a reviewable
lifecycle backed by a dedicated git worktree.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/weft/.weftrc)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.ConfigFileName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WEFT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., WEFT_AI_API_KEY for ai.api_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
