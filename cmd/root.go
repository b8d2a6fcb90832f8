// Package cmd contains the zops-audience CLI commands.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBindPFlag attempts to bind a specific key to a pflag (as used by
// cobra) and panics if the binding fails with a non-nil error.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zops-audience",
		Short: "The zops segment residency worker",
		Long:  "An RPC worker that resolves segment residency definitions into push-notification audiences.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			viper.SetEnvPrefix("ZOPS")
			viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
			viper.AutomaticEnv()
		},
	}

	return cmd
}
