package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/tollgate/internal/config"
)

// app carries the state one command tree shares: its flag targets and its
// own viper instance, so that building a second tree starts clean.
type app struct {
	v       *viper.Viper
	cfgFile string
	dataDir string
	version string
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	a := &app{v: viper.New(), version: version}

	cmd := &cobra.Command{
		Use:   "tollgate",
		Short: "Issue and verify expiring access keys",
		Long: `Tollgate issues random access keys that stop working after a fixed lifetime.

Keys are kept in SQLite, MySQL or PostgreSQL. Admins mint keys over a JWT
protected API or from this CLI; clients present a key at the gate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./tollgate.yaml)")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory for the SQLite key store (default: ~/.tollgate)")

	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(a.newKeyCmd())
	cmd.AddCommand(a.newAdminCmd())
	cmd.AddCommand(a.newConfigCmd())

	return cmd
}

func (a *app) initConfig() {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("tollgate")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME/.tollgate")
	}

	config.SetDefaults(a.v)
	a.v.SetEnvPrefix("TOLLGATE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	a.v.ReadInConfig() // Ignore error - config file is optional
}
