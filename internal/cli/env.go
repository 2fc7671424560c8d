package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// bindEnvVars binds environment variables to the flags of cmd and all of its
// subcommands. Variable names are RESC_<FLAG_NAME>, with the flag name
// upper-cased and dashes replaced by underscores, e.g. "metrics-address"
// becomes RESC_METRICS_ADDRESS.
//
// Arguments take precedence over environment variables, which take
// precedence over default values. Flag usage is updated to mention the
// variable.
func bindEnvVars(cmd *cobra.Command) {
	bindFlagSet(cmd.PersistentFlags())
	bindFlagSet(cmd.LocalNonPersistentFlags())

	for _, sub := range cmd.Commands() {
		bindEnvVars(sub)
	}
}

func bindFlagSet(fs *pflag.FlagSet) {
	fs.VisitAll(bindFlagToEnv)
}

func bindFlagToEnv(flag *pflag.Flag) {
	envName := flagToEnvName(flag.Name)

	if !strings.Contains(flag.Usage, envName) {
		flag.Usage = fmt.Sprintf("%s ($%s)", flag.Usage, envName)
	}

	if flag.Changed {
		return
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok {
		return
	}

	err := flag.Value.Set(envValue)
	if err != nil {
		// Keep the default.
		slog.Error("failed to set flag from environment variable",
			slog.String("flag", flag.Name),
			slog.String("env", envName),
			slog.String("value", envValue),
			slog.Any("err", err),
		)
	}
}

// flagToEnvName converts a flag name to its environment variable name.
func flagToEnvName(flagName string) string {
	return strings.ToUpper(cmdName + "_" + strings.ReplaceAll(flagName, "-", "_"))
}
