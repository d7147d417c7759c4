package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DrSkyle/tagguard/pkg/config"
	"github.com/DrSkyle/tagguard/pkg/engine"
	"github.com/DrSkyle/tagguard/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "tagguard",
	Short: "Tag compliance and remediation for AWS accounts",
	Long: `TagGuard - Tag Compliance Engine

Evaluate. Classify. Remediate.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.tagguard.yaml)")
	flags.String("region", config.DefaultRegion, "AWS Region")
	flags.String("profile", "", "AWS shared config profile")
	flags.String("account", "", "Account name override used for classification")
	flags.String("policy", "", "Tag policy YAML file")
	flags.Bool("json-logs", true, "Emit JSON logs")
	flags.BoolP("verbose", "v", false, "Log every AWS API call")

	bindFlags(flags, map[string]string{
		"region":    "region",
		"profile":   "profile",
		"account":   "account",
		"policy":    "policy_file",
		"json-logs": "json_logs",
		"verbose":   "verbose",
	})

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(permissionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.SetConfigFile(filepath.Join(home, ".tagguard.yaml"))
			v.SetConfigType("yaml")
		}
	}
	if err := v.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

// loadSettings decodes the merged configuration and installs the default logger.
func loadSettings() (config.Settings, *slog.Logger, error) {
	s, err := config.Load(v)
	if err != nil {
		return config.Settings{}, nil, err
	}

	level := slog.LevelInfo
	if s.Verbose {
		level = slog.LevelDebug
	}
	opts := engine.RedactingHandlerOptions(level)
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if s.JSONLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return s, logger, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF99")).
			MarginBottom(1)

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
)

func renderHelp(cmd *cobra.Command) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("TAGGUARD %s", version.Current)))
	fmt.Println(cmd.Short)
	fmt.Println()

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Println(titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Println()
	}

	if cmd.Example != "" {
		fmt.Println(titleStyle.Render("EXAMPLES"))
		fmt.Println(cmd.Example)
		fmt.Println()
	}

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "[]" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println()
}
