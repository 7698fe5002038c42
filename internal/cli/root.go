package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/ipdd/internal/model"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool

	cfg        *model.Config
	configUsed string
	logger     = zap.NewNop()
)

// skipConfigAnnotation marks commands that run on defaults even when the
// config file cannot be read
const skipConfigAnnotation = "ipdd/skip-config"

// envBindings maps config keys to the environment variables that may set
// them, in priority order. IPDD_<KEY> is always bound as well.
var envBindings = map[string][]string{
	"llm.api_key":    {"IPDD_LLM_API_KEY"},
	"agent.api_key":  {"IPDD_AGENT_API_KEY", "AGI_API_KEY"},
	"agent.base_url": {"IPDD_AGENT_BASE_URL", "AGI_API_URL"},
	"output.dir":     {"IPDD_OUTPUT_DIR"},
	"llm.provider":   {"IPDD_LLM_PROVIDER"},
	"llm.model":      {"IPDD_LLM_MODEL"},
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ipdd",
	Short: "ipdd - cited due-diligence reports for life-sciences IP",
	Long: `ipdd turns a university technology record into a structured
due-diligence report with medical and scientific citations.

Every citation in a generated report is checked against an admissibility
policy. Rejected citations are blanked, the value they supported is nulled
and a data gap is recorded, so what remains is traceable to a source.

ipdd does not judge medical correctness. It only post-processes what the
model returned.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, used, err := loadConfig(cfgFile)
		if err != nil {
			if cmd.Annotations[skipConfigAnnotation] == "" {
				return err
			}
			loaded, used = model.DefaultConfig(), ""
		}
		cfg, configUsed = loaded, used
		if verbose {
			cfg.Output.Verbose = true
		}

		logger, err = newLogger(cfg.Output.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command. Cancelling ctx stops the running command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ipdd v%s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ipdd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers the config file and environment over the defaults. A
// missing default config file is not an error; a missing explicit one is.
func loadConfig(path string) (*model.Config, string, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".ipdd"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("IPDD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}

	c := model.DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(c)
	return c, v.ConfigFileUsed(), nil
}

// applyProviderEnv fills the provider credentials from the provider's own
// environment variables when the config leaves them empty
func applyProviderEnv(c *model.Config) {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func banner(title string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
}
