package cli

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/nevindra/docmind/internal/config"
)

var configHealth bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Prints the configuration after defaults, the config file and environment
variables are applied. Secrets are masked. With --health, builds every
capability and reports whether it is configured.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configHealth, "health", false, "report capability health as JSON")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	if configHealth {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx) //nolint:errcheck

		data, err := json.MarshalIndent(a.Health(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal health: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	redact(&cfg)
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}

func redact(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Completion.APIKey,
		&cfg.Embedding.APIKey,
		&cfg.Layout.APIKey,
		&cfg.Artifacts.SecretKey,
		&cfg.Index.DSN,
	} {
		if *s != "" {
			*s = "****"
		}
	}
}
