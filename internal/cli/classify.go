package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nevindra/docmind/classify"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify [file...]",
	Short: "Show which stream each file would be routed to",
	Long: `Runs the routing cascade only. No capability is called and nothing is
written. The configured domain profile, if any, is applied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(classifyCmd)
}

type classification struct {
	File   string `json:"file"`
	Stream string `json:"stream"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var opts []classify.Option
	if cfg.Domain.Profile != "" {
		p, err := classify.LookupProfile(cfg.Domain.Profile)
		if err != nil {
			return err
		}
		opts = append(opts, classify.WithProfile(p))
	}
	cascade := classify.New(opts...)

	out := make([]classification, 0, len(args))
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		name := filepath.Base(path)
		out = append(out, classification{File: name, Stream: string(cascade.Classify(content, name))})
	}

	if classifyJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	for _, c := range out {
		cmd.Printf("%s\tStream %s\n", c.File, c.Stream)
	}
	return nil
}
