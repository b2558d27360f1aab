package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nevindra/docmind"
	"github.com/nevindra/docmind/dispatch"
)

var (
	processStream      string
	processInstruction string
	processQuery       string
	processJSON        bool
)

var processCmd = &cobra.Command{
	Use:   "process [file...]",
	Short: "Classify and process documents",
	Long: `Routes each file to its stream and prints the result. With --stream the
cascade is skipped and every file goes to the named stream. Several files
are processed concurrently up to [limits] concurrency.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processStream, "stream", "s", "", "force a stream (A, B, C or D)")
	processCmd.Flags().StringVarP(&processInstruction, "instruction", "i", "", "transformation instruction for Stream A")
	processCmd.Flags().StringVarP(&processQuery, "query", "q", "", "question for Stream D, focus hint for Stream C")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(processCmd)
}

type processed struct {
	File string `json:"file"`
	docmind.Result
}

func runProcess(cmd *cobra.Command, args []string) error {
	tag := docmind.StreamTag(strings.ToUpper(processStream))
	if processStream != "" && !tag.Valid() {
		return fmt.Errorf("unknown stream %q", processStream)
	}

	reqs := make([]dispatch.Request, 0, len(args))
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		reqs = append(reqs, dispatch.Request{
			Document:    docmind.Document{Filename: filepath.Base(path), Content: content},
			Instruction: processInstruction,
			Query:       processQuery,
		})
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx) //nolint:errcheck

	var results []docmind.Result
	if tag != "" {
		results = make([]docmind.Result, len(reqs))
		for i, req := range reqs {
			results[i] = a.Dispatcher.Run(ctx, tag, req)
		}
	} else {
		results = a.Dispatcher.ProcessAll(ctx, reqs, a.Concurrency())
	}

	out := make([]processed, len(results))
	failed := 0
	for i, res := range results {
		out[i] = processed{File: reqs[i].Document.Filename, Result: res}
		if res.Status == docmind.StatusError {
			failed++
		}
	}

	if processJSON {
		if err := outputProcessJSON(cmd, out); err != nil {
			return err
		}
	} else {
		outputProcessText(cmd, out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed", failed, len(out))
	}
	return nil
}

func outputProcessJSON(cmd *cobra.Command, out []processed) error {
	var v any = out
	if len(out) == 1 {
		v = out[0]
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputProcessText(cmd *cobra.Command, out []processed) {
	for _, p := range out {
		cmd.Printf("[%s] %s: %s\n", p.Stream, p.File, p.Status)
		if p.Message != "" {
			cmd.Printf("  %s\n", p.Message)
		}
		if p.Data == nil {
			continue
		}
		data, err := json.MarshalIndent(p.Data, "  ", "  ")
		if err != nil {
			continue
		}
		cmd.Printf("  %s\n", data)
	}
}
