package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/macropower/resc/api"
	"github.com/macropower/resc/api/v1beta1/configs"
	"github.com/macropower/resc/pkg/rule"
	"github.com/macropower/resc/pkg/yaml"
)

const evalExamples = `  # Show the tasks produced for a task pushed to trt/plantA/todo:
  resc eval trt/plantA/todo job/42`

type evalOutput struct {
	Task    string      `json:"task"`
	Queue   string      `json:"queue"`
	Error   string      `json:"error,omitempty"`
	Matches []evalMatch `json:"matches"`
}

type evalMatch struct {
	Rule    string        `json:"rule"`
	Results []rule.Result `json:"results"`
}

func NewEvalCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:     "eval <input-queue> <task>",
		Short:   "Show the tasks a watcher would produce, without touching Redis",
		Example: evalExamples,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, task := args[0], args[1]

			cfg, _, err := ra.LoadConfig()
			if err != nil {
				return err
			}

			idx := slices.IndexFunc(cfg.Watchers, func(w *configs.Watcher) bool {
				return w.InputQueue == queue
			})
			if idx < 0 {
				return fmt.Errorf("input queue %q is not watched", queue)
			}

			sets, err := cfg.Sets()
			if err != nil {
				return fmt.Errorf("compile rules: %w", err)
			}

			out := evalOutput{Task: task, Queue: queue, Matches: []evalMatch{}}

			matches, expandErr := sets[idx].Expand(cmd.Context(), task)
			for _, m := range matches {
				out.Matches = append(out.Matches, evalMatch{Rule: m.Rule.Name(), Results: m.Results})
			}
			if expandErr != nil {
				out.Error = expandErr.Error()
			}

			err = writeYAML(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}

			if expandErr != nil {
				return fmt.Errorf("expand %q: %w", task, expandErr)
			}

			return nil
		},
	}
}

// writeYAML encodes obj to w, highlighting it when w is a terminal.
func writeYAML(w io.Writer, obj any) error {
	b, err := api.MarshalYAML(obj)
	if err != nil {
		return err
	}

	s := string(b)
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		s = yaml.Colorize(b)
	}

	_, err = io.WriteString(w, s)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
