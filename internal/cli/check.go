package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/macropower/resc/api/v1beta1/configs"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	queueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func NewCheckCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and summarize its watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := ra.LoadConfig()
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %q: %w", path, err)
			}

			return printSummary(cmd.OutOrStdout(), path, info, cfg)
		},
	}
}

func printSummary(w io.Writer, path string, info os.FileInfo, cfg *configs.Config) error {
	sets, err := cfg.Sets()
	if err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}

	b := &strings.Builder{}

	fmt.Fprintf(b, "%s %s\n", headerStyle.Render(path), faintStyle.Render(fmt.Sprintf(
		"(%s, modified %s)",
		humanize.Bytes(uint64(info.Size())), //nolint:gosec // G115: sizes are never negative.
		humanize.Time(info.ModTime()),
	)))

	rules, warnings := 0, 0
	for i, w := range cfg.Watchers {
		set := sets[i]
		rules += set.Len()

		fmt.Fprintf(b, "\n%s %s %s\n",
			queueStyle.Render(w.InputQueue),
			faintStyle.Render("taken by"),
			queueStyle.Render(w.TakenQueue),
		)

		for _, r := range set.Rules() {
			fmt.Fprintf(b, "  - %s: %s -> %s\n", r.Name(), r.Pattern(), r.Queue().Raw())

			for _, name := range r.Unresolved() {
				warnings++
				fmt.Fprintf(b, "    %s\n", warnStyle.Render(fmt.Sprintf(
					"warning: ${%s} is not a named group and will be left as is", name,
				)))
			}
		}
	}

	fmt.Fprintf(b, "\n%s rules in %s watchers, %s warnings\n",
		humanize.Comma(int64(rules)),
		humanize.Comma(int64(len(cfg.Watchers))),
		humanize.Comma(int64(warnings)),
	)

	_, err = io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}
