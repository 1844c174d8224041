package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/subitise/internal/config"
	"github.com/verte-zerg/subitise/internal/export"
	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/report"
	"github.com/verte-zerg/subitise/internal/stats"
	"github.com/verte-zerg/subitise/internal/statsui"
	"github.com/verte-zerg/subitise/internal/store"
)

const defaultExportPath = "subitise-history.xlsx"

var (
	statsType        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	exportOut   string
	exportType  string
	exportSince string
	exportLast  int

	recommendAPIURL string
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsType, "type", "", "game type filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print plain text instead of the TUI")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	filter, err := parseHistoryFilter(statsType, statsSince, statsLast, statsCurveWindow)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if statsPlain || !isTerminal(os.Stdout) {
		return renderPlainStats(cmd.Context(), cmd.OutOrStdout(), st, filter)
	}

	program := tea.NewProgram(statsui.NewModel(st, filter), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlainStats(ctx context.Context, w io.Writer, st *store.Store, filter model.HistoryFilter) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := stats.BuildReport(ctx, st, filter)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := stats.RenderSummary(w, rep.Sessions, filter.CurveWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(rep.Sessions) == 0 {
		return nil
	}
	if err := stats.RenderAnswerTable(w, rep.AnswerAggsWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if rep.UnreportedSession > 0 {
		if _, err := fmt.Fprintf(w, "Unsent sessions: %d\n", rep.UnreportedSession); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export play history to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportOut, "out", defaultExportPath, "output file")
	cmd.Flags().StringVar(&exportType, "type", "", "game type filter")
	cmd.Flags().StringVar(&exportSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&exportLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(exportOut) == "" {
		return fmt.Errorf("--out must not be empty")
	}
	filter, err := parseHistoryFilter(exportType, exportSince, exportLast, 0)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sessions, err := st.ListSessions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	responses, err := st.ListResponses(ctx, stats.SessionIDs(sessions))
	if err != nil {
		return fmt.Errorf("failed to list responses: %w", err)
	}
	if err := export.WriteXLSX(exportOut, sessions, responses); err != nil {
		return err
	}
	logErrf("Wrote %d sessions to %s\n", len(sessions), exportOut)
	return nil
}

func newRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend [text]",
		Short: "Score feedback text against the recommendation model",
		RunE:  runRecommendCmd,
	}
	cmd.Flags().StringVar(&recommendAPIURL, "api-url", report.DefaultBaseURL, "results service URL")
	return cmd
}

func runRecommendCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "api-url", &recommendAPIURL, fileCfg.Report.APIURL)

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		return fmt.Errorf("feedback text is empty")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	scores := report.NewClient(recommendAPIURL).RecommendationsOrEmpty(ctx, text)
	return printScores(cmd.OutOrStdout(), scores)
}

func printScores(w io.Writer, scores map[string]float64) error {
	if len(scores) == 0 {
		_, err := fmt.Fprintln(w, "No recommendations.")
		return err
	}
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] == scores[names[j]] {
			return names[i] < names[j]
		}
		return scores[names[i]] > scores[names[j]]
	})
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%-24s %.3f\n", name, scores[name]); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func parseHistoryFilter(gameType, since string, last, window int) (model.HistoryFilter, error) {
	filter := model.HistoryFilter{Last: last, CurveWindow: window}
	if last < 0 {
		return filter, fmt.Errorf("--last must be >= 0")
	}
	if window < 0 {
		return filter, fmt.Errorf("--curve-window must be >= 0")
	}
	if strings.TrimSpace(gameType) != "" {
		parsed, err := model.ParseGameType(gameType)
		if err != nil {
			return filter, fmt.Errorf("invalid --type: %w", err)
		}
		filter.GameType = parsed
	}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return filter, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logErrf("failed to close db: %v\n", err)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
