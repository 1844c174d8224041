// Package main provides the CLI entrypoint for subitise.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/subitise/internal/config"
	"github.com/verte-zerg/subitise/internal/engine"
	"github.com/verte-zerg/subitise/internal/generator"
	"github.com/verte-zerg/subitise/internal/model"
	"github.com/verte-zerg/subitise/internal/report"
	"github.com/verte-zerg/subitise/internal/stats"
	"github.com/verte-zerg/subitise/internal/store"
	"github.com/verte-zerg/subitise/internal/tui"
)

const (
	defaultGameType    = "counting"
	defaultDifficulty  = "easy"
	defaultTimer       = 5
	defaultLength      = 10
	defaultAudio       = true
	defaultWeakTop     = 3
	defaultWeakFactor  = 2.0
	defaultWeakWindow  = 20
	defaultCurveWindow = 10
)

var (
	playType       string
	playDifficulty string
	playTimer      int
	playLength     int
	playAudio      bool
	playSeparate   bool
	playFocusWeak  bool
	playWeakTop    int
	playWeakFactor float64
	playWeakWindow int
	playSeed       int64
	playChildID    int64
	playGameID     int64
	playAPIURL     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "subitise",
		Short:         "Terminal number-sense trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playType, "type", defaultGameType, "game type: counting or arithmetic")
	rootCmd.Flags().StringVar(&playDifficulty, "difficulty", defaultDifficulty, "difficulty: easy, medium or hard")
	rootCmd.Flags().IntVar(&playTimer, "timer", defaultTimer, "seconds per question (3-10)")
	rootCmd.Flags().IntVar(&playLength, "length", defaultLength, "questions per session (5, 10 or 15)")
	rootCmd.Flags().BoolVar(&playAudio, "audio", defaultAudio, "ring the terminal bell on start and answers")
	rootCmd.Flags().BoolVar(&playSeparate, "separate", false, "keep dot clusters apart")
	rootCmd.Flags().BoolVar(&playFocusWeak, "focus-weak", false, "bias counting questions toward weak numbers")
	rootCmd.Flags().IntVar(&playWeakTop, "weak-top", defaultWeakTop, "number of weak numbers to focus on")
	rootCmd.Flags().Float64Var(&playWeakFactor, "weak-factor", defaultWeakFactor, "extra weight for weak numbers")
	rootCmd.Flags().IntVar(&playWeakWindow, "weak-window", defaultWeakWindow, "number of recent sessions to compute weak numbers")
	rootCmd.Flags().Int64Var(&playSeed, "seed", 0, "random seed (0 uses the clock)")
	rootCmd.Flags().Int64Var(&playChildID, "child", 0, "child id for result reporting")
	rootCmd.Flags().Int64Var(&playGameID, "game", 0, "game id for result reporting")
	rootCmd.Flags().StringVar(&playAPIURL, "api-url", report.DefaultBaseURL, "results service URL")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newRecommendCmd())

	return rootCmd
}

// loadFileConfig reads the TOML file and applies .env and environment overrides.
func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.LoadEnv(config.DefaultEnvPaths()...)
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load env: %w", err)
	}
	if err := config.ApplyEnv(&fileCfg, env); err != nil {
		return config.FileConfig{}, err
	}
	return fileCfg, nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "type", &playType, fileCfg.Game.Type)
	applyStringConfig(cmd, "difficulty", &playDifficulty, fileCfg.Game.Difficulty)
	applyIntConfig(cmd, "timer", &playTimer, fileCfg.Game.Timer)
	applyIntConfig(cmd, "length", &playLength, fileCfg.Game.Length)
	applyBoolConfig(cmd, "audio", &playAudio, fileCfg.Game.Audio)
	applyBoolConfig(cmd, "separate", &playSeparate, fileCfg.Game.Separate)
	applyBoolConfig(cmd, "focus-weak", &playFocusWeak, fileCfg.Game.FocusWeak)
	applyIntConfig(cmd, "weak-top", &playWeakTop, fileCfg.Game.WeakTop)
	applyFloatConfig(cmd, "weak-factor", &playWeakFactor, fileCfg.Game.WeakFactor)
	applyIntConfig(cmd, "weak-window", &playWeakWindow, fileCfg.Game.WeakWindow)
	applyStringConfig(cmd, "api-url", &playAPIURL, fileCfg.Report.APIURL)
	applyInt64Config(cmd, "child", &playChildID, fileCfg.Report.ChildID)
	applyInt64Config(cmd, "game", &playGameID, fileCfg.Report.GameID)

	settings, err := buildSettings()
	if err != nil {
		return err
	}
	if err := validatePlayFlags(); err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	seed := playSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := generator.NewWithSource(rand.NewSource(seed), generator.WithSeparation(playSeparate))
	if playFocusWeak {
		aggs, err := st.RecentAnswerAggregates(context.Background(), playWeakWindow, settings.GameType)
		if err != nil {
			logErrf("failed to load weak numbers: %v\n", err)
		} else {
			weak := stats.SelectWeakAnswers(aggs, playWeakTop)
			if len(weak) == 0 {
				logErrln("no stats available for weak-number focus yet; using uniform draws")
			}
			gen.SetWeakSet(weak, playWeakFactor)
		}
	}

	pump := tui.NewPump()
	opts := []engine.Option{
		engine.WithListener(pump.Listener),
		engine.WithRand(rand.New(rand.NewSource(seed + 1))),
	}
	if settings.AudioEnabled {
		opts = append(opts, engine.WithPlayer(engine.BellPlayer{W: os.Stderr}))
	}
	eng := engine.New(gen, opts...)
	defer func() {
		// The pump closes first so the final Cleared event cannot block.
		pump.Close()
		eng.Close()
	}()

	cfg := tui.Config{
		Settings:   settings,
		ChildID:    playChildID,
		GameID:     playGameID,
		FocusWeak:  playFocusWeak,
		WeakTop:    playWeakTop,
		WeakFactor: playWeakFactor,
		WeakWindow: playWeakWindow,
	}
	var reporter tui.Reporter
	if cfg.ReportingEnabled() {
		reporter = report.NewClient(playAPIURL)
	}

	m := tui.NewModel(cfg, eng, pump, gen, st, reporter)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func buildSettings() (model.Settings, error) {
	gameType, err := model.ParseGameType(playType)
	if err != nil {
		return model.Settings{}, fmt.Errorf("invalid --type: %w", err)
	}
	difficulty, err := model.ParseDifficulty(playDifficulty)
	if err != nil {
		return model.Settings{}, fmt.Errorf("invalid --difficulty: %w", err)
	}
	settings := model.Settings{
		Difficulty:    difficulty,
		TimerDuration: playTimer,
		SessionLength: playLength,
		AudioEnabled:  playAudio,
		GameType:      gameType,
	}
	if err := engine.ValidateSettings(settings); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

func validatePlayFlags() error {
	if playWeakTop < 0 {
		return fmt.Errorf("--weak-top must be >= 0")
	}
	if playWeakFactor < 0 {
		return fmt.Errorf("--weak-factor must be >= 0")
	}
	if playWeakWindow < 0 {
		return fmt.Errorf("--weak-window must be >= 0")
	}
	if playChildID < 0 || playGameID < 0 {
		return fmt.Errorf("--child and --game must be >= 0")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# subitise configuration
# Uncomment a value to enable it. CLI flags override config values.
# SUBITISE_API_URL, SUBITISE_CHILD_ID and SUBITISE_GAME_ID (or a .env file)
# override the [report] section.

[game]
# type = %q         # counting or arithmetic
# difficulty = %q       # easy, medium or hard
# timer = %d                # Seconds per question
# length = %d              # Questions per session
# audio = %t             # Terminal bell cues
# separate = false          # Keep dot clusters apart
# focus-weak = false        # Bias counting questions toward weak numbers
# weak-top = %d             # Number of weak numbers to focus on
# weak-factor = %.1f        # Extra weight for weak numbers
# weak-window = %d         # Number of recent sessions to compute weak numbers

[report]
# api-url = %q
# child-id = 0              # Reporting is enabled when child-id and game-id are > 0
# game-id = 0
`,
		defaultGameType,
		defaultDifficulty,
		defaultTimer,
		defaultLength,
		defaultAudio,
		defaultWeakTop,
		defaultWeakFactor,
		defaultWeakWindow,
		report.DefaultBaseURL,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
