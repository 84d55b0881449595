// Package main provides the entry point for the ttscache demo CLI.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ttscache/pkg/ttscache"
	"github.com/dgnsrekt/ttscache/pkg/ttscache/engines/mock"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	service     string
	language    string
	voice       string
	maxBytes    int64
	maxEntries  int
	timeout     time.Duration
	mockDelay   time.Duration
	concurrency int
	debug       bool

	rootCmd = &cobra.Command{
		Use:   "ttscache [FILE]",
		Short: "Warm a speech artifact cache and replay it in order",
		Long: paragraph(
			fmt.Sprintf("\nFeed lines of text through the %s: preload them concurrently, then request them back in playback order.", keyword("speech artifact cache")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := validateOptions(); err != nil {
				return err
			}
			setupLog()
			return nil
		},
		RunE: execute,
	}
)

func validateOptions() error {
	// grab config values from Viper
	service = viper.GetString("service")
	language = viper.GetString("language")
	voice = viper.GetString("voice")
	debug = viper.GetBool("debug")

	if v := viper.GetInt64("cache.max_bytes"); v > 0 {
		maxBytes = v
	}
	if v := viper.GetInt("cache.max_entries"); v > 0 {
		maxEntries = v
	}
	if v := viper.GetDuration("generation.timeout"); v > 0 {
		timeout = v
	}
	if v := viper.GetDuration("mock.delay"); v > 0 {
		mockDelay = v
	}

	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}
	if service == "" || language == "" || voice == "" {
		return fmt.Errorf("service, language and voice must all be set")
	}
	return nil
}

// linesFromArg reads the text to synthesize, one line per utterance, from a
// file argument, stdin when piped, or a built-in sample otherwise.
func linesFromArg(args []string) ([]string, error) {
	var r io.Reader
	switch {
	case len(args) == 1 && args[0] != "-":
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		r = f
	default:
		yes, err := stdinIsPipe()
		if err != nil {
			return nil, err
		}
		if !yes && len(args) == 0 {
			return sampleLines, nil
		}
		r = os.Stdin
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read input: %w", err)
	}
	return lines, nil
}

var sampleLines = []string{
	"Welcome to the speech cache demonstration.",
	"Each line becomes one synthesized utterance.",
	"Preloading happens in the background while you listen.",
	"Playback order is preserved even when generation finishes out of order.",
	"Repeated lines are served straight from the cache.",
	"Welcome to the speech cache demonstration.",
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func buildConfig() (ttscache.Config, error) {
	cfg, err := ttscache.ConfigFromEnv()
	if err != nil {
		return ttscache.Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if maxBytes > 0 {
		cfg.MaxCacheBytes = maxBytes
	}
	if maxEntries > 0 {
		cfg.MaxEntries = maxEntries
	}
	if timeout > 0 {
		cfg.GenerationTimeout = timeout
	}
	return cfg, nil
}

func execute(cmd *cobra.Command, args []string) error {
	lines, err := linesFromArg(args)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no text to synthesize")
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	engine := mock.New()
	engine.SetDelay(mockDelay)

	manager, err := ttscache.New(engine, cfg)
	if err != nil {
		return fmt.Errorf("unable to configure speech cache: %w", err)
	}
	manager.SetLogger(log.Default())

	const sessionID = "cli"
	manager.SetSessionDefaults(sessionID, service, language, voice)

	// Kick off generation for everything up front.
	for _, line := range lines {
		manager.Preload(line, sessionID)
	}

	// Warm the cache concurrently. Duplicate lines collapse onto the same
	// in-flight generation, so the engine runs once per distinct line.
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(concurrency)
	for _, line := range lines {
		g.Go(func() error {
			_, err := manager.Request(gctx, service, language, voice, line, sessionID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("Some lines failed to generate", "err", err)
	}

	// Playback pass: everything should now be a cache hit, delivered in
	// issuance order.
	for i, line := range lines {
		startAt := time.Now()
		artifact, err := manager.Request(cmd.Context(), service, language, voice, line, sessionID)
		if err != nil {
			fmt.Printf("%3d. %s %s\n", i+1, line, subtle("(failed: "+err.Error()+")"))
			continue
		}
		fmt.Printf("%3d. %s %s\n", i+1, line,
			subtle(fmt.Sprintf("(%s of audio, served in %s)",
				artifact.Duration.Round(10*time.Millisecond),
				time.Since(startAt).Round(time.Microsecond))))
	}

	printStats(manager.Stats(), engine.Calls())
	return nil
}

func printStats(stats ttscache.Stats, engineCalls int) {
	if !stdoutIsTerminal() {
		fmt.Printf("entries=%d size=%d hits=%d misses=%d evictions=%d engine_calls=%d\n",
			stats.EntryCount, stats.CurrentSize, stats.Hits, stats.Misses, stats.Evictions, engineCalls)
		return
	}

	fmt.Println()
	fmt.Println(keyword("Cache statistics"))
	fmt.Printf("  entries      %d\n", stats.EntryCount)
	fmt.Printf("  size         %s\n", humanize.Bytes(uint64(stats.CurrentSize))) //nolint:gosec
	fmt.Printf("  hits         %d\n", stats.Hits)
	fmt.Printf("  misses       %d\n", stats.Misses)
	fmt.Printf("  evictions    %d\n", stats.Evictions)
	fmt.Printf("  engine calls %d\n", engineCalls)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVar(&service, "service", "mock", "speech service identifier")
	rootCmd.Flags().StringVar(&language, "language", "en", "language code")
	rootCmd.Flags().StringVar(&voice, "voice", "emma", "voice identifier")
	rootCmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "cache size limit in bytes (0 uses env/config)")
	rootCmd.Flags().IntVar(&maxEntries, "max-entries", 0, "cache entry limit (0 uses env/config)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-generation timeout (0 uses env/config)")
	rootCmd.Flags().DurationVar(&mockDelay, "delay", 100*time.Millisecond, "simulated generation latency")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "concurrent warm requests")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Config bindings
	_ = viper.BindPFlag("service", rootCmd.Flags().Lookup("service"))
	_ = viper.BindPFlag("language", rootCmd.Flags().Lookup("language"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("cache.max_bytes", rootCmd.Flags().Lookup("max-bytes"))
	_ = viper.BindPFlag("cache.max_entries", rootCmd.Flags().Lookup("max-entries"))
	_ = viper.BindPFlag("generation.timeout", rootCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("mock.delay", rootCmd.Flags().Lookup("delay"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	viper.SetDefault("service", "mock")
	viper.SetDefault("language", "en")
	viper.SetDefault("voice", "emma")

	rootCmd.AddCommand(configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "ttscache")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ttscache")}, dirs...)
	}

	if c := os.Getenv("TTSCACHE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ttscache")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("ttscache")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	if len(dirs) > 0 {
		configFile = filepath.Join(dirs[0], "ttscache.yml")
	}
}
