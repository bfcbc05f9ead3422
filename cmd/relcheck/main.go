package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"relcheck/internal/config"
	"relcheck/internal/debug"
	apperrors "relcheck/internal/errors"
	"relcheck/internal/history"
	"relcheck/internal/ui"
	"relcheck/internal/update"

	"github.com/atotto/clipboard"
)

const (
	spinnerDelay = 300 * time.Millisecond
	outputWidth  = 80
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := config.Initialize(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error initializing config: %v\n", err)
		return exitFailure
	}

	fs := flag.NewFlagSet("relcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *flags.version {
		printVersion(stdout)
		return exitOK
	}

	if *flags.debug {
		if err := debug.Init(true); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: debug log unavailable: %v\n", err)
		}
		defer debug.Close()
	}

	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	opts, err := computeRuntimeOptions(fs, flags, visited, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runWithRuntime(ctx, opts, defaultDeps(stdout, stderr))
}

type runtimeFlags struct {
	version     *bool
	debug       *bool
	channel     *string
	current     *string
	owner       *string
	repo        *string
	apiURL      *string
	timeout     *time.Duration
	tag         *string
	interactive *bool
	copy        *bool
	jsonOutput  *bool
	format      *string
	history     *int
	setChannel  *string
	choose      *bool
	noCache     *bool
}

func registerFlags(fs *flag.FlagSet) runtimeFlags {
	return runtimeFlags{
		version:     fs.Bool("version", false, "Print version information and exit"),
		debug:       fs.Bool("debug", false, "Write a debug log to ~/.relcheck/debug.log"),
		channel:     fs.String("channel", config.GetString(config.KeyChannel), "Release channel to check (official, beta, all)"),
		current:     fs.String("current", installedVersion(), "Installed version to compare against (default: build version)"),
		owner:       fs.String("owner", config.GetString(config.KeyOwner), "Repository owner"),
		repo:        fs.String("repo", config.GetString(config.KeyRepo), "Repository name"),
		apiURL:      fs.String("api-url", config.GetString(config.KeyAPIURL), "Release API base URL"),
		timeout:     fs.Duration("timeout", config.GetDuration(config.KeyTimeout), "Deadline for the whole check"),
		tag:         fs.String("tag", "", "Look up one release by tag instead of checking a channel"),
		interactive: fs.Bool("interactive", false, "Show the interactive check view"),
		copy:        fs.Bool("copy", false, "Copy the download URL to the clipboard when an update is found"),
		jsonOutput:  fs.Bool("json", config.GetBool(config.KeyOutputJSON), "Print the result as JSON"),
		format:      fs.String("output-format", config.GetString(config.KeyOutputFormat), "Changelog style (rich, light, dark, plain)"),
		history:     fs.Int("history", 0, "Print the last N recorded checks and exit"),
		setChannel:  fs.String("set-channel", "", "Persist the release channel to the config file and exit"),
		choose:      fs.Bool("choose-channel", false, "Pick the release channel interactively and persist it"),
		noCache:     fs.Bool("no-cache", false, "Ignore cached check results"),
	}
}

type runtimeOptions struct {
	channel        update.Channel
	current        string
	owner          string
	repo           string
	apiURL         string
	token          string
	timeout        time.Duration
	perPage        int
	matcher        update.AssetMatcher
	tag            string
	interactive    bool
	copy           bool
	jsonOutput     bool
	outputFormat   string
	historyCount   int
	setChannel     string
	chooseChannel  bool
	historyEnabled bool
	historyPath    string
	cacheTTL       time.Duration
}

func computeRuntimeOptions(fs *flag.FlagSet, flags runtimeFlags, visited map[string]struct{}, warn io.Writer) (runtimeOptions, error) {
	opts := runtimeOptions{
		current:        strings.TrimSpace(*flags.current),
		tag:            strings.TrimSpace(*flags.tag),
		interactive:    *flags.interactive,
		copy:           *flags.copy,
		historyCount:   *flags.history,
		setChannel:     strings.TrimSpace(*flags.setChannel),
		chooseChannel:  *flags.choose,
		token:          strings.TrimSpace(config.GetString(config.KeyToken)),
		perPage:        config.GetInt(config.KeyPerPage),
		historyEnabled: config.GetBool(config.KeyHistoryEnabled),
		historyPath:    strings.TrimSpace(config.GetString(config.KeyHistoryPath)),
		cacheTTL:       config.GetDuration(config.KeyHistoryCacheTTL),
	}
	if *flags.noCache {
		opts.cacheTTL = 0
	}

	channelName := config.GetString(config.KeyChannel)
	if flagWasExplicitlySet(fs, "channel", visited) {
		channelName = *flags.channel
		if _, ok := update.ParseChannel(channelName); !ok {
			return runtimeOptions{}, fmt.Errorf("unknown channel %q (want official, beta or all)", channelName)
		}
	}
	opts.channel = resolveChannel(channelName, warn)

	opts.owner = strings.TrimSpace(config.GetString(config.KeyOwner))
	if flagWasExplicitlySet(fs, "owner", visited) {
		opts.owner = strings.TrimSpace(*flags.owner)
	}
	opts.repo = strings.TrimSpace(config.GetString(config.KeyRepo))
	if flagWasExplicitlySet(fs, "repo", visited) {
		opts.repo = strings.TrimSpace(*flags.repo)
	}
	opts.apiURL = strings.TrimSpace(config.GetString(config.KeyAPIURL))
	if flagWasExplicitlySet(fs, "api-url", visited) {
		opts.apiURL = strings.TrimSpace(*flags.apiURL)
	}

	opts.timeout = config.GetDuration(config.KeyTimeout)
	if flagWasExplicitlySet(fs, "timeout", visited) {
		opts.timeout = *flags.timeout
	}
	if opts.timeout <= 0 {
		opts.timeout = config.DefaultTimeout
	}

	opts.jsonOutput = config.GetBool(config.KeyOutputJSON)
	if flagWasExplicitlySet(fs, "json", visited) {
		opts.jsonOutput = *flags.jsonOutput
	}
	opts.outputFormat = strings.TrimSpace(config.GetString(config.KeyOutputFormat))
	if flagWasExplicitlySet(fs, "output-format", visited) {
		opts.outputFormat = strings.TrimSpace(*flags.format)
	}

	opts.matcher = update.DefaultAssetMatcher()
	opts.matcher.Prefix = strings.TrimSpace(config.GetString(config.KeyAssetPrefix))
	if exts := config.GetStringSlice(config.KeyAssetExtensions); len(exts) > 0 {
		opts.matcher.Extensions = exts
	}

	if opts.historyCount < 0 {
		return runtimeOptions{}, fmt.Errorf("--history must not be negative")
	}
	if opts.interactive && opts.jsonOutput {
		return runtimeOptions{}, fmt.Errorf("--interactive and --json cannot be combined")
	}
	needsRepo := opts.setChannel == "" && !opts.chooseChannel && opts.historyCount == 0
	if needsRepo && (opts.owner == "" || opts.repo == "") {
		return runtimeOptions{}, apperrors.New(apperrors.CodeConfigurationError,
			"repository not configured; set update.owner and update.repo or pass --owner and --repo", nil)
	}
	return opts, nil
}

// resolveChannel parses a configured channel. Unknown values fall back to
// the channel this binary was built for.
func resolveChannel(name string, warn io.Writer) update.Channel {
	if ch, ok := update.ParseChannel(name); ok {
		return ch
	}
	fallback, ok := update.ParseChannel(BuildChannel)
	if !ok {
		fallback = update.ChannelOfficial
	}
	if strings.TrimSpace(name) != "" && warn != nil {
		_, _ = fmt.Fprintf(warn, "Warning: unknown update channel %q, using %s\n", name, fallback)
	}
	return fallback
}

func flagWasExplicitlySet(fs *flag.FlagSet, name string, visited map[string]struct{}) bool {
	if _, ok := visited[name]; ok {
		return true
	}
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	return f.Value.String() != f.DefValue
}

// updateChecker is the part of *update.Checker the CLI drives.
type updateChecker interface {
	Check(ctx context.Context, req update.CheckRequest) (update.Outcome, error)
	ResolveByTag(ctx context.Context, tag string) (update.Result, bool)
}

type stageReporter interface {
	Stage(stage update.Stage, detail string)
	Stop()
}

type runDeps struct {
	stdout         io.Writer
	stderr         io.Writer
	newChecker     func(opts runtimeOptions, onStage update.StageFunc) updateChecker
	newSpinner     func() stageReporter
	openHistory    func(ctx context.Context, path string) (*history.Store, error)
	runInteractive func(ctx context.Context, checker updateChecker, req update.CheckRequest, format string) (update.Outcome, error)
	copyToClip     func(string) error
	saveChannel    func(string) error
	isTerminal     func() bool
	promptChannel  func(current update.Channel) (update.Channel, error)
	now            func() time.Time
}

func defaultDeps(stdout, stderr io.Writer) runDeps {
	return runDeps{
		stdout:     stdout,
		stderr:     stderr,
		newChecker: newUpdateChecker,
		newSpinner: func() stageReporter {
			return newStageSpinner(stderr, spinnerDelay)
		},
		openHistory: history.Open,
		runInteractive: func(ctx context.Context, checker updateChecker, req update.CheckRequest, format string) (update.Outcome, error) {
			return ui.RunCheck(ctx, checker, req, ui.WithOutputFormat(format))
		},
		copyToClip:    clipboard.WriteAll,
		saveChannel:   config.SaveChannel,
		isTerminal:    isInteractiveTerminal,
		promptChannel: promptForChannel,
		now:           time.Now,
	}
}

func newUpdateChecker(opts runtimeOptions, onStage update.StageFunc) updateChecker {
	checkerOpts := []update.CheckerOption{
		update.WithBaseURL(opts.apiURL),
		update.WithTimeout(opts.timeout),
		update.WithToken(opts.token),
		update.WithPerPage(opts.perPage),
		update.WithAssetMatcher(opts.matcher),
		update.WithUserAgent("relcheck/" + Version),
	}
	if onStage != nil {
		checkerOpts = append(checkerOpts, update.WithStageReporter(onStage))
	}
	return update.NewChecker(opts.owner, opts.repo, checkerOpts...)
}

func runWithRuntime(ctx context.Context, opts runtimeOptions, deps runDeps) int {
	switch {
	case opts.setChannel != "":
		return runSetChannel(opts, deps)
	case opts.chooseChannel:
		return runChooseChannel(opts, deps)
	case opts.historyCount > 0:
		return runHistory(ctx, opts, deps)
	case opts.tag != "":
		return runTag(ctx, opts, deps)
	default:
		return runCheck(ctx, opts, deps)
	}
}

func runSetChannel(opts runtimeOptions, deps runDeps) int {
	ch, ok := update.ParseChannel(opts.setChannel)
	if !ok {
		_, _ = fmt.Fprintf(deps.stderr, "Error: unknown channel %q (want official, beta or all)\n", opts.setChannel)
		return exitUsage
	}
	if err := deps.saveChannel(ch.String()); err != nil {
		_, _ = fmt.Fprintf(deps.stderr, "Error: save channel: %v\n", err)
		return exitFailure
	}
	_, _ = fmt.Fprintf(deps.stdout, "Update channel set to %s.\n", ch)
	return exitOK
}

func runChooseChannel(opts runtimeOptions, deps runDeps) int {
	if deps.isTerminal == nil || !deps.isTerminal() {
		_, _ = fmt.Fprintln(deps.stderr, "Error: --choose-channel needs an interactive terminal; use --set-channel instead")
		return exitUsage
	}
	ch, err := deps.promptChannel(opts.channel)
	if err != nil {
		_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
		return exitFailure
	}
	opts.setChannel = ch.String()
	return runSetChannel(opts, deps)
}

func runHistory(ctx context.Context, opts runtimeOptions, deps runDeps) int {
	store, err := openHistoryStore(ctx, opts, deps)
	if err != nil {
		_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if store == nil {
		_, _ = fmt.Fprintln(deps.stderr, "Error: history is disabled (history.enabled=false)")
		return exitUsage
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, opts.historyCount)
	if err != nil {
		_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
		return exitFailure
	}
	if opts.jsonOutput {
		if err := writeJSON(deps.stdout, entries); err != nil {
			_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}
	printHistory(deps.stdout, entries, opts.outputFormat)
	return exitOK
}

func runTag(ctx context.Context, opts runtimeOptions, deps runDeps) int {
	checker := deps.newChecker(opts, nil)
	res, found := checker.ResolveByTag(ctx, opts.tag)
	if opts.jsonOutput {
		var payload any = map[string]any{"tag": opts.tag, "found": false}
		if found {
			payload = newJSONRelease(res)
		}
		if err := writeJSON(deps.stdout, payload); err != nil {
			_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
			return exitFailure
		}
	} else {
		printTagResult(deps.stdout, deps.stderr, opts.tag, res, found, opts.outputFormat, outputWidth)
	}
	if !found {
		return exitFailure
	}
	if opts.copy {
		copyDownloadURL(res.DownloadURL, opts, deps)
	}
	return exitOK
}

func runCheck(ctx context.Context, opts runtimeOptions, deps runDeps) int {
	req := update.CheckRequest{Channel: opts.channel, CurrentVersion: opts.current}

	store, err := openHistoryStore(ctx, opts, deps)
	if err != nil {
		// history is best effort; the check still runs
		debug.Logf("history unavailable: %v", err)
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	outcome, cached, checkErr := cachedOutcome(ctx, store, opts, deps.now())
	if !cached {
		outcome, checkErr = performCheck(ctx, opts, deps, req)
		if store != nil {
			entry := history.NewEntry(historySource(opts), opts.channel, opts.current, update.Report{Outcome: outcome, Err: checkErr}, deps.now())
			if _, err := store.Record(ctx, entry); err != nil {
				debug.Logf("record history: %v", err)
			}
		}
	}

	if opts.jsonOutput {
		rep := buildJSONReport(opts.channel, opts.current, outcome, cached, checkErr)
		if err := writeJSON(deps.stdout, rep); err != nil {
			_, _ = fmt.Fprintf(deps.stderr, "Error: %v\n", err)
			return exitFailure
		}
	} else if !opts.interactive || checkErr != nil {
		printReport(deps.stdout, deps.stderr, outcome, checkErr, opts.outputFormat, outputWidth, cached)
	}

	if checkErr == nil && opts.copy && outcome.UpdateAvailable() {
		copyDownloadURL(outcome.Result.DownloadURL, opts, deps)
	}
	return exitCodeFor(checkErr)
}

func performCheck(ctx context.Context, opts runtimeOptions, deps runDeps, req update.CheckRequest) (update.Outcome, error) {
	if opts.interactive {
		return deps.runInteractive(ctx, deps.newChecker(opts, nil), req, opts.outputFormat)
	}
	if opts.jsonOutput || deps.newSpinner == nil {
		return deps.newChecker(opts, nil).Check(ctx, req)
	}
	sp := deps.newSpinner()
	checker := deps.newChecker(opts, sp.Stage)
	outcome, err := checker.Check(ctx, req)
	sp.Stop()
	return outcome, err
}

// historySource identifies the feed a check ran against.
func historySource(opts runtimeOptions) history.Source {
	return history.Source{
		APIURL:          opts.apiURL,
		Owner:           opts.owner,
		Repo:            opts.repo,
		AssetPrefix:     opts.matcher.Prefix,
		AssetExtensions: opts.matcher.Extensions,
	}
}

// cachedOutcome returns a recent successful answer for the same feed, channel
// and installed version when caching is enabled.
func cachedOutcome(ctx context.Context, store *history.Store, opts runtimeOptions, now time.Time) (update.Outcome, bool, error) {
	if store == nil || opts.cacheTTL <= 0 || opts.interactive {
		return update.Outcome{}, false, nil
	}
	entry, ok, err := store.LastFor(ctx, historySource(opts).Key(), opts.channel.String(), opts.current)
	if err != nil || !ok || !entry.Fresh(opts.cacheTTL, now) {
		return update.Outcome{}, false, nil
	}
	outcome, err := entry.Outcome()
	if err != nil {
		debug.Logf("ignoring cached entry %d: %v", entry.ID, err)
		return update.Outcome{}, false, nil
	}
	debug.Logf("using cached result %d from %s", entry.ID, entry.CheckedAt.Format(time.RFC3339))
	return outcome, true, nil
}

// openHistoryStore returns nil without error when history is disabled.
func openHistoryStore(ctx context.Context, opts runtimeOptions, deps runDeps) (*history.Store, error) {
	if !opts.historyEnabled || deps.openHistory == nil {
		return nil, nil
	}
	path := opts.historyPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return deps.openHistory(ctx, path)
}

func copyDownloadURL(url string, opts runtimeOptions, deps runDeps) {
	if strings.TrimSpace(url) == "" || deps.copyToClip == nil {
		return
	}
	if err := deps.copyToClip(url); err != nil {
		_, _ = fmt.Fprintf(deps.stderr, "Warning: could not copy download URL: %v\n", err)
		return
	}
	if !opts.jsonOutput {
		_, _ = fmt.Fprintln(deps.stdout, "Download URL copied to clipboard.")
	}
}
