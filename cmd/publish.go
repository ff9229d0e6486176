package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeploy/internal/auth"
	"github.com/desertthunder/playdeploy/internal/services"
	"github.com/desertthunder/playdeploy/internal/shared"
	"github.com/desertthunder/playdeploy/internal/tasks"
	"github.com/desertthunder/playdeploy/internal/ui"
	"github.com/urfave/cli/v3"
)

const progressLogPath = "./tmp/playdeploy-progress.log"

// publishCommand publishes one binary to one track.
func publishCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Upload an APK or AAB and release it to a Google Play track",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "service-account",
				Aliases: []string{"s"},
				Usage:   "Service account email (read from the key when it is a JSON key)",
				Sources: cli.EnvVars("PLAY_SERVICE_ACCOUNT"),
			},
			&cli.StringFlag{
				Name:    "package",
				Aliases: []string{"p"},
				Usage:   "Application package name, e.g. com.example.app",
				Sources: cli.EnvVars("PLAY_PACKAGE_NAME"),
			},
			&cli.StringFlag{
				Name:    "app",
				Aliases: []string{"a"},
				Usage:   "Path to the .apk or .aab to upload",
				Sources: cli.EnvVars("PLAY_APP_PATH"),
			},
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Service account key (.json or .p12): local path, file:// URI or http(s) URL",
				Sources: cli.EnvVars("PLAY_KEY_PATH"),
			},
			&cli.StringFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   "Release track: internal, alpha, beta, production or a custom track",
				Sources: cli.EnvVars("PLAY_TRACK"),
			},
			&cli.FloatFlag{
				Name:    "user-fraction",
				Usage:   "Fraction of users in (0, 1] receiving a staged rollout; 1 releases to everyone",
				Value:   1.0,
				Sources: cli.EnvVars("PLAY_USER_FRACTION"),
			},
			&cli.StringFlag{
				Name:    "mapping",
				Usage:   "Path to a ProGuard/R8 mapping.txt uploaded with the binary",
				Sources: cli.EnvVars("PLAY_MAPPING_PATH"),
			},
			&cli.StringFlag{
				Name:    "native-symbols",
				Usage:   "Path to a native debug symbols archive uploaded with the binary",
				Sources: cli.EnvVars("PLAY_NATIVE_SYMBOLS_PATH"),
			},
			&cli.StringSliceFlag{
				Name:    "expansion-file",
				Usage:   "APK expansion file as main:<path> or patch:<path>; repeat for both",
				Sources: cli.EnvVars("PLAY_EXPANSION_FILES"),
			},
			&cli.StringFlag{
				Name:    "release-status",
				Usage:   "Release status: " + strings.Join(services.ReleaseStatuses, ", ") + "; derived from --user-fraction when omitted",
				Sources: cli.EnvVars("PLAY_RELEASE_STATUS"),
			},
			&cli.BoolFlag{
				Name:    "untrack-blocking-versions",
				Usage:   "Clear alpha/beta releases whose versions would shadow the new release",
				Sources: cli.EnvVars("PLAY_UNTRACK_BLOCKING_VERSIONS"),
			},
			&cli.StringFlag{
				Name:    "whatsnew-dir",
				Usage:   "Directory holding whatsnew-<language> release note files",
				Sources: cli.EnvVars("PLAY_WHATSNEW_DIR"),
			},
			&cli.BoolFlag{
				Name:  "validate",
				Usage: "Validate the edit before committing it",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show an interactive progress view",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: r.Publish,
	}
}

// publishOptions is the validated input of one publish invocation.
type publishOptions struct {
	request tasks.PublishRequest
	email   string
	key     auth.KeySource
}

// Publish validates the inputs, authenticates and runs the publish transaction.
//
// The returned error is nil only when the edit was committed.
func (r *Runner) Publish(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := r.loadConfig(cmd.String("config")); err != nil {
		return err
	}

	opts, err := r.publishOptions(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("progress") {
		fileLogger, err := shared.NewFileLogger(progressLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger.SetLevel(r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	publisher := r.publisher
	if publisher == nil {
		if publisher, err = r.connect(ctx, opts); err != nil {
			return err
		}
	}

	recorder, closeHistory := r.openHistory()
	defer closeHistory()

	engine := tasks.NewPublishEngine(publisher, r.logger, recorder)
	publish := func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.PublishResult, error) {
		return engine.Publish(ctx, opts.request, progress)
	}

	var result *tasks.PublishResult
	var rendered bool
	if cmd.Bool("progress") {
		result, rendered, err = r.runWithProgress(ctx, opts.request, publish)
	} else {
		result, err = publish(ctx, nil)
	}

	if !rendered {
		r.writePlain("%s", ui.RenderSummary(result, err))
	}
	return err
}

// runWithProgress runs publish under the interactive progress view.
//
// rendered reports whether the view already showed the final summary.
func (r *Runner) runWithProgress(ctx context.Context, req tasks.PublishRequest, publish ui.PublishFunc) (result *tasks.PublishResult, rendered bool, err error) {
	title := fmt.Sprintf("Publishing %s to %s", req.PackageName, req.Track)
	model := ui.NewProgressModel(ctx, title, publish)

	options := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(r.output)}, r.progressOptions...)
	if _, err := tea.NewProgram(model, options...).Run(); err != nil {
		return nil, false, fmt.Errorf("error running progress view: %w", err)
	}

	if !model.Done() {
		return nil, false, fmt.Errorf("%w: publish interrupted", shared.ErrTransactionFailed)
	}
	result, err = model.Result()
	return result, true, err
}

// connect authenticates with the service account and builds the Google Play publisher.
func (r *Runner) connect(ctx context.Context, opts publishOptions) (services.Publisher, error) {
	provider := auth.NewProvider(auth.ProviderOpts{
		HTTPClient: r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "auth"),
	})

	r.logger.Info("loading service account key", "source", opts.key.String())
	key, err := provider.LoadKey(ctx, opts.key)
	if err != nil {
		return nil, err
	}

	token, err := provider.Authenticate(ctx, opts.email, key)
	if err != nil {
		return nil, err
	}

	client := provider.Client(ctx, token)
	if seconds := r.config.API.TimeoutSeconds; seconds > 0 {
		client.Timeout = time.Duration(seconds) * time.Second
	}

	return services.NewPlayStoreService(ctx, services.PlayStoreOpts{
		BaseURL:           r.config.API.BaseURL,
		HTTPClient:        client,
		RequestsPerSecond: r.config.API.RequestsPerSecond,
	})
}

// publishOptions merges flags over the config file and validates the local inputs.
//
// Every failure wraps [shared.ErrInvalidInput] and happens before any remote call.
func (r *Runner) publishOptions(cmd *cli.Command) (publishOptions, error) {
	var opts publishOptions

	opts.email = firstNonEmpty(cmd.String("service-account"), r.config.Credentials.ServiceAccountEmail)
	keyPath := firstNonEmpty(cmd.String("key"), r.config.Credentials.KeyPath)

	req := tasks.PublishRequest{
		PackageName:             strings.TrimSpace(cmd.String("package")),
		BinaryPath:              strings.TrimSpace(cmd.String("app")),
		Track:                   firstNonEmpty(cmd.String("track"), r.config.Publish.Track),
		UserFraction:            cmd.Float("user-fraction"),
		ReleaseStatus:           firstNonEmpty(cmd.String("release-status"), r.config.Publish.ReleaseStatus),
		MappingPath:             strings.TrimSpace(cmd.String("mapping")),
		NativeSymbolsPath:       strings.TrimSpace(cmd.String("native-symbols")),
		Validate:                cmd.Bool("validate"),
		UntrackBlockingVersions: cmd.Bool("untrack-blocking-versions"),
	}
	if !cmd.IsSet("user-fraction") && r.config.Publish.UserFraction > 0 {
		req.UserFraction = r.config.Publish.UserFraction
	}
	if !cmd.IsSet("validate") {
		req.Validate = r.config.Publish.Validate
	}
	if !cmd.IsSet("untrack-blocking-versions") {
		req.UntrackBlockingVersions = r.config.Publish.UntrackBlockingVersions
	}

	var missing []string
	for _, field := range []struct{ flag, value string }{
		{"--package", req.PackageName},
		{"--app", req.BinaryPath},
		{"--key", keyPath},
		{"--track", req.Track},
	} {
		if field.value == "" {
			missing = append(missing, field.flag)
		}
	}
	if len(missing) > 0 {
		return opts, fmt.Errorf("%w: missing required flags: %s", shared.ErrInvalidInput, strings.Join(missing, ", "))
	}

	if shared.DetectBinaryKind(req.BinaryPath) == shared.BinaryUnknown {
		return opts, fmt.Errorf("%w: %s is not an .apk or .aab file", shared.ErrInvalidInput, req.BinaryPath)
	}
	if err := shared.VerifyFile(req.BinaryPath); err != nil {
		return opts, invalidInput("app", err)
	}

	key, err := auth.ParseKeySource(keyPath)
	if err != nil {
		return opts, invalidInput("key", err)
	}
	if !key.Remote {
		if err := shared.VerifyFile(key.Location); err != nil {
			return opts, invalidInput("key", err)
		}
	}
	if opts.email == "" && auth.KeyFormatFromPath(key.Location) == auth.KeyFormatP12 {
		return opts, fmt.Errorf("%w: --service-account is required for .p12 keys", shared.ErrInvalidInput)
	}
	opts.key = key

	for flag, path := range map[string]string{"mapping": req.MappingPath, "native-symbols": req.NativeSymbolsPath} {
		if path == "" {
			continue
		}
		if err := shared.VerifyFile(path); err != nil {
			return opts, invalidInput(flag, err)
		}
	}

	for _, entry := range cmd.StringSlice("expansion-file") {
		file, err := services.ParseExpansionFile(entry)
		if err != nil {
			return opts, invalidInput("expansion-file", err)
		}
		if err := shared.VerifyFile(file.Path); err != nil {
			return opts, invalidInput("expansion-file", err)
		}
		req.ExpansionFiles = append(req.ExpansionFiles, file)
	}
	if err := req.Check(); err != nil {
		return opts, err
	}

	if dir := strings.TrimSpace(cmd.String("whatsnew-dir")); dir != "" {
		if err := shared.VerifyDir(dir); err != nil {
			return opts, invalidInput("whatsnew-dir", err)
		}
		notes, err := shared.ReadReleaseNotes(dir)
		if err != nil {
			return opts, invalidInput("whatsnew-dir", err)
		}
		if len(notes) == 0 {
			r.logger.Warn("no release notes found", "dir", dir)
		}
		req.ReleaseNotes = notes
	}

	opts.request = req
	return opts, nil
}

func invalidInput(flag string, err error) error {
	if errors.Is(err, shared.ErrInvalidInput) {
		return fmt.Errorf("--%s: %w", flag, err)
	}
	return fmt.Errorf("%w: --%s: %w", shared.ErrInvalidInput, flag, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
