package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/classifier"
	"github.com/scheerer/hunter-screen-colors/internal/config"
	"github.com/scheerer/hunter-screen-colors/internal/lights/lifx"
	"github.com/scheerer/hunter-screen-colors/internal/lights/openrgb"
	"github.com/scheerer/hunter-screen-colors/internal/logging"
	"github.com/scheerer/hunter-screen-colors/internal/palette"
	"github.com/scheerer/hunter-screen-colors/internal/screen"
	"github.com/scheerer/hunter-screen-colors/lights"
	"github.com/scheerer/hunter-screen-colors/weaponsync"
)

var (
	logger  = logging.New("main")
	version = "dev"

	// replaced in tests
	newHub      = hubFromConfig
	newCapturer = screen.NewCapturer
)

const (
	shutdownTimeout  = 5 * time.Second
	lifxTransition   = 50 * time.Millisecond
	collabConfig     = "configuration"
	collabProfile    = "profile"
	collabCapture    = "screen capture"
	collabClassifier = "classifier"
	collabHub        = "lighting hub"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:]))
}

// execute runs the CLI and maps its outcome to an exit status: 0 after a clean or
// interrupted run, 1 after a startup failure or an escalation.
func execute(ctx context.Context, args []string) int {
	defer func() {
		_ = logger.Sync()
		_ = logging.Close()
	}()

	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var startup *weaponsync.StartupError
	if errors.As(err, &startup) {
		logger.With(zap.String("collaborator", startup.Collaborator), zap.Error(startup.Err)).Error("Startup failed")
	} else {
		logger.With(zap.Error(err)).Error("Weapon sync failed")
	}
	fmt.Fprintf(os.Stderr, "hunter-screen-colors: %v\n", err)
	return 1
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "hunter-screen-colors",
		Short:         "Colour lights after the weapon selected in Metroid Prime Hunters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file read before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Watch the game window and keep the lights in step (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSync(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "devices",
			Short: "List the devices the configured lighting hub offers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return listDevices(cmd, envFile)
			},
		},
		&cobra.Command{
			Use:   "profile",
			Short: "Print the effective weapon and layout profile as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printProfile(cmd, envFile)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, weaponsync.Startup(collabConfig, err)
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, weaponsync.Startup(collabConfig, errors.Wrap(err, "configuring logging"))
	}
	return cfg, nil
}

func loadProfile(cfg *config.Config) (config.Profile, *palette.Table, error) {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return config.Profile{}, nil, weaponsync.Startup(collabProfile, err)
	}
	metric, err := palette.ParseMetric(cfg.ColorMetric)
	if err != nil {
		return config.Profile{}, nil, weaponsync.Startup(collabConfig, err)
	}
	table, err := profile.Table(metric)
	if err != nil {
		return config.Profile{}, nil, weaponsync.Startup(collabProfile, err)
	}
	return profile, table, nil
}

func hubFromConfig(cfg *config.Config) (lights.Hub, error) {
	switch cfg.LightType {
	case config.LightOpenRGB:
		return openrgb.NewHub(openrgb.Config{
			Address:    cfg.OpenRGBAddress,
			ClientName: cfg.OpenRGBClientName,
		}), nil
	case config.LightLIFX:
		hub, err := lifx.NewHub(lifx.Config{
			GroupName:     cfg.LightGroupName,
			MinBrightness: cfg.MinBrightness,
			MaxBrightness: cfg.MaxBrightness,
			Transition:    lifxTransition,
		})
		if err != nil {
			return nil, err
		}
		return hub, nil
	default:
		return nil, errors.Errorf("unknown light type: %v", cfg.LightType)
	}
}

func runSync(parent context.Context, envFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	profile, table, err := loadProfile(cfg)
	if err != nil {
		return err
	}

	logger.With(zap.Any("config", cfg)).Info("Starting hunter lights")
	logger.With(zap.String("layout", profile.Layout.Name), zap.Int("weapons", len(table.Entries())),
		zap.String("metric", string(table.Metric()))).Info("Profile loaded")
	logger.Info("Adjust CAPTURE_INTERVAL to change how often the window is captured.")
	logger.Info("Adjust CONFIRM_COUNT to change how many matching polls it takes to switch weapon.")
	logger.Info("Run the profile command to print the active profile, then point PROFILE_PATH at an edited copy.")
	logger.Info("Press Ctrl+C to stop")

	capturer, err := newCapturer(screen.Options{
		Backend:      cfg.CaptureBackend,
		Command:      cfg.CaptureCommand,
		WindowTitle:  cfg.WindowTitle,
		WindowRect:   cfg.WindowRect,
		ScreenNumber: cfg.ScreenNumber,
		Timeout:      cfg.CaptureTimeout,
	})
	if err != nil {
		return weaponsync.Startup(collabCapture, err)
	}
	if closer, ok := capturer.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.With(zap.Error(err)).Warn("Failed to release screen capture")
			}
		}()
	}
	sampler, err := screen.NewSampler(cfg.SampleAlgo, cfg.SampleRadius)
	if err != nil {
		return weaponsync.Startup(collabConfig, err)
	}
	c, err := classifier.New(table, cfg.ConfirmCount)
	if err != nil {
		return weaponsync.Startup(collabClassifier, err)
	}

	hub, err := newHub(cfg)
	if err != nil {
		return weaponsync.Startup(collabHub, err)
	}
	session, err := lights.OpenSession(ctx, hub, lights.PromptSelector{In: os.Stdin, Out: os.Stdout}, table,
		lights.SessionOptions{
			Preference:       cfg.LightDevice,
			Timeout:          cfg.DeviceTimeout,
			DiscoveryTimeout: cfg.DiscoveryTimeout,
			IdleColor:        lights.ColorOf(cfg.IdleColor),
			RestoreOnExit:    cfg.RestoreOnExit,
		})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Interrupted during startup")
			return nil
		}
		return weaponsync.Startup(collabHub, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := session.Close(shutdownCtx); err != nil {
			logger.With(zap.Error(err)).Warn("Failed to restore lighting on shutdown")
		}
	}()

	loop, err := weaponsync.New(weaponsync.Config{
		Interval:           cfg.CaptureInterval,
		MaxCaptureFailures: cfg.MaxCaptureFailures,
		RetryAttempts:      cfg.HubRetryAttempts,
		RetryBackoff:       cfg.HubRetryBackoff,
	}, capturer, profile.Layout, sampler, c, session)
	if err != nil {
		return weaponsync.Startup(collabConfig, err)
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutting down")
	return nil
}

func listDevices(cmd *cobra.Command, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	hub, err := newHub(cfg)
	if err != nil {
		return weaponsync.Startup(collabHub, err)
	}
	defer func() {
		if err := hub.Close(); err != nil {
			logger.With(zap.Error(err)).Warn("Failed to close lighting hub")
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.DiscoveryTimeout)
	defer cancel()
	devices, err := hub.ListDevices(ctx)
	if err != nil {
		return weaponsync.Startup(collabHub, err)
	}
	if len(devices) == 0 {
		return weaponsync.Startup(collabHub, lights.ErrNoDevices)
	}

	out := cmd.OutOrStdout()
	for _, d := range devices {
		fmt.Fprintf(out, "%s\t%s\n", d.ID, d.Name)
	}
	return nil
}

func printProfile(cmd *cobra.Command, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	profile, _, err := loadProfile(cfg)
	if err != nil {
		return err
	}
	return config.WriteProfile(cmd.OutOrStdout(), profile)
}
