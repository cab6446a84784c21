// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jontk/ddpctl/controller"
	"github.com/jontk/ddpctl/ddp"
	"github.com/jontk/ddpctl/effects"
	"github.com/jontk/ddpctl/pkg/config"
	"github.com/jontk/ddpctl/pkg/logging"
	"github.com/jontk/ddpctl/pkg/pool"
	"github.com/jontk/ddpctl/playlist"
	"github.com/jontk/ddpctl/resolve"
	"github.com/jontk/ddpctl/session"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = ""
	Commit    = ""

	debug      bool
	configPath string

	rootCmd = &cobra.Command{
		Use:     "ddpctl",
		Short:   "Operator CLI for the DDP fixture streaming controller",
		Long:    `A thin command-line tool for driving networked RGB LED fixtures directly via DDP, for parity with and testing alongside the management API.`,
		Version: Version,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON entity file (fixtures/groups/virtuals/presets/holidays/rules)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(playlistCmd)

	streamCmd.AddCommand(streamStartCmd)
	streamCmd.AddCommand(streamStopCmd)
	streamCmd.AddCommand(streamListCmd)

	schedulesCmd.AddCommand(schedulesActiveCmd)

	playlistCmd.AddCommand(playlistStartCmd)

	streamStartCmd.Flags().String("target-kind", "device", "target kind: device, group, or virtual")
	streamStartCmd.Flags().String("target-id", "", "target id (required)")
	streamStartCmd.Flags().String("effect", "solid", "effect type")
	streamStartCmd.Flags().StringSlice("color", []string{"#FFFFFF"}, "hex colors for the effect's color/array parameter")
	streamStartCmd.Flags().Int("fps", 30, "frames per second")
	streamStartCmd.Flags().Bool("exclusive", false, "claim the target's fixture spans exclusively")
	streamStartCmd.Flags().Duration("duration", 0, "stop automatically after this long (0 runs until interrupted)")

	streamStopCmd.Flags().String("target-kind", "device", "target kind: device, group, or virtual")
	streamStopCmd.Flags().String("target-id", "", "target id (required)")

	playlistStartCmd.Flags().String("target-kind", "device", "target kind: device, group, or virtual")
	playlistStartCmd.Flags().String("target-id", "", "target id (required)")
	playlistStartCmd.Flags().StringSlice("item", nil, "preset:durationSeconds, repeatable (required)")
	playlistStartCmd.Flags().Bool("loop", false, "loop the playlist")
	playlistStartCmd.Flags().Bool("shuffle", false, "shuffle item order each pass")
	playlistStartCmd.Flags().Int("fps", 30, "frames per second")
}

func newLogger() logging.Logger {
	cfg := logging.DefaultConfig()
	if debug {
		cfg.Level = slog.LevelDebug
	}
	return logging.NewLogger(cfg)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ddpctl version %s\n", Version)
		if BuildTime != "" {
			fmt.Printf("Build Time: %s\n", BuildTime)
		}
		if Commit != "" {
			fmt.Printf("Commit:     %s\n", Commit)
		}
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Start, stop, or list streaming targets",
}

var streamStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Stream an effect to a target until interrupted or a duration elapses",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetKind, _ := cmd.Flags().GetString("target-kind")
		targetID, _ := cmd.Flags().GetString("target-id")
		effect, _ := cmd.Flags().GetString("effect")
		colors, _ := cmd.Flags().GetStringSlice("color")
		fps, _ := cmd.Flags().GetInt("fps")
		exclusive, _ := cmd.Flags().GetBool("exclusive")
		duration, _ := cmd.Flags().GetDuration("duration")
		if targetID == "" {
			return fmt.Errorf("--target-id is required")
		}

		ents, err := loadEntities(configPath)
		if err != nil {
			return err
		}
		catalogs, addr := ents.fixtureCatalogs()
		cfg := config.NewDefault()
		cfg.DefaultFPS = fps

		ctrl := controller.New(cfg, controller.Catalogs{
			Fixtures: catalogs,
			Addr:     addr,
			Presets:  ents.presetLookup(),
			Holidays: ents.holidaySource(),
		}, newLogger())
		defer ctrl.Shutdown()

		preset := playlist.Preset{Effect: &playlist.EffectRef{
			Type:   effect,
			Params: effects.Params{"colors": {Kind: effects.KindColorArray, Colors: colors}},
		}}
		sess, err := ctrl.Supervisor.StartSession(session.Spec{
			Targets:   []resolve.Target{{Kind: resolve.TargetKind(targetKind), ID: targetID}},
			Layers:    preset.ToLayerSpecs(),
			FPS:       fps,
			Exclusive: exclusive,
		})
		if err != nil {
			return err
		}
		fmt.Printf("streaming session %s started on %s:%s\n", sess.ID(), targetKind, targetID)

		waitForStop(duration)
		return ctrl.Supervisor.Stop(sess.ID())
	},
}

var streamStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Send an immediate blackout to a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetKind, _ := cmd.Flags().GetString("target-kind")
		targetID, _ := cmd.Flags().GetString("target-id")
		if targetID == "" {
			return fmt.Errorf("--target-id is required")
		}

		ents, err := loadEntities(configPath)
		if err != nil {
			return err
		}
		catalogs, addr := ents.fixtureCatalogs()

		spans, err := resolve.Resolve(resolve.Target{Kind: resolve.TargetKind(targetKind), ID: targetID}, catalogs, nil)
		if err != nil {
			return err
		}

		sender := ddp.NewSender(ddp.Config{Pool: pool.NewUDPSenderPool(nil, newLogger())})
		defer sender.Close()

		ctx := context.Background()
		for _, span := range spans {
			fixtureAddr, ok := addr(span.FixtureID)
			if !ok {
				continue
			}
			blackout := make([]byte, span.Length*3)
			if err := sender.SendPixels(ctx, fixtureAddr, uint32(span.PixelOffset*3), blackout); err != nil {
				fmt.Fprintf(os.Stderr, "blackout failed for %s: %v\n", span.FixtureID, err)
			}
		}
		fmt.Printf("blackout sent to %s:%s\n", targetKind, targetID)
		return nil
	},
}

var streamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known fixtures/groups/virtuals and available effect types",
	RunE: func(cmd *cobra.Command, args []string) error {
		ents, err := loadEntities(configPath)
		if err != nil {
			return err
		}
		fmt.Println("Fixtures:")
		for id := range ents.fixtures {
			fmt.Printf("  %s\n", id)
		}
		fmt.Println("Groups:")
		for id := range ents.groups {
			fmt.Printf("  %s\n", id)
		}
		fmt.Println("Virtuals:")
		for id := range ents.virtuals {
			fmt.Printf("  %s\n", id)
		}

		names := effects.NewRegistry().Names()
		sort.Strings(names)
		fmt.Println("Effect types:")
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Report session scope for this CLI",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ddpctl runs one streaming operation per invocation: sessions live for the")
		fmt.Println("lifetime of a single `stream start` or `playlist start` process and are not")
		fmt.Println("shared across invocations. Use `stream list` for known targets and effects.")
	},
}

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect schedule rules",
}

var schedulesActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Evaluate configured rules against the current time and print which would be active",
	RunE: func(cmd *cobra.Command, args []string) error {
		ents, err := loadEntities(configPath)
		if err != nil {
			return err
		}
		catalogs, addr := ents.fixtureCatalogs()
		cfg := config.NewDefault()

		ctrl := controller.New(cfg, controller.Catalogs{
			Fixtures: catalogs,
			Addr:     addr,
			Presets:  ents.presetLookup(),
			Holidays: ents.holidaySource(),
		}, newLogger())
		defer ctrl.Shutdown()

		for _, r := range ents.rules {
			ctrl.Schedule.SetRule(r)
		}

		// Start the ticker loop just long enough for its immediate first
		// evaluation to run, then stop it again, since this command
		// reports a point-in-time snapshot and exits.
		runCtx, runCancel := context.WithCancel(context.Background())
		ctrl.Schedule.Start(runCtx)
		time.Sleep(50 * time.Millisecond)
		runCancel()
		ctrl.Schedule.Stop()

		for _, r := range ents.rules {
			if sessID, ok := ctrl.Schedule.ActiveSessionFor(r.ID); ok {
				fmt.Printf("%s: active (session %s)\n", r.ID, sessID)
			} else {
				fmt.Printf("%s: inactive\n", r.ID)
			}
		}
		return nil
	},
}

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Run a preset playlist",
}

var playlistStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a playlist against a target until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		targetKind, _ := cmd.Flags().GetString("target-kind")
		targetID, _ := cmd.Flags().GetString("target-id")
		items, _ := cmd.Flags().GetStringSlice("item")
		loop, _ := cmd.Flags().GetBool("loop")
		shuffle, _ := cmd.Flags().GetBool("shuffle")
		fps, _ := cmd.Flags().GetInt("fps")
		if targetID == "" || len(items) == 0 {
			return fmt.Errorf("--target-id and at least one --item are required")
		}

		ents, err := loadEntities(configPath)
		if err != nil {
			return err
		}
		catalogs, addr := ents.fixtureCatalogs()
		cfg := config.NewDefault()

		ctrl := controller.New(cfg, controller.Catalogs{
			Fixtures: catalogs,
			Addr:     addr,
			Presets:  ents.presetLookup(),
			Holidays: ents.holidaySource(),
		}, newLogger())
		defer ctrl.Shutdown()

		seq, err := parsePlaylistItems(items)
		if err != nil {
			return err
		}

		p, err := ctrl.Playlist.Start(playlist.Spec{
			Targets: []resolve.Target{{Kind: resolve.TargetKind(targetKind), ID: targetID}},
			Items:   seq,
			Loop:    loop,
			Shuffle: shuffle,
			FPS:     fps,
		})
		if err != nil {
			return err
		}
		fmt.Printf("playlist %s started on %s:%s\n", p.ID(), targetKind, targetID)

		waitForStop(0)
		p.Stop()
		<-p.Done()
		return nil
	},
}

func parsePlaylistItems(raw []string) ([]playlist.Item, error) {
	items := make([]playlist.Item, 0, len(raw))
	for _, r := range raw {
		colonIdx := strings.LastIndex(r, ":")
		if colonIdx < 0 {
			return nil, fmt.Errorf("item %q must be preset:durationSeconds", r)
		}
		presetID := r[:colonIdx]
		durationSeconds, err := strconv.Atoi(r[colonIdx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid duration in item %q: %w", r, err)
		}
		items = append(items, playlist.Item{PresetID: presetID, DurationSeconds: durationSeconds})
	}
	return items, nil
}

func waitForStop(duration time.Duration) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if duration > 0 {
		select {
		case <-sigCh:
		case <-time.After(duration):
		}
		return
	}
	<-sigCh
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
