package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/banshee-data/liframe/internal/algo"
	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/fsutil"
	"github.com/banshee-data/liframe/internal/logging"
	"github.com/banshee-data/liframe/internal/metrics"
	"github.com/banshee-data/liframe/internal/monitor"
	"github.com/banshee-data/liframe/internal/orchestrator"
	"github.com/banshee-data/liframe/internal/stage"
	"github.com/banshee-data/liframe/internal/store"
	"github.com/banshee-data/liframe/internal/tui"
)

type runOptions struct {
	configPath string
	tui        bool
	listen     string
	dbPath     string
	play       bool
	watch      bool
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play back the configured dataset",
		Long: `Build the sources and stages from the configuration, start paused (or
playing with --play) and process frames until quit or interrupted. The
configuration file is watched and reapplied when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPlayback(ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "configuration file (env "+configEnv+")")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show the terminal player")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "monitor HTTP address, overrides monitor.listen")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "run database, overrides store.path")
	cmd.Flags().BoolVar(&opts.play, "play", false, "start playing instead of paused")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "reload the configuration when the file changes")
	return cmd
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Path,
		Console: cfg.Logging.GetConsole(),
		Format:  cfg.Logging.Format,
	})
}

func runPlayback(ctx context.Context, opts runOptions) (err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Monitor.Listen = opts.listen
	}
	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	reg := stage.NewRegistry()
	if err := algo.Register(reg, fsutil.OSFileSystem{}); err != nil {
		return err
	}

	// The store outlives the orchestrator so the recorder can finish the run.
	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	o := orchestrator.New(orchestrator.Options{Registry: reg, Log: log.Component("orchestrator")})
	defer func() {
		if cerr := o.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	m := metrics.New(o.SourceStats)
	o.AddObserver(m)
	o.AddSink(m)

	if st != nil {
		run, err := st.StartRun(ctx, opts.configPath)
		if err != nil {
			return err
		}
		rec := store.NewFrameRecorder(st, run.ID, log.Component("store"))
		o.AddObserver(rec)
		o.AddSink(rec)
		log.Infof("recording run %s to %s", run.ID, cfg.Store.Path)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	visual := false
	if cfg.Monitor.Listen != "" {
		srvOpts := monitor.Options{
			Addr:       cfg.Monitor.Listen,
			Controller: o,
			Metrics:    m.Handler(),
			Log:        log.Component("monitor"),
		}
		if st != nil {
			srvOpts.Admin = st.AttachAdminRoutes
		}
		srv, err := monitor.New(srvOpts)
		if err != nil {
			return err
		}
		o.AddObserver(srv)
		o.AddSink(srv)
		visual = true
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Errorf("monitor: %v", err)
			}
		}()
	}

	var program *tea.Program
	if opts.tui {
		program = tea.NewProgram(tui.NewModel(o), tea.WithContext(ctx))
		o.AddSink(tui.Sink{Program: program})
		visual = true
	}
	if !cfg.Visualization.Enabled || !visual {
		if cfg.Visualization.Enabled {
			log.Warnf("visualization is enabled but neither --tui nor a monitor address is set; logging frames instead")
		}
		o.AddSink(orchestrator.LogSink{Log: log})
	}

	o.Reset(cfg)
	if err := o.Start(); err != nil {
		return err
	}
	if opts.watch {
		err := config.Watch(ctx, opts.configPath, func(next *config.Config, err error) {
			if err != nil {
				log.Errorf("config reload: %v", err)
				return
			}
			if err := log.SetLevel(next.Logging.Level); err != nil {
				log.Warnf("config reload: %v", err)
			}
			next.Monitor.Listen, next.Store.Path = cfg.Monitor.Listen, cfg.Store.Path
			log.Infof("configuration changed, reapplying")
			o.Reload(next)
		})
		if err != nil {
			log.Warnf("config watch disabled: %v", err)
		}
	}

	play := func() error {
		if opts.play {
			// Show the first frame before playback advances past it.
			if err := o.Step(ctx); err != nil {
				return err
			}
			o.TogglePlay()
		}
		return o.Run(ctx)
	}
	// Starvation is an orderly stop; the orchestrator has already logged it.
	loop := func() error {
		err := play()
		if errors.Is(err, orchestrator.ErrStopped) || errors.Is(err, orchestrator.ErrStarved) {
			return nil
		}
		return err
	}
	if program == nil {
		return loop()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- loop()
		program.Quit()
	}()
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-errc
		return fmt.Errorf("terminal player: %w", err)
	}
	cancel()
	return <-errc
}
