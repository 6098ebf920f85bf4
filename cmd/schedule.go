package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/monitoring"
	"github.com/tangocommunity/crawler/internal/scheduler"
)

var scheduleShutdownTimeout time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run every lane on its interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		env, err := initCrawlEnv(ctx, envOptions{DueOnly: true})
		if err != nil {
			return err
		}

		s := scheduler.New(laneTasks(env), scheduler.Options{
			Stagger:   cfg.Schedule.Stagger,
			Dashboard: cfg.Schedule.Dashboard,
			Gauge:     env.Metrics,
			Closers:   env.closers(),
		})

		var srv *monitoring.Server
		if cfg.Metrics.Addr != "" {
			srv, err = monitoring.Listen(cfg.Metrics.Addr, monitoring.NewRouter(env.Metrics, s, env.Store))
			if err != nil {
				env.Close()
				return err
			}
			go func() {
				if err := srv.Serve(); err != nil {
					zap.L().Error("metrics server stopped", zap.Error(err))
				}
			}()
		}

		if err := s.Start(); err != nil {
			env.Close()
			return err
		}
		zap.L().Info("scheduler running, waiting for signal")

		<-ctx.Done()
		zap.L().Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scheduleShutdownTimeout)
		defer cancel()

		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("metrics server shutdown", zap.Error(err))
			}
		}
		if err := s.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "shutdown")
		}
		return nil
	},
}

// laneTasks pairs each lane with its configured interval.
func laneTasks(env *crawlEnv) []scheduler.Task {
	intervals := map[model.Lane]time.Duration{
		model.LaneEvents:   cfg.Schedule.Events,
		model.LaneProducts: cfg.Schedule.Products,
		model.LaneHotels:   cfg.Schedule.Hotels,
	}
	tasks := make([]scheduler.Task, 0, len(model.AllLanes))
	for _, l := range model.AllLanes {
		tasks = append(tasks, scheduler.Task{Lane: env.Lanes[l], Interval: intervals[l]})
	}
	return tasks
}

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleShutdownTimeout, "shutdown-timeout", 2*time.Minute, "how long to wait for running lanes to drain")
	rootCmd.AddCommand(scheduleCmd)
}
