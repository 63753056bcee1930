package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/chewxy/math32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlod-engine/internal/hlod"
	"hlod-engine/internal/loadmgr"
	"hlod-engine/internal/space"
	"hlod-engine/internal/world"
)

// flight moves the camera on a descending spiral around the origin: it starts at radius and
// height and ends over the center at a tenth of the height.
type flight struct {
	frames int
	radius float32
	height float32
	turns  float32
	fov    float32
	bias   float32
}

// at returns the camera for frame i of f.frames.
func (f flight) at(i int) space.Camera {
	t := float32(0)
	if f.frames > 1 {
		t = float32(i) / float32(f.frames-1)
	}
	r := f.radius * (1 - t)
	a := 2 * math32.Pi * f.turns * t
	return space.Camera{
		Position: space.Vec3{r * math32.Cos(a), f.height * (1 - 0.9*t), r * math32.Sin(a)},
		Fov:      f.fov,
		LODBias:  f.bias,
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		treePath    string
		mode        string
		budget      int
		copies      int
		every       int
		fps         int
		settle      int
		metricsAddr string
		fl          = flight{radius: 60, height: 40, turns: 1, fov: 60}
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream a hierarchy along a scripted camera flight and report progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fl.frames < 1 {
				return fmt.Errorf("run: --frames must be at least 1")
			}
			prefs := a.prefs
			if mode != "" {
				prefs.Mode = mode
			}
			if cmd.Flags().Changed("budget") {
				prefs.LoadBudget = budget
			}
			if cmd.Flags().Changed("copies") {
				prefs.Copies = copies
			}
			fl.bias = prefs.LODBias

			var metrics *loadmgr.Metrics
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector())
				metrics = loadmgr.NewMetrics(reg)
				_, stop, err := serveMetrics(cmd.Context(), metricsAddr, reg, a.log.Logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			w, err := world.Open(prefs, world.Options{TreePath: treePath, Log: a.log.Logger, Metrics: metrics})
			if err != nil {
				return err
			}

			var tick *time.Ticker
			if fps > 0 {
				tick = time.NewTicker(time.Second / time.Duration(fps))
				defer tick.Stop()
			}
			frame := func(i int, cam space.Camera) error {
				if tick != nil {
					select {
					case <-tick.C:
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					}
				}
				w.Runtime.Tick(cam)
				if every > 0 && i%every == 0 {
					logStats(a.log.Logger, i, w.Runtime.Stats())
				}
				return nil
			}

			start := time.Now()
			for i := range fl.frames {
				if err := frame(i, fl.at(i)); err != nil {
					return errors.Join(err, w.Close())
				}
			}
			// hold the last camera until streaming catches up
			last := fl.at(fl.frames - 1)
			extra := 0
			for ; extra < settle && !w.Runtime.IsLoadDone(); extra++ {
				if err := frame(fl.frames+extra, last); err != nil {
					return errors.Join(err, w.Close())
				}
				if tick == nil {
					time.Sleep(time.Millisecond)
				}
			}

			st := w.Runtime.Stats()
			loads, unloads := w.Source.Totals()
			a.log.Info("flight finished",
				zap.Int("frames", fl.frames+extra),
				zap.Duration("elapsed", time.Since(start)),
				zap.Bool("load_done", w.Runtime.IsLoadDone()),
				zap.Int("ready", st.Ready),
				zap.Int("nodes", st.Nodes),
				zap.Int("controllers", len(w.Controllers)),
				zap.Int("resident", w.Source.Resident()),
				zap.Int("loads", loads),
				zap.Int("unloads", unloads),
			)
			return w.Close()
		},
	}
	f := cmd.Flags()
	f.StringVar(&treePath, "tree", "", "tree descriptor; empty generates a map from the config")
	f.StringVar(&mode, "mode", "", "override the streaming mode (disable, manual, auto)")
	f.IntVar(&budget, "budget", 0, "loads in flight; 0 loads inline")
	f.IntVar(&copies, "copies", 1, "copies of the hierarchy placed side by side")
	f.IntVar(&fl.frames, "frames", 600, "frames of the flight")
	f.IntVar(&settle, "settle", 1000, "extra frames allowed for loads to finish at the end")
	f.IntVar(&every, "every", 60, "log stats every N frames; 0 disables")
	f.IntVar(&fps, "fps", 0, "frames per second; 0 runs unpaced")
	f.Float32Var(&fl.radius, "radius", fl.radius, "start radius of the flight")
	f.Float32Var(&fl.height, "height", fl.height, "start height of the flight")
	f.Float32Var(&fl.turns, "turns", fl.turns, "turns around the origin")
	f.Float32Var(&fl.fov, "fov", fl.fov, "vertical field of view in degrees")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	return cmd
}

func logStats(log *zap.Logger, frame int, s hlod.Stats) {
	log.Info("stats",
		zap.Int("frame", frame),
		zap.Int("ready", s.Ready),
		zap.Int("high", s.High),
		zap.Int("low", s.Low),
		zap.Int("released", s.Released),
		zap.Int("entering", s.Pending),
		zap.Int("queued", s.Queued),
		zap.Int("in_flight", s.InFlight),
	)
}

// serveMetrics serves reg on addr until the returned stop function is called. It returns the
// address actually bound, which differs from addr for port 0.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) (bound string, stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	bound = ln.Addr().String()
	log.Info("serving metrics", zap.String("addr", bound))
	return bound, func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		<-done
	}, nil
}
