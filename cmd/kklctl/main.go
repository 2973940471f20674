package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/monabf/learn-observe-KKL/checkpoint"
	"github.com/monabf/learn-observe-KKL/config"
	"github.com/monabf/learn-observe-KKL/evaluate"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/sample"
	"github.com/monabf/learn-observe-KKL/signal"
	"github.com/monabf/learn-observe-KKL/train"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	configFile string
	useBest    bool
	numTrajs   int
	simT1      float64
	simDt      float64
	outFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kklctl",
		Short: "learn nonlinear Luenberger observers from simulated data",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "kkl.yaml", "experiment config file")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "write a default experiment config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().Save(configFile); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", configFile)
			return nil
		},
	}

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "generate data and fit the transformation networks",
		RunE:  runTrain,
	}

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "reconstruct test trajectories and report RMSE",
		RunE:  runEval,
	}
	evalCmd.Flags().BoolVar(&useBest, "best", true, "evaluate the best validation checkpoint")
	evalCmd.Flags().IntVar(&numTrajs, "trajectories", 10, "number of test trajectories")
	evalCmd.Flags().Float64Var(&simT1, "time", 20.0, "simulation horizon")
	evalCmd.Flags().Float64Var(&simDt, "dt", 0.04, "output resolution")

	predictCmd := &cobra.Command{
		Use:   "predict [measurements.csv]",
		Short: "reconstruct the state trajectory from a measurement log",
		Args:  cobra.ExactArgs(1),
		RunE:  runPredict,
	}
	predictCmd.Flags().BoolVar(&useBest, "best", true, "use the best validation checkpoint")
	predictCmd.Flags().Float64Var(&simDt, "dt", 0.04, "output resolution")
	predictCmd.Flags().StringVarP(&outFile, "out", "o", "estimates.csv", "output file")

	runsCmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "list recorded runs, or plot one run's loss history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}

	rootCmd.AddCommand(initCmd, trainCmd, evalCmd, predictCmd, runsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	obs, err := cfg.Observer()
	if err != nil {
		return err
	}
	method, err := cfg.SamplingMethod()
	if err != nil {
		return err
	}

	gen := sample.NewGenerator(obs, cfg.Seed)
	gen.NoiseStd = cfg.Sampling.NoiseStd
	log.Printf("generating %d samples over %v", cfg.Sampling.NumSamples, cfg.Sampling.Limits)
	ds, err := gen.SVL(cfg.Sampling.Limits, cfg.Sampling.NumSamples, method, cfg.Sampling.K)
	if err != nil {
		return err
	}
	trainDS, valDS := ds.Split(gen.Rand(), cfg.Sampling.ValFrac, true)
	log.Printf("dataset: %d train / %d validation samples", trainDS.Len(), valDS.Len())

	opts, err := cfg.TrainOptions()
	if err != nil {
		return err
	}
	learner, err := train.NewLearner(obs, trainDS, valDS, opts)
	if err != nil {
		return err
	}

	var store *checkpoint.RunStore
	var runID string
	if cfg.RunStorePath != "" {
		store, err = checkpoint.OpenRunStore(ctx, cfg.RunStorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.CreateRun(ctx, cfg.System, opts.Target.String())
		if err != nil {
			return err
		}
	}

	learner.OnEpoch = func(st train.EpochStats) {
		if st.Validated {
			log.Printf("epoch %3d  lr %.2e  train %.6e  val %.6e", st.Epoch, st.LR, st.TrainLoss, st.ValLoss)
		} else {
			log.Printf("epoch %3d  lr %.2e  train %.6e", st.Epoch, st.LR, st.TrainLoss)
		}
		if store != nil {
			if err := store.RecordEpoch(ctx, runID, st); err != nil {
				log.Printf("run store: %v", err)
			}
		}
	}

	report, err := learner.Fit(ctx)
	if err != nil {
		return err
	}
	learner.RestoreBest()
	if store != nil {
		if err := store.FinishRun(ctx, runID, report); err != nil {
			log.Printf("run store: %v", err)
		}
	}

	plotHistory(report.History, fmt.Sprintf("validation loss (best %.4e at epoch %d)", report.BestValLoss, report.BestEpoch))

	art := checkpoint.FromLearner(learner, report)
	if err := art.Save(cfg.CheckpointPath); err != nil {
		return err
	}
	log.Printf("saved checkpoint to %s", cfg.CheckpointPath)
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	art, err := checkpoint.Load(cfg.CheckpointPath)
	if err != nil {
		return err
	}
	obs, err := art.Observer(useBest)
	if err != nil {
		return err
	}
	sys := obs.System()

	gen := sample.NewGenerator(obs, cfg.Seed+1)
	span := observer.Span{T0: 0, T1: simT1}
	method, err := cfg.SamplingMethod()
	if err != nil {
		return err
	}
	set, err := gen.Trajectories(cfg.Sampling.Limits, numTrajs, method, span, simDt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "trajectory\tRMSE")
	total := 0.0
	for i, tr := range set.Trajs {
		r, _ := tr.Data.Dims()
		truth := tr.Data.Slice(0, r, 0, set.DimX).(*mat.Dense)

		// Rebuild the measurement stream the observer would have seen.
		ys := mat.NewDense(r, obs.DimY, nil)
		for j := 0; j < r; j++ {
			y := sys.H(truth.RowView(j))
			for d := 0; d < obs.DimY; d++ {
				ys.Set(j, d, y.AtVec(d))
			}
		}
		series := signal.NewSeries(tr.Ts, ys, signal.Linear)

		_, xhat, err := obs.Predict(series, span, simDt)
		if err != nil {
			return err
		}
		rmse, err := evaluate.TotalRMSE(xhat, truth)
		if err != nil {
			return err
		}
		total += rmse
		fmt.Fprintf(w, "%d\t%.6e\n", i, rmse)
	}
	fmt.Fprintf(w, "mean\t%.6e\n", total/float64(len(set.Trajs)))
	return w.Flush()
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	art, err := checkpoint.Load(cfg.CheckpointPath)
	if err != nil {
		return err
	}
	obs, err := art.Observer(useBest)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	ts, states, err := evaluate.ReadHardwareCSV(f, obs.System())
	if err != nil {
		return err
	}
	// The log carries full state rows; the observer only sees the
	// measured channels.
	sys := obs.System()
	ys := mat.NewDense(len(ts), obs.DimY, nil)
	for i := range ts {
		y := sys.H(states.RowView(i))
		for d := 0; d < obs.DimY; d++ {
			ys.Set(i, d, y.AtVec(d))
		}
	}
	series := signal.NewSeries(ts, ys, signal.Linear)
	span := observer.Span{T0: ts[0], T1: ts[len(ts)-1]}

	grid, xhat, err := obs.Predict(series, span, simDt)
	if err != nil {
		return err
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer out.Close()
	cw := csv.NewWriter(out)
	defer cw.Flush()

	record := make([]string, obs.DimX+1)
	for i, t := range grid {
		record[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for d := 0; d < obs.DimX; d++ {
			record[d+1] = strconv.FormatFloat(xhat.At(i, d), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	log.Printf("wrote %d estimates to %s", len(grid), outFile)
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	store, err := checkpoint.OpenRunStore(ctx, cfg.RunStorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		history, err := store.Epochs(ctx, args[0])
		if err != nil {
			return err
		}
		plotHistory(history, "validation loss")
		return nil
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tsystem\tmethod\tstarted\tbest epoch\tbest val loss")
	for _, r := range runs {
		best := "-"
		if r.Finished {
			best = fmt.Sprintf("%.4e", r.BestValLoss)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.System, r.Method, r.StartedAt.Format("2006-01-02 15:04"), r.BestEpoch, best)
	}
	return w.Flush()
}

// plotHistory renders the validated epochs' losses as a terminal chart.
func plotHistory(history []train.EpochStats, caption string) {
	var losses []float64
	for _, st := range history {
		if st.Validated {
			losses = append(losses, st.ValLoss)
		}
	}
	if len(losses) < 2 {
		return
	}
	graph := asciigraph.Plot(losses,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
}
