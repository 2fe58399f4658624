package backprop

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/examm-go/examm/internal/genome"
)

// IterationLog is one row of the per-iteration training log (spec §6
// "training log"): iteration, elapsed time, training/validation MSE,
// best validation MSE/MAE so far, and the average gradient norm for
// that iteration.
type IterationLog struct {
	Iteration       int
	ElapsedMS       int64
	TrainingMSE     float64
	ValidationMSE   float64
	BestValidMSE    float64
	BestValidMAE    float64
	AverageGradNorm float64
}

// Logger receives one IterationLog per completed iteration; callers
// wire this to the CSV training-log writer. A nil Logger is a no-op.
type Logger interface {
	LogIteration(IterationLog)
}

// Options configures a single backpropagation run. GradientClip<=0
// disables clipping.
type Options struct {
	Iterations   int
	UseSoftmax   bool
	GradientClip float64
	Update       WeightUpdate
	Log          Logger
}

func validateSeries(g *genome.Genome, series []*Series) error {
	for i, s := range series {
		if len(s.Inputs) != len(s.Outputs) {
			return errors.Wrapf(errBadSeries, "series %d: %d input steps vs %d output steps", i, len(s.Inputs), len(s.Outputs))
		}
		for t, row := range s.Inputs {
			if len(row) != len(g.InputParameterNames) {
				return errors.Wrapf(errBadSeries, "series %d step %d: %d input columns, schema has %d", i, t, len(row), len(g.InputParameterNames))
			}
		}
		for t, row := range s.Outputs {
			if len(row) != len(g.OutputParameterNames) {
				return errors.Wrapf(errBadSeries, "series %d step %d: %d output columns, schema has %d", i, t, len(row), len(g.OutputParameterNames))
			}
		}
	}
	return nil
}

// Batch runs batch-mode backpropagation (spec §4.2 "batch: parallel
// forward over all series via worker threads, single backward with
// summed error"): every series' forward pass runs concurrently via
// errgroup, gradients from all series are summed into one update per
// iteration. An error from any series (schema mismatch) aborts the
// whole run immediately via errgroup's first-error semantics.
func Batch(g *genome.Genome, training, validation []*Series, opts Options) error {
	if err := validateSeries(g, training); err != nil {
		return err
	}
	if err := validateSeries(g, validation); err != nil {
		return err
	}

	nParams := g.NumWeights()
	parameters := append([]float64(nil), g.InitialParameters...)
	if len(parameters) != nParams {
		parameters = g.GetParameters()
	}
	velocity := make([]float64, nParams)
	prevVelocity := make([]float64, nParams)

	start := time.Now()

	g.BestValidationMSE = MSE(g, validation)
	g.BestValidationMAE = MAE(g, validation)
	g.BestParameters = append([]float64(nil), parameters...)

	for iteration := 0; iteration < opts.Iterations; iteration++ {
		grads := make([][]float64, len(training))
		errs, _ := errgroup.WithContext(context.Background())
		for i, s := range training {
			i, s := i, s
			errs.Go(func() error {
				// each series gets its own genome copy so concurrent
				// forward/backward passes never share mutable cell
				// state (matching the original's per-series RNN
				// instances).
				seriesGenome := g.Copy()
				if err := seriesGenome.SetParameters(parameters); err != nil {
					return err
				}
				r := newRunner(seriesGenome)
				r.forward(s)
				grad := make([]float64, nParams)
				r.backward(s, opts.UseSoftmax, grad)
				grads[i] = grad
				return nil
			})
		}
		if err := errs.Wait(); err != nil {
			return err
		}

		summed := make([]float64, nParams)
		for i := range training {
			for k := range summed {
				summed[k] += grads[i][k]
			}
		}
		for k := range summed {
			summed[k] /= float64(len(training))
		}
		if err := g.SetParameters(parameters); err != nil {
			return err
		}
		trainMSE := MSE(g, training)

		norm := GradientNorm(summed)
		ClipGradient(summed, norm, opts.GradientClip)
		opts.Update.Update(parameters, velocity, prevVelocity, summed, iteration)
		if err := g.SetParameters(parameters); err != nil {
			return err
		}

		validMSE := MSE(g, validation)
		if validMSE < g.BestValidationMSE {
			g.BestValidationMSE = validMSE
			g.BestValidationMAE = MAE(g, validation)
			g.BestParameters = append([]float64(nil), parameters...)
		}

		if opts.Log != nil {
			opts.Log.LogIteration(IterationLog{
				Iteration: iteration, ElapsedMS: time.Since(start).Milliseconds(),
				TrainingMSE: trainMSE, ValidationMSE: validMSE,
				BestValidMSE: g.BestValidationMSE, BestValidMAE: g.BestValidationMAE,
				AverageGradNorm: norm,
			})
		}
	}

	return g.SetParameters(g.BestParameters)
}

// Stochastic runs stochastic-mode backpropagation (spec §4.2
// "stochastic: per-series shuffle, NaN/inf in gradient norm aborts and
// marks the genome dead with NaN fitness"): one series at a time, in a
// freshly shuffled order every iteration, sequentially on g itself with
// one weight update per series. No goroutines are started, since no
// shared abort-on-first-error is needed (the abort condition here is
// numerical, not structural).
func Stochastic(g *genome.Genome, training, validation []*Series, opts Options, seed uint64) error {
	if err := validateSeries(g, training); err != nil {
		return err
	}
	if err := validateSeries(g, validation); err != nil {
		return err
	}

	nParams := g.NumWeights()
	parameters := append([]float64(nil), g.InitialParameters...)
	if len(parameters) != nParams {
		parameters = g.GetParameters()
	}
	velocity := make([]float64, nParams)
	prevVelocity := make([]float64, nParams)
	rng := rand.New(rand.NewPCG(seed, seed^0x2545F4914F6CDD1D))

	start := time.Now()
	g.BestValidationMSE = MSE(g, validation)
	g.BestValidationMAE = MAE(g, validation)
	g.BestParameters = append([]float64(nil), parameters...)

	for iteration := 0; iteration < opts.Iterations; iteration++ {
		order := rng.Perm(len(training))
		var avgNorm float64

		for _, idx := range order {
			_ = g.SetParameters(parameters)
			r := newRunner(g)
			r.forward(training[idx])
			grad := make([]float64, nParams)
			r.backward(training[idx], opts.UseSoftmax, grad)

			norm := GradientNorm(grad)
			if math.IsNaN(norm) || math.IsInf(norm, 0) {
				g.BestParameters = append([]float64(nil), parameters...)
				g.BestValidationMSE = math.NaN()
				g.BestValidationMAE = math.NaN()
				g.Fitness = math.NaN()
				return nil
			}
			avgNorm += norm
			ClipGradient(grad, norm, opts.GradientClip)
			opts.Update.Update(parameters, velocity, prevVelocity, grad, iteration)
		}
		avgNorm /= float64(len(order))

		_ = g.SetParameters(parameters)
		trainMSE := MSE(g, training)
		validMSE := MSE(g, validation)
		if validMSE < g.BestValidationMSE {
			g.BestValidationMSE = validMSE
			g.BestValidationMAE = MAE(g, validation)
			g.BestParameters = append([]float64(nil), parameters...)
		}

		if opts.Log != nil {
			opts.Log.LogIteration(IterationLog{
				Iteration: iteration, ElapsedMS: time.Since(start).Milliseconds(),
				TrainingMSE: trainMSE, ValidationMSE: validMSE,
				BestValidMSE: g.BestValidationMSE, BestValidMAE: g.BestValidationMAE,
				AverageGradNorm: avgNorm,
			})
		}
	}

	return g.SetParameters(g.BestParameters)
}
