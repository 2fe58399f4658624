// Package csvio implements the three CSV artifact writers spec §6
// names: per-generation prediction output, the running score trace,
// and the per-genome backprop training log. All three are simple flat
// CSVs with a fixed, name-derived header, so stdlib encoding/csv is
// used directly rather than a third-party CSV library (no example
// repo writes CSV at all, let alone with a library beyond the
// standard one).
package csvio

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/examm-go/examm/internal/backprop"
)

// WritePredictions writes <output_dir>/generation_<g>_global_best.csv
// (spec §6 "Prediction output"): header
// #expected_<name>*,naive_<name>*,global_best_predicted_<name>*, one
// row per time step j in [1,T) with expected[j], naive[j]=expected[j-1],
// predicted[j] for every output variable.
func WritePredictions(path string, outputNames []string, expected, predicted [][]float64) error {
	if len(expected) != len(predicted) {
		return errors.Errorf("csvio: expected/predicted length mismatch: %d vs %d", len(expected), len(predicted))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "csvio: creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, 0, 3*len(outputNames))
	for _, name := range outputNames {
		header = append(header, "#expected_"+name)
	}
	for _, name := range outputNames {
		header = append(header, "naive_"+name)
	}
	for _, name := range outputNames {
		header = append(header, "global_best_predicted_"+name)
	}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "csvio: writing prediction header")
	}

	for j := 1; j < len(expected); j++ {
		row := make([]string, 0, 3*len(outputNames))
		for i := range outputNames {
			row = append(row, formatFloat(expected[j][i]))
		}
		for i := range outputNames {
			row = append(row, formatFloat(expected[j-1][i]))
		}
		for i := range outputNames {
			row = append(row, formatFloat(predicted[j][i]))
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "csvio: writing prediction row")
		}
	}
	return nil
}

func formatFloat(v float64) string { return fmt.Sprintf("%g", v) }

// ScoreTrace appends one row to <stats_dir>/training_scores.csv (spec
// §6 "Score trace"): header generation,episode_<id>,... on first
// write, one column per episode id passed to Append (episode_0 for id
// 0), then generation followed by every episode's current score in
// ascending episode-id order.
type ScoreTrace struct {
	path        string
	wroteHeader bool
}

// NewScoreTrace opens (or creates) path for appending; wroteHeader is
// inferred from whether the file already has content.
func NewScoreTrace(path string) (*ScoreTrace, error) {
	info, err := os.Stat(path)
	wrote := err == nil && info.Size() > 0
	return &ScoreTrace{path: path, wroteHeader: wrote}, nil
}

// Append writes one generation's row, writing the header first if this
// is the first call for a fresh file.
func (s *ScoreTrace) Append(generation int64, episodeIDs []int32, scores []float64) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "csvio: opening %s", s.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if !s.wroteHeader {
		header := make([]string, 0, len(episodeIDs)+1)
		header = append(header, "generation")
		for _, id := range episodeIDs {
			header = append(header, fmt.Sprintf("episode_%d", id))
		}
		if err := w.Write(header); err != nil {
			return errors.Wrap(err, "csvio: writing score-trace header")
		}
		s.wroteHeader = true
	}

	row := make([]string, 0, len(scores)+1)
	row = append(row, fmt.Sprintf("%d", generation))
	for _, sc := range scores {
		row = append(row, formatFloat(sc))
	}
	return errors.Wrap(w.Write(row), "csvio: writing score-trace row")
}

// TrainingLog writes the per-genome, per-iteration backprop log (spec
// §6 "Training log stream") and satisfies backprop.Logger so it can be
// wired directly into backprop.Options.Log.
type TrainingLog struct {
	w   *csv.Writer
	f   *os.File
}

// NewTrainingLog creates path and writes its fixed header.
func NewTrainingLog(path string) (*TrainingLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "csvio: creating %s", path)
	}
	w := csv.NewWriter(f)
	header := []string{"iteration", "elapsed_ms", "training_mse", "validation_mse", "best_validation_mse", "best_validation_mae", "average_gradient_norm"}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "csvio: writing training-log header")
	}
	return &TrainingLog{w: w, f: f}, nil
}

// LogIteration implements backprop.Logger.
func (t *TrainingLog) LogIteration(l backprop.IterationLog) {
	row := []string{
		fmt.Sprintf("%d", l.Iteration),
		fmt.Sprintf("%d", l.ElapsedMS),
		formatFloat(l.TrainingMSE),
		formatFloat(l.ValidationMSE),
		formatFloat(l.BestValidMSE),
		formatFloat(l.BestValidMAE),
		formatFloat(l.AverageGradNorm),
	}
	_ = t.w.Write(row)
}

// Close flushes and closes the underlying file.
func (t *TrainingLog) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.f.Close()
		return errors.Wrap(err, "csvio: flushing training log")
	}
	return t.f.Close()
}
