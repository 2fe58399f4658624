// Command examm wires a configuration file to a running island
// speciation search: scheduler, strategy, and controller are
// constructed from it and then driven generation-by-generation until
// interrupted. Flag parsing is deliberately minimal (spec §3's
// Non-goals exclude CLI plumbing and time-series file ingestion as a
// core concern) — the one flag this binary owns is the config path;
// everything else comes from the TOML file itself.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/examm-go/examm/internal/config"
	"github.com/examm-go/examm/internal/controller"
	"github.com/examm-go/examm/internal/genome"
	"github.com/examm-go/examm/internal/rnn"
	"github.com/examm-go/examm/internal/scheduler"
	"github.com/examm-go/examm/internal/speciation"
	"github.com/examm-go/examm/internal/xlog"
)

func main() {
	configPath := flag.String("config", "examm.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "examm: loading config: %v\n", err)
		os.Exit(1)
	}
	shared := config.NewShared(cfg)

	log := xlog.New(xlog.Level(cfg.StdMessageLevel), "examm-main", "controller")
	log.Infof("loaded config from %s: %s", *configPath, cfg)

	inputNames := []string{"signal"}
	outputNames := []string{"signal"}
	seed := genome.NewSeedGenome(inputNames, outputNames, parseCellType(cfg.RNNType), cfg.NumHiddenLayers, 4, 1)

	strategyCfg := speciation.Config{
		NumberOfIslands:                 4,
		MaxIslandSize:                   10,
		GeneratedPerIsland:              4,
		MutationRate:                    0.7,
		IntraIslandCrossoverRate:        0.2,
		InterIslandCrossoverRate:        0.1,
		NumMutations:                    1,
		RepopulationMethod:              parseRepopulationMethod(cfg.RepopulationMethod),
		IslandRankingMethod:             speciation.RankEraseWorst,
		ExtinctionEventGenerationNumber: cfg.RepopulationFrequency,
		IslandsToExterminate:            cfg.IslandsToExterminate,
		RepeatExtinction:                cfg.RepeatExtinction,
		EraseAgainCooldown:              5,
		SeedStirs:                       cfg.SeedStirs,
		HiddenCellType:                  parseCellType(cfg.RNNType),
		AddNodeFanIn:                    2,
		AddNodeFanOut:                   2,
		MaxRecurrentDepth:               cfg.MaxRecurrentDepth,
		ControlSizeMethod:               parseControlSizeMethod(cfg.ControlSizeMethod),
	}
	strategy := speciation.NewOnline(strategyCfg, seed, 1)

	sched := scheduler.New(cfg.NumTrainingSets, cfg.NumValidationSets, cfg.Temperature, parseSamplingMethod(cfg.GetTrainDataBy), 1)
	sched.StartScoreTrackingGeneration = cfg.StartScoreTrackingGeneration

	ctrl, err := controller.New(strategy, sched, shared, log, cfg.OutputDirectory)
	if err != nil {
		log.Fatalf("constructing controller: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	rng := rand.New(rand.NewPCG(1, 2))
	candidatesPerGeneration := strategyCfg.NumberOfIslands * strategyCfg.GeneratedPerIsland

	// Real time-series ingestion is out of scope (spec §3); one
	// synthetic episode seeds the scheduler per generation so the
	// wiring above runs against real data shapes.
	seedInitialEpisodes(sched, cfg.NumTrainingSets+cfg.NumValidationSets+1, rng)

	for generation := int64(0); ; generation++ {
		select {
		case <-stop:
			log.Infof("received shutdown signal, stopping after generation %d", generation-1)
			return
		default:
		}

		sched.SetCurrentIndex(int(generation))
		sched.AddEpisode(nextEpisode(int32(generation)+100, rng))

		for i := 0; i < candidatesPerGeneration; i++ {
			g, err := strategy.GenerateGenome()
			if err != nil {
				log.Warnf("generation %d: generating candidate: %v", generation, err)
				continue
			}
			if err := ctrl.TrainCandidate(g); err != nil {
				log.Warnf("generation %d: training candidate %d: %v", generation, g.GenerationID, err)
			}
		}

		result, err := ctrl.FinalizeGeneration(generation)
		if err != nil {
			log.Errorf("generation %d: finalize: %v", generation, err)
			continue
		}
		if result.NewGlobalBest {
			log.Infof("generation %d: new global best, fitness=%g", generation, result.GlobalBest.Fitness)
		}
	}
}

func parseCellType(name string) rnn.CellType {
	switch name {
	case "jordan":
		return rnn.CellJordan
	case "elman":
		return rnn.CellElman
	case "lstm":
		return rnn.CellLSTM
	case "gru":
		return rnn.CellGRU
	case "mgu":
		return rnn.CellMGU
	case "ugrnn":
		return rnn.CellUGRNN
	case "delta":
		return rnn.CellDelta
	default:
		return rnn.CellSimple
	}
}

func parseControlSizeMethod(method config.ControlSizeMethod) speciation.ControlSizeMethod {
	switch method {
	case config.ControlReduceMutationRate:
		return speciation.ControlSizeRebalanceRates
	case config.ControlNone:
		return speciation.ControlSizeNone
	default:
		return speciation.ControlSizeReduceAddMutation
	}
}

func parseSamplingMethod(choice config.SamplerChoice) scheduler.SamplingMethod {
	if choice == config.SamplerPER {
		return scheduler.SamplingTemperedPER
	}
	return scheduler.SamplingUniform
}

func parseRepopulationMethod(name string) speciation.RepopulationMethod {
	switch name {
	case "best-parents":
		return speciation.RepopulateBestParents
	case "best-genome":
		return speciation.RepopulateBestGenome
	case "best-island":
		return speciation.RepopulateBestIsland
	default:
		return speciation.RepopulateRandomParents
	}
}

// seedInitialEpisodes and nextEpisode stand in for the out-of-scope
// time-series ingestion layer: enough synthetic episodes to exercise
// the scheduler/controller wiring end-to-end.
func seedInitialEpisodes(sched *scheduler.Scheduler, count int, rng *rand.Rand) {
	for i := 0; i < count; i++ {
		sched.AddEpisode(nextEpisode(int32(i), rng))
	}
}

func nextEpisode(id int32, rng *rand.Rand) *scheduler.Episode {
	const steps = 16
	inputs := make([][]float64, steps)
	outputs := make([][]float64, steps)
	value := rng.Float64()
	for t := 0; t < steps; t++ {
		value += (rng.Float64() - 0.5) * 0.1
		inputs[t] = []float64{value}
		outputs[t] = []float64{value}
	}
	return &scheduler.Episode{ID: id, Inputs: inputs, Outputs: outputs}
}
