// Package evolution searches for better strategy parameters with a small genetic algorithm.
package evolution

import (
	"adaptive-agent-go/internal/ids"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfiguration is returned for population sizes below 2 or negative generation counts.
var ErrInvalidConfiguration = errors.New("invalid evolution configuration")

// DefaultAdoptionThreshold is the minimum fitness delta required to adopt an evolved gene.
const DefaultAdoptionThreshold = 0.05

// MeasureFunc supplies the metrics a gene is scored on.
type MeasureFunc func(gene *Gene, target Metrics) Metrics

// TargetMeasure returns the target metrics unchanged.
func TargetMeasure(_ *Gene, target Metrics) Metrics {
	return target
}

// GenerationStat records one generation of a run.
type GenerationStat struct {
	Generation  int
	Size        int
	BestFitness float64
	BestID      string
}

// Result is the outcome of one Evolve call.
type Result struct {
	Original *Gene
	Best     *Gene
	Delta    float64
	History  []GenerationStat
	Final    []*Gene
}

// Options configures an Engine.
type Options struct {
	MutationRate   float64
	PatternLibrary []string
	Measure        MeasureFunc
	Operators      []Operator // nil selects point mutation, insertion and deletion
	Seed           int64
}

// Engine runs the genetic search. It is safe for concurrent use; runs are serialized
// on the shared random source.
type Engine struct {
	evaluator *FitnessEvaluator
	measure   MeasureFunc
	operators []Operator
	mu        sync.Mutex
	rng       *rand.Rand
	logger    *zap.Logger
}

// NewEngine creates an Engine. A zero seed seeds from the clock.
func NewEngine(evaluator *FitnessEvaluator, opts Options, logger *zap.Logger) *Engine {
	if evaluator == nil {
		evaluator = NewFitnessEvaluator(nil)
	}
	if opts.MutationRate <= 0 {
		opts.MutationRate = 0.1
	}
	if opts.PatternLibrary == nil {
		opts.PatternLibrary = DefaultPatternLibrary
	}
	if opts.Measure == nil {
		opts.Measure = TargetMeasure
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	operators := opts.Operators
	if len(operators) == 0 {
		operators = []Operator{
			PointMutation(opts.MutationRate),
			Insertion(opts.PatternLibrary),
			Deletion(),
		}
	}
	return &Engine{
		evaluator: evaluator,
		measure:   opts.Measure,
		operators: operators,
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger,
	}
}

// Evolve evolves gene for exactly generations iterations with the default measure.
func (e *Engine) Evolve(ctx context.Context, gene *Gene, target Metrics, populationSize, generations int) (Result, error) {
	return e.EvolveWith(ctx, gene, target, populationSize, generations, e.measure)
}

// EvolveWith is Evolve with a per-call measure.
func (e *Engine) EvolveWith(ctx context.Context, gene *Gene, target Metrics, populationSize, generations int, measure MeasureFunc) (Result, error) {
	if populationSize < 2 {
		return Result{}, fmt.Errorf("%w: population size %d < 2", ErrInvalidConfiguration, populationSize)
	}
	if generations < 0 {
		return Result{}, fmt.Errorf("%w: generations %d < 0", ErrInvalidConfiguration, generations)
	}
	if gene == nil {
		return Result{}, fmt.Errorf("%w: nil gene", ErrInvalidConfiguration)
	}
	if measure == nil {
		measure = TargetMeasure
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	original := gene.Clone()
	if original.ID == "" {
		original.ID = ids.NewGeneID()
	}
	evaluate := func(g *Gene) {
		g.Fitness = e.evaluator.Evaluate(g, measure(g, target))
	}
	evaluate(original)

	// seed: the original at the next generation plus populationSize-1 variants
	population := make([]*Gene, 0, populationSize)
	seed := original.Clone()
	seed.Generation = original.Generation + 1
	population = append(population, seed)
	for i := 0; i < populationSize-1; i++ {
		population = append(population, &Gene{
			ID:         fmt.Sprintf("%s-m%d", original.ID, i),
			Strategy:   original.Strategy,
			Content:    e.mutate(original.Content),
			Generation: original.Generation + 1,
		})
	}

	res := Result{Original: original}
	for g := 0; g < generations; g++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for _, p := range population {
			evaluate(p)
		}
		sortByFitness(population)
		res.History = append(res.History, GenerationStat{
			Generation:  g,
			Size:        len(population),
			BestFitness: population[0].Fitness,
			BestID:      population[0].ID,
		})

		keep := populationSize / 2
		if keep < 1 {
			keep = 1
		}
		survivors := population[:keep]
		next := make([]*Gene, 0, populationSize)
		next = append(next, survivors...)
		for i := 0; len(next) < populationSize; i++ {
			p1 := survivors[i%len(survivors)]
			p2 := survivors[(i+1)%len(survivors)]
			next = append(next, &Gene{
				ID:         fmt.Sprintf("%s-g%d-%d", original.ID, g, i),
				Strategy:   original.Strategy,
				Content:    e.mutate(Crossover(p1.Content, p2.Content)),
				Generation: original.Generation + 2 + g,
			})
		}
		population = next
	}

	for _, p := range population {
		evaluate(p)
	}
	sortByFitness(population)

	res.Best = population[0].Clone()
	res.Delta = res.Best.Fitness - original.Fitness
	res.Final = population
	if e.logger != nil {
		e.logger.Debug("evolution finished",
			zap.String("strategy", original.Strategy),
			zap.String("best_id", res.Best.ID),
			zap.Float64("original_fitness", original.Fitness),
			zap.Float64("best_fitness", res.Best.Fitness),
			zap.Float64("delta", res.Delta))
	}
	return res, nil
}

// mutate applies one randomly chosen operator. Caller holds e.mu.
func (e *Engine) mutate(content string) string {
	op := e.operators[e.rng.Intn(len(e.operators))]
	return apply(op, content, e.rng)
}

// sortByFitness sorts descending; ties keep their order.
func sortByFitness(population []*Gene) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].Fitness > population[j].Fitness
	})
}

// Adopt reports whether delta is a significant improvement. The comparison is strict.
func Adopt(delta, threshold float64) bool {
	return delta > threshold
}
