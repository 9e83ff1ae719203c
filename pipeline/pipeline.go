package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JorisTruong/setl/config"
	"github.com/JorisTruong/setl/deliverable"
	"github.com/JorisTruong/setl/factory"
	"github.com/JorisTruong/setl/internal/logger"
	setlerrors "github.com/JorisTruong/setl/pkg/errors"
)

type state int

const (
	stateBuilding state = iota
	stateInspected
	stateRunning
	stateDone
)

func (s state) String() string {
	switch s {
	case stateBuilding:
		return "building"
	case stateInspected:
		return "inspected"
	case stateRunning:
		return "running"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Option configures a pipeline at construction time.
type Option func(*Pipeline)

// WithSettings supplies execution settings; unset fields keep defaults.
func WithSettings(s config.Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// WithLogging attaches a log writer at the given level. Without it the
// pipeline is silent.
func WithLogging(w io.Writer, level string) Option {
	return func(p *Pipeline) {
		log, err := logger.New(logger.Options{Writer: w, Level: level, Component: "pipeline"})
		if err == nil {
			p.log = log
		}
	}
}

// WithOptimizer installs a stage optimizer. It only runs when the settings
// enable optimization.
func WithOptimizer(o Optimizer) Option {
	return func(p *Pipeline) { p.optimizer = o }
}

// Pipeline is the top-level driver. It owns the stage registry, the
// dispatcher, the inspector and a snapshot of the built plan. A pipeline is
// created empty, seeded and staged while building, inspected lazily, and
// may be re-run; structural mutations between runs force re-inspection.
type Pipeline struct {
	mu         sync.Mutex
	id         uuid.UUID
	settings   config.Settings
	log        *logger.Logger
	dispatcher *deliverable.Dispatcher
	inspector  *Inspector
	optimizer  Optimizer
	stages     []*Stage
	seeded     []*deliverable.Deliverable
	dag        *DAG
	state      state
	benchmarks []BenchmarkRow
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		id:       uuid.New(),
		settings: config.Default(),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.settings.Concurrency <= 0 {
		p.settings.Concurrency = config.Default().Concurrency
	}
	if p.settings.LogLevel == "" {
		p.settings.LogLevel = config.Default().LogLevel
	}
	if p.optimizer == nil {
		p.optimizer = StageMerger{}
	}
	p.log = p.log.With("pipeline", p.id.String())
	p.dispatcher = deliverable.NewDispatcher(p.log)
	p.inspector = NewInspector(p.log)
	return p
}

// ID returns the pipeline's instance identifier.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Dispatcher exposes the runtime registry of deliverables.
func (p *Pipeline) Dispatcher() *deliverable.Dispatcher { return p.dispatcher }

// Settings returns the effective execution settings.
func (p *Pipeline) Settings() config.Settings { return p.settings }

// SetInput registers a pre-built envelope as a pipeline-level input.
func (p *Pipeline) SetInput(d *deliverable.Deliverable) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateRunning {
		return setlerrors.NewStateError(p.state.String(), "set input")
	}
	if err := p.dispatcher.Add(d); err != nil {
		return err
	}
	p.seeded = append(p.seeded, d)
	p.invalidate()
	return nil
}

// SetInputValue wraps payload in an envelope and registers it. An empty
// consumer list means any consumer; deliveryID may be empty.
func (p *Pipeline) SetInputValue(payload any, deliveryID string, consumers ...string) error {
	d := deliverable.New(payload).WithDeliveryID(deliveryID)
	if len(consumers) > 0 {
		d = d.WithConsumers(consumers...)
	}
	return p.SetInput(d)
}

// AddStage appends a stage. The new stage becomes the end stage; the
// previous one loses the marker.
func (p *Pipeline) AddStage(s *Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateRunning {
		return setlerrors.NewStateError(p.state.String(), "add stage")
	}
	if s == nil {
		return setlerrors.NewConstructorError("", "stage cannot be nil", nil)
	}

	s.id = len(p.stages)
	s.end = true
	if n := len(p.stages); n > 0 {
		p.stages[n-1].end = false
	}
	p.stages = append(p.stages, s)
	p.invalidate()
	return nil
}

// AddStageFromFactory wraps a single factory in its own stage.
func (p *Pipeline) AddStageFromFactory(f factory.Factory) error {
	s, err := NewStageOf(f)
	if err != nil {
		return err
	}
	return p.AddStage(s)
}

// invalidate drops the cached plan after a structural mutation.
func (p *Pipeline) invalidate() {
	p.dag = nil
	p.state = stateBuilding
}

// Inspect builds and caches the execution plan. Re-inspection after a no-op
// returns the identical plan.
func (p *Pipeline) Inspect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inspectLocked()
}

func (p *Pipeline) inspectLocked() error {
	if p.dag != nil {
		return nil
	}
	dag, err := p.inspector.Inspect(p.stages, p.seeded)
	if err != nil {
		return err
	}
	p.dag = dag
	if p.state == stateBuilding {
		p.state = stateInspected
	}
	return nil
}

// Describe inspects the pipeline and renders the plan as text.
func (p *Pipeline) Describe() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateRunning {
		return "", setlerrors.NewStateError(p.state.String(), "describe")
	}
	if err := p.inspectLocked(); err != nil {
		return "", err
	}
	return p.dag.Describe(), nil
}

// DAG returns the inspected plan, building it if necessary.
func (p *Pipeline) DAG() (*DAG, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.inspectLocked(); err != nil {
		return nil, err
	}
	return p.dag, nil
}

// Run executes the pipeline: inspection, optional stage optimization, then
// every stage in order. It returns only after the last stage finishes or
// the first failure halts execution.
func (p *Pipeline) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.state == stateRunning {
		p.mu.Unlock()
		return setlerrors.NewStateError(p.state.String(), "run")
	}
	if err := p.inspectLocked(); err != nil {
		p.mu.Unlock()
		return err
	}

	execStages := p.stages
	if p.settings.Optimize {
		execStages = p.optimizedStagesLocked()
	}

	p.state = stateRunning
	p.benchmarks = nil
	p.mu.Unlock()

	err := p.runStages(ctx, execStages)

	p.mu.Lock()
	if err != nil {
		// Partial outputs stay queryable; the plan remains valid.
		p.state = stateInspected
	} else {
		p.state = stateDone
	}
	p.mu.Unlock()
	return err
}

// optimizedStagesLocked applies the optimizer and verifies the rewrite
// induces the same edge set; on any disagreement the original stages win.
func (p *Pipeline) optimizedStagesLocked() []*Stage {
	rewritten, err := p.optimizer.Optimize(p.dag, p.stages)
	if err != nil {
		p.log.Warn("optimizer failed, using original stages", "error", err)
		return p.stages
	}

	rewrittenDAG, err := p.inspector.Inspect(rewritten, p.seeded)
	if err != nil {
		p.log.Warn("optimized stages fail inspection, using original stages", "error", err)
		return p.stages
	}
	if !sameEdgeSet(p.dag, rewrittenDAG) {
		p.log.Warn("optimizer changed the edge set, using original stages")
		return p.stages
	}

	p.log.Debug("optimizer applied", "stages", len(rewritten))
	return rewritten
}

func (p *Pipeline) runStages(ctx context.Context, stages []*Stage) error {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return setlerrors.NewExecutionError(stage.id, "", err)
		}
		if err := p.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage *Stage) error {
	stageCtx := ctx
	if p.settings.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(p.settings.StageTimeout)*time.Second)
		defer cancel()
	}

	factories := stage.Factories()
	descriptors := stage.Descriptors()
	p.log.Debug("stage starting", "stage", stage.id, "factories", len(factories), "parallel", stage.parallel)

	if stage.parallel && len(factories) > 1 {
		return p.runStageParallel(stageCtx, stage, factories, descriptors)
	}

	for i, f := range factories {
		if err := stageCtx.Err(); err != nil {
			return setlerrors.NewExecutionError(stage.id, descriptors[i].Name, err)
		}
		if err := p.runFactory(stageCtx, stage.id, f, descriptors[i]); err != nil {
			return err
		}
	}
	return nil
}

// runStageParallel runs the stage's factories on a bounded worker pool.
// Intra-stage edges cannot exist, so no ordering is needed; the first
// failure cancels the remaining workers and wins.
func (p *Pipeline) runStageParallel(ctx context.Context, stage *Stage, factories []factory.Factory, descriptors []*factory.Descriptor) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := make(chan struct{}, p.settings.Concurrency)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i, f := range factories {
		wg.Add(1)
		go func(f factory.Factory, desc *factory.Descriptor) {
			defer wg.Done()

			select {
			case pool <- struct{}{}:
				defer func() { <-pool }()
			case <-runCtx.Done():
				once.Do(func() { firstErr = setlerrors.NewExecutionError(stage.id, desc.Name, runCtx.Err()) })
				return
			}

			if err := p.runFactory(runCtx, stage.id, f, desc); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(f, descriptors[i])
	}

	wg.Wait()
	return firstErr
}

// runFactory drives one factory: dispatch its inputs, run the lifecycle,
// then collect and republish its output.
func (p *Pipeline) runFactory(ctx context.Context, stageID int, f factory.Factory, desc *factory.Descriptor) error {
	log := p.log.With("stage", stageID, "factory", desc.Name)

	if p.dispatcher.Len() > 0 {
		if err := p.dispatcher.Dispatch(ctx, desc.Bindings()); err != nil {
			return setlerrors.NewExecutionError(stageID, desc.Name, err)
		}
	}

	start := time.Now()
	var readDone, processDone time.Time

	run := func(name string, fn func(context.Context) error) error {
		if err := ctx.Err(); err != nil {
			return setlerrors.NewExecutionError(stageID, desc.Name, err)
		}
		if err := fn(ctx); err != nil {
			log.Error(err, "factory failed", "phase", name)
			return setlerrors.NewExecutionError(stageID, desc.Name, fmt.Errorf("%s: %w", name, err))
		}
		return nil
	}

	if err := run("read", f.Read); err != nil {
		return err
	}
	readDone = time.Now()
	if err := run("process", f.Process); err != nil {
		return err
	}
	processDone = time.Now()
	if err := run("write", f.Write); err != nil {
		return err
	}
	writeDone := time.Now()

	if err := p.collect(f, desc); err != nil {
		return setlerrors.NewExecutionError(stageID, desc.Name, err)
	}

	if p.settings.Benchmark {
		row := BenchmarkRow{
			Factory: desc.Name,
			Stage:   stageID,
			Read:    readDone.Sub(start),
			Process: processDone.Sub(readDone),
			Write:   writeDone.Sub(processDone),
			Total:   writeDone.Sub(start),
		}
		p.mu.Lock()
		p.benchmarks = append(p.benchmarks, row)
		p.mu.Unlock()
	}

	log.Debug("factory completed", "output", desc.Output.Type.String())
	return nil
}

// collect wraps the factory's produced value as a new deliverable under the
// factory's declared output qualifiers. A re-run replaces the previous
// envelope of the same signature; envelopes of the same type from other
// producers remain queryable.
func (p *Pipeline) collect(f factory.Factory, desc *factory.Descriptor) error {
	out := desc.Output
	d := deliverable.NewTyped(f.Get(), out.Type).
		WithProducer(desc.Name).
		WithDeliveryID(out.DeliveryID)
	if len(out.Consumers) > 0 {
		d = d.WithConsumers(out.Consumers...)
	}
	return p.dispatcher.Replace(d)
}

// GetLastOutput returns the value produced by the last factory of the end
// stage in the most recent run.
func (p *Pipeline) GetLastOutput() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.stages) == 0 {
		return nil, setlerrors.NewNotFoundError("pipeline has no stages")
	}
	descriptors := p.stages[len(p.stages)-1].Descriptors()
	if len(descriptors) == 0 {
		return nil, setlerrors.NewNotFoundError("end stage has no factories")
	}
	desc := descriptors[len(descriptors)-1]
	return p.outputOf(desc.Name, desc.Output)
}

// GetOutput returns the value produced by the given factory's class.
func (p *Pipeline) GetOutput(f factory.Factory) (any, error) {
	return p.GetOutputOf(factory.Name(f))
}

// GetOutputOf returns the value produced by the named factory class.
func (p *Pipeline) GetOutputOf(name string) (any, error) {
	return p.outputOf(name, factory.Output{})
}

func (p *Pipeline) outputOf(producer string, out factory.Output) (any, error) {
	candidates := p.dispatcher.FindByProducer(producer)
	for i := len(candidates) - 1; i >= 0; i-- {
		d := candidates[i]
		if !out.Type.IsZero() && !d.Type().Equal(out.Type) {
			continue
		}
		if out.DeliveryID != "" && d.DeliveryID() != out.DeliveryID {
			continue
		}
		return d.Get(), nil
	}
	return nil, setlerrors.NewNotFoundError(fmt.Sprintf("no output from factory %s", producer))
}

// GetDeliverable returns every envelope of the given runtime type. Finding
// none is a NotFoundError; a found envelope with an empty payload is valid.
func (p *Pipeline) GetDeliverable(t deliverable.Type) ([]*deliverable.Deliverable, error) {
	found := p.dispatcher.FindByType(t)
	if len(found) == 0 {
		return nil, setlerrors.NewNotFoundError(fmt.Sprintf("no deliverable of type %s", t))
	}
	return found, nil
}

// Benchmarks returns the timing rows collected during the last run.
func (p *Pipeline) Benchmarks() []BenchmarkRow {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BenchmarkRow(nil), p.benchmarks...)
}

// sameEdgeSet compares two plans' edges by producer, consumer, slot and
// delivery identity. Descriptors keep their identity across optimizer
// rewrites, so descriptor ids anchor the comparison.
func sameEdgeSet(a, b *DAG) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	counts := make(map[string]int, len(a.Edges))
	for _, e := range a.Edges {
		counts[edgeKey(e)]++
	}
	for _, e := range b.Edges {
		key := edgeKey(e)
		counts[key]--
		if counts[key] < 0 {
			return false
		}
	}
	return true
}

func edgeKey(e *Edge) string {
	producer := deliverable.External
	if e.From != nil {
		producer = e.From.Descriptor.ID.String()
	}
	return fmt.Sprintf("%s|%s|%d|%s|%s", producer, e.To.Descriptor.ID.String(), e.SlotIndex, e.Type, e.DeliveryID)
}
