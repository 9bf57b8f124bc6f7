package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/pricing"
)

// Limits on batch size and parallelism.
const (
	MinVariations     = 1
	MaxVariations     = 4
	DefaultMaxWorkers = 4
)

// Resolver maps provider and model names to adapters.
type Resolver interface {
	Resolve(name string) (core.ImageProvider, error)
	InferProvider(model string) string
}

// Plan describes one batch as requested on the command line.
type Plan struct {
	Prompt     string
	References []string

	// Output is a directory or an image filename; see ParseOutputPath.
	Output     string
	Variations int

	// Provider is used when Model is empty. A model name selects its own
	// provider through the Resolver.
	Provider string
	Model    string

	Quality       core.ImageQuality
	Resolution    core.ImageResolution
	AspectRatio   core.AspectRatio
	InputFidelity core.ImageInputFidelity

	// DryRun stops after the configuration and estimate are printed.
	DryRun bool
}

// Validate checks the fields the runner depends on.
func (p Plan) Validate() error {
	if p.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", core.ErrInvalidOption)
	}
	if p.Variations < MinVariations || p.Variations > MaxVariations {
		return fmt.Errorf("%w: variations must be between %d and %d, got %d",
			core.ErrInvalidOption, MinVariations, MaxVariations, p.Variations)
	}
	if p.Quality != "" && !p.Quality.IsValid() {
		return fmt.Errorf("%w: invalid quality level: %s", core.ErrInvalidOption, p.Quality)
	}
	if p.Resolution != "" && !p.Resolution.IsValid() {
		return fmt.Errorf("%w: invalid resolution: %s", core.ErrInvalidOption, p.Resolution)
	}
	if p.AspectRatio != "" && !p.AspectRatio.IsValid() {
		return fmt.Errorf("%w: invalid aspect ratio: %s", core.ErrInvalidOption, p.AspectRatio)
	}
	if p.InputFidelity != "" && !p.InputFidelity.IsValid() {
		return fmt.Errorf("%w: invalid input fidelity: %s", core.ErrInvalidOption, p.InputFidelity)
	}
	return nil
}

// State is the lifecycle position of a batch.
type State int

const (
	StatePending State = iota
	StateDispatching
	StateCompleting
	StateRateLimited
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDispatching:
		return "dispatching"
	case StateCompleting:
		return "completing"
	case StateRateLimited:
		return "rate_limited"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Slot is one image of a batch. A slot with Attempted false has neither
// an image nor an error.
type Slot struct {
	Index     int
	Filename  string
	Attempted bool
	Image     *core.GeneratedImage
	Err       error
}

// Succeeded reports whether the slot produced an image.
func (s Slot) Succeeded() bool {
	return s.Attempted && s.Err == nil
}

// RateLimited reports whether the slot failed on a rate limit.
func (s Slot) RateLimited() bool {
	return s.Attempted && core.IsRateLimited(s.Err)
}

// Outcome is the finalized result of a batch. Slots are in ascending
// index order.
type Outcome struct {
	BatchID   string
	Provider  string
	Model     string
	OutputDir string
	DryRun    bool
	State     State

	Slots       []Slot
	Succeeded   int
	Failed      int
	Skipped     int
	RateLimited bool

	CostPerImage  float64
	EstimatedCost float64

	// ActualCost is CostPerImage times Succeeded. Per-image costs
	// reported by the provider are recorded in metadata only.
	ActualCost float64
}

// transition moves the batch to s. Every state a batch passes through
// after dispatch begins is logged at debug level.
func (o *Outcome) transition(logger *zap.Logger, s State) {
	o.State = s
	logger.Debug("batch state", zap.Stringer("state", s))
}

// Runner executes batches against providers from a Resolver.
type Runner struct {
	resolver   Resolver
	pricing    pricing.Table
	out        io.Writer
	logger     *zap.Logger
	hook       TelemetryHook
	maxWorkers int
}

// Option configures a Runner.
type Option func(*Runner)

// WithPricing sets the price table used for estimates.
func WithPricing(t pricing.Table) Option {
	return func(r *Runner) { r.pricing = t }
}

// WithOutput sets the writer for the configuration and summary report.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTelemetry sets the slot lifecycle hook.
func WithTelemetry(h TelemetryHook) Option {
	return func(r *Runner) {
		if h != nil {
			r.hook = h
		}
	}
}

// WithMaxWorkers caps parallel provider calls. Values below 1 are ignored.
func WithMaxWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxWorkers = n
		}
	}
}

// NewRunner returns a Runner that resolves providers through resolver.
func NewRunner(resolver Resolver, opts ...Option) *Runner {
	r := &Runner{
		resolver:   resolver,
		pricing:    pricing.Default(),
		out:        os.Stdout,
		logger:     zap.NewNop(),
		hook:       NoopTelemetryHook{},
		maxWorkers: DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes plan. It returns an error without side effects when the
// plan is invalid, a target file already exists (*CollisionError), or the
// provider cannot be resolved. Once dispatch starts, provider failures are
// recorded in the Outcome rather than returned; the error result is then
// reserved for metadata write failures and context cancellation.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	dir, basename := ParseOutputPath(plan.Output)
	collided, existing, err := CheckCollisions(dir, plan.Variations, basename)
	if err != nil {
		return nil, err
	}
	if collided {
		return nil, &CollisionError{Dir: dir, Files: existing}
	}

	providerName := plan.Provider
	if plan.Model != "" {
		providerName = r.resolver.InferProvider(plan.Model)
	}
	provider, err := r.resolver.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	model := plan.Model
	if model == "" {
		model = provider.DefaultModel()
	}

	costPerImage := r.pricing.CostPerImage(provider.ID(), plan.Quality, plan.Resolution)
	o := &Outcome{
		BatchID:       uuid.NewString(),
		Provider:      provider.ID(),
		Model:         model,
		OutputDir:     dir,
		DryRun:        plan.DryRun,
		State:         StatePending,
		Slots:         make([]Slot, plan.Variations),
		CostPerImage:  costPerImage,
		EstimatedCost: r.pricing.Estimate(provider.ID(), plan.Quality, plan.Resolution, plan.Variations),
	}
	for i := range o.Slots {
		o.Slots[i] = Slot{Index: i + 1, Filename: Filename(basename, i+1, plan.Variations)}
	}

	printConfiguration(r.out, plan, o)
	if plan.DryRun {
		printDryRun(r.out)
		o.State = StateDone
		return o, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	logger := r.logger.With(zap.String("batch_id", o.BatchID))
	logger.Debug("dispatching batch",
		zap.String("provider", o.Provider),
		zap.String("model", o.Model),
		zap.Int("variations", plan.Variations),
	)

	o.transition(logger, StateDispatching)
	c := r.dispatch(ctx, logger, plan, o, provider, dir)
	if c.rateLimited() {
		o.transition(logger, StateRateLimited)
	} else {
		o.transition(logger, StateCompleting)
	}

	o.transition(logger, StateFinalizing)
	fmt.Fprintln(r.out)
	var errs []error
	for i := range o.Slots {
		slot := &o.Slots[i]
		res := c.results[i]
		if res == nil {
			o.Skipped++
			printSlotSkipped(r.out, slot, plan.Variations)
			continue
		}
		slot.Attempted = true
		slot.Image, slot.Err = res.image, res.err
		if slot.Err != nil {
			o.Failed++
			printSlotFailed(r.out, slot, plan.Variations)
			continue
		}
		o.Succeeded++
		printSlotSucceeded(r.out, slot, plan.Variations)

		meta := NewMetadata(plan.Prompt, o.Provider, o.Model, slot.Image)
		if err := WriteMetadata(dir, slot.Filename, meta); err != nil {
			logger.Error("metadata write failed", zap.String("filename", slot.Filename), zap.Error(err))
			errs = append(errs, err)
		}
	}
	o.RateLimited = c.rateLimited()
	o.ActualCost = o.CostPerImage * float64(o.Succeeded)

	printSummary(r.out, o)
	o.transition(logger, StateDone)

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return o, errors.Join(errs...)
}

func (r *Runner) dispatch(ctx context.Context, logger *zap.Logger, plan Plan, o *Outcome, provider core.ImageProvider, dir string) *collector {
	total := len(o.Slots)
	c := newCollector(total)

	var g errgroup.Group
	g.SetLimit(min(r.maxWorkers, total))

	for i := range o.Slots {
		if c.stopped() || ctx.Err() != nil {
			break
		}
		req := &core.GenerationRequest{
			Prompt:        plan.Prompt,
			References:    plan.References,
			OutputDir:     dir,
			Filename:      o.Slots[i].Filename,
			AspectRatio:   plan.AspectRatio,
			Quality:       plan.Quality,
			Resolution:    plan.Resolution,
			Model:         plan.Model,
			InputFidelity: plan.InputFidelity,
		}
		g.Go(func() error {
			r.runSlot(ctx, logger, c, provider, o.BatchID, i, total, req)
			return nil
		})
	}
	_ = g.Wait()
	return c
}

func (r *Runner) runSlot(ctx context.Context, logger *zap.Logger, c *collector, provider core.ImageProvider, batchID string, i, total int, req *core.GenerationRequest) {
	// A slot that was queued behind the worker limit may start after
	// the batch has been rate limited.
	if c.stopped() {
		return
	}

	start := time.Now()
	r.hook.OnSlotStart(SlotStartEvent{
		BatchID:  batchID,
		Provider: provider.ID(),
		Index:    i + 1,
		Total:    total,
		Filename: req.Filename,
		Start:    start,
	})

	img, err := provider.GenerateImage(ctx, req)
	if err == nil && img == nil {
		err = core.ErrNoImageData
	}

	kept := c.deposit(i, img, err)
	if !kept {
		logger.Warn("discarding result received after rate limit",
			zap.Int("slot", i+1),
			zap.String("filename", req.Filename),
			zap.Bool("succeeded", err == nil),
		)
	}

	r.hook.OnSlotEnd(SlotEndEvent{
		BatchID:   batchID,
		Provider:  provider.ID(),
		Index:     i + 1,
		Total:     total,
		Filename:  req.Filename,
		Start:     start,
		End:       time.Now(),
		Err:       err,
		Discarded: !kept,
	})
}

type slotResult struct {
	image *core.GeneratedImage
	err   error
}

// collector is the single deposit point for worker results. After the
// first rate-limited result it refuses further deposits and closes stop.
type collector struct {
	mu      sync.Mutex
	results []*slotResult
	limited bool

	stop     chan struct{}
	stopOnce sync.Once
}

func newCollector(n int) *collector {
	return &collector{
		results: make([]*slotResult, n),
		stop:    make(chan struct{}),
	}
}

// deposit records the result for slot i and reports whether it was kept.
func (c *collector) deposit(i int, img *core.GeneratedImage, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limited {
		return false
	}
	c.results[i] = &slotResult{image: img, err: err}
	if core.IsRateLimited(err) {
		c.limited = true
		c.stopOnce.Do(func() { close(c.stop) })
	}
	return true
}

func (c *collector) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *collector) rateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limited
}
