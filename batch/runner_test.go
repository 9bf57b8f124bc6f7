package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/pricing"
)

type fakeProvider struct {
	id    string
	model string

	mu       sync.Mutex
	requests []*core.GenerationRequest

	generate func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error)
}

func (p *fakeProvider) ID() string           { return p.id }
func (p *fakeProvider) DefaultModel() string { return p.model }

func (p *fakeProvider) GenerateImage(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.generate != nil {
		return p.generate(ctx, req)
	}
	return writeImage(req)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func writeImage(req *core.GenerationRequest) (*core.GeneratedImage, error) {
	if err := core.WriteImageFile(req.OutputPath(), []byte("png")); err != nil {
		return nil, err
	}
	return &core.GeneratedImage{
		Filename: req.Filename,
		CostUSD:  core.Float64(0.5),
	}, nil
}

func rateLimitErr() error {
	return &core.ProviderError{
		Provider: core.ProviderOpenAI,
		Status:   429,
		Message:  "slow down",
		Err:      core.ErrRateLimited,
	}
}

type fakeResolver struct {
	providers map[string]core.ImageProvider
}

func newResolver(providers ...*fakeProvider) *fakeResolver {
	r := &fakeResolver{providers: make(map[string]core.ImageProvider)}
	for _, p := range providers {
		r.providers[p.id] = p
	}
	return r
}

func (r *fakeResolver) Resolve(name string) (core.ImageProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

func (r *fakeResolver) InferProvider(model string) string {
	if strings.HasPrefix(model, "gemini-") {
		return core.ProviderGoogle
	}
	return core.ProviderOpenAI
}

type recordingHook struct {
	starts chan SlotStartEvent
	ends   chan SlotEndEvent
}

func newRecordingHook(n int) *recordingHook {
	return &recordingHook{
		starts: make(chan SlotStartEvent, n),
		ends:   make(chan SlotEndEvent, n),
	}
}

func (h *recordingHook) OnSlotStart(e SlotStartEvent) { h.starts <- e }
func (h *recordingHook) OnSlotEnd(e SlotEndEvent)     { h.ends <- e }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func basePlan(dir string, n int) Plan {
	return Plan{
		Prompt:     "a lighthouse at dusk",
		Output:     dir,
		Variations: n,
		Provider:   core.ProviderOpenAI,
	}
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}
	var out bytes.Buffer

	r := NewRunner(newResolver(p), WithOutput(&out))
	o, err := r.Run(context.Background(), basePlan(dir, 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if o.Succeeded != 3 || o.Failed != 0 || o.Skipped != 0 || o.RateLimited {
		t.Errorf("counts = %d/%d/%d rate_limited=%v, want 3/0/0 false", o.Succeeded, o.Failed, o.Skipped, o.RateLimited)
	}
	if o.State != StateDone {
		t.Errorf("State = %v, want done", o.State)
	}
	if o.Model != "gpt-image-1.5" {
		t.Errorf("Model = %q, want provider default", o.Model)
	}
	for i, s := range o.Slots {
		if s.Index != i+1 || !s.Succeeded() {
			t.Errorf("slot %d = %+v", i, s)
		}
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("imggen_%03d.json", i+1))); err != nil {
			t.Errorf("missing metadata for slot %d: %v", i+1, err)
		}
	}
	if !approx(o.EstimatedCost, 0.027) || !approx(o.ActualCost, 0.027) {
		t.Errorf("costs = %v/%v, want 0.027", o.EstimatedCost, o.ActualCost)
	}

	text := out.String()
	for _, want := range []string{
		"Generating 3 images with OpenAI (gpt-image-1.5)",
		`Prompt: "a lighthouse at dusk"`,
		"Estimated cost: $0.03",
		"Successful: 3/3",
		"Actual cost: $0.03",
		"Output directory: " + dir,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunReportsInSlotOrder(t *testing.T) {
	dir := t.TempDir()
	gates := map[string]chan struct{}{
		"imggen_001.png": make(chan struct{}),
		"imggen_002.png": make(chan struct{}),
		"imggen_003.png": make(chan struct{}),
	}
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			<-gates[req.Filename]
			return writeImage(req)
		},
	}
	hook := newRecordingHook(3)
	var out bytes.Buffer
	r := NewRunner(newResolver(p), WithOutput(&out), WithTelemetry(hook))

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), basePlan(dir, 3))
		done <- err
	}()

	for range 3 {
		recv(t, hook.starts)
	}
	for _, name := range []string{"imggen_003.png", "imggen_002.png", "imggen_001.png"} {
		close(gates[name])
		if e := recv(t, hook.ends); e.Filename != name {
			t.Fatalf("end event for %s, want %s", e.Filename, name)
		}
	}
	if err := recv(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	text := out.String()
	i1 := strings.Index(text, "[1/3] Generating imggen_001.png... ✓")
	i2 := strings.Index(text, "[2/3] Generating imggen_002.png... ✓")
	i3 := strings.Index(text, "[3/3] Generating imggen_003.png... ✓")
	if i1 < 0 || i2 < 0 || i3 < 0 || !(i1 < i2 && i2 < i3) {
		t.Errorf("slot lines out of order (%d, %d, %d):\n%s", i1, i2, i3, text)
	}
}

func TestRunRateLimitShortCircuit(t *testing.T) {
	dir := t.TempDir()
	gates := map[string]chan struct{}{}
	for _, name := range Filenames("", 4) {
		gates[name] = make(chan struct{})
	}
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			<-gates[req.Filename]
			if req.Filename == "imggen_002.png" {
				return nil, rateLimitErr()
			}
			return writeImage(req)
		},
	}
	hook := newRecordingHook(4)
	var out bytes.Buffer
	r := NewRunner(newResolver(p), WithOutput(&out), WithTelemetry(hook))

	type result struct {
		o   *Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		o, err := r.Run(context.Background(), basePlan(dir, 4))
		done <- result{o, err}
	}()

	for range 4 {
		recv(t, hook.starts)
	}

	close(gates["imggen_001.png"])
	if e := recv(t, hook.ends); e.Index != 1 || e.Discarded {
		t.Fatalf("first end event = %+v, want slot 1 kept", e)
	}
	close(gates["imggen_002.png"])
	if e := recv(t, hook.ends); e.Index != 2 || e.Discarded || !core.IsRateLimited(e.Err) {
		t.Fatalf("second end event = %+v, want slot 2 rate limited", e)
	}
	close(gates["imggen_003.png"])
	close(gates["imggen_004.png"])
	for range 2 {
		if e := recv(t, hook.ends); !e.Discarded {
			t.Errorf("end event after rate limit = %+v, want discarded", e)
		}
	}

	res := recv(t, done)
	if res.err != nil {
		t.Fatalf("Run() error = %v", res.err)
	}
	o := res.o

	if !o.RateLimited {
		t.Error("RateLimited = false, want true")
	}
	if o.Succeeded != 1 || o.Failed != 1 || o.Skipped != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", o.Succeeded, o.Failed, o.Skipped)
	}
	if !o.Slots[0].Succeeded() {
		t.Errorf("slot 1 = %+v, want success", o.Slots[0])
	}
	if !o.Slots[1].RateLimited() {
		t.Errorf("slot 2 = %+v, want rate-limited failure", o.Slots[1])
	}
	for _, s := range o.Slots[2:] {
		if s.Attempted || s.Image != nil || s.Err != nil {
			t.Errorf("slot %d = %+v, want not attempted", s.Index, s)
		}
		if _, err := os.Stat(MetadataPath(dir, s.Filename)); !os.IsNotExist(err) {
			t.Errorf("metadata written for discarded slot %d", s.Index)
		}
	}
	if !approx(o.ActualCost, o.CostPerImage) {
		t.Errorf("ActualCost = %v, want %v", o.ActualCost, o.CostPerImage)
	}

	text := out.String()
	for _, want := range []string{
		"[2/4] Generating imggen_002.png... ✗",
		"[3/4] Generating imggen_003.png... skipped",
		"Successful: 1/2",
		"Failed: 1/2",
		"Not attempted: 2/4",
		"  - imggen_002.png: ",
		"Rate limit reached",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunRateLimitStopsDispatch(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			return nil, rateLimitErr()
		},
	}

	r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}), WithMaxWorkers(1))
	o, err := r.Run(context.Background(), basePlan(dir, 4))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := p.calls(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	if o.Failed != 1 || o.Skipped != 3 || o.Succeeded != 0 {
		t.Errorf("counts = %d/%d/%d, want 0/1/3", o.Succeeded, o.Failed, o.Skipped)
	}
	if o.ActualCost != 0 {
		t.Errorf("ActualCost = %v, want 0", o.ActualCost)
	}
}

func TestRunActualCostUsesEstimate(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			if req.Filename == "imggen_004.png" {
				return nil, &core.ProviderError{Provider: core.ProviderOpenAI, Status: 400, Message: "bad prompt", Err: core.ErrBadRequest}
			}
			img, err := writeImage(req)
			if img != nil {
				img.CostUSD = core.Float64(99)
			}
			return img, err
		},
	}

	plan := basePlan(dir, 4)
	plan.Quality = core.ImageQualityHigh
	r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}))
	o, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if o.Succeeded != 3 || o.Failed != 1 {
		t.Fatalf("counts = %d/%d, want 3/1", o.Succeeded, o.Failed)
	}
	if o.RateLimited {
		t.Error("ordinary failure must not trip the rate-limit short-circuit")
	}
	if !approx(o.ActualCost, 0.133*3) {
		t.Errorf("ActualCost = %v, want %v", o.ActualCost, 0.133*3)
	}
	if _, err := os.Stat(MetadataPath(dir, "imggen_004.png")); !os.IsNotExist(err) {
		t.Error("metadata written for failed slot")
	}
}

func TestRunCollisionAbortsBeforeProviderCall(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "imggen_001.png")
	p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}
	var out bytes.Buffer

	r := NewRunner(newResolver(p), WithOutput(&out))
	o, err := r.Run(context.Background(), basePlan(dir, 2))

	var collision *CollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("Run() error = %v, want *CollisionError", err)
	}
	if len(collision.Files) != 1 || collision.Files[0] != "imggen_001.png" {
		t.Errorf("Files = %v", collision.Files)
	}
	if o != nil {
		t.Errorf("Outcome = %+v, want nil", o)
	}
	if p.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls())
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(matches) != 0 {
		t.Errorf("metadata files written: %v", matches)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestRunDryRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "renders")
	p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}
	var out bytes.Buffer

	plan := basePlan(filepath.Join(dir, "poster.png"), 4)
	plan.DryRun = true
	plan.AspectRatio = core.AspectRatio16x9
	plan.References = []string{"a.png", "b.png"}

	r := NewRunner(newResolver(p), WithOutput(&out))
	o, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls())
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("dry run created the output directory")
	}
	if !o.DryRun || o.Succeeded != 0 || o.State != StateDone {
		t.Errorf("Outcome = %+v", o)
	}

	text := out.String()
	for _, want := range []string{
		"Aspect ratio: 16:9",
		"Reference images: a.png, b.png",
		"Variations: 4",
		"Output: " + joinPath(dir, "poster_1.png") + " ... " + joinPath(dir, "poster_4.png"),
		"Estimated cost: $0.04",
		"Run without --dry-run to generate images.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunModelSelectsProvider(t *testing.T) {
	dir := t.TempDir()
	openai := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}
	google := &fakeProvider{id: core.ProviderGoogle, model: "gemini-3-pro-image-preview"}

	plan := basePlan(filepath.Join(dir, "cat.png"), 1)
	plan.Model = "gemini-2.5-flash-image"
	plan.Resolution = core.ImageResolution4K

	r := NewRunner(newResolver(openai, google), WithOutput(&bytes.Buffer{}))
	o, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if openai.calls() != 0 || google.calls() != 1 {
		t.Errorf("calls openai=%d google=%d, want 0/1", openai.calls(), google.calls())
	}
	if o.Provider != core.ProviderGoogle || o.Model != "gemini-2.5-flash-image" {
		t.Errorf("provider/model = %s/%s", o.Provider, o.Model)
	}
	if !approx(o.CostPerImage, 0.24) {
		t.Errorf("CostPerImage = %v, want 0.24", o.CostPerImage)
	}

	req := google.requests[0]
	if req.Filename != "cat.png" || req.Model != plan.Model || req.Resolution != core.ImageResolution4K {
		t.Errorf("request = %+v", req)
	}

	m, _ := readMetadata(t, filepath.Join(dir, "cat.json"))
	if m["provider"] != "google" || m["model"] != "gemini-2.5-flash-image" {
		t.Errorf("metadata = %v", m)
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return writeImage(req)
		},
	}

	r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}), WithMaxWorkers(2))
	o, err := r.Run(context.Background(), basePlan(t.TempDir(), 4))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if o.Succeeded != 4 {
		t.Errorf("Succeeded = %d, want 4", o.Succeeded)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRunPreconditionErrors(t *testing.T) {
	p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}

	tests := []struct {
		name    string
		mutate  func(*Plan)
		wantErr error
	}{
		{"zero variations", func(p *Plan) { p.Variations = 0 }, core.ErrInvalidOption},
		{"too many variations", func(p *Plan) { p.Variations = 5 }, core.ErrInvalidOption},
		{"empty prompt", func(p *Plan) { p.Prompt = "" }, core.ErrInvalidOption},
		{"bad quality", func(p *Plan) { p.Quality = "ultra" }, core.ErrInvalidOption},
		{"bad resolution", func(p *Plan) { p.Resolution = "8K" }, core.ErrInvalidOption},
		{"bad aspect ratio", func(p *Plan) { p.AspectRatio = "2:1" }, core.ErrInvalidOption},
		{"bad fidelity", func(p *Plan) { p.InputFidelity = "medium" }, core.ErrInvalidOption},
		{"unknown provider", func(p *Plan) { p.Provider = "midjourney" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := basePlan(t.TempDir(), 1)
			tt.mutate(&plan)

			r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}))
			o, err := r.Run(context.Background(), plan)
			if err == nil {
				t.Fatal("Run() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if o != nil {
				t.Errorf("Outcome = %+v, want nil", o)
			}
		})
	}
	if p.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls())
	}
}

func TestRunNilImageIsFailure(t *testing.T) {
	p := &fakeProvider{
		id:    core.ProviderOpenAI,
		model: "gpt-image-1.5",
		generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
			return nil, nil
		},
	}

	r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}))
	o, err := r.Run(context.Background(), basePlan(t.TempDir(), 1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if o.Failed != 1 || !errors.Is(o.Slots[0].Err, core.ErrNoImageData) {
		t.Errorf("slot = %+v, want ErrNoImageData failure", o.Slots[0])
	}
}

func TestRunCustomPricing(t *testing.T) {
	p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5"}
	table := pricing.New(map[core.ImageQuality]float64{core.ImageQualityLow: 1.25}, nil)

	r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}), WithPricing(table))
	o, err := r.Run(context.Background(), basePlan(t.TempDir(), 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !approx(o.EstimatedCost, 2.5) || !approx(o.ActualCost, 2.5) {
		t.Errorf("costs = %v/%v, want 2.5", o.EstimatedCost, o.ActualCost)
	}
	if want := table.Estimate(core.ProviderOpenAI, "", "", 2); o.EstimatedCost != want {
		t.Errorf("EstimatedCost = %v, want table estimate %v", o.EstimatedCost, want)
	}
}

func TestRunLogsStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		generate func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error)
		want     []string
	}{
		{
			name: "completed",
			want: []string{"dispatching", "completing", "finalizing", "done"},
		},
		{
			name: "rate limited",
			generate: func(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
				return nil, rateLimitErr()
			},
			want: []string{"dispatching", "rate_limited", "finalizing", "done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, logs := observer.New(zapcore.DebugLevel)
			p := &fakeProvider{id: core.ProviderOpenAI, model: "gpt-image-1.5", generate: tt.generate}

			r := NewRunner(newResolver(p), WithOutput(&bytes.Buffer{}), WithLogger(zap.New(obs)), WithMaxWorkers(1))
			o, err := r.Run(context.Background(), basePlan(t.TempDir(), 2))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if o.State != StateDone {
				t.Errorf("State = %v, want done", o.State)
			}

			var got []string
			for _, e := range logs.FilterMessage("batch state").All() {
				got = append(got, fmt.Sprint(e.ContextMap()["state"]))
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("states = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StatePending:     "pending",
		StateDispatching: "dispatching",
		StateCompleting:  "completing",
		StateRateLimited: "rate_limited",
		StateFinalizing:  "finalizing",
		StateDone:        "done",
		State(42):        "State(42)",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), w)
		}
	}
}
