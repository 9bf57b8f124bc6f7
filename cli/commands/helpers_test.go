package commands

import (
	"bytes"
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/petal-labs/imggen/cli/config"
	"github.com/petal-labs/imggen/cli/keystore"
	"github.com/petal-labs/imggen/core"
	"github.com/petal-labs/imggen/providers"
)

// fakeProvider writes a placeholder image for every request.
type fakeProvider struct {
	id    string
	model string
	err   error
	calls *atomic.Int32
}

func (p *fakeProvider) ID() string           { return p.id }
func (p *fakeProvider) DefaultModel() string { return p.model }

func (p *fakeProvider) GenerateImage(ctx context.Context, req *core.GenerationRequest) (*core.GeneratedImage, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	if err := core.WriteImageFile(req.OutputPath(), []byte("image")); err != nil {
		return nil, err
	}
	return &core.GeneratedImage{Filename: req.Filename, CostUSD: core.Float64(0.01)}, nil
}

// fakeBackend records the configs adapters are built with.
type fakeBackend struct {
	calls atomic.Int32
	err   error

	mu      sync.Mutex
	configs map[string]providers.Config
}

func (b *fakeBackend) registrations() []providers.Registration {
	reg := func(name, model string, prefixes ...string) providers.Registration {
		return providers.Registration{
			Name:     name,
			Models:   []string{model, model + "-mini"},
			Prefixes: prefixes,
			Factory: func(cfg providers.Config) (core.ImageProvider, error) {
				b.mu.Lock()
				if b.configs == nil {
					b.configs = make(map[string]providers.Config)
				}
				b.configs[name] = cfg
				b.mu.Unlock()
				return &fakeProvider{id: name, model: model, err: b.err, calls: &b.calls}, nil
			},
		}
	}
	return []providers.Registration{
		reg(core.ProviderOpenAI, "gpt-image-1.5", "gpt-", "dall-e", "chatgpt-image"),
		reg(core.ProviderGoogle, "gemini-3-pro-image-preview", "gemini-", "google-", "imagen"),
	}
}

func (b *fakeBackend) config(name string) (providers.Config, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cfg, ok := b.configs[name]
	return cfg, ok
}

// memKeystore is an in-memory keystore.Keystore.
type memKeystore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemKeystore(kv ...string) *memKeystore {
	ks := &memKeystore{keys: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		ks.keys[kv[i]] = kv[i+1]
	}
	return ks
}

func (m *memKeystore) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[name] = value
	return nil
}

func (m *memKeystore) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[name]
	if !ok {
		return "", &keystore.ErrKeyNotFound{Name: name}
	}
	return v, nil
}

func (m *memKeystore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.keys))
	for k := range m.keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func mapEnv(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func staticConfig(cfg *config.Config) ConfigLoader {
	return func(string) (*config.Config, error) {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		return cfg, nil
	}
}

type testApp struct {
	*App
	backend *fakeBackend
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

// newTestApp builds an App with fake adapters, an OPENAI_API_KEY in the
// environment, an empty keystore and an empty config. opts override these.
func newTestApp(t *testing.T, opts ...AppOption) *testApp {
	t.Helper()
	ta := &testApp{backend: &fakeBackend{}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	base := []AppOption{
		WithIO(strings.NewReader(""), ta.stdout, ta.stderr),
		WithRegistrations(ta.backend.registrations()...),
		WithEnv(mapEnv(map[string]string{"OPENAI_API_KEY": "sk-env"})),
		WithKeystoreFactory(func() (keystore.Keystore, error) { return newMemKeystore(), nil }),
		WithConfigLoader(staticConfig(&config.Config{})),
	}
	ta.App = NewApp(append(base, opts...)...)
	return ta
}

func (ta *testApp) run(args ...string) error {
	ta.root.SetArgs(args)
	return ta.Execute()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
