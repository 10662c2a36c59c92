package transport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/usufslc/aggie-auth/core"
)

// Adapter is a notifier that can be looked up by kind.
type Adapter interface {
	core.Notifier
	Kind() string
}

type AdapterFactory func(config map[string]any) (Adapter, error)

type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Adapter
	factories map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:  map[string]Adapter{},
		factories: map[string]AdapterFactory{},
	}
}

// NewDefaultRegistry registers factories for the smtp and relay notifiers and
// a log notifier bound to logger.
func NewDefaultRegistry(logger core.Logger) *Registry {
	registry := NewRegistry()
	_ = registry.Register(NewLogNotifier(logger))
	_ = registry.RegisterFactory(KindSMTP, smtpFactory)
	_ = registry.RegisterFactory(KindRelay, relayFactory)
	return registry
}

func (r *Registry) Register(adapter Adapter) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	if adapter == nil {
		return fmt.Errorf("transport: adapter is nil")
	}
	kind := normalizeKind(adapter.Kind())
	if kind == "" {
		return fmt.Errorf("transport: adapter kind is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("transport: adapter kind %q already registered", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

func (r *Registry) RegisterFactory(kind string, factory AdapterFactory) error {
	if r == nil {
		return fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return fmt.Errorf("transport: adapter kind is required")
	}
	if factory == nil {
		return fmt.Errorf("transport: adapter factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("transport: adapter factory kind %q already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

func (r *Registry) Build(kind string, config map[string]any) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("transport: registry is nil")
	}
	kind = normalizeKind(kind)
	if kind == "" {
		return nil, fmt.Errorf("transport: adapter kind is required")
	}

	r.mu.RLock()
	adapter, ok := r.adapters[kind]
	factory := r.factories[kind]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("transport: adapter kind %q not registered", kind)
	}
	built, err := factory(cloneMap(config))
	if err != nil {
		return nil, err
	}
	if built == nil {
		return nil, fmt.Errorf("transport: factory for %q returned nil adapter", kind)
	}
	return built, nil
}

func (r *Registry) Get(kind string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	kind = normalizeKind(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[kind]
	return adapter, ok
}

// Kinds lists every registered adapter and factory kind in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return []string{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.adapters)+len(r.factories))
	for kind := range r.adapters {
		seen[kind] = struct{}{}
	}
	for kind := range r.factories {
		seen[kind] = struct{}{}
	}
	kinds := make([]string, 0, len(seen))
	for kind := range seen {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func normalizeKind(kind string) string {
	return strings.TrimSpace(strings.ToLower(kind))
}

func smtpFactory(config map[string]any) (Adapter, error) {
	return NewSMTPNotifier(SMTPConfig{
		Host:       stringSetting(config, "host"),
		Port:       intSetting(config, "port"),
		Username:   stringSetting(config, "username"),
		Password:   stringSetting(config, "password"),
		From:       stringSetting(config, "from"),
		RequireTLS: boolSetting(config, "require_tls"),
		Timeout:    time.Duration(intSetting(config, "timeout_ms")) * time.Millisecond,
	})
}

func relayFactory(config map[string]any) (Adapter, error) {
	endpoint := stringSetting(config, "endpoint")
	if endpoint == "" {
		return NewUnconfiguredNotifier(KindRelay, "endpoint is required"), nil
	}
	notifier := NewRelayNotifier(endpoint, nil)
	if token := stringSetting(config, "auth_token"); token != "" {
		notifier.DefaultHeaders["Authorization"] = "Bearer " + token
	}
	return notifier, nil
}

func stringSetting(config map[string]any, key string) string {
	value, ok := config[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func intSetting(config map[string]any, key string) int {
	switch typed := config[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func boolSetting(config map[string]any, key string) bool {
	switch typed := config[key].(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	default:
		return false
	}
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

var (
	_ Adapter = (*SMTPNotifier)(nil)
	_ Adapter = (*RelayNotifier)(nil)
	_ Adapter = (*LogNotifier)(nil)
	_ Adapter = (*UnconfiguredNotifier)(nil)
)
