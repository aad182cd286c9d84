package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"replaylab/internal/logger"
)

// Preset 描述一套命名的指标参数组合（图表界面的快捷选项）。
type Preset struct {
	ID          string         `mapstructure:"id" yaml:"id"`
	Description string         `mapstructure:"description" yaml:"description"`
	MAPeriod    int            `mapstructure:"ma_period" yaml:"ma_period"`
	RSIPeriod   int            `mapstructure:"rsi_period" yaml:"rsi_period"`
	Params      map[string]any `mapstructure:"params" yaml:"params"`
	Schema      map[string]any `mapstructure:"schema" yaml:"schema"`

	schemaCompiled *jsonschema.Schema
}

// FileConfig 映射 presets 配置文件。
type FileConfig struct {
	Presets map[string]Preset `mapstructure:"presets" yaml:"presets"`
}

// Snapshot 公开的模板快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// Registry 管理指标预设，配置文件变更时热加载。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取预设文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read preset config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("preset reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前预设集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Preset 返回指定 ID 的预设。
func (r *Registry) Preset(id string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[strings.TrimSpace(id)]
	return p, ok
}

// IDs 返回排序后的预设 ID 列表。
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Presets))
	for id := range r.snapshot.Presets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Subscribe 注册重载监听。
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Validate 用预设自带的 JSON schema 校验参数。
func (r *Registry) Validate(presetID string, params map[string]any) (Preset, error) {
	p, ok := r.Preset(presetID)
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset: %s", presetID)
	}
	if err := p.validate(params); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func (p Preset) validate(params map[string]any) error {
	if p.schemaCompiled == nil {
		return nil
	}
	return p.schemaCompiled.Validate(params)
}

func (r *Registry) reload() error {
	cfg, err := readPresetFile(r.path)
	if err != nil {
		return err
	}
	presets := make(map[string]Preset)
	for name, p := range cfg.Presets {
		norm := normalizePreset(name, p)
		presets[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("preset registry loaded %d presets from %s", len(presets), r.path)
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("preset listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func normalizePreset(name string, p Preset) Preset {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = strings.TrimSpace(name)
	}
	if p.MAPeriod <= 0 {
		p.MAPeriod = 20
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	p.Description = strings.TrimSpace(p.Description)
	if len(p.Schema) > 0 {
		if compiled, err := compileSchema(p.Schema); err != nil {
			logger.Errorf("preset schema compile failed id=%s: %v", p.ID, err)
		} else {
			p.schemaCompiled = compiled
		}
	}
	return p
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Presets:  make(map[string]Preset, len(src.Presets)),
	}
	for id, p := range src.Presets {
		dst.Presets[id] = p
	}
	return dst
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func readPresetFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read preset config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse preset config failed: %w", err)
	}
	return cfg, nil
}
