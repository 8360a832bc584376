package modules

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/markdown"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/retry"
)

// Spec declares a module by type name. Options are type specific; Modules are
// the child modules of nesting types such as retry or add_content_to_metadata.
type Spec struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options,omitempty"`
	Modules []Spec         `yaml:"modules,omitempty"`
}

// Env holds the collaborators factories may need.
type Env struct {
	Source fsio.Source
	Writer fsio.Writer
}

// Factory builds a module from its declaration. opts wraps Spec.Options and
// children are the already built child modules.
type Factory func(env Env, opts meta.Metadata, children []module.Module) (module.Module, error)

// Registry maps type names to factories.
type Registry struct {
	env       Env
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry preloaded with the built-in module types.
func NewRegistry(env Env) *Registry {
	r := &Registry{env: env, factories: make(map[string]Factory)}
	for name, f := range builtins {
		r.factories[name] = f
	}
	return r
}

// Register adds a factory. Registering an existing name is a configuration error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return ferrors.ConfigError("module type name and factory are required").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return ferrors.ConfigError(fmt.Sprintf("module type %q is already registered", name)).
			WithContext("type", name).
			Build()
	}
	r.factories[name] = f
	return nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Files returns the file modules bound to the registry's environment.
func (r *Registry) Files() Files {
	return Files{Source: r.env.Source, Writer: r.env.Writer}
}

// Build constructs the module declared by spec, children first.
func (r *Registry) Build(spec Spec) (module.Module, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, ferrors.ConfigError(fmt.Sprintf("unknown module type %q", spec.Type)).
			WithContext("type", spec.Type).
			Build()
	}
	children, err := r.BuildAll(spec.Modules)
	if err != nil {
		return nil, err
	}
	m, err := f(r.env, meta.New(meta.FromMap(spec.Options)), children)
	if err != nil {
		if ferrors.HasCategory(err, ferrors.CategoryConfig) {
			return nil, err
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid module options").
			WithContext("type", spec.Type).
			Build()
	}
	return m, nil
}

// BuildAll builds specs in order.
func (r *Registry) BuildAll(specs []Spec) ([]module.Module, error) {
	out := make([]module.Module, 0, len(specs))
	for _, s := range specs {
		m, err := r.Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

var builtins = map[string]Factory{
	"read_files": func(env Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		if env.Source == nil {
			return nil, ferrors.ConfigError("read_files requires a content source").Build()
		}
		patterns := opts.Strings("patterns")
		if len(patterns) == 0 {
			return nil, ferrors.ConfigError("read_files requires patterns").Build()
		}
		return ReadFiles(env.Source, patterns...), nil
	},
	"write_files": func(env Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		if env.Writer == nil {
			return nil, ferrors.ConfigError("write_files requires an output writer").Build()
		}
		return WriteFiles(env.Writer, opts.String("extension", "")), nil
	},
	"front_matter": func(Env, meta.Metadata, []module.Module) (module.Module, error) {
		return FrontMatter(), nil
	},
	"embed_front_matter": func(_ Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		return EmbedFrontMatter(opts.Strings("keys")...), nil
	},
	"render_markdown": func(_ Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		return RenderMarkdown(markdown.Options{
			GFM:        opts.Bool("gfm", true),
			HeadingIDs: opts.Bool("heading_ids", false),
			Unsafe:     opts.Bool("unsafe", false),
		}), nil
	},
	"excerpt": func(_ Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		return Excerpt(opts.String("key", KeyExcerpt), opts.String("tag", "p")), nil
	},
	"fingerprint": func(Env, meta.Metadata, []module.Module) (module.Module, error) {
		return Fingerprint(), nil
	},
	"set_metadata": func(_ Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		values, ok := meta.TryGet[map[string]any](opts, "values")
		if !ok || len(values) == 0 {
			return nil, ferrors.ConfigError("set_metadata requires values").Build()
		}
		return SetMetadata(meta.FromMap(values))
	},
	"append": func(_ Env, opts meta.Metadata, children []module.Module) (module.Module, error) {
		if len(children) > 0 {
			return AppendModules(children...), nil
		}
		text := opts.String("text", "")
		if text == "" {
			return nil, ferrors.ConfigError("append requires text or modules").Build()
		}
		return AppendText(text), nil
	},
	"add_content_to_metadata": func(_ Env, opts meta.Metadata, children []module.Module) (module.Module, error) {
		key := opts.String("key", "")
		if pipelines := opts.Strings("pipelines"); len(pipelines) > 0 {
			return AddChildContentToMetadata(key, ChildOfPipelines(pipelines, children...))
		}
		return AddContentToMetadata(key, children...)
	},
	"from_pipelines": func(_ Env, opts meta.Metadata, _ []module.Module) (module.Module, error) {
		return FromPipelines(opts.Strings("pipelines")...)
	},
	"retry": func(_ Env, opts meta.Metadata, children []module.Module) (module.Module, error) {
		policy := retry.DefaultPolicy()
		policy.Mode = retry.BackoffMode(opts.String("mode", string(policy.Mode)))
		policy.MaxRetries = opts.Int("max_retries", policy.MaxRetries)
		var err error
		if policy.Initial, err = durationOption(opts, "initial", policy.Initial); err != nil {
			return nil, err
		}
		if policy.Max, err = durationOption(opts, "max", policy.Max); err != nil {
			return nil, err
		}
		return Retry(policy, children...)
	},
}

func durationOption(opts meta.Metadata, key string, def time.Duration) (time.Duration, error) {
	s := opts.String(key, "")
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, ferrors.ConfigError(fmt.Sprintf("invalid duration for %s: %q", key, s)).
			WithContext("option", key).
			WithCause(err).
			Build()
	}
	return d, nil
}
