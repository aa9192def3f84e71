package plugin

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Capability names the four pluggable contracts as they appear in the
// configuration file.
type Capability string

// The configuration keys selecting a backend per capability.
const (
	CapIdentity Capability = "identity"
	CapProject  Capability = "project"
	CapUserRole Capability = "userrole"
	CapToken    Capability = "token"
)

// Factory builds an unconfigured backend instance.
type Factory func() Plugin

// Registry maps configuration-supplied implementation names to factories
// and owns the lifecycle of the instances it resolves. Factories are
// registered at process start; resolution happens once, during startup.
type Registry struct {
	factories map[Capability]map[string]Factory
	resolved  []Plugin
	released  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Capability]map[string]Factory),
	}
}

// Register adds a factory under (capability, name). Later registrations
// with the same pair win, which lets tests install doubles.
func (r *Registry) Register(cap Capability, name string, f Factory) {
	byName, ok := r.factories[cap]
	if !ok {
		byName = make(map[string]Factory)
		r.factories[cap] = byName
	}

	byName[name] = f
}

// Resolve builds, configures and connects the backend selected by name for
// the capability. An empty name, an unknown name, missing required options
// or a failed connection all return an error; the caller treats any of
// them as fatal for startup.
func (r *Registry) Resolve(cap Capability, name string, options map[string]string) (Plugin, error) {
	if name == "" {
		return nil, errors.Wrapf(ErrMissingKey, "plugins.%s", cap)
	}

	f, ok := r.factories[cap][name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "plugins.%s = %q", cap, name)
	}

	p := f()
	p.Configure(options)

	if missing := p.Validate(); len(missing) > 0 {
		return nil, errors.Wrapf(ErrMissingKey, "plugins.%s = %q needs options %v", cap, name, missing)
	}

	if err := p.InitConnection(); err != nil {
		return nil, errors.Wrapf(err, "plugins.%s = %q failed to connect", cap, name)
	}

	log.Info().Str("capability", string(cap)).Str("backend", name).Msg("plugin connected")

	r.resolved = append(r.resolved, p)

	return p, nil
}

// ResolveIdentity resolves the identity capability with type checking.
func (r *Registry) ResolveIdentity(name string, options map[string]string) (IdentityProvider, error) {
	p, err := r.Resolve(CapIdentity, name, options)
	if err != nil {
		return nil, err
	}

	ip, ok := p.(IdentityProvider)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "plugins.identity = %q is not an identity provider", name)
	}

	return ip, nil
}

// ResolveProject resolves the project store capability with type checking.
func (r *Registry) ResolveProject(name string, options map[string]string) (ProjectStore, error) {
	p, err := r.Resolve(CapProject, name, options)
	if err != nil {
		return nil, err
	}

	ps, ok := p.(ProjectStore)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "plugins.project = %q is not a project store", name)
	}

	return ps, nil
}

// ResolveUserRole resolves the user-role store capability with type checking.
func (r *Registry) ResolveUserRole(name string, options map[string]string) (UserRoleStore, error) {
	p, err := r.Resolve(CapUserRole, name, options)
	if err != nil {
		return nil, err
	}

	us, ok := p.(UserRoleStore)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "plugins.userrole = %q is not a user-role store", name)
	}

	return us, nil
}

// ResolveToken resolves the token store capability with type checking.
func (r *Registry) ResolveToken(name string, options map[string]string) (TokenStore, error) {
	p, err := r.Resolve(CapToken, name, options)
	if err != nil {
		return nil, err
	}

	ts, ok := p.(TokenStore)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "plugins.token = %q is not a token store", name)
	}

	return ts, nil
}

// ReleaseAll releases every resolved plugin in reverse resolution order.
// Safe to call more than once.
func (r *Registry) ReleaseAll() {
	if r.released {
		return
	}

	r.released = true

	for i := len(r.resolved) - 1; i >= 0; i-- {
		r.resolved[i].Release()
	}
}
