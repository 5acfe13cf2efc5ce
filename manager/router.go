// Package manager routes work across the plugin hierarchy.
//
// Each Router is one node: the runtime owns the root, and every instance
// with the Manager capability owns a child. An instance is a member of the
// node it was created under. Lookups search a node's subtree first and
// then escalate to its parent, so a plugin reaches its siblings only
// through the ManagerService of its parent.
package manager

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/reglet-dev/plughost/application/validation"
	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
	"github.com/reglet-dev/plughost/value"
)

// Dispatcher is the runtime surface a Router dispatches through.
type Dispatcher interface {
	// IsAlive reports whether id names a live instance.
	IsAlive(id entities.InstanceID) bool

	// Candidate describes id for matching.
	Candidate(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.Candidate, error)

	// BasicInfo summarizes id.
	BasicInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.BasicInfo, error)

	// DetailedInfo describes id in full.
	DetailedInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (entities.DetailedInfo, error)

	// Execute runs req synchronously on id.
	Execute(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error

	// ExecuteAsync submits req to id.
	ExecuteAsync(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, cb ports.TaskCallback) error

	// Cancel cancels a pending submission on id.
	Cancel(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest) error
}

// routerConfig holds configuration for a Router tree.
type routerConfig struct {
	logger    *slog.Logger
	validator ports.DescriptorValidator
	matcher   ports.Matcher
}

func defaultRouterConfig() routerConfig {
	return routerConfig{
		logger:  slog.Default(),
		matcher: DefaultMatcher{},
	}
}

// Option configures a Router.
type Option func(*routerConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *routerConfig) {
		c.logger = logger
	}
}

// WithDescriptorValidator replaces the default schema validator.
func WithDescriptorValidator(v ports.DescriptorValidator) Option {
	return func(c *routerConfig) {
		c.validator = v
	}
}

// WithMatcher sets the matcher of the root node. Child nodes start with
// DefaultMatcher.
func WithMatcher(m ports.Matcher) Option {
	return func(c *routerConfig) {
		c.matcher = m
	}
}

// Router is one node of the manager hierarchy. It implements
// ports.ManagerService and is safe for concurrent use.
type Router struct {
	dispatcher Dispatcher
	validator  ports.DescriptorValidator
	logger     *slog.Logger
	parent     *Router

	mu       sync.RWMutex
	matcher  ports.Matcher
	members  map[entities.InstanceID]struct{}
	children map[entities.InstanceID]*Router
	owner    entities.InstanceID
}

// NewRouter creates a root node.
func NewRouter(d Dispatcher, opts ...Option) (*Router, error) {
	cfg := defaultRouterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.validator == nil {
		v, err := validation.NewDefaultDescriptorValidator()
		if err != nil {
			return nil, errors.Wrap(errors.CodeInitializationFailed, "failed to build descriptor validator", err)
		}
		cfg.validator = v
	}
	if cfg.matcher == nil {
		cfg.matcher = DefaultMatcher{}
	}
	return &Router{
		dispatcher: d,
		validator:  cfg.validator,
		logger:     cfg.logger,
		matcher:    cfg.matcher,
		owner:      entities.RootInstance,
		members:    make(map[entities.InstanceID]struct{}),
		children:   make(map[entities.InstanceID]*Router),
	}, nil
}

// Owner returns the instance owning the node, RootInstance for the root.
func (r *Router) Owner() entities.InstanceID {
	return r.owner
}

// Parent returns the parent node, nil for the root.
func (r *Router) Parent() *Router {
	return r.parent
}

// NewChild creates the node owned by the manager instance owner. The owner
// must already be a member of r.
func (r *Router) NewChild(owner entities.InstanceID) (*Router, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[owner]; !ok {
		return nil, errors.Newf(errors.CodeInvalidParameter, "instance %s is not a member of node %s", owner, r.owner)
	}
	if _, ok := r.children[owner]; ok {
		return nil, errors.Newf(errors.CodeAlreadyInitialized, "instance %s already owns a node", owner)
	}
	child := &Router{
		dispatcher: r.dispatcher,
		validator:  r.validator,
		logger:     r.logger,
		parent:     r,
		matcher:    DefaultMatcher{},
		owner:      owner,
		members:    make(map[entities.InstanceID]struct{}),
		children:   make(map[entities.InstanceID]*Router),
	}
	r.children[owner] = child
	return child, nil
}

// SetMatcher replaces the node's matching policy. Nil restores
// DefaultMatcher.
func (r *Router) SetMatcher(m ports.Matcher) {
	if m == nil {
		m = DefaultMatcher{}
	}
	r.mu.Lock()
	r.matcher = m
	r.mu.Unlock()
}

// Attach makes id a member of r.
func (r *Router) Attach(id entities.InstanceID) {
	r.mu.Lock()
	r.members[id] = struct{}{}
	r.mu.Unlock()
}

// Detach removes id from r, together with the node id owns. Members of
// that node stay alive but are no longer reachable through the tree.
func (r *Router) Detach(id entities.InstanceID) {
	r.mu.Lock()
	delete(r.members, id)
	delete(r.children, id)
	r.mu.Unlock()
}

// Members returns the direct members of r in ascending order.
func (r *Router) Members() []entities.InstanceID {
	r.mu.RLock()
	ids := make([]entities.InstanceID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sortIDs(ids)
	return ids
}

// Subtree returns the members of r and of every descendant node, in
// ascending order.
func (r *Router) Subtree() []entities.InstanceID {
	var ids []entities.InstanceID
	r.walk(func(n *Router) {
		for id := range n.members {
			ids = append(ids, id)
		}
	})
	sortIDs(ids)
	return ids
}

// walk visits r and its descendants, holding each node's read lock while
// fn runs on it.
func (r *Router) walk(fn func(n *Router)) {
	r.mu.RLock()
	fn(r)
	children := make([]*Router, 0, len(r.children))
	for _, c := range r.children {
		children = append(children, c)
	}
	r.mu.RUnlock()
	for _, c := range children {
		c.walk(fn)
	}
}

func (r *Router) inSubtree(id entities.InstanceID) bool {
	found := false
	r.walk(func(n *Router) {
		if _, ok := n.members[id]; ok {
			found = true
		}
	})
	return found
}

// resolve finds id in r's subtree, escalating through the ancestors.
func (r *Router) resolve(id entities.InstanceID) error {
	for n := r; n != nil; n = n.parent {
		if n.inSubtree(id) {
			if !r.dispatcher.IsAlive(id) {
				return errors.Newf(errors.CodePluginNotFound, "instance %s is gone", id)
			}
			return nil
		}
	}
	return errors.Newf(errors.CodePluginNotFound, "instance %s is not reachable", id)
}

// notFound maps a vanished handle onto PluginNotFound.
func notFound(id entities.InstanceID, err error) error {
	if stdErrors.Is(err, errors.ErrInvalidHandle) {
		return errors.Wrap(errors.CodePluginNotFound, "instance "+id.String(), err)
	}
	return err
}

// AllPluginsBasicInfo lists the subtree of r.
func (r *Router) AllPluginsBasicInfo(ctx context.Context, lang entities.Language) (value.List[entities.BasicInfo], error) {
	ids := r.Subtree()
	infos := make([]entities.BasicInfo, 0, len(ids))
	for _, id := range ids {
		info, err := r.dispatcher.BasicInfo(ctx, id, lang)
		if err != nil {
			if stdErrors.Is(err, errors.ErrInvalidHandle) {
				continue
			}
			return value.List[entities.BasicInfo]{}, err
		}
		infos = append(infos, info)
	}
	return value.NewList(infos), nil
}

// PluginDetailedInfo returns the detailed info of id as a JSON document.
func (r *Router) PluginDetailedInfo(ctx context.Context, id entities.InstanceID, lang entities.Language) (value.Text, error) {
	if err := r.resolve(id); err != nil {
		return value.Text{}, err
	}
	info, err := r.dispatcher.DetailedInfo(ctx, id, lang)
	if err != nil {
		return value.Text{}, notFound(id, err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return value.Text{}, errors.Wrap(errors.CodeEncoding, "failed to marshal detailed info", err)
	}
	return value.NewText(string(data)), nil
}

// FindPluginsForTask validates descriptorJSON and matches it against the
// subtree of r.
func (r *Router) FindPluginsForTask(ctx context.Context, descriptorJSON string) (value.List[entities.InstanceID], error) {
	desc, err := r.validator.Validate([]byte(descriptorJSON))
	if err != nil {
		return value.List[entities.InstanceID]{}, err
	}

	lang := entities.DefaultLanguage
	if desc.Constraints != nil && desc.Constraints.Language != "" {
		lang = entities.ParseLanguage(desc.Constraints.Language)
	}

	ids := r.Subtree()
	candidates := make([]entities.Candidate, 0, len(ids))
	known := make(map[entities.InstanceID]struct{}, len(ids))
	for _, id := range ids {
		c, err := r.dispatcher.Candidate(ctx, id, lang)
		if err != nil {
			if stdErrors.Is(err, errors.ErrInvalidHandle) {
				continue
			}
			return value.List[entities.InstanceID]{}, err
		}
		candidates = append(candidates, c)
		known[id] = struct{}{}
	}

	r.mu.RLock()
	matcher := r.matcher
	r.mu.RUnlock()

	matched, err := matcher.Match(ctx, desc, candidates)
	if err != nil {
		return value.List[entities.InstanceID]{}, err
	}

	// Keep the matcher's order but drop ids it invented or repeated.
	out := make([]entities.InstanceID, 0, len(matched))
	for _, id := range matched {
		if _, ok := known[id]; ok {
			out = append(out, id)
			delete(known, id)
		}
	}

	r.logger.DebugContext(ctx, "manager: matched task",
		"node", r.owner.String(),
		"action", desc.Action,
		"category", desc.Category,
		"candidates", len(candidates),
		"matched", len(out))
	return value.NewList(out), nil
}

// IsPluginAlive reports whether id is reachable from r and alive.
func (r *Router) IsPluginAlive(_ context.Context, id entities.InstanceID) bool {
	return r.resolve(id) == nil
}

// ExecuteTask runs req synchronously on id.
func (r *Router) ExecuteTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, res *entities.TaskResult) error {
	if err := r.resolve(id); err != nil {
		return err
	}
	return notFound(id, r.dispatcher.Execute(ctx, id, req, res))
}

// ExecuteAsyncTask submits req to id.
func (r *Router) ExecuteAsyncTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest, cb ports.TaskCallback) error {
	if err := r.resolve(id); err != nil {
		return err
	}
	return notFound(id, r.dispatcher.ExecuteAsync(ctx, id, req, cb))
}

// CancelAsyncTask cancels a pending submission on id.
func (r *Router) CancelAsyncTask(ctx context.Context, id entities.InstanceID, req *entities.TaskRequest) error {
	if err := r.resolve(id); err != nil {
		return err
	}
	return notFound(id, r.dispatcher.Cancel(ctx, id, req))
}

var _ ports.ManagerService = (*Router)(nil)

func sortIDs(ids []entities.InstanceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
