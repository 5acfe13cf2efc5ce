package manager

import (
	"context"
	"sort"
	"strings"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
	"github.com/reglet-dev/plughost/domain/ports"
)

// Actions the default matcher understands.
const (
	ActionExecute      = "execute"
	ActionExecuteAsync = "execute_async"
	ActionRun          = "run"
	ActionStart        = "start"
	ActionResident     = "resident"
	ActionState        = "state"
	ActionManage       = "manage"
)

// ProtocolFor returns the protocol bits an action accepts; a candidate
// needs at least one of them. Zero means any protocol will do.
func ProtocolFor(action string) entities.Capability {
	switch strings.ToLower(action) {
	case "", ActionExecute:
		return entities.CapabilitySingleTask | entities.CapabilityAsyncTask
	case ActionExecuteAsync:
		return entities.CapabilityAsyncTask
	case ActionRun, ActionStart, ActionResident:
		return entities.CapabilityResident
	case ActionState:
		return entities.CapabilityState
	case ActionManage:
		return entities.CapabilityManager
	default:
		return 0
	}
}

// Requirement is what a descriptor demands of a candidate.
type Requirement struct {
	ThreadSafe   *bool
	Exclude      map[entities.InstanceID]struct{}
	InputFormat  string
	OutputFormat string
	Required     entities.Capability
	Protocol     entities.Capability
}

// RequirementFor derives the requirement of desc. A capability name in the
// constraints that does not resolve is a validation error; an unknown
// category imposes nothing.
func RequirementFor(desc *entities.TaskDescriptor) (Requirement, error) {
	req := Requirement{
		Protocol:     ProtocolFor(desc.Action),
		InputFormat:  desc.InputFormat,
		OutputFormat: desc.OutputFormat,
	}
	if desc.Category != "" {
		if c, ok := entities.ParseCapability(desc.Category); ok {
			req.Required |= c
		}
	}
	if cons := desc.Constraints; cons != nil {
		for _, name := range cons.Capabilities {
			c, ok := entities.ParseCapability(name)
			if !ok {
				return Requirement{}, errors.Newf(errors.CodeValidation, "unknown capability %q", name)
			}
			req.Required |= c
		}
		req.ThreadSafe = cons.ThreadSafe
		if len(cons.Exclude) > 0 {
			req.Exclude = make(map[entities.InstanceID]struct{}, len(cons.Exclude))
			for _, id := range cons.Exclude {
				req.Exclude[entities.InstanceID(id)] = struct{}{}
			}
		}
	}
	return req, nil
}

// Accepts reports whether c satisfies the requirement.
func (r Requirement) Accepts(c entities.Candidate) bool {
	if _, skip := r.Exclude[c.Instance]; skip {
		return false
	}
	if r.Required != 0 && !c.SupportedTypes.Has(r.Required) {
		return false
	}
	if r.Protocol != 0 && !c.SupportedTypes.Intersects(r.Protocol) {
		return false
	}
	if r.ThreadSafe != nil && c.ThreadSafe != *r.ThreadSafe {
		return false
	}
	// Nil format lists mean the candidate does not declare formats.
	if r.InputFormat != "" && c.InputFormats != nil && !containsFold(c.InputFormats, r.InputFormat) {
		return false
	}
	if r.OutputFormat != "" && c.OutputFormats != nil && !containsFold(c.OutputFormats, r.OutputFormat) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// DefaultMatcher filters candidates by category, action, constraints and
// formats, returning ids in ascending order.
type DefaultMatcher struct{}

// Match implements ports.Matcher.
func (DefaultMatcher) Match(_ context.Context, desc *entities.TaskDescriptor, candidates []entities.Candidate) ([]entities.InstanceID, error) {
	req, err := RequirementFor(desc)
	if err != nil {
		return nil, err
	}
	ids := make([]entities.InstanceID, 0, len(candidates))
	for _, c := range candidates {
		if req.Accepts(c) {
			ids = append(ids, c.Instance)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

var _ ports.Matcher = DefaultMatcher{}
