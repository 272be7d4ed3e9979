package stage

import (
	"sort"

	"github.com/banshee-data/liframe/internal/config"
	"github.com/banshee-data/liframe/internal/logging"
)

// Descriptor is one resolved, enabled stage.
type Descriptor struct {
	Group    config.Group
	Name     string
	Priority int
	Fn       Func
}

// ID is "group/name".
func (d Descriptor) ID() string { return string(d.Group) + "/" + d.Name }

// Plan holds the ordered stages of every group.
type Plan struct {
	groups map[config.Group][]Descriptor
}

// Build resolves the enabled stages of every group in cfg against reg and
// orders each group by ascending priority, keeping declaration order for
// ties. Names missing from the registry are dropped and logged.
func Build(reg *Registry, cfg *config.Config, log *logging.Logger) *Plan {
	p := &Plan{groups: make(map[config.Group][]Descriptor, len(config.Groups))}
	for _, g := range config.Groups {
		var stages []Descriptor
		for _, sc := range cfg.Proc.Group(g) {
			if !sc.Enabled {
				continue
			}
			fn, ok := reg.Lookup(g, sc.Name)
			if !ok {
				log.Errorf("stage %s/%s is not registered (available: %v), dropping it", g, sc.Name, reg.Names(g))
				continue
			}
			stages = append(stages, Descriptor{Group: g, Name: sc.Name, Priority: sc.Priority, Fn: fn})
		}
		sort.SliceStable(stages, func(i, j int) bool { return stages[i].Priority < stages[j].Priority })
		p.groups[g] = stages
		if len(stages) > 0 {
			log.Debugf("enabled %s stages: %v", g, names(stages))
		}
	}
	return p
}

// Stages returns the ordered stages of g.
func (p *Plan) Stages(g config.Group) []Descriptor {
	if p == nil {
		return nil
	}
	return p.groups[g]
}

// Len is the total number of stages.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, s := range p.groups {
		n += len(s)
	}
	return n
}

func names(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}
