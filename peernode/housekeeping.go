package peernode

import (
	"strings"
	"sync"
)

const (
	prefixGroup = "group_"
	prefixRaid  = "raid_"
	prefixZone  = "zone_"
)

// roleAggregates maps each three-letter EverQuest class code to the role
// channels it belongs to (spec.md §4.J "Tank|Priest|Melee|Caster"). The
// taxonomy follows MacroQuest2's standard class groupings, since
// original_source/ is an MQ2 plugin and spec.md names these four roles
// verbatim.
var roleAggregates = map[string][]string{
	"war": {"Tank"},
	"pal": {"Tank"},
	"shd": {"Tank"},
	"clr": {"Priest"},
	"dru": {"Priest"},
	"shm": {"Priest"},
	"mnk": {"Melee"},
	"rng": {"Melee"},
	"rog": {"Melee"},
	"brd": {"Melee"},
	"bst": {"Melee"},
	"ber": {"Melee"},
	"nec": {"Caster"},
	"wiz": {"Caster"},
	"mag": {"Caster"},
	"enc": {"Caster"},
}

// Housekeeping implements spec.md §4.J: auto-join of contextual group/
// raid/zone channels plus the class and role aggregates, and the
// forget-stale sweep over the observer consumer. It is driven by the
// host on its own tick, gated to at most once per second by the caller
// (spec.md §4.J's "each host tick, at most once per second").
//
// Grounded on original_source/MQ2DanNet/Node.cpp's DoMainLoop group
// bookkeeping, which re-derives the same three prefixed channels from
// the character's live group/raid/zone state every pulse.
type Housekeeping struct {
	groups   GroupContext // nil disables contextual auto-join entirely
	evaluator Evaluator
	registry *Registry
	consumer *ObserverConsumer

	join  func(group string) error
	leave func(group string) error

	mu          sync.Mutex
	localServer string
	staticDone  bool
	lastClass   string
}

// NewHousekeeping constructs the housekeeping component. groups may be
// nil, in which case Tick only runs the forget-stale sweep.
func NewHousekeeping(groups GroupContext, evaluator Evaluator, localServer string, registry *Registry, consumer *ObserverConsumer, join, leave func(string) error) *Housekeeping {
	return &Housekeeping{
		groups:      groups,
		evaluator:   evaluator,
		localServer: localServer,
		registry:    registry,
		consumer:    consumer,
		join:        join,
		leave:       leave,
	}
}

// Tick runs one housekeeping pass (spec.md §4.J). fullNames selects
// whether leader/zone channel names are rendered with the full
// "<server>_<name>" form or the short form.
func (h *Housekeeping) Tick(fullNames bool) {
	h.consumer.ForgetIf(func(sink string) bool { return !h.evaluator.SinkExists(sink) })

	if h.groups == nil {
		return
	}

	h.reconcilePrefix(prefixGroup, h.groups.GroupLeader(), fullNames)
	h.reconcilePrefix(prefixRaid, h.groups.RaidLeader(), fullNames)
	h.reconcilePrefix(prefixZone, h.groups.ZoneShortName(), fullNames)
	h.reconcileStatic(h.groups.ClassCode())
}

func (h *Housekeeping) reconcilePrefix(prefix, name string, fullNames bool) {
	want := ""
	if name != "" {
		if fullNames {
			want = prefix + FullName(h.localServer, name)
		} else {
			want = prefix + ShortName(h.localServer, name)
		}
	}

	have := ""
	for _, g := range h.registry.OwnGroups() {
		if strings.HasPrefix(g, prefix) {
			have = g
			break
		}
	}

	if have == want {
		return
	}
	if have != "" {
		_ = h.leave(have)
	}
	if want != "" {
		_ = h.join(want)
	}
}

func (h *Housekeeping) reconcileStatic(class string) {
	class = strings.ToLower(strings.TrimSpace(class))

	h.mu.Lock()
	alreadyJoinedAll := h.staticDone
	lastClass := h.lastClass
	h.mu.Unlock()

	if !alreadyJoinedAll {
		_ = h.join("all")
		h.mu.Lock()
		h.staticDone = true
		h.mu.Unlock()
	}

	if class == lastClass {
		return
	}
	if lastClass != "" {
		for _, role := range roleAggregates[lastClass] {
			_ = h.leave(role)
		}
		_ = h.leave(lastClass)
	}
	if class != "" {
		_ = h.join(class)
		for _, role := range roleAggregates[class] {
			_ = h.join(role)
		}
	}
	h.mu.Lock()
	h.lastClass = class
	h.mu.Unlock()
}
