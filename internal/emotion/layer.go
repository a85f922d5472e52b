package emotion

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

// Options tunes a Layer.
type Options struct {
	BaseDuration  float64 // seconds of lifetime at intensity 1.0
	ResidualAtEnd float64 // fraction of strength remaining at expiry
	MaxPerAgent   int     // concurrent modifiers kept per agent
	TraumaGate    float64 // fear intensity above which trauma accrues
	Now           func() time.Time
}

func (o *Options) fill() {
	if o.BaseDuration <= 0 {
		o.BaseDuration = 30
	}
	if o.ResidualAtEnd <= 0 || o.ResidualAtEnd >= 1 {
		o.ResidualAtEnd = 0.1
	}
	if o.MaxPerAgent <= 0 {
		o.MaxPerAgent = 16
	}
	if o.TraumaGate <= 0 {
		o.TraumaGate = 0.7
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// agentState aggregates the long-lived emotional disposition of one agent,
// alongside its currently active modifiers.
type agentState struct {
	modifiers []*Modifier
	stability float64
	momentum  float64
	trauma    float64
}

// Layer owns the emotional state of every registered agent.
type Layer struct {
	mu     sync.Mutex
	opts   Options
	agents map[uint64]*agentState
	log    *slog.Logger
}

// NewLayer returns an empty emotional layer.
func NewLayer(opts Options, log *slog.Logger) *Layer {
	opts.fill()
	if log == nil {
		log = slog.Default()
	}
	return &Layer{
		opts:   opts,
		agents: make(map[uint64]*agentState),
		log:    log,
	}
}

func (l *Layer) state(id uint64) *agentState {
	st, ok := l.agents[id]
	if !ok {
		st = &agentState{stability: 0.5, momentum: 0.5}
		l.agents[id] = st
	}
	return st
}

// Forget drops all emotional state for an agent, typically on death.
func (l *Layer) Forget(id uint64) {
	l.mu.Lock()
	delete(l.agents, id)
	l.mu.Unlock()
}

// ProcessTrigger records an emotional event for an agent. Unknown events are
// ignored with a debug log. Context factors scale the base intensity: each
// factor present in ctx multiplies it by clamp(value/100, 0.5, 1.5).
func (l *Layer) ProcessTrigger(agentID uint64, event string, ctx map[string]float64) *Modifier {
	trig, ok := triggerTable[event]
	if !ok {
		l.log.Debug("unknown emotional trigger", "event", event, "agent", agentID)
		return nil
	}

	intensity := trig.BaseIntensity
	for _, factor := range trig.ContextFactors {
		v, present := ctx[factor]
		if !present {
			continue
		}
		scale := v / 100
		if scale < 0.5 {
			scale = 0.5
		} else if scale > 1.5 {
			scale = 1.5
		}
		intensity *= scale
	}
	if intensity < 0 {
		intensity = 0
	} else if intensity > 1 {
		intensity = 1
	}

	row := influenceMatrix[trig.Emotion]
	var dominant InfluenceType
	best := -1.0
	for _, inf := range allInfluences {
		if a := math.Abs(row[inf]); a > best {
			best = a
			dominant = inf
		}
	}
	value := row[dominant]

	now := l.opts.Now()
	duration := l.opts.BaseDuration * intensity
	if duration <= 0 {
		return nil
	}
	mod := &Modifier{
		Emotion:       trig.Emotion,
		Influence:     dominant,
		Strength:      intensity,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(duration * float64(time.Second))),
		DecayRate:     -math.Log(l.opts.ResidualAtEnd) / duration,
		TargetActions: targetActions[dominant],
		Boost:         math.Max(0, value),
		Penalty:       math.Max(0, -value),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state(agentID)
	st.modifiers = append(st.modifiers, mod)
	l.pruneLocked(st, now)
	l.adjustDispositionLocked(st, trig.Emotion, intensity)
	return mod
}

// pruneLocked drops expired modifiers and keeps only the strongest
// MaxPerAgent of what remains.
func (l *Layer) pruneLocked(st *agentState, now time.Time) {
	live := st.modifiers[:0]
	for _, m := range st.modifiers {
		if m.Active(now) {
			live = append(live, m)
		}
	}
	st.modifiers = live
	if len(st.modifiers) > l.opts.MaxPerAgent {
		sort.Slice(st.modifiers, func(i, j int) bool {
			return st.modifiers[i].CurrentStrength(now) > st.modifiers[j].CurrentStrength(now)
		})
		st.modifiers = st.modifiers[:l.opts.MaxPerAgent]
	}
}

func (l *Layer) adjustDispositionLocked(st *agentState, emo Code, intensity float64) {
	switch emo {
	case Fear, Rage, Disgust:
		st.stability -= intensity * 0.1
	case Calmness, Trust, Joy:
		st.stability += intensity * 0.05
	}
	st.stability = clamp01(st.stability)
	if emo == Fear && intensity > l.opts.TraumaGate {
		st.trauma = clamp01(st.trauma + intensity*0.2)
	}
	st.momentum = clamp01((st.momentum + intensity) / 2)
}

// Disposition reports the aggregate emotional state of an agent.
type Disposition struct {
	Stability float64 `json:"stability"`
	Momentum  float64 `json:"momentum"`
	Trauma    float64 `json:"trauma"`
	Active    int     `json:"active_modifiers"`
}

// DispositionOf returns the aggregate state of an agent, defaults if unknown.
func (l *Layer) DispositionOf(id uint64) Disposition {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.agents[id]
	if !ok {
		return Disposition{Stability: 0.5, Momentum: 0.5}
	}
	l.pruneLocked(st, l.opts.Now())
	return Disposition{
		Stability: st.stability,
		Momentum:  st.momentum,
		Trauma:    st.trauma,
		Active:    len(st.modifiers),
	}
}

// Intensity returns the summed current strength of an agent's active
// modifiers for one emotion, capped at 1.
func (l *Layer) Intensity(id uint64, emo Code) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.agents[id]
	if !ok {
		return 0
	}
	now := l.opts.Now()
	total := 0.0
	for _, m := range st.modifiers {
		if m.Emotion == emo {
			total += m.CurrentStrength(now)
		}
	}
	return math.Min(1, total)
}

// InfluencedActions returns a normalized weight per available action,
// reflecting the agent's active modifiers and aggregate disposition.
// Every weight starts at 1; the result always sums to 1.
func (l *Layer) InfluencedActions(id uint64, available []string) map[string]float64 {
	weights := make(map[string]float64, len(available))
	for _, a := range available {
		weights[a] = 1
	}
	if len(weights) == 0 {
		return weights
	}

	l.mu.Lock()
	st, ok := l.agents[id]
	if ok {
		now := l.opts.Now()
		l.pruneLocked(st, now)
		for _, m := range st.modifiers {
			strength := m.CurrentStrength(now)
			if strength <= 0 {
				continue
			}
			for _, action := range m.TargetActions {
				if _, want := weights[action]; !want {
					continue
				}
				// Modifier contributions stack additively; only the
				// disposition scalings below are multiplicative.
				weights[action] += (m.Boost - m.Penalty) * strength
			}
		}
		applyDisposition(weights, st)
	}
	l.mu.Unlock()

	return normalize(weights)
}

func applyDisposition(weights map[string]float64, st *agentState) {
	scale := func(action string, by float64) {
		if w, ok := weights[action]; ok {
			weights[action] = w * by
		}
	}
	if st.stability < 0.3 {
		scale("defend", 1.5)
		scale("retreat", 1.3)
	} else if st.stability > 0.7 {
		scale("attack", 1.2)
		scale("explore", 1.3)
	}
	if st.momentum > 0.7 {
		scale("attack", 1.4)
		scale("charge", 1.4)
		scale("explore", 1.4)
	}
	if st.trauma > 0.5 {
		scale("flee", 1.6)
		scale("hide", 1.6)
		scale("defend", 1.6)
		scale("attack", 0.7)
		scale("charge", 0.7)
	}
}

func normalize(weights map[string]float64) map[string]float64 {
	total := 0.0
	for k, w := range weights {
		if w < 1e-6 {
			w = 1e-6
			weights[k] = w
		}
		total += w
	}
	for k := range weights {
		weights[k] /= total
	}
	return weights
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
