// Package config loads the session configuration from a JSON file and
// exposes it as one immutable typed snapshot. The runtime never mutates
// configuration; changes require a restart.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ListenerConfig holds inbound snapshot listener settings.
type ListenerConfig struct {
	Port      int `json:"port" mapstructure:"port"`
	QueueSize int `json:"queueSize" mapstructure:"queueSize"`
}

// EmitterConfig points at the external input-synthesis sidecar that
// performs the OS-level injection.
type EmitterConfig struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"` // POST target for outbound actions
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs"`
	QueueSize int    `json:"queueSize" mapstructure:"queueSize"` // outbound action buffer
}

// StorageConfig holds session recorder backend settings.
type StorageConfig struct {
	Backend    string `json:"backend" mapstructure:"backend"` // "sqlite", "memory" or "none"
	OutputDir  string `json:"outputDir" mapstructure:"outputDir"`
	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// InfluxConfig holds session metrics settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OtelConfig holds OpenTelemetry export settings.
type OtelConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" mapstructure:"insecure"`
}

// DangerConfig tunes the danger detection state machine.
type DangerConfig struct {
	Enabled          bool `json:"enabled" mapstructure:"enabled"`
	WindowMs         int  `json:"windowMs" mapstructure:"windowMs"`               // sliding loss window
	LossThreshold    int  `json:"lossThreshold" mapstructure:"lossThreshold"`     // absolute loss within the window
	LowHealthPct     int  `json:"lowHealthPct" mapstructure:"lowHealthPct"`       // low-health trigger while losing
	StabilizeMs      int  `json:"stabilizeMs" mapstructure:"stabilizeMs"`         // clearing debounce duration
	MaxReactiveUses  int  `json:"maxReactiveUses" mapstructure:"maxReactiveUses"` // per elevated episode
	DispelEnabled    bool `json:"dispelEnabled" mapstructure:"dispelEnabled"`
	DispelJitterMsLo int  `json:"dispelJitterMsLo" mapstructure:"dispelJitterMsLo"`
	DispelJitterMsHi int  `json:"dispelJitterMsHi" mapstructure:"dispelJitterMsHi"`
}

// SurvivalConfig tunes the reactive item policy.
type SurvivalConfig struct {
	HealthPct         int      `json:"healthPct" mapstructure:"healthPct"` // healing threshold outside danger
	DangerHealthPct   int      `json:"dangerHealthPct" mapstructure:"dangerHealthPct"`
	HealingPriority   []string `json:"healingPriority" mapstructure:"healingPriority"`
	DefensivePriority []string `json:"defensivePriority" mapstructure:"defensivePriority"`
	DispelItem        string   `json:"dispelItem" mapstructure:"dispelItem"`
}

// SelfBuffConfig tunes the mana-gated self-buff prefix assist.
type SelfBuffConfig struct {
	Enabled      bool     `json:"enabled" mapstructure:"enabled"`
	Item         string   `json:"item" mapstructure:"item"`
	MinManaPct   int      `json:"minManaPct" mapstructure:"minManaPct"`     // fire only below this
	MinHealthPct int      `json:"minHealthPct" mapstructure:"minHealthPct"` // safety floor
	CooldownMs   int      `json:"cooldownMs" mapstructure:"cooldownMs"`
	AbilityKeys  []string `json:"abilityKeys" mapstructure:"abilityKeys"`
	ItemKeys     bool     `json:"itemKeys" mapstructure:"itemKeys"` // also prefix item-slot keys
}

// StatToggleConfig tunes the low-health item double-tap guard.
type StatToggleConfig struct {
	Enabled          bool   `json:"enabled" mapstructure:"enabled"`
	Item             string `json:"item" mapstructure:"item"`
	Threshold        int    `json:"threshold" mapstructure:"threshold"`               // absolute health
	PredictiveOffset int    `json:"predictiveOffset" mapstructure:"predictiveOffset"` // fires at threshold+offset
	CooldownMs       int    `json:"cooldownMs" mapstructure:"cooldownMs"`
}

// CyclerConfig tunes the toggle-combo script with verified reset retry.
type CyclerConfig struct {
	Class            string            `json:"class" mapstructure:"class"`
	Enabled          bool              `json:"enabled" mapstructure:"enabled"`
	Priority         []string          `json:"priority" mapstructure:"priority"`       // ability/item names in cast order
	AbilityKeys      map[string]string `json:"abilityKeys" mapstructure:"abilityKeys"` // ability name -> key
	ResetKey         string            `json:"resetKey" mapstructure:"resetKey"`
	ResetAbility     string            `json:"resetAbility" mapstructure:"resetAbility"` // cooldown baseline source
	ResetChannelMs   int               `json:"resetChannelMs" mapstructure:"resetChannelMs"`
	RetryOnInterrupt bool              `json:"retryOnInterrupt" mapstructure:"retryOnInterrupt"`
	MinCastGapMs     int               `json:"minCastGapMs" mapstructure:"minCastGapMs"`
	LoopIntervalMs   int               `json:"loopIntervalMs" mapstructure:"loopIntervalMs"`
	ToggleKey        string            `json:"toggleKey" mapstructure:"toggleKey"`
}

// RhythmConfig tunes the beat-scheduler script.
type RhythmConfig struct {
	Class             string            `json:"class" mapstructure:"class"`
	Enabled           bool              `json:"enabled" mapstructure:"enabled"`
	BeatIntervalMs    int               `json:"beatIntervalMs" mapstructure:"beatIntervalMs"`
	CorrectionMs      int               `json:"correctionMs" mapstructure:"correctionMs"` // signed
	CorrectionEveryN  int               `json:"correctionEveryN" mapstructure:"correctionEveryN"`
	PollIntervalMs    int               `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	PayloadKeys       map[string]string `json:"payloadKeys" mapstructure:"payloadKeys"` // payload name -> key
	ToggleKey         string            `json:"toggleKey" mapstructure:"toggleKey"`
	ActiveAbilityHint string            `json:"activeAbilityHint" mapstructure:"activeAbilityHint"` // ability0 prefix while active
	DualCastItem      string            `json:"dualCastItem" mapstructure:"dualCastItem"`           // enables the secondary payload
	MinManaPct        int               `json:"minManaPct" mapstructure:"minManaPct"`
}

// BurstAbility is one health-gated ability step of the burst script.
type BurstAbility struct {
	Key           string `json:"key" mapstructure:"key"`
	Index         int    `json:"index" mapstructure:"index"`
	HealthGatePct int    `json:"healthGatePct" mapstructure:"healthGatePct"` // 0 disables the gate
}

// BurstConfig tunes the modifier-held burst script.
type BurstConfig struct {
	Class          string         `json:"class" mapstructure:"class"`
	Enabled        bool           `json:"enabled" mapstructure:"enabled"`
	Modifier       string         `json:"modifier" mapstructure:"modifier"`
	Items          []string       `json:"items" mapstructure:"items"`
	Abilities      []BurstAbility `json:"abilities" mapstructure:"abilities"`
	AbilitiesFirst bool           `json:"abilitiesFirst" mapstructure:"abilitiesFirst"`
	StepGapMs      int            `json:"stepGapMs" mapstructure:"stepGapMs"`
}

// FacingConfig tunes the lookahead-facing interception script.
type FacingConfig struct {
	Class             string   `json:"class" mapstructure:"class"`
	Enabled           bool     `json:"enabled" mapstructure:"enabled"`
	CastKeys          []string `json:"castKeys" mapstructure:"castKeys"`                   // intercepted keys
	DirectionModifier string   `json:"directionModifier" mapstructure:"directionModifier"` // held around the turn click
	SettleMs          int      `json:"settleMs" mapstructure:"settleMs"`
	CastDelayMs       int      `json:"castDelayMs" mapstructure:"castDelayMs"`
}

// SwapConfig tunes the precondition-gated stash swap script.
type SwapConfig struct {
	Class          string   `json:"class" mapstructure:"class"`
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	TriggerItem    string   `json:"triggerItem" mapstructure:"triggerItem"` // intercepted item
	SwapItems      []string `json:"swapItems" mapstructure:"swapItems"`     // stat items moved to stash
	MaxGameTimeSec int      `json:"maxGameTimeSec" mapstructure:"maxGameTimeSec"`
	CooldownMs     int      `json:"cooldownMs" mapstructure:"cooldownMs"`
	DragStepMs     int      `json:"dragStepMs" mapstructure:"dragStepMs"`
}

// MicroConfig tunes the controlled-unit attack macro: one pointer button
// selects the unit group, attack-clicks at the cursor and reselects the
// subject.
type MicroConfig struct {
	Class         string `json:"class" mapstructure:"class"`
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	TriggerButton string `json:"triggerButton" mapstructure:"triggerButton"` // intercepted pointer button
	UnitsKey      string `json:"unitsKey" mapstructure:"unitsKey"`           // control group with the units
	AttackKey     string `json:"attackKey" mapstructure:"attackKey"`
	ReselectKey   string `json:"reselectKey" mapstructure:"reselectKey"` // control group with the subject
	StepGapMs     int    `json:"stepGapMs" mapstructure:"stepGapMs"`
}

// ScreenConfig maps slot identifiers to on-screen pixel positions, captured
// once with the external coordinate-capture utility.
type ScreenConfig struct {
	SlotPositions map[string][2]float64 `json:"slotPositions" mapstructure:"slotPositions"`
}

// Config is the immutable per-session configuration snapshot.
type Config struct {
	LogLevel string            `json:"logLevel" mapstructure:"logLevel"`
	LogsDir  string            `json:"logsDir" mapstructure:"logsDir"`
	Keys     map[string]string `json:"keys" mapstructure:"keys"` // slot id -> key

	Listener ListenerConfig `json:"listener" mapstructure:"listener"`
	Emitter  EmitterConfig  `json:"emitter" mapstructure:"emitter"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
	Influx   InfluxConfig   `json:"influx" mapstructure:"influx"`
	Otel     OtelConfig     `json:"otel" mapstructure:"otel"`

	Danger     DangerConfig     `json:"danger" mapstructure:"danger"`
	Survival   SurvivalConfig   `json:"survival" mapstructure:"survival"`
	SelfBuff   SelfBuffConfig   `json:"selfBuff" mapstructure:"selfBuff"`
	StatToggle StatToggleConfig `json:"statToggle" mapstructure:"statToggle"`

	Cycler CyclerConfig `json:"cycler" mapstructure:"cycler"`
	Rhythm RhythmConfig `json:"rhythm" mapstructure:"rhythm"`
	Burst  BurstConfig  `json:"burst" mapstructure:"burst"`
	Facing FacingConfig `json:"facing" mapstructure:"facing"`
	Swap   SwapConfig   `json:"swap" mapstructure:"swap"`
	Micro  MicroConfig  `json:"micro" mapstructure:"micro"`

	Screen ScreenConfig `json:"screen" mapstructure:"screen"`
}

// KeyForSlot returns the configured key for a slot identifier.
func (c *Config) KeyForSlot(slotID string) (string, bool) {
	k, ok := c.Keys[slotID]
	return k, ok && k != ""
}

// Load reads configuration from agent.cfg.json in configDir, applying
// defaults first, and returns the typed snapshot.
func Load(configDir string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("agent.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./agentlogs")

	viper.SetDefault("keys.slot0", "z")
	viper.SetDefault("keys.slot1", "x")
	viper.SetDefault("keys.slot2", "c")
	viper.SetDefault("keys.slot3", "v")
	viper.SetDefault("keys.slot4", "b")
	viper.SetDefault("keys.slot5", "n")
	viper.SetDefault("keys.neutral0", "g")

	viper.SetDefault("listener.port", 53000)
	viper.SetDefault("listener.queueSize", 16)

	viper.SetDefault("emitter.endpoint", "http://127.0.0.1:53001/act")
	viper.SetDefault("emitter.timeoutMs", 250)
	viper.SetDefault("emitter.queueSize", 64)

	viper.SetDefault("storage.backend", "sqlite")
	viper.SetDefault("storage.outputDir", "./sessions")
	viper.SetDefault("storage.sqlitePath", "./sessions/agent.db")
	viper.SetDefault("storage.compress", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "agent-metrics")
	viper.SetDefault("influx.bucket", "session_data")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("danger.enabled", true)
	viper.SetDefault("danger.windowMs", 500)
	viper.SetDefault("danger.lossThreshold", 100)
	viper.SetDefault("danger.lowHealthPct", 70)
	viper.SetDefault("danger.stabilizeMs", 3000)
	viper.SetDefault("danger.maxReactiveUses", 3)
	viper.SetDefault("danger.dispelEnabled", true)
	viper.SetDefault("danger.dispelJitterMsLo", 30)
	viper.SetDefault("danger.dispelJitterMsHi", 100)

	viper.SetDefault("survival.healthPct", 35)
	viper.SetDefault("survival.dangerHealthPct", 55)
	viper.SetDefault("survival.healingPriority", []string{
		"item_cheese", "item_faerie_fire", "item_magic_wand", "item_enchanted_mango",
	})
	viper.SetDefault("survival.defensivePriority", []string{
		"item_crimson_guard", "item_lotus_orb", "item_glimmer_cape",
	})
	viper.SetDefault("survival.dispelItem", "item_manta")

	viper.SetDefault("selfBuff.enabled", false)
	viper.SetDefault("selfBuff.item", "item_soul_ring")
	viper.SetDefault("selfBuff.minManaPct", 40)
	viper.SetDefault("selfBuff.minHealthPct", 30)
	viper.SetDefault("selfBuff.cooldownMs", 800)
	viper.SetDefault("selfBuff.abilityKeys", []string{"q", "w", "e"})
	viper.SetDefault("selfBuff.itemKeys", false)

	viper.SetDefault("statToggle.enabled", false)
	viper.SetDefault("statToggle.item", "item_armlet")
	viper.SetDefault("statToggle.threshold", 320)
	viper.SetDefault("statToggle.predictiveOffset", 30)
	viper.SetDefault("statToggle.cooldownMs", 250)

	viper.SetDefault("cycler.class", "artificer")
	viper.SetDefault("cycler.enabled", true)
	viper.SetDefault("cycler.priority", []string{"beam", "flare", "item_orb"})
	viper.SetDefault("cycler.abilityKeys", map[string]string{"beam": "q", "flare": "w"})
	viper.SetDefault("cycler.resetKey", "r")
	viper.SetDefault("cycler.resetAbility", "beam")
	viper.SetDefault("cycler.resetChannelMs", 1550)
	viper.SetDefault("cycler.retryOnInterrupt", true)
	viper.SetDefault("cycler.minCastGapMs", 80)
	viper.SetDefault("cycler.loopIntervalMs", 50)
	viper.SetDefault("cycler.toggleKey", "home")

	viper.SetDefault("rhythm.class", "minstrel")
	viper.SetDefault("rhythm.enabled", true)
	viper.SetDefault("rhythm.beatIntervalMs", 995)
	viper.SetDefault("rhythm.correctionMs", 30)
	viper.SetDefault("rhythm.correctionEveryN", 5)
	viper.SetDefault("rhythm.pollIntervalMs", 5)
	viper.SetDefault("rhythm.payloadKeys", map[string]string{"tempo": "q", "stride": "w", "mend": "e"})
	viper.SetDefault("rhythm.toggleKey", "r")
	viper.SetDefault("rhythm.activeAbilityHint", "song_")
	viper.SetDefault("rhythm.dualCastItem", "item_resonator")
	viper.SetDefault("rhythm.minManaPct", 20)

	viper.SetDefault("burst.class", "titan")
	viper.SetDefault("burst.enabled", true)
	viper.SetDefault("burst.modifier", "space")
	viper.SetDefault("burst.items", []string{"item_orchid", "item_nullifier"})
	viper.SetDefault("burst.abilitiesFirst", false)
	viper.SetDefault("burst.stepGapMs", 30)

	viper.SetDefault("facing.class", "reaper")
	viper.SetDefault("facing.enabled", true)
	viper.SetDefault("facing.castKeys", []string{"q", "w", "e"})
	viper.SetDefault("facing.directionModifier", "alt")
	viper.SetDefault("facing.settleMs", 50)
	viper.SetDefault("facing.castDelayMs", 120)

	viper.SetDefault("swap.class", "alchemist")
	viper.SetDefault("swap.enabled", false)
	viper.SetDefault("swap.triggerItem", "item_bottle")
	viper.SetDefault("swap.swapItems", []string{"item_branches"})
	viper.SetDefault("swap.maxGameTimeSec", 600)
	viper.SetDefault("swap.cooldownMs", 2500)
	viper.SetDefault("swap.dragStepMs", 40)

	viper.SetDefault("micro.class", "matriarch")
	viper.SetDefault("micro.enabled", true)
	viper.SetDefault("micro.triggerButton", "mouse4")
	viper.SetDefault("micro.unitsKey", "f2")
	viper.SetDefault("micro.attackKey", "a")
	viper.SetDefault("micro.reselectKey", "f1")
	viper.SetDefault("micro.stepGapMs", 40)
}
