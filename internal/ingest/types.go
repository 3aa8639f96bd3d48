package ingest

// RawSnapshot is the deserialized form of one game-state POST from the
// client. Sections the client was not configured to send arrive as nil.
type RawSnapshot struct {
	Provider  *RawProvider          `json:"provider"`
	Map       *RawMap               `json:"map"`
	Hero      *RawHero              `json:"hero"`
	Abilities map[string]RawAbility `json:"abilities"`
	Items     map[string]RawItem    `json:"items"`
}

// RawProvider carries the snapshot timestamp in unix milliseconds.
type RawProvider struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// RawMap carries match-level fields.
type RawMap struct {
	GameTime  int    `json:"game_time"`
	ClockTime int    `json:"clock_time"`
	GameState string `json:"game_state"`
	Paused    bool   `json:"paused"`
}

// RawHero carries the tracked subject's vitals.
type RawHero struct {
	Name          string  `json:"name"`
	Level         int     `json:"level"`
	Alive         bool    `json:"alive"`
	Health        int     `json:"health"`
	MaxHealth     int     `json:"max_health"`
	HealthPercent int     `json:"health_percent"`
	Mana          int     `json:"mana"`
	MaxMana       int     `json:"max_mana"`
	ManaPercent   int     `json:"mana_percent"`
	Stunned       bool    `json:"stunned"`
	Silenced      bool    `json:"silenced"`
	XPos          float64 `json:"xpos"`
	YPos          float64 `json:"ypos"`
}

// RawAbility is one entry of the abilities section, keyed ability0..abilityN.
type RawAbility struct {
	Name     string  `json:"name"`
	Level    int     `json:"level"`
	CanCast  bool    `json:"can_cast"`
	Cooldown float64 `json:"cooldown"`
	Passive  bool    `json:"passive"`
}

// RawItem is one entry of the items section, keyed slot0..slotN and
// stash0..stashN. An empty slot has the name "empty".
type RawItem struct {
	Name     string  `json:"name"`
	CanCast  bool    `json:"can_cast"`
	Cooldown float64 `json:"cooldown"`
	Charges  int     `json:"charges"`
}
