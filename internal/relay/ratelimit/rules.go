package ratelimit

import "time"

// ActionKind classifies an inbound request for rate-limit purposes.
type ActionKind string

const (
	ActionText     ActionKind = "text"
	ActionImage    ActionKind = "image"
	ActionSettings ActionKind = "settings"
	ActionCommand  ActionKind = "command"
	ActionGlobal   ActionKind = "global"
)

// Rule is the static limit definition for one action kind. A zero
// BlockDuration means exhausting the window rejects without a block.
type Rule struct {
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// DefaultRules provides the shipped per-action limits. Unknown kinds
// fall back to the global rule.
func DefaultRules() map[ActionKind]Rule {
	return map[ActionKind]Rule{
		ActionText:     {MaxRequests: 30, Window: time.Minute, BlockDuration: 5 * time.Minute},
		ActionImage:    {MaxRequests: 10, Window: time.Minute, BlockDuration: 5 * time.Minute},
		ActionSettings: {MaxRequests: 20, Window: time.Minute},
		ActionCommand:  {MaxRequests: 40, Window: time.Minute},
		ActionGlobal:   {MaxRequests: 60, Window: time.Minute, BlockDuration: 10 * time.Minute},
	}
}
