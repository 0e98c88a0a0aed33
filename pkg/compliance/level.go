package compliance

// Ladder holds the escalation thresholds, in calendar days since the last state
// change. The invalid and unlicensed tracks are independent: an expired license
// escalates faster because the customer previously proved ownership.
type Ladder struct {
	// InvalidMedium and InvalidLocked apply to StateInvalid.
	InvalidMedium int
	InvalidLocked int

	// UnlicensedLow, UnlicensedMedium and UnlicensedLocked apply to StateUnlicensed.
	UnlicensedLow    int
	UnlicensedMedium int
	UnlicensedLocked int
}

// DefaultLadder is the production escalation ladder.
var DefaultLadder = Ladder{
	InvalidMedium:    7,
	InvalidLocked:    21,
	UnlicensedLow:    14,
	UnlicensedMedium: 21,
	UnlicensedLocked: 30,
}

// Level returns the restriction level for state after daysElapsed days.
func (l Ladder) Level(state State, daysElapsed int) Level {
	if state == StateValid {
		return LevelActive
	}
	if daysElapsed < 0 {
		daysElapsed = 0
	}

	if state == StateInvalid {
		switch {
		case daysElapsed < l.InvalidMedium:
			return LevelInitiated
		case daysElapsed < l.InvalidLocked:
			return LevelMedium
		default:
			return LevelLocked
		}
	}

	switch {
	case daysElapsed < l.UnlicensedLow:
		return LevelInitiated
	case daysElapsed < l.UnlicensedMedium:
		return LevelLow
	case daysElapsed < l.UnlicensedLocked:
		return LevelMedium
	default:
		return LevelLocked
	}
}

// LevelFor applies DefaultLadder.
func LevelFor(state State, daysElapsed int) Level {
	return DefaultLadder.Level(state, daysElapsed)
}

// OperationClass categorizes what a host should allow at a given level.
type OperationClass string

const (
	OpFull     OperationClass = "full"     // All operations allowed
	OpDegraded OperationClass = "degraded" // Existing features work, premium ones restricted
	OpLocked   OperationClass = "locked"   // Licensed features blocked until a valid key is bound
)

// LevelBehavior describes how a host is expected to react to a level.
type LevelBehavior struct {
	Level       Level          `json:"level"`
	Operations  OperationClass `json:"operations"`
	ShowWarning bool           `json:"show_warning"`
	Description string         `json:"description"`
}

// LevelBehaviors maps each level to its behavior rules.
var LevelBehaviors = map[Level]LevelBehavior{
	LevelActive: {
		Level:       LevelActive,
		Operations:  OpFull,
		ShowWarning: false,
		Description: "License valid and activated for this site.",
	},
	LevelInitiated: {
		Level:       LevelInitiated,
		Operations:  OpFull,
		ShowWarning: true,
		Description: "License problem detected; features intact with a warning.",
	},
	LevelLow: {
		Level:       LevelLow,
		Operations:  OpFull,
		ShowWarning: true,
		Description: "Continued unlicensed use; persistent warning.",
	},
	LevelMedium: {
		Level:       LevelMedium,
		Operations:  OpDegraded,
		ShowWarning: true,
		Description: "Premium features restricted until the license is fixed.",
	},
	LevelLocked: {
		Level:       LevelLocked,
		Operations:  OpLocked,
		ShowWarning: true,
		Description: "Licensed features locked; activate a valid key to restore.",
	},
}

// Behavior returns the behavior rules for level. Unknown levels get the locked
// behavior.
func Behavior(level Level) LevelBehavior {
	if b, ok := LevelBehaviors[level]; ok {
		return b
	}
	return LevelBehaviors[LevelLocked]
}
