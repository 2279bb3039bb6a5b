package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess = "✓" // operation succeeded
	SymbolFail    = "✗" // operation failed
	SymbolRunning = "●"
	SymbolPaused  = "◑"
	SymbolStopped = "○"
	SymbolUnknown = "⊘"
)

// StateSymbol returns the symbol shown next to a container state.
func StateSymbol(state string) string {
	switch state {
	case "running":
		return SymbolRunning
	case "paused":
		return SymbolPaused
	case "exited", "created", "dead":
		return SymbolStopped
	default:
		return SymbolUnknown
	}
}
