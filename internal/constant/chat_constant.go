package constant

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// HistoryWindow bounds how many prior messages are replayed to the
// generator per turn.
const HistoryWindow = 10

// CarryForwardTurns bounds how many prior turns contribute cited passages
// to hybrid retrieval.
const CarryForwardTurns = 3
