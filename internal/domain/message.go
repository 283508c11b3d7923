package domain

// MessageType tags a WorkerMessage variant.
type MessageType string

const (
	MessageStatus      MessageType = "status"
	MessageDebug       MessageType = "debug"
	MessageSquareCount MessageType = "squarecount"
	MessageSquare      MessageType = "square"
	MessageError       MessageType = "error"
	MessageDone        MessageType = "done"
)

// Event sent by an area worker to the region orchestrator.
// Only MessageDone commits results; MessageError marks the worker as failed.
// Every other variant is observability only.
type WorkerMessage struct {
	Type    MessageType `json:"type"`
	AreaID  string      `json:"id"`
	Data    string      `json:"data,omitempty"`
	Count   int         `json:"count,omitempty"`
	Stack   string      `json:"stack,omitempty"`
	Records []ETARecord `json:"records,omitempty"`
}

func StatusMessage(areaID, status string) WorkerMessage {
	return WorkerMessage{Type: MessageStatus, AreaID: areaID, Data: status}
}

func DebugMessage(areaID, text string) WorkerMessage {
	return WorkerMessage{Type: MessageDebug, AreaID: areaID, Data: text}
}

func SquareCountMessage(areaID string, n int) WorkerMessage {
	return WorkerMessage{Type: MessageSquareCount, AreaID: areaID, Count: n}
}

func SquareMessage(areaID string, outcome SquareOutcome) WorkerMessage {
	return WorkerMessage{Type: MessageSquare, AreaID: areaID, Data: string(outcome)}
}

func ErrorMessage(areaID string, err error, stack string) WorkerMessage {
	return WorkerMessage{Type: MessageError, AreaID: areaID, Data: err.Error(), Stack: stack}
}

func DoneMessage(areaID string, records []ETARecord) WorkerMessage {
	return WorkerMessage{Type: MessageDone, AreaID: areaID, Records: records}
}

// Terminal state of one grid cell.
type SquareOutcome string

const (
	SquareNoIntersection SquareOutcome = "no_intersection"
	SquareNoOrigins      SquareOutcome = "no_origins"
	SquareProcessed      SquareOutcome = "processed"
)
