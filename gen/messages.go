package gen

// MessageExit is delivered to a process that trapped the termination of a
// linked peer (or the target of SendExit). It arrives through the ordinary
// mailbox as an envelope of type MessageTypeExit, subject to selective
// receive like any other message. Reason is carried as a string so the
// notification stays serializable if forwarded to another process.
type MessageExit struct {
	PID    PID    `json:"pid"`
	Reason string `json:"reason"`
}

// IsMessageExit checks the received message against MessageExit.
func IsMessageExit(message any) (MessageExit, bool) {
	m, ok := message.(MessageExit)
	return m, ok
}
