package gen

import (
	"sync"
)

type MessageType int

const (
	MessageTypeRegular  MessageType = 0
	MessageTypeRequest  MessageType = 1
	MessageTypeResponse MessageType = 2
	MessageTypeExit     MessageType = 3
)

// Envelope is one message unit resting in a mailbox. Payloads sent between
// processes travel encoded (TypeID + Data) and are decoded only when a
// receive call pulls the envelope. Messages synthesized by the runtime
// (exit notifications) never cross the serializer boundary and carry the
// value in Message directly.
type Envelope struct {
	From    PID
	Ref     Ref // correlation tag; zero value means untagged
	Type    MessageType
	TypeID  string
	Data    []byte
	Message any
}

var (
	envelopes = &sync.Pool{
		New: func() any {
			return &Envelope{}
		},
	}
)

func TakeEnvelope() *Envelope {
	return envelopes.Get().(*Envelope)
}

func ReleaseEnvelope(e *Envelope) {
	var emptyPID PID
	var emptyRef Ref
	e.From = emptyPID
	e.Ref = emptyRef
	e.Type = 0
	e.TypeID = ""
	e.Data = nil
	e.Message = nil
	envelopes.Put(e)
}
