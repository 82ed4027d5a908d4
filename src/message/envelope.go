package message

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns an Envelope of the given type with a fresh message uuid. The
// payload is left for the caller to set.
func New(t Type) *Envelope {
	return &Envelope{
		Type:        t,
		MessageUuid: uuid.NewString(),
	}
}

// Clone returns a deep copy of e. Envelopes own their nested payloads, so a
// message that is handed to several destinations must be cloned first.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	data := e.appendWire(nil)
	c := &Envelope{}
	if err := unmarshalWire(data, c); err != nil {
		// Marshal output always decodes.
		panic(fmt.Sprintf("message: clone of %s failed: %v", e.Type, err))
	}
	return c
}

// Inner returns the Envelope wrapped by a layer envelope, or nil if e does not
// wrap another message.
func (e *Envelope) Inner() *Envelope {
	switch e.Type {
	case TypeNetworkMessage:
		if e.NetworkMessage != nil {
			return e.NetworkMessage.Message
		}
	case TypePlSend:
		if e.PlSend != nil {
			return e.PlSend.Message
		}
	case TypePlDeliver:
		if e.PlDeliver != nil {
			return e.PlDeliver.Message
		}
	case TypeBebBroadcast:
		if e.BebBroadcast != nil {
			return e.BebBroadcast.Message
		}
	case TypeBebDeliver:
		if e.BebDeliver != nil {
			return e.BebDeliver.Message
		}
	}
	return nil
}

// Validate checks that the payload selected by Type is present, and that layer
// envelopes carry an inner message.
func (e *Envelope) Validate() error {
	var ok bool
	switch e.Type {
	case TypeNetworkMessage:
		ok = e.NetworkMessage != nil && e.NetworkMessage.Message != nil
	case TypeProcRegistration:
		ok = e.ProcRegistration != nil
	case TypeProcInitializeSystem:
		ok = e.ProcInitializeSystem != nil
	case TypeProcDestroySystem:
		ok = true
	case TypeAppBroadcast:
		ok = e.AppBroadcast != nil
	case TypeAppValue:
		ok = e.AppValue != nil
	case TypeAppRead:
		ok = e.AppRead != nil
	case TypeAppWrite:
		ok = e.AppWrite != nil
	case TypeAppReadReturn:
		ok = e.AppReadReturn != nil
	case TypeAppWriteReturn:
		ok = e.AppWriteReturn != nil
	case TypeBebBroadcast:
		ok = e.BebBroadcast != nil && e.BebBroadcast.Message != nil
	case TypeBebDeliver:
		ok = e.BebDeliver != nil && e.BebDeliver.Message != nil
	case TypeNnarInternalAck:
		ok = e.NnarInternalAck != nil
	case TypeNnarInternalRead:
		ok = e.NnarInternalRead != nil
	case TypeNnarInternalValue:
		ok = e.NnarInternalValue != nil
	case TypeNnarInternalWrite:
		ok = e.NnarInternalWrite != nil
	case TypeNnarRead, TypeNnarWriteReturn:
		ok = true
	case TypeNnarReadReturn:
		ok = e.NnarReadReturn != nil
	case TypeNnarWrite:
		ok = e.NnarWrite != nil
	case TypePlDeliver:
		ok = e.PlDeliver != nil && e.PlDeliver.Message != nil
	case TypePlSend:
		ok = e.PlSend != nil && e.PlSend.Message != nil && e.PlSend.Destination != nil
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingPayload, e.Type)
	}
	return nil
}

/*******************************************************************************
Constructors
*******************************************************************************/

// NewPlSend wraps inner in a PL_SEND to dest. The PL_SEND is addressed to the
// same abstraction as inner; the link layer appends ".pl" when it sends it.
func NewPlSend(dest *ProcessId, inner *Envelope) *Envelope {
	e := New(TypePlSend)
	e.FromAbstractionId = inner.FromAbstractionId
	e.ToAbstractionId = inner.ToAbstractionId
	e.SystemId = inner.SystemId
	e.PlSend = &PlSend{
		Destination: dest,
		Message:     inner,
	}
	return e
}

// NewBebDeliver wraps a message delivered by the broadcast layer together with
// its original sender.
func NewBebDeliver(inner *Envelope, sender *ProcessId, to string) *Envelope {
	e := New(TypeBebDeliver)
	e.ToAbstractionId = to
	e.SystemId = inner.SystemId
	e.BebDeliver = &BebDeliver{
		Message: inner,
		Sender:  sender,
	}
	return e
}

// NewRegistration builds the PROC_REGISTRATION a process sends to the hub when
// it starts.
func NewRegistration(owner string, index int32) *Envelope {
	e := New(TypeProcRegistration)
	e.ToAbstractionId = LayerApp
	e.ProcRegistration = &ProcRegistration{
		Owner: owner,
		Index: index,
	}
	return e
}

// NewAppValue builds the APP_VALUE broadcast in response to an APP_BROADCAST.
func NewAppValue(v Value) *Envelope {
	e := New(TypeAppValue)
	e.FromAbstractionId = LayerApp
	e.ToAbstractionId = LayerApp
	e.AppValue = &AppValue{Value: &v}
	return e
}

func newRegisterEnvelope(t Type, register string) *Envelope {
	e := New(t)
	e.FromAbstractionId = RegisterPath(register)
	e.ToAbstractionId = RegisterPath(register)
	return e
}

func NewNnarRead(register string) *Envelope {
	e := newRegisterEnvelope(TypeNnarRead, register)
	e.NnarRead = &NnarRead{}
	return e
}

func NewNnarWrite(register string, v Value) *Envelope {
	e := newRegisterEnvelope(TypeNnarWrite, register)
	e.NnarWrite = &NnarWrite{Value: &v}
	return e
}

func NewNnarReadReturn(register string, v Value) *Envelope {
	e := newRegisterEnvelope(TypeNnarReadReturn, register)
	e.NnarReadReturn = &NnarReadReturn{Value: &v}
	return e
}

func NewNnarWriteReturn(register string) *Envelope {
	e := newRegisterEnvelope(TypeNnarWriteReturn, register)
	e.NnarWriteReturn = &NnarWriteReturn{}
	return e
}

func NewNnarInternalRead(register string, readID int32) *Envelope {
	e := newRegisterEnvelope(TypeNnarInternalRead, register)
	e.NnarInternalRead = &NnarInternalRead{ReadId: readID}
	return e
}

func NewNnarInternalValue(register string, readID, ts, wr int32, v Value) *Envelope {
	e := newRegisterEnvelope(TypeNnarInternalValue, register)
	e.NnarInternalValue = &NnarInternalValue{
		ReadId:     readID,
		Timestamp:  ts,
		WriterRank: wr,
		Value:      &v,
	}
	return e
}

func NewNnarInternalWrite(register string, readID, ts, wr int32, v Value) *Envelope {
	e := newRegisterEnvelope(TypeNnarInternalWrite, register)
	e.NnarInternalWrite = &NnarInternalWrite{
		ReadId:     readID,
		Timestamp:  ts,
		WriterRank: wr,
		Value:      &v,
	}
	return e
}

func NewNnarInternalAck(register string, readID int32) *Envelope {
	e := newRegisterEnvelope(TypeNnarInternalAck, register)
	e.NnarInternalAck = &NnarInternalAck{ReadId: readID}
	return e
}

// NewAppReadReturn and NewAppWriteReturn are the replies a process sends to the
// hub when a register operation completes.
func NewAppReadReturn(register string, v Value) *Envelope {
	e := New(TypeAppReadReturn)
	e.FromAbstractionId = RegisterPath(register)
	e.ToAbstractionId = LayerApp
	e.AppReadReturn = &AppReadReturn{Register: register, Value: &v}
	return e
}

func NewAppWriteReturn(register string) *Envelope {
	e := New(TypeAppWriteReturn)
	e.FromAbstractionId = RegisterPath(register)
	e.ToAbstractionId = LayerApp
	e.AppWriteReturn = &AppWriteReturn{Register: register}
	return e
}
