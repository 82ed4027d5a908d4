package message

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrTruncated      = errors.New("message: truncated or malformed data")
	ErrWireType       = errors.New("message: unexpected wire type")
	ErrMissingPayload = errors.New("message: payload does not match type")
)

// wireMessage is implemented by every type of the schema. appendWire appends
// the fields of the message (not its own tag) to b, and consumeField decodes a
// single field whose tag has already been read, returning the number of bytes
// consumed.
type wireMessage interface {
	appendWire(b []byte) []byte
	consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error)
}

// Marshal encodes an Envelope in the protobuf wire format used by the hub.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMissingPayload)
	}
	return e.appendWire(nil), nil
}

// Unmarshal decodes an Envelope. Unknown fields are skipped so that messages
// produced by a newer hub schema still decode.
func Unmarshal(data []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := unmarshalWire(data, e); err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalWire(b []byte, m wireMessage) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := m.consumeField(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

/*******************************************************************************
Field helpers
*******************************************************************************/

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(n))
	}
	return n, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, m wireMessage) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}

func readString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func readInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
	}
	*dst = int32(v)
	return n, nil
}

func readBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
	}
	*dst = protowire.DecodeBool(v)
	return n, nil
}

func readMessage(typ protowire.Type, b []byte, dst wireMessage) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
	}
	if err := unmarshalWire(v, dst); err != nil {
		return 0, err
	}
	return n, nil
}

/*******************************************************************************
Envelope
*******************************************************************************/

func (e *Envelope) appendWire(b []byte) []byte {
	b = appendInt32(b, 1, int32(e.Type))
	b = appendString(b, 2, e.MessageUuid)
	b = appendString(b, 3, e.FromAbstractionId)
	b = appendString(b, 4, e.ToAbstractionId)
	b = appendString(b, 5, e.SystemId)
	if e.NetworkMessage != nil {
		b = appendMessage(b, 6, e.NetworkMessage)
	}
	if e.ProcRegistration != nil {
		b = appendMessage(b, 7, e.ProcRegistration)
	}
	if e.ProcInitializeSystem != nil {
		b = appendMessage(b, 8, e.ProcInitializeSystem)
	}
	if e.ProcDestroySystem != nil {
		b = appendMessage(b, 9, e.ProcDestroySystem)
	}
	if e.AppBroadcast != nil {
		b = appendMessage(b, 10, e.AppBroadcast)
	}
	if e.AppValue != nil {
		b = appendMessage(b, 11, e.AppValue)
	}
	if e.AppRead != nil {
		b = appendMessage(b, 14, e.AppRead)
	}
	if e.AppWrite != nil {
		b = appendMessage(b, 15, e.AppWrite)
	}
	if e.AppReadReturn != nil {
		b = appendMessage(b, 16, e.AppReadReturn)
	}
	if e.AppWriteReturn != nil {
		b = appendMessage(b, 17, e.AppWriteReturn)
	}
	if e.BebBroadcast != nil {
		b = appendMessage(b, 40, e.BebBroadcast)
	}
	if e.BebDeliver != nil {
		b = appendMessage(b, 41, e.BebDeliver)
	}
	if e.NnarInternalAck != nil {
		b = appendMessage(b, 60, e.NnarInternalAck)
	}
	if e.NnarInternalRead != nil {
		b = appendMessage(b, 61, e.NnarInternalRead)
	}
	if e.NnarInternalValue != nil {
		b = appendMessage(b, 62, e.NnarInternalValue)
	}
	if e.NnarInternalWrite != nil {
		b = appendMessage(b, 63, e.NnarInternalWrite)
	}
	if e.NnarRead != nil {
		b = appendMessage(b, 64, e.NnarRead)
	}
	if e.NnarReadReturn != nil {
		b = appendMessage(b, 65, e.NnarReadReturn)
	}
	if e.NnarWrite != nil {
		b = appendMessage(b, 66, e.NnarWrite)
	}
	if e.NnarWriteReturn != nil {
		b = appendMessage(b, 67, e.NnarWriteReturn)
	}
	if e.PlDeliver != nil {
		b = appendMessage(b, 70, e.PlDeliver)
	}
	if e.PlSend != nil {
		b = appendMessage(b, 71, e.PlSend)
	}
	return b
}

func (e *Envelope) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		var t int32
		n, err := readInt32(typ, b, &t)
		e.Type = Type(t)
		return n, err
	case 2:
		return readString(typ, b, &e.MessageUuid)
	case 3:
		return readString(typ, b, &e.FromAbstractionId)
	case 4:
		return readString(typ, b, &e.ToAbstractionId)
	case 5:
		return readString(typ, b, &e.SystemId)
	case 6:
		e.NetworkMessage = &NetworkMessage{}
		return readMessage(typ, b, e.NetworkMessage)
	case 7:
		e.ProcRegistration = &ProcRegistration{}
		return readMessage(typ, b, e.ProcRegistration)
	case 8:
		e.ProcInitializeSystem = &ProcInitializeSystem{}
		return readMessage(typ, b, e.ProcInitializeSystem)
	case 9:
		e.ProcDestroySystem = &ProcDestroySystem{}
		return readMessage(typ, b, e.ProcDestroySystem)
	case 10:
		e.AppBroadcast = &AppBroadcast{}
		return readMessage(typ, b, e.AppBroadcast)
	case 11:
		e.AppValue = &AppValue{}
		return readMessage(typ, b, e.AppValue)
	case 14:
		e.AppRead = &AppRead{}
		return readMessage(typ, b, e.AppRead)
	case 15:
		e.AppWrite = &AppWrite{}
		return readMessage(typ, b, e.AppWrite)
	case 16:
		e.AppReadReturn = &AppReadReturn{}
		return readMessage(typ, b, e.AppReadReturn)
	case 17:
		e.AppWriteReturn = &AppWriteReturn{}
		return readMessage(typ, b, e.AppWriteReturn)
	case 40:
		e.BebBroadcast = &BebBroadcast{}
		return readMessage(typ, b, e.BebBroadcast)
	case 41:
		e.BebDeliver = &BebDeliver{}
		return readMessage(typ, b, e.BebDeliver)
	case 60:
		e.NnarInternalAck = &NnarInternalAck{}
		return readMessage(typ, b, e.NnarInternalAck)
	case 61:
		e.NnarInternalRead = &NnarInternalRead{}
		return readMessage(typ, b, e.NnarInternalRead)
	case 62:
		e.NnarInternalValue = &NnarInternalValue{}
		return readMessage(typ, b, e.NnarInternalValue)
	case 63:
		e.NnarInternalWrite = &NnarInternalWrite{}
		return readMessage(typ, b, e.NnarInternalWrite)
	case 64:
		e.NnarRead = &NnarRead{}
		return readMessage(typ, b, e.NnarRead)
	case 65:
		e.NnarReadReturn = &NnarReadReturn{}
		return readMessage(typ, b, e.NnarReadReturn)
	case 66:
		e.NnarWrite = &NnarWrite{}
		return readMessage(typ, b, e.NnarWrite)
	case 67:
		e.NnarWriteReturn = &NnarWriteReturn{}
		return readMessage(typ, b, e.NnarWriteReturn)
	case 70:
		e.PlDeliver = &PlDeliver{}
		return readMessage(typ, b, e.PlDeliver)
	case 71:
		e.PlSend = &PlSend{}
		return readMessage(typ, b, e.PlSend)
	default:
		return skipField(num, typ, b)
	}
}

/*******************************************************************************
Common types
*******************************************************************************/

func (p *ProcessId) appendWire(b []byte) []byte {
	b = appendString(b, 1, p.Host)
	b = appendInt32(b, 2, p.Port)
	b = appendString(b, 3, p.Owner)
	b = appendInt32(b, 4, p.Index)
	return appendInt32(b, 5, p.Rank)
}

func (p *ProcessId) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readString(typ, b, &p.Host)
	case 2:
		return readInt32(typ, b, &p.Port)
	case 3:
		return readString(typ, b, &p.Owner)
	case 4:
		return readInt32(typ, b, &p.Index)
	case 5:
		return readInt32(typ, b, &p.Rank)
	default:
		return skipField(num, typ, b)
	}
}

func (v *Value) appendWire(b []byte) []byte {
	b = appendBool(b, 1, v.Defined)
	return appendInt32(b, 2, v.V)
}

func (v *Value) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readBool(typ, b, &v.Defined)
	case 2:
		return readInt32(typ, b, &v.V)
	default:
		return skipField(num, typ, b)
	}
}

/*******************************************************************************
Link and broadcast layers
*******************************************************************************/

func (m *NetworkMessage) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.SenderHost)
	b = appendInt32(b, 2, m.SenderListeningPort)
	if m.Message != nil {
		b = appendMessage(b, 3, m.Message)
	}
	return b
}

func (m *NetworkMessage) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readString(typ, b, &m.SenderHost)
	case 2:
		return readInt32(typ, b, &m.SenderListeningPort)
	case 3:
		m.Message = &Envelope{}
		return readMessage(typ, b, m.Message)
	default:
		return skipField(num, typ, b)
	}
}

func (m *PlSend) appendWire(b []byte) []byte {
	if m.Destination != nil {
		b = appendMessage(b, 1, m.Destination)
	}
	if m.Message != nil {
		b = appendMessage(b, 2, m.Message)
	}
	return b
}

func (m *PlSend) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		m.Destination = &ProcessId{}
		return readMessage(typ, b, m.Destination)
	case 2:
		m.Message = &Envelope{}
		return readMessage(typ, b, m.Message)
	default:
		return skipField(num, typ, b)
	}
}

func (m *PlDeliver) appendWire(b []byte) []byte {
	if m.Sender != nil {
		b = appendMessage(b, 1, m.Sender)
	}
	if m.Message != nil {
		b = appendMessage(b, 2, m.Message)
	}
	return b
}

func (m *PlDeliver) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		m.Sender = &ProcessId{}
		return readMessage(typ, b, m.Sender)
	case 2:
		m.Message = &Envelope{}
		return readMessage(typ, b, m.Message)
	default:
		return skipField(num, typ, b)
	}
}

func (m *BebBroadcast) appendWire(b []byte) []byte {
	if m.Message != nil {
		b = appendMessage(b, 1, m.Message)
	}
	return b
}

func (m *BebBroadcast) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		m.Message = &Envelope{}
		return readMessage(typ, b, m.Message)
	}
	return skipField(num, typ, b)
}

func (m *BebDeliver) appendWire(b []byte) []byte {
	if m.Message != nil {
		b = appendMessage(b, 1, m.Message)
	}
	if m.Sender != nil {
		b = appendMessage(b, 2, m.Sender)
	}
	return b
}

func (m *BebDeliver) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		m.Message = &Envelope{}
		return readMessage(typ, b, m.Message)
	case 2:
		m.Sender = &ProcessId{}
		return readMessage(typ, b, m.Sender)
	default:
		return skipField(num, typ, b)
	}
}

/*******************************************************************************
Process lifecycle
*******************************************************************************/

func (m *ProcRegistration) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Owner)
	return appendInt32(b, 2, m.Index)
}

func (m *ProcRegistration) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readString(typ, b, &m.Owner)
	case 2:
		return readInt32(typ, b, &m.Index)
	default:
		return skipField(num, typ, b)
	}
}

func (m *ProcInitializeSystem) appendWire(b []byte) []byte {
	for _, p := range m.Processes {
		if p != nil {
			b = appendMessage(b, 1, p)
		}
	}
	return b
}

func (m *ProcInitializeSystem) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		p := &ProcessId{}
		n, err := readMessage(typ, b, p)
		if err != nil {
			return 0, err
		}
		m.Processes = append(m.Processes, p)
		return n, nil
	}
	return skipField(num, typ, b)
}

func (m *ProcDestroySystem) appendWire(b []byte) []byte { return b }

func (m *ProcDestroySystem) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return skipField(num, typ, b)
}

/*******************************************************************************
Application layer
*******************************************************************************/

func (m *AppBroadcast) appendWire(b []byte) []byte {
	if m.Value != nil {
		b = appendMessage(b, 1, m.Value)
	}
	return b
}

func (m *AppBroadcast) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	}
	return skipField(num, typ, b)
}

func (m *AppValue) appendWire(b []byte) []byte {
	if m.Value != nil {
		b = appendMessage(b, 1, m.Value)
	}
	return b
}

func (m *AppValue) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	}
	return skipField(num, typ, b)
}

func (m *AppRead) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Register)
}

func (m *AppRead) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		return readString(typ, b, &m.Register)
	}
	return skipField(num, typ, b)
}

func (m *AppWrite) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Register)
	if m.Value != nil {
		b = appendMessage(b, 2, m.Value)
	}
	return b
}

func (m *AppWrite) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readString(typ, b, &m.Register)
	case 2:
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	default:
		return skipField(num, typ, b)
	}
}

func (m *AppReadReturn) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Register)
	if m.Value != nil {
		b = appendMessage(b, 2, m.Value)
	}
	return b
}

func (m *AppReadReturn) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return readString(typ, b, &m.Register)
	case 2:
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	default:
		return skipField(num, typ, b)
	}
}

func (m *AppWriteReturn) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Register)
}

func (m *AppWriteReturn) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		return readString(typ, b, &m.Register)
	}
	return skipField(num, typ, b)
}

/*******************************************************************************
NNAR
*******************************************************************************/

func (m *NnarRead) appendWire(b []byte) []byte { return b }

func (m *NnarRead) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return skipField(num, typ, b)
}

func (m *NnarWriteReturn) appendWire(b []byte) []byte { return b }

func (m *NnarWriteReturn) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return skipField(num, typ, b)
}

func (m *NnarWrite) appendWire(b []byte) []byte {
	if m.Value != nil {
		b = appendMessage(b, 1, m.Value)
	}
	return b
}

func (m *NnarWrite) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	}
	return skipField(num, typ, b)
}

func (m *NnarReadReturn) appendWire(b []byte) []byte {
	if m.Value != nil {
		b = appendMessage(b, 1, m.Value)
	}
	return b
}

func (m *NnarReadReturn) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		m.Value = &Value{}
		return readMessage(typ, b, m.Value)
	}
	return skipField(num, typ, b)
}

func (m *NnarInternalRead) appendWire(b []byte) []byte {
	return appendInt32(b, 1, m.ReadId)
}

func (m *NnarInternalRead) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		return readInt32(typ, b, &m.ReadId)
	}
	return skipField(num, typ, b)
}

func (m *NnarInternalAck) appendWire(b []byte) []byte {
	return appendInt32(b, 1, m.ReadId)
}

func (m *NnarInternalAck) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	if num == 1 {
		return readInt32(typ, b, &m.ReadId)
	}
	return skipField(num, typ, b)
}

func (m *NnarInternalValue) appendWire(b []byte) []byte {
	return appendTimestamped(b, m.ReadId, m.Timestamp, m.WriterRank, m.Value)
}

func (m *NnarInternalValue) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return consumeTimestamped(num, typ, b, &m.ReadId, &m.Timestamp, &m.WriterRank, &m.Value)
}

func (m *NnarInternalWrite) appendWire(b []byte) []byte {
	return appendTimestamped(b, m.ReadId, m.Timestamp, m.WriterRank, m.Value)
}

func (m *NnarInternalWrite) consumeField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return consumeTimestamped(num, typ, b, &m.ReadId, &m.Timestamp, &m.WriterRank, &m.Value)
}

// NnarInternalValue and NnarInternalWrite share the same layout.
func appendTimestamped(b []byte, readID, ts, wr int32, v *Value) []byte {
	b = appendInt32(b, 1, readID)
	b = appendInt32(b, 2, ts)
	b = appendInt32(b, 3, wr)
	if v != nil {
		b = appendMessage(b, 4, v)
	}
	return b
}

func consumeTimestamped(num protowire.Number, typ protowire.Type, b []byte, readID, ts, wr *int32, v **Value) (int, error) {
	switch num {
	case 1:
		return readInt32(typ, b, readID)
	case 2:
		return readInt32(typ, b, ts)
	case 3:
		return readInt32(typ, b, wr)
	case 4:
		*v = &Value{}
		return readMessage(typ, b, *v)
	default:
		return skipField(num, typ, b)
	}
}
