package message

import (
	"fmt"
	"net"
	"strconv"
)

// Type is the discriminant of an Envelope. The numeric values are those of the
// hub's protobuf schema and must not change.
type Type int32

const (
	TypeNetworkMessage       Type = 0
	TypeProcRegistration     Type = 1
	TypeProcInitializeSystem Type = 2
	TypeProcDestroySystem    Type = 3
	TypeAppBroadcast         Type = 4
	TypeAppValue             Type = 5
	TypeAppRead              Type = 8
	TypeAppWrite             Type = 9
	TypeAppReadReturn        Type = 10
	TypeAppWriteReturn       Type = 11
	TypeBebBroadcast         Type = 40
	TypeBebDeliver           Type = 41
	TypeNnarInternalAck      Type = 60
	TypeNnarInternalRead     Type = 61
	TypeNnarInternalValue    Type = 62
	TypeNnarInternalWrite    Type = 63
	TypeNnarRead             Type = 64
	TypeNnarReadReturn       Type = 65
	TypeNnarWrite            Type = 66
	TypeNnarWriteReturn      Type = 67
	TypePlDeliver            Type = 70
	TypePlSend               Type = 71
)

var typeNames = map[Type]string{
	TypeNetworkMessage:       "NETWORK_MESSAGE",
	TypeProcRegistration:     "PROC_REGISTRATION",
	TypeProcInitializeSystem: "PROC_INITIALIZE_SYSTEM",
	TypeProcDestroySystem:    "PROC_DESTROY_SYSTEM",
	TypeAppBroadcast:         "APP_BROADCAST",
	TypeAppValue:             "APP_VALUE",
	TypeAppRead:              "APP_READ",
	TypeAppWrite:             "APP_WRITE",
	TypeAppReadReturn:        "APP_READ_RETURN",
	TypeAppWriteReturn:       "APP_WRITE_RETURN",
	TypeBebBroadcast:         "BEB_BROADCAST",
	TypeBebDeliver:           "BEB_DELIVER",
	TypeNnarInternalAck:      "NNAR_INTERNAL_ACK",
	TypeNnarInternalRead:     "NNAR_INTERNAL_READ",
	TypeNnarInternalValue:    "NNAR_INTERNAL_VALUE",
	TypeNnarInternalWrite:    "NNAR_INTERNAL_WRITE",
	TypeNnarRead:             "NNAR_READ",
	TypeNnarReadReturn:       "NNAR_READ_RETURN",
	TypeNnarWrite:            "NNAR_WRITE",
	TypeNnarWriteReturn:      "NNAR_WRITE_RETURN",
	TypePlDeliver:            "PL_DELIVER",
	TypePlSend:               "PL_SEND",
}

// String ...
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(t))
}

// ProcessId identifies a process of the system. It is a plain value type so it
// can be compared with == and used as a map key.
type ProcessId struct {
	Host  string
	Port  int32
	Owner string
	Index int32
	Rank  int32
}

// Addr returns the host:port of the process.
func (p *ProcessId) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
}

func (p *ProcessId) String() string {
	return fmt.Sprintf("%s-%d(%s,rank=%d)", p.Owner, p.Index, p.Addr(), p.Rank)
}

// Value is the content of a register. Defined is false until something has
// been written.
type Value struct {
	Defined bool
	V       int32
}

func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	return strconv.Itoa(int(v.V))
}

// ValueOf returns the Value pointed to by v, or an undefined Value if v is nil.
func ValueOf(v *Value) Value {
	if v == nil {
		return Value{}
	}
	return *v
}

type NetworkMessage struct {
	SenderHost          string
	SenderListeningPort int32
	Message             *Envelope
}

type PlSend struct {
	Destination *ProcessId
	Message     *Envelope
}

type PlDeliver struct {
	Sender  *ProcessId
	Message *Envelope
}

type BebBroadcast struct {
	Message *Envelope
}

type BebDeliver struct {
	Message *Envelope
	Sender  *ProcessId
}

type ProcRegistration struct {
	Owner string
	Index int32
}

type ProcInitializeSystem struct {
	Processes []*ProcessId
}

type ProcDestroySystem struct{}

type AppBroadcast struct {
	Value *Value
}

type AppValue struct {
	Value *Value
}

type AppRead struct {
	Register string
}

type AppWrite struct {
	Register string
	Value    *Value
}

type AppReadReturn struct {
	Register string
	Value    *Value
}

type AppWriteReturn struct {
	Register string
}

type NnarRead struct{}

type NnarWrite struct {
	Value *Value
}

type NnarReadReturn struct {
	Value *Value
}

type NnarWriteReturn struct{}

type NnarInternalRead struct {
	ReadId int32
}

type NnarInternalValue struct {
	ReadId     int32
	Timestamp  int32
	WriterRank int32
	Value      *Value
}

type NnarInternalWrite struct {
	ReadId     int32
	Timestamp  int32
	WriterRank int32
	Value      *Value
}

type NnarInternalAck struct {
	ReadId int32
}

// Envelope is the unit exchanged between processes and between the layers of a
// process. Exactly one payload, the one selected by Type, is expected to be set.
// Wrapper payloads (NetworkMessage, PlSend, PlDeliver, BebBroadcast, BebDeliver)
// own an inner Envelope, which is how layers nest.
type Envelope struct {
	Type              Type
	MessageUuid       string
	FromAbstractionId string
	ToAbstractionId   string
	SystemId          string

	NetworkMessage       *NetworkMessage
	ProcRegistration     *ProcRegistration
	ProcInitializeSystem *ProcInitializeSystem
	ProcDestroySystem    *ProcDestroySystem
	AppBroadcast         *AppBroadcast
	AppValue             *AppValue
	AppRead              *AppRead
	AppWrite             *AppWrite
	AppReadReturn        *AppReadReturn
	AppWriteReturn       *AppWriteReturn
	BebBroadcast         *BebBroadcast
	BebDeliver           *BebDeliver
	NnarInternalAck      *NnarInternalAck
	NnarInternalRead     *NnarInternalRead
	NnarInternalValue    *NnarInternalValue
	NnarInternalWrite    *NnarInternalWrite
	NnarRead             *NnarRead
	NnarReadReturn       *NnarReadReturn
	NnarWrite            *NnarWrite
	NnarWriteReturn      *NnarWriteReturn
	PlDeliver            *PlDeliver
	PlSend               *PlSend
}
