// Package stream carries compiled instruction streams to an execution engine
package stream

import (
	"encoding/gob"
	"fmt"
	"io"

	"hesched/core/listsched"
)

func init() {
	// Register types for gob encoding
	gob.Register(HeaderPayload{})
	gob.Register(CorePayload{})
}

// MessageType defines message types for the stream protocol
type MessageType int

const (
	MsgHeader MessageType = iota
	MsgCore
	MsgDone
	MsgError
)

// Message represents a message in the stream protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// Consumers tells the engine how many reads each result will see, so a
// register can be released after its last use.
type Consumers struct {
	Op   int
	Raw  int
	Boot int
}

// HeaderPayload opens a schedule transfer
type HeaderPayload struct {
	ScheduleID string
	Mode       string
	Cores      int
	Latency    int
	Consumers  []Consumers
}

// CorePayload contains the instruction stream of one core
type CorePayload struct {
	Core         int
	Instructions []listsched.Instruction
}

// Protocol handles schedule transfer
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendSchedule sends the header, one message per core that runs anything,
// and a done marker.
func (p *Protocol) SendSchedule(s *listsched.Schedule) error {
	hdr := HeaderPayload{
		ScheduleID: s.ID,
		Mode:       s.Mode,
		Cores:      s.Cores,
		Latency:    s.Latency,
		Consumers:  make([]Consumers, len(s.Entries)),
	}
	for i, e := range s.Entries {
		hdr.Consumers[i] = Consumers{Op: e.Op, Raw: e.RawConsumers, Boot: e.BootConsumers}
	}
	if err := p.Send(&Message{Type: MsgHeader, Payload: hdr}); err != nil {
		return fmt.Errorf("send header: %w", err)
	}
	for i, st := range s.Streams() {
		if len(st) == 0 {
			continue
		}
		if err := p.Send(&Message{Type: MsgCore, Payload: CorePayload{Core: i + 1, Instructions: st}}); err != nil {
			return fmt.Errorf("send core %d: %w", i+1, err)
		}
	}
	return p.SendDone()
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// Transfer is a schedule as seen by the receiving engine.
type Transfer struct {
	Header HeaderPayload
	// Streams is indexed by core id minus one; idle cores are empty.
	Streams [][]listsched.Instruction
}

// ReceiveSchedule reads one complete transfer.
func (p *Protocol) ReceiveSchedule() (*Transfer, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgError {
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	}
	if msg.Type != MsgHeader {
		return nil, fmt.Errorf("expected header message, got %d", msg.Type)
	}
	hdr, ok := msg.Payload.(HeaderPayload)
	if !ok {
		return nil, fmt.Errorf("invalid header payload type")
	}
	t := &Transfer{Header: hdr, Streams: make([][]listsched.Instruction, hdr.Cores)}
	for {
		msg, err := p.Receive()
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case MsgDone:
			return t, nil
		case MsgError:
			return nil, fmt.Errorf("remote error: %v", msg.Payload)
		case MsgCore:
			cp, ok := msg.Payload.(CorePayload)
			if !ok {
				return nil, fmt.Errorf("invalid core payload type")
			}
			if cp.Core < 1 || cp.Core > hdr.Cores {
				return nil, fmt.Errorf("core %d outside [1, %d]", cp.Core, hdr.Cores)
			}
			t.Streams[cp.Core-1] = cp.Instructions
		default:
			return nil, fmt.Errorf("unexpected message %d", msg.Type)
		}
	}
}
