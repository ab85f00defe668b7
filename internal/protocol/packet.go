package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Packet is one wire message: a JSON object carrying at least a "command"
// string. Requests and RPC responses put their arguments under a "data"
// object; runner announcements may add further top-level keys ("winner",
// "draw", "result", "error", "finished"). Accessors tolerate missing or
// mistyped fields and return zero values, so a malformed client packet can
// never panic the reader.
type Packet map[string]any

// New builds a packet with the given command and an empty data object.
func New(command string) Packet {
	return Packet{"command": command, "data": map[string]any{}}
}

// Command returns the command string, or "" when absent.
func (p Packet) Command() string {
	s, _ := p["command"].(string)
	return s
}

// Data returns the data object. Missing or mistyped data yields a nil map,
// which is safe to index.
func (p Packet) Data() map[string]any {
	d, _ := p["data"].(map[string]any)
	return d
}

// Set stores v at a top-level key and returns p for chaining.
func (p Packet) Set(key string, v any) Packet {
	p[key] = v
	return p
}

// SetData stores v under the data object, creating the object if needed.
func (p Packet) SetData(key string, v any) Packet {
	d, ok := p["data"].(map[string]any)
	if !ok {
		d = map[string]any{}
		p["data"] = d
	}
	d[key] = v
	return p
}

// DataString returns the string under data at key, or "".
func (p Packet) DataString(key string) string {
	s, _ := p.Data()[key].(string)
	return s
}

// DataInt returns the number under data at key truncated to int.
// encoding/json delivers JSON numbers as float64.
func (p Packet) DataInt(key string) int {
	switch v := p.Data()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// DataBool returns the bool under data at key, or false.
func (p Packet) DataBool(key string) bool {
	b, _ := p.Data()[key].(bool)
	return b
}

// WritePacket marshals p and writes it as one frame.
func WritePacket(w io.Writer, p Packet) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling packet: %w", err)
	}
	return WriteFrame(w, raw)
}

// ReadPacket reads one frame from r and unmarshals its payload.
func ReadPacket(r io.Reader) (Packet, error) {
	raw, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	var p Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling packet: %w", err)
	}
	return p, nil
}
