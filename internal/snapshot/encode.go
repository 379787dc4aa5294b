package snapshot

import (
	"encoding/base64"
	"encoding/json"
)

// Encode renders s as the wire document accepted by Decode.
// Empty buffers and nil error lists are omitted. Decode reads an absent
// buffer as no data, so an empty buffer comes back nil.
func Encode(s Snapshot) map[string]any {
	doc := map[string]any{
		"timestamp": s.Timestamp.Format(TimestampLayout),
		"name":      s.EntityID,
		"status":    string(s.Status),
	}
	putBuffer(doc, "digitalOutputs", s.DigitalOutputs)
	putBuffer(doc, "digitalInputs", s.DigitalInputs)
	putBuffer(doc, "analogOutputs", s.AnalogOutputs)
	putBuffer(doc, "analogInputs", s.AnalogInputs)
	if s.Errors != nil {
		errs := make([]string, len(s.Errors))
		copy(errs, s.Errors)
		doc["errors"] = errs
	}
	return doc
}

func putBuffer(doc map[string]any, key string, b []byte) {
	if len(b) == 0 {
		return
	}
	doc[key] = base64.StdEncoding.EncodeToString(b)
}

// MarshalJSON encodes the snapshot in wire format.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(s))
}

// UnmarshalJSON decodes a wire-format document.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	*s = d
	return nil
}
