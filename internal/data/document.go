package data

import (
	"encoding/json"
	"time"

	"adminconsole/internal/value"
)

// Document is a persisted entity record. Fields is in storage shape: a blank
// optional field has no key at all.
type Document struct {
	// ID is assigned on insert and never changes.
	ID string
	// CreationTime is milliseconds since the Unix epoch, assigned on insert.
	CreationTime float64
	Fields       value.Record
}

// Record returns the stored fields. The caller may modify the result.
func (d *Document) Record() value.Record {
	return d.Fields.Clone()
}

// MarshalJSON flattens the document: system fields are prefixed with an
// underscore and blank fields are omitted.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+2)
	for k, v := range d.Fields {
		if v.IsAbsent() || v.IsNull() {
			continue
		}
		out[k] = v
	}
	out["_id"] = d.ID
	out["_creationTime"] = d.CreationTime
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]value.Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Document{Fields: make(value.Record, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			d.ID = v.String()
		case "_creationTime":
			d.CreationTime, _ = v.Float()
		default:
			if !v.IsNull() {
				d.Fields[k] = v
			}
		}
	}
	return nil
}

func (d *Document) clone() *Document {
	return &Document{ID: d.ID, CreationTime: d.CreationTime, Fields: d.Fields.Clone()}
}

func creationTime(t time.Time) float64 {
	return float64(t.UnixMilli()) + float64(t.Nanosecond()%int(time.Millisecond))/float64(time.Millisecond)
}
