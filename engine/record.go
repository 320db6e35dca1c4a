package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is the stored state of one entity. The World's table owns every
// Record; Entity views point into it.
type Record struct {
	ID        string
	TypeID    string
	Name      string
	Place     string
	VariantID string
	Attr      map[string]any
}

// MarshalJSON encodes the record as the tuple
// [id, type, name, place, variant, attributes].
func (r *Record) MarshalJSON() ([]byte, error) {
	attr := r.Attr
	if attr == nil {
		attr = map[string]any{}
	}
	return json.Marshal([]any{r.ID, r.TypeID, r.Name, r.Place, r.VariantID, attr})
}

// UnmarshalJSON decodes the tuple form written by MarshalJSON. Numbers in
// the attribute map are normalized the same way Set normalizes them.
func (r *Record) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 6 {
		return fmt.Errorf("entity record: expected 6 fields, got %d", len(parts))
	}

	fields := []*string{&r.ID, &r.TypeID, &r.Name, &r.Place, &r.VariantID}
	for i, dst := range fields {
		if err := json.Unmarshal(parts[i], dst); err != nil {
			return fmt.Errorf("entity record field %d: %w", i, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(parts[5]))
	dec.UseNumber()
	var attr map[string]any
	if err := dec.Decode(&attr); err != nil {
		return fmt.Errorf("entity record %s attributes: %w", r.ID, err)
	}
	r.Attr = NormalizeMap(attr)
	return nil
}

// Clone deep-copies the record.
func (r *Record) Clone() *Record {
	c := *r
	c.Attr = CloneMap(r.Attr)
	return &c
}
