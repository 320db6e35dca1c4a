// Package save implements JSON serialization and deserialization of a world.
package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sentientmushes/smadventure/engine"
	"github.com/sentientmushes/smadventure/types"
)

// Version is written into every save and checked on Apply.
const Version = "1"

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version     string                    `json:"version"`
	Ticks       int                       `json:"ticks"`
	Order       []string                  `json:"order"`
	Entities    map[string]*engine.Record `json:"entities"`
	Places      []types.Place             `json:"places"`
	RNGSeed     int64                     `json:"rng_seed"`
	RNGPosition int64                     `json:"rng_position"`
}

// Save serializes the live entities, place contents, tick count and RNG
// position of w.
func Save(w *engine.World) ([]byte, error) {
	if w.InTick() {
		return nil, engine.ErrTickInProgress
	}
	data := SaveData{
		Version:     Version,
		Ticks:       w.Ticks(),
		Order:       []string{},
		Entities:    map[string]*engine.Record{},
		RNGSeed:     w.RNG.Seed(),
		RNGPosition: w.RNG.Position(),
	}
	for _, rec := range w.Records() {
		data.Order = append(data.Order, rec.ID)
		data.Entities[rec.ID] = rec
	}
	for _, p := range w.Places() {
		data.Places = append(data.Places, *p)
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&sd); err != nil {
		return nil, err
	}
	// Maps are never nil after load.
	if sd.Entities == nil {
		sd.Entities = map[string]*engine.Record{}
	}
	for i := range sd.Places {
		sd.Places[i].Attr = engine.NormalizeMap(sd.Places[i].Attr)
		if sd.Places[i].Items == nil {
			sd.Places[i].Items = map[string]int{}
		}
	}
	return &sd, nil
}

// Apply replaces the state of w with the loaded data. Records follow the
// saved order; records missing from it go last, by id. Nothing changes if a
// record names an unknown type or variant.
func Apply(w *engine.World, sd *SaveData) error {
	if sd.Version != Version {
		return fmt.Errorf("save version %q, expected %q", sd.Version, Version)
	}

	for id, rec := range sd.Entities {
		if rec == nil || rec.ID != id {
			return fmt.Errorf("save entity key %s does not match its record", id)
		}
	}

	records := make([]*engine.Record, 0, len(sd.Entities))
	listed := make(map[string]bool, len(sd.Order))
	for _, id := range sd.Order {
		rec, ok := sd.Entities[id]
		if !ok {
			return fmt.Errorf("save order names missing entity %s", id)
		}
		if listed[id] {
			continue
		}
		listed[id] = true
		records = append(records, rec)
	}
	var rest []string
	for id := range sd.Entities {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		records = append(records, sd.Entities[id])
	}

	if err := w.Restore(records, sd.Places, sd.Ticks); err != nil {
		return err
	}
	w.RNG = engine.RestoreRNG(sd.RNGSeed, sd.RNGPosition)
	return nil
}
