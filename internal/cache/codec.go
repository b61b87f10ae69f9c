package cache

import (
	"FlowSpectra/internal/core/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
)

func init() {
	gob.Register(model.FlowSet{})
	gob.Register(&model.ProtocolTally{})
}

// Codec serializes cache artifacts.
type Codec interface {
	Extension() string
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// CodecByName returns the codec for a cache.format setting.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSONCodec{}, nil
	case "gob":
		return GobCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown cache format '%s'", name)
	}
}

// JSONCodec stores artifacts in the documented JSON layouts.
type JSONCodec struct{}

func (JSONCodec) Extension() string { return ".json" }

func (JSONCodec) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// Decode rejects trailing data after the artifact.
func (JSONCodec) Decode(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// GobCodec stores artifacts in gob, the format of the flow snapshots.
type GobCodec struct{}

func (GobCodec) Extension() string { return ".gob" }

func (GobCodec) Encode(w io.Writer, v any) error {
	return gob.NewEncoder(w).Encode(v)
}

func (GobCodec) Decode(r io.Reader, v any) error {
	return gob.NewDecoder(r).Decode(v)
}
