// Package rpc provides the wire transport for worker-to-worker and
// worker-to-supervisor calls (§6 CoreWorkerClient, NodeManagerWorkerClient):
// a grpc.ClientConn/grpc.Server pair carrying plain Go structs through a
// gob-based codec, since no protoc toolchain is available in this
// environment to generate real protobuf message types (see DESIGN.md).
package rpc

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is registered with grpc's global codec registry and selected
// via grpc.CallContentSubtype / the server's default codec.
const CodecName = "gob"

// gobCodec implements encoding.Codec (formerly encoding.CodecV2's simpler
// predecessor surface) by round-tripping arbitrary Go values through
// encoding/gob. Messages exchanged over this transport are plain structs
// tagged for gob (exported fields only), not generated protobuf types.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("rpc: gob marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("rpc: gob unmarshal: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
