// Package rpc exposes the hub's operations over gRPC, mirroring the HTTP
// surface. Messages are the same model structs the HTTP layer serves,
// carried by a JSON codec instead of generated protobuf types; the
// service descriptor is declared by hand. Search is server-streaming.
// Discovery-over-RPC (RegisterHub, Heartbeat, ListHubs) is reserved but
// not registered.
package rpc

import "encoding/json"

// CodecName identifies the JSON codec in the content-subtype.
const CodecName = "json"

// JSONCodec is a grpc encoding codec that carries plain JSON bodies.
type JSONCodec struct{}

// Marshal implements encoding.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (JSONCodec) Name() string { return CodecName }
