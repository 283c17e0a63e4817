// Package api carries the RPC plumbing shared by the engine, the runtime
// façade and their clients: a JSON codec for gRPC and generic helpers for
// hand-written service descriptors.
package api

import (
	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype served and requested by every
// hsu-engine service ("application/grpc+json").
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals messages with goccy/go-json.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

// CallOption selects the JSON codec for a single call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
