package pulsev1

import (
	json "github.com/goccy/go-json"
	"google.golang.org/grpc/encoding"
)

// codecName is registered as the gRPC wire codec name for this service. The
// server is started with grpc.ForceServerCodec(pulsev1.Codec{}) so every
// message on the wire goes through goccy/go-json rather than a
// protoc-generated binary encoding (see proto/pulse/v1/pulse.proto's header
// comment for why).
const codecName = "json"

// Codec implements google.golang.org/grpc/encoding.Codec.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
