// Package grpc serves compute routines to remote engines and calls them from
// the engine side. Messages are google.protobuf.Struct values carrying the
// same request and frame shapes as the subprocess worker.
package grpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eleven-am/playbook/internal/xjson"
)

const (
	ServiceName   = "playbook.compute.v1.Compute"
	computeMethod = "/" + ServiceName + "/Compute"
)

type computeService interface {
	Compute(*structpb.Struct, grpc.ServerStream) error
}

var computeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*computeService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Compute",
			Handler:       computeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "playbook/compute/v1/compute.proto",
}

func computeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(computeService).Compute(in, stream)
}

// toStruct converts any JSON object shaped value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := xjson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := xjson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON form. Numbers travel as
// doubles.
func fromStruct(s *structpb.Struct, v interface{}) error {
	raw, err := xjson.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return xjson.Unmarshal(raw, v)
}
