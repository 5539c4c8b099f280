package pulsev1

import (
	"context"

	"google.golang.org/grpc"
)

// PulseServiceServer is the server API for the PulseService defined in
// proto/pulse/v1/pulse.proto. rpcserver.Server implements this interface.
type PulseServiceServer interface {
	RegisterWorker(context.Context, *RegisterWorkerRequest) (*RegisterWorkerResponse, error)
	DeregisterWorker(context.Context, *DeregisterWorkerRequest) (*DeregisterWorkerResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	ListWorkers(context.Context, *ListWorkersRequest) (*ListWorkersResponse, error)
	RegisterDataset(context.Context, *RegisterDatasetRequest) (*RegisterDatasetResponse, error)
	ListDatasets(context.Context, *ListDatasetsRequest) (*ListDatasetsResponse, error)
	SaveCheckpoint(context.Context, *SaveCheckpointRequest) (*SaveCheckpointResponse, error)
	SaveCheckpointStream(PulseService_SaveCheckpointStreamServer) error
	GetCheckpoint(context.Context, *GetCheckpointRequest) (*GetCheckpointResponse, error)
	ListCheckpoints(context.Context, *ListCheckpointsRequest) (*ListCheckpointsResponse, error)
	DeleteCheckpoint(context.Context, *DeleteCheckpointRequest) (*DeleteCheckpointResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

// PulseService_SaveCheckpointStreamServer is the server side of the
// client-streaming SaveCheckpointStream RPC.
type PulseService_SaveCheckpointStreamServer interface {
	Recv() (*SaveCheckpointStreamRequest, error)
	SendAndClose(*SaveCheckpointResponse) error
	grpc.ServerStream
}

type pulseServiceSaveCheckpointStreamServer struct {
	grpc.ServerStream
}

func (x *pulseServiceSaveCheckpointStreamServer) Recv() (*SaveCheckpointStreamRequest, error) {
	m := new(SaveCheckpointStreamRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *pulseServiceSaveCheckpointStreamServer) SendAndClose(m *SaveCheckpointResponse) error {
	return x.ServerStream.SendMsg(m)
}

func registerWorkerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterWorkerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).RegisterWorker(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/RegisterWorker"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).RegisterWorker(ctx, req.(*RegisterWorkerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deregisterWorkerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeregisterWorkerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).DeregisterWorker(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/DeregisterWorker"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).DeregisterWorker(ctx, req.(*DeregisterWorkerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func heartbeatHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/Heartbeat"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listWorkersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListWorkersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).ListWorkers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/ListWorkers"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).ListWorkers(ctx, req.(*ListWorkersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func registerDatasetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterDatasetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).RegisterDataset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/RegisterDataset"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).RegisterDataset(ctx, req.(*RegisterDatasetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listDatasetsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListDatasetsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).ListDatasets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/ListDatasets"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).ListDatasets(ctx, req.(*ListDatasetsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func saveCheckpointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SaveCheckpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).SaveCheckpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/SaveCheckpoint"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).SaveCheckpoint(ctx, req.(*SaveCheckpointRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func saveCheckpointStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PulseServiceServer).SaveCheckpointStream(&pulseServiceSaveCheckpointStreamServer{stream})
}

func getCheckpointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetCheckpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).GetCheckpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/GetCheckpoint"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).GetCheckpoint(ctx, req.(*GetCheckpointRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listCheckpointsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListCheckpointsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).ListCheckpoints(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/ListCheckpoints"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).ListCheckpoints(ctx, req.(*ListCheckpointsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteCheckpointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteCheckpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).DeleteCheckpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/DeleteCheckpoint"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).DeleteCheckpoint(ctx, req.(*DeleteCheckpointRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PulseServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/pulse.v1.PulseService/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PulseServiceServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc for the PulseService, hand-maintained
// in place of protoc-gen-go-grpc output (see jsoncodec.go).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "pulse.v1.PulseService",
	HandlerType: (*PulseServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterWorker", Handler: registerWorkerHandler},
		{MethodName: "DeregisterWorker", Handler: deregisterWorkerHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "ListWorkers", Handler: listWorkersHandler},
		{MethodName: "RegisterDataset", Handler: registerDatasetHandler},
		{MethodName: "ListDatasets", Handler: listDatasetsHandler},
		{MethodName: "SaveCheckpoint", Handler: saveCheckpointHandler},
		{MethodName: "GetCheckpoint", Handler: getCheckpointHandler},
		{MethodName: "ListCheckpoints", Handler: listCheckpointsHandler},
		{MethodName: "DeleteCheckpoint", Handler: deleteCheckpointHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SaveCheckpointStream",
			Handler:       saveCheckpointStreamHandler,
			ClientStreams: true,
		},
	},
	Metadata: "pulse/v1/pulse.proto",
}

// RegisterPulseServiceServer registers srv as the implementation of the
// PulseService on s.
func RegisterPulseServiceServer(s grpc.ServiceRegistrar, srv PulseServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
