package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "taskforce.forecast.v1.ForecastEngine"

// Full method names.
const (
	MethodForecast      = "/" + ServiceName + "/Forecast"
	MethodDatasetStatus = "/" + ServiceName + "/DatasetStatus"
	MethodHealth        = "/" + ServiceName + "/Health"
)

// ForecastEngineServer is the server API for the ForecastEngine service.
// Messages are google.protobuf.Struct documents so that the service needs no generated code.
type ForecastEngineServer interface {
	Forecast(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DatasetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ForecastEngineServiceDesc registers ForecastEngineServer implementations on a grpc.Server.
var ForecastEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ForecastEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Forecast", Handler: forecastHandler},
		{MethodName: "DatasetStatus", Handler: datasetStatusHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskforce/forecast/v1/forecast.proto",
}

// RegisterForecastEngineServer attaches srv to s.
func RegisterForecastEngineServer(s grpc.ServiceRegistrar, srv ForecastEngineServer) {
	s.RegisterService(&ForecastEngineServiceDesc, srv)
}

func forecastHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastEngineServer).Forecast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodForecast}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastEngineServer).Forecast(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func datasetStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastEngineServer).DatasetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodDatasetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastEngineServer).DatasetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastEngineServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastEngineServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ForecastEngineClient calls a remote ForecastEngine.
type ForecastEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewForecastEngineClient wraps an established connection.
func NewForecastEngineClient(cc grpc.ClientConnInterface) *ForecastEngineClient {
	return &ForecastEngineClient{cc: cc}
}

// Forecast requests a projection.
func (c *ForecastEngineClient) Forecast(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodForecast, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DatasetStatus fetches the dataset freshness report.
func (c *ForecastEngineClient) DatasetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodDatasetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Health probes the service.
func (c *ForecastEngineClient) Health(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodHealth, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
