package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and responses
// are google.protobuf.Struct messages so clients need no generated stubs.
const ServiceName = "ordertransformer.v1.Conversion"

const (
	MethodConvert         = "Convert"
	MethodConvertBatch    = "ConvertBatch"
	MethodListConversions = "ListConversions"
)

// ConversionServer is implemented by ConversionService.
type ConversionServer interface {
	Convert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConvertBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConversions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ConversionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConversionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConversionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConversionServiceDesc describes the service for grpc.Server.RegisterService.
var ConversionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodConvert, Handler: unaryHandler(MethodConvert, ConversionServer.Convert)},
		{MethodName: MethodConvertBatch, Handler: unaryHandler(MethodConvertBatch, ConversionServer.ConvertBatch)},
		{MethodName: MethodListConversions, Handler: unaryHandler(MethodListConversions, ConversionServer.ListConversions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ordertransformer/v1/conversion.proto",
}

func RegisterConversionServer(s grpc.ServiceRegistrar, srv ConversionServer) {
	s.RegisterService(&ConversionServiceDesc, srv)
}

func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// ConversionClient calls the service over an existing connection.
type ConversionClient struct {
	cc grpc.ClientConnInterface
}

func NewConversionClient(cc grpc.ClientConnInterface) *ConversionClient {
	return &ConversionClient{cc: cc}
}

func (c *ConversionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConversionClient) Convert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodConvert, in, opts...)
}

func (c *ConversionClient) ConvertBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodConvertBatch, in, opts...)
}

func (c *ConversionClient) ListConversions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListConversions, in, opts...)
}
