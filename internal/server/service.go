// gRPC service description for searchmeta.v1.MetadataService. Messages are
// protobuf well-known types, so no generated code is needed.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "searchmeta.v1.MetadataService"

const (
	methodGetTypeMetadata        = "/" + ServiceName + "/GetTypeMetadata"
	methodGetContainedInMetadata = "/" + ServiceName + "/GetContainedInMetadata"
	methodContainsSearchMetadata = "/" + ServiceName + "/ContainsSearchMetadata"
	methodListTypes              = "/" + ServiceName + "/ListTypes"
	methodAffectedTypes          = "/" + ServiceName + "/AffectedTypes"
	methodPublishCatalog         = "/" + ServiceName + "/PublishCatalog"
)

// MetadataServiceServer is the server API of the metadata service.
//
// GetTypeMetadata takes a struct with "type" (entity name) and an optional
// "index_manager" and returns the type's descriptor.
type MetadataServiceServer interface {
	GetTypeMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetContainedInMetadata(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ContainsSearchMetadata(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	ListTypes(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	AffectedTypes(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	PublishCatalog(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedMetadataServiceServer can be embedded for forward compatibility
type UnimplementedMetadataServiceServer struct{}

func (UnimplementedMetadataServiceServer) GetTypeMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTypeMetadata not implemented")
}

func (UnimplementedMetadataServiceServer) GetContainedInMetadata(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetContainedInMetadata not implemented")
}

func (UnimplementedMetadataServiceServer) ContainsSearchMetadata(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ContainsSearchMetadata not implemented")
}

func (UnimplementedMetadataServiceServer) ListTypes(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTypes not implemented")
}

func (UnimplementedMetadataServiceServer) AffectedTypes(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method AffectedTypes not implemented")
}

func (UnimplementedMetadataServiceServer) PublishCatalog(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PublishCatalog not implemented")
}

// RegisterMetadataServiceServer registers srv on s
func RegisterMetadataServiceServer(s grpc.ServiceRegistrar, srv MetadataServiceServer) {
	s.RegisterService(&metadataServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodHandler
func unaryHandler[Req proto.Message](fullMethod string, newReq func() Req, call func(MetadataServiceServer, context.Context, Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MetadataServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MetadataServiceServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var metadataServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetadataServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetTypeMetadata",
			Handler: unaryHandler(methodGetTypeMetadata, func() *structpb.Struct { return new(structpb.Struct) },
				func(s MetadataServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
					return s.GetTypeMetadata(ctx, in)
				}),
		},
		{
			MethodName: "GetContainedInMetadata",
			Handler: unaryHandler(methodGetContainedInMetadata, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s MetadataServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
					return s.GetContainedInMetadata(ctx, in)
				}),
		},
		{
			MethodName: "ContainsSearchMetadata",
			Handler: unaryHandler(methodContainsSearchMetadata, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s MetadataServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
					return s.ContainsSearchMetadata(ctx, in)
				}),
		},
		{
			MethodName: "ListTypes",
			Handler: unaryHandler(methodListTypes, func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s MetadataServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.ListTypes(ctx, in)
				}),
		},
		{
			MethodName: "AffectedTypes",
			Handler: unaryHandler(methodAffectedTypes, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s MetadataServiceServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
					return s.AffectedTypes(ctx, in)
				}),
		},
		{
			MethodName: "PublishCatalog",
			Handler: unaryHandler(methodPublishCatalog, func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s MetadataServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
					return s.PublishCatalog(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "searchmeta/v1/metadata.proto",
}

// MetadataServiceClient is the client API of the metadata service
type MetadataServiceClient interface {
	GetTypeMetadata(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetContainedInMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ContainsSearchMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	ListTypes(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	AffectedTypes(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	PublishCatalog(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type metadataServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMetadataServiceClient creates a client on cc
func NewMetadataServiceClient(cc grpc.ClientConnInterface) MetadataServiceClient {
	return &metadataServiceClient{cc}
}

func (c *metadataServiceClient) GetTypeMetadata(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetTypeMetadata, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metadataServiceClient) GetContainedInMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetContainedInMetadata, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metadataServiceClient) ContainsSearchMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodContainsSearchMetadata, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metadataServiceClient) ListTypes(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListTypes, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metadataServiceClient) AffectedTypes(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodAffectedTypes, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *metadataServiceClient) PublishCatalog(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodPublishCatalog, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
