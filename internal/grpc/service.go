package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "geostore.v1.LocationService"

// Method names
const (
	MethodGetLocation        = "GetLocation"
	MethodSaveLocation       = "SaveLocation"
	MethodDeleteLocation     = "DeleteLocation"
	MethodTrashLocation      = "TrashLocation"
	MethodGetLocationMeta    = "GetLocationMeta"
	MethodSaveLocationMeta   = "SaveLocationMeta"
	MethodDeleteLocationMeta = "DeleteLocationMeta"
	MethodGetLocationsNearby = "GetLocationsNearby"
	MethodGetLocationsFor    = "GetLocationsFor"
	MethodConvertDistance    = "ConvertDistance"
	MethodExportLocations    = "ExportLocations"
	MethodPurgeLocations     = "PurgeLocations"
	MethodGetJobStatus       = "GetJobStatus"
	MethodListJobs           = "ListJobs"
)

// LocationServiceServer is the server API of the location service. Every
// message is a google.protobuf.Struct document.
type LocationServiceServer interface {
	GetLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TrashLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLocationMeta(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveLocationMeta(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteLocationMeta(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLocationsNearby(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLocationsFor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConvertDistance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PurgeLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJobStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListJobs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type methodFunc func(LocationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary adapts a server method to a grpc.MethodDesc. Errors returned by
// the method are mapped to status codes before interceptors see them.
func unary(name string, call methodFunc) grpc.MethodDesc {
	invoke := func(srv any, ctx context.Context, req *structpb.Struct) (any, error) {
		resp, err := call(srv.(LocationServiceServer), ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		return resp, nil
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return invoke(srv, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the location service for grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetLocation, LocationServiceServer.GetLocation),
		unary(MethodSaveLocation, LocationServiceServer.SaveLocation),
		unary(MethodDeleteLocation, LocationServiceServer.DeleteLocation),
		unary(MethodTrashLocation, LocationServiceServer.TrashLocation),
		unary(MethodGetLocationMeta, LocationServiceServer.GetLocationMeta),
		unary(MethodSaveLocationMeta, LocationServiceServer.SaveLocationMeta),
		unary(MethodDeleteLocationMeta, LocationServiceServer.DeleteLocationMeta),
		unary(MethodGetLocationsNearby, LocationServiceServer.GetLocationsNearby),
		unary(MethodGetLocationsFor, LocationServiceServer.GetLocationsFor),
		unary(MethodConvertDistance, LocationServiceServer.ConvertDistance),
		unary(MethodExportLocations, LocationServiceServer.ExportLocations),
		unary(MethodPurgeLocations, LocationServiceServer.PurgeLocations),
		unary(MethodGetJobStatus, LocationServiceServer.GetJobStatus),
		unary(MethodListJobs, LocationServiceServer.ListJobs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geostore/v1/location.proto",
}

// RegisterLocationServiceServer registers srv with a gRPC server
func RegisterLocationServiceServer(s grpc.ServiceRegistrar, srv LocationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the location service over a connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client on an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a request built from fields
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
