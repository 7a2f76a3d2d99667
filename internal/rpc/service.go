package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName is the full gRPC service name.
const ServiceName = "imsm.v1.Connection"

// ConnectionServer is the server API of the service.
type ConnectionServer interface {
	GetStatus(context.Context, *Empty) (*Status, error)
	Connect(context.Context, *Empty) (*Empty, error)
	Disconnect(context.Context, *Empty) (*Empty, error)
	RequestHandles(context.Context, *HandlesRequest) (*HandlesReply, error)
	InspectHandles(context.Context, *InspectRequest) (*InspectReply, error)
	GetContactAttributes(context.Context, *AttributesRequest) (*AttributesReply, error)
	SetPresence(context.Context, *PresenceRequest) (*Empty, error)
	ListContacts(context.Context, *Empty) (*ContactsReply, error)
	AddContacts(context.Context, *ContactsRequest) (*Empty, error)
	RemoveContacts(context.Context, *ContactsRequest) (*Empty, error)
	EnsureChannel(context.Context, *ChannelRequest) (*ChannelReply, error)
	CreateChannel(context.Context, *ChannelRequest) (*ChannelReply, error)
	CloseChannel(context.Context, *PathRequest) (*Empty, error)
	ListChannels(context.Context, *Empty) (*ChannelsReply, error)
	Send(context.Context, *SendRequest) (*SendReply, error)
	AcknowledgePending(context.Context, *AckRequest) (*Empty, error)
	ListPending(context.Context, *PathRequest) (*PendingReply, error)
	WatchEvents(*WatchRequest, grpc.ServerStreamingServer[Event]) error
	Pair(*Empty, grpc.ServerStreamingServer[PairingEvent]) error
}

// PairingEvent is one step of device pairing.
type PairingEvent struct {
	Type    string `cbor:"type"`
	Code    string `cbor:"code,omitempty"`
	Message string `cbor:"message,omitempty"`
}

// unary builds the method descriptor of a unary call.
func unary[Req, Res any](name string, call func(ConnectionServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConnectionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ConnectionServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serverStream builds the descriptor of a server-streaming call.
func serverStream[Req, Res any](name string, call func(ConnectionServer, *Req, grpc.ServerStreamingServer[Res]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(ConnectionServer), in, &grpc.GenericServerStream[Req, Res]{ServerStream: stream})
		},
	}
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConnectionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", ConnectionServer.GetStatus),
		unary("Connect", ConnectionServer.Connect),
		unary("Disconnect", ConnectionServer.Disconnect),
		unary("RequestHandles", ConnectionServer.RequestHandles),
		unary("InspectHandles", ConnectionServer.InspectHandles),
		unary("GetContactAttributes", ConnectionServer.GetContactAttributes),
		unary("SetPresence", ConnectionServer.SetPresence),
		unary("ListContacts", ConnectionServer.ListContacts),
		unary("AddContacts", ConnectionServer.AddContacts),
		unary("RemoveContacts", ConnectionServer.RemoveContacts),
		unary("EnsureChannel", ConnectionServer.EnsureChannel),
		unary("CreateChannel", ConnectionServer.CreateChannel),
		unary("CloseChannel", ConnectionServer.CloseChannel),
		unary("ListChannels", ConnectionServer.ListChannels),
		unary("Send", ConnectionServer.Send),
		unary("AcknowledgePending", ConnectionServer.AcknowledgePending),
		unary("ListPending", ConnectionServer.ListPending),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchEvents", ConnectionServer.WatchEvents),
		serverStream("Pair", ConnectionServer.Pair),
	},
	Metadata: "imsm/v1/connection",
}

// RegisterConnectionServer registers srv with s.
func RegisterConnectionServer(s grpc.ServiceRegistrar, srv ConnectionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Dial connects to a daemon socket. The connection is lazy: errors surface
// on the first call.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	return grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
}

// Client is the client API of the service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc. cc must carry the CBOR content subtype, as Dial sets up.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*Status, error) {
	return invoke[Status](ctx, c.cc, "GetStatus", &Empty{}, opts)
}

func (c *Client) Connect(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "Connect", &Empty{}, opts)
	return err
}

func (c *Client) Disconnect(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "Disconnect", &Empty{}, opts)
	return err
}

func (c *Client) RequestHandles(ctx context.Context, in *HandlesRequest, opts ...grpc.CallOption) (*HandlesReply, error) {
	return invoke[HandlesReply](ctx, c.cc, "RequestHandles", in, opts)
}

func (c *Client) InspectHandles(ctx context.Context, in *InspectRequest, opts ...grpc.CallOption) (*InspectReply, error) {
	return invoke[InspectReply](ctx, c.cc, "InspectHandles", in, opts)
}

func (c *Client) GetContactAttributes(ctx context.Context, in *AttributesRequest, opts ...grpc.CallOption) (*AttributesReply, error) {
	return invoke[AttributesReply](ctx, c.cc, "GetContactAttributes", in, opts)
}

func (c *Client) SetPresence(ctx context.Context, in *PresenceRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "SetPresence", in, opts)
	return err
}

func (c *Client) ListContacts(ctx context.Context, opts ...grpc.CallOption) (*ContactsReply, error) {
	return invoke[ContactsReply](ctx, c.cc, "ListContacts", &Empty{}, opts)
}

func (c *Client) AddContacts(ctx context.Context, in *ContactsRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "AddContacts", in, opts)
	return err
}

func (c *Client) RemoveContacts(ctx context.Context, in *ContactsRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "RemoveContacts", in, opts)
	return err
}

func (c *Client) EnsureChannel(ctx context.Context, in *ChannelRequest, opts ...grpc.CallOption) (*ChannelReply, error) {
	return invoke[ChannelReply](ctx, c.cc, "EnsureChannel", in, opts)
}

func (c *Client) CreateChannel(ctx context.Context, in *ChannelRequest, opts ...grpc.CallOption) (*ChannelReply, error) {
	return invoke[ChannelReply](ctx, c.cc, "CreateChannel", in, opts)
}

func (c *Client) CloseChannel(ctx context.Context, path string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "CloseChannel", &PathRequest{Path: path}, opts)
	return err
}

func (c *Client) ListChannels(ctx context.Context, opts ...grpc.CallOption) (*ChannelsReply, error) {
	return invoke[ChannelsReply](ctx, c.cc, "ListChannels", &Empty{}, opts)
}

func (c *Client) Send(ctx context.Context, in *SendRequest, opts ...grpc.CallOption) (*SendReply, error) {
	return invoke[SendReply](ctx, c.cc, "Send", in, opts)
}

func (c *Client) AcknowledgePending(ctx context.Context, in *AckRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, "AcknowledgePending", in, opts)
	return err
}

func (c *Client) ListPending(ctx context.Context, path string, opts ...grpc.CallOption) (*PendingReply, error) {
	return invoke[PendingReply](ctx, c.cc, "ListPending", &PathRequest{Path: path}, opts)
}

func openStream[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Res], error) {
	stream, err := cc.NewStream(ctx, desc, "/"+ServiceName+"/"+desc.StreamName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Res]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// WatchEvents streams bus events until ctx is done.
func (c *Client) WatchEvents(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	return openStream[WatchRequest, Event](ctx, c.cc, &ServiceDesc.Streams[0], in, opts)
}

// Pair streams pairing steps until pairing ends.
func (c *Client) Pair(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[PairingEvent], error) {
	return openStream[Empty, PairingEvent](ctx, c.cc, &ServiceDesc.Streams[1], &Empty{}, opts)
}
