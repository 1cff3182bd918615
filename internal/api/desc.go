// Package api serves the daemon's ChatService over gRPC. Requests and
// responses are structpb.Struct so the service needs no generated code.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "chatcore.v1.ChatService"

// Method names.
const (
	MethodSetHomeState   = "SetHomeState"
	MethodListChats      = "ListChats"
	MethodWatchChatList  = "WatchChatList"
	MethodOpenChat       = "OpenChat"
	MethodSetChatState   = "SetChatState"
	MethodCloseChat      = "CloseChat"
	MethodGetTimeline    = "GetTimeline"
	MethodMarkRead       = "MarkRead"
	MethodSendText       = "SendText"
	MethodSendImage      = "SendImage"
	MethodAddChat        = "AddChat"
	MethodRegisterDevice = "RegisterDevice"
	MethodSaveProfile    = "SaveProfile"
	MethodGetProfile     = "GetProfile"
)

// FullMethod is the wire name of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ChatServiceServer is the server API for ChatService.
type ChatServiceServer interface {
	SetHomeState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListChats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchChatList(*structpb.Struct, grpc.ServerStream) error
	OpenChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetChatState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTimeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddChat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterDevice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(ChatServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ChatServiceServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func watchChatListHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServiceServer).WatchChatList(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSetHomeState, ChatServiceServer.SetHomeState),
		unary(MethodListChats, ChatServiceServer.ListChats),
		unary(MethodOpenChat, ChatServiceServer.OpenChat),
		unary(MethodSetChatState, ChatServiceServer.SetChatState),
		unary(MethodCloseChat, ChatServiceServer.CloseChat),
		unary(MethodGetTimeline, ChatServiceServer.GetTimeline),
		unary(MethodMarkRead, ChatServiceServer.MarkRead),
		unary(MethodSendText, ChatServiceServer.SendText),
		unary(MethodSendImage, ChatServiceServer.SendImage),
		unary(MethodAddChat, ChatServiceServer.AddChat),
		unary(MethodRegisterDevice, ChatServiceServer.RegisterDevice),
		unary(MethodSaveProfile, ChatServiceServer.SaveProfile),
		unary(MethodGetProfile, ChatServiceServer.GetProfile),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchChatList,
			Handler:       watchChatListHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chatcore/v1/chat.proto",
}

// WatchChatListStreamDesc is the client side description of WatchChatList.
var WatchChatListStreamDesc = &grpc.StreamDesc{StreamName: MethodWatchChatList, ServerStreams: true}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
