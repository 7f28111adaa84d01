package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "bananaquiz.v1.GameService"

// GameServiceServer is the server API of bananaquiz.v1.GameService.
type GameServiceServer interface {
	StartSession(context.Context, *StartSessionRequest) (*StartSessionResponse, error)
	SubmitAnswer(context.Context, *SubmitAnswerRequest) (*AnswerResponse, error)
	UseHint(context.Context, *UseHintRequest) (*UseHintResponse, error)
	TimeUp(context.Context, *TimeUpRequest) (*AnswerResponse, error)
	PauseSession(context.Context, *PauseSessionRequest) (*SessionResponse, error)
	ResumeSession(context.Context, *ResumeSessionRequest) (*SessionResponse, error)
	ResetSession(context.Context, *ResetSessionRequest) (*SessionResponse, error)
	GetSession(context.Context, *GetSessionRequest) (*SessionResponse, error)
	CreateRoom(context.Context, *CreateRoomRequest) (*RoomResponse, error)
	JoinRoom(context.Context, *JoinRoomRequest) (*RoomResponse, error)
	LeaveRoom(context.Context, *LeaveRoomRequest) (*LeaveRoomResponse, error)
	GetLeaderboard(context.Context, *GetLeaderboardRequest) (*GetLeaderboardResponse, error)
	RecentSessions(context.Context, *RecentSessionsRequest) (*RecentSessionsResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartSession", GameServiceServer.StartSession),
		unary("SubmitAnswer", GameServiceServer.SubmitAnswer),
		unary("UseHint", GameServiceServer.UseHint),
		unary("TimeUp", GameServiceServer.TimeUp),
		unary("PauseSession", GameServiceServer.PauseSession),
		unary("ResumeSession", GameServiceServer.ResumeSession),
		unary("ResetSession", GameServiceServer.ResetSession),
		unary("GetSession", GameServiceServer.GetSession),
		unary("CreateRoom", GameServiceServer.CreateRoom),
		unary("JoinRoom", GameServiceServer.JoinRoom),
		unary("LeaveRoom", GameServiceServer.LeaveRoom),
		unary("GetLeaderboard", GameServiceServer.GetLeaderboard),
		unary("RecentSessions", GameServiceServer.RecentSessions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bananaquiz/v1/game.json",
}

func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp any](method string, call func(GameServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(GameServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}

			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameServiceServer), ctx, req.(*Req))
			})
		},
	}
}

// GameServiceClient calls bananaquiz.v1.GameService with the JSON codec.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

func (c *GameServiceClient) StartSession(ctx context.Context, in *StartSessionRequest, opts ...grpc.CallOption) (*StartSessionResponse, error) {
	return invoke[StartSessionResponse](ctx, c.cc, "StartSession", in, opts)
}

func (c *GameServiceClient) SubmitAnswer(ctx context.Context, in *SubmitAnswerRequest, opts ...grpc.CallOption) (*AnswerResponse, error) {
	return invoke[AnswerResponse](ctx, c.cc, "SubmitAnswer", in, opts)
}

func (c *GameServiceClient) UseHint(ctx context.Context, in *UseHintRequest, opts ...grpc.CallOption) (*UseHintResponse, error) {
	return invoke[UseHintResponse](ctx, c.cc, "UseHint", in, opts)
}

func (c *GameServiceClient) TimeUp(ctx context.Context, in *TimeUpRequest, opts ...grpc.CallOption) (*AnswerResponse, error) {
	return invoke[AnswerResponse](ctx, c.cc, "TimeUp", in, opts)
}

func (c *GameServiceClient) PauseSession(ctx context.Context, in *PauseSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.cc, "PauseSession", in, opts)
}

func (c *GameServiceClient) ResumeSession(ctx context.Context, in *ResumeSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.cc, "ResumeSession", in, opts)
}

func (c *GameServiceClient) ResetSession(ctx context.Context, in *ResetSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.cc, "ResetSession", in, opts)
}

func (c *GameServiceClient) GetSession(ctx context.Context, in *GetSessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c.cc, "GetSession", in, opts)
}

func (c *GameServiceClient) CreateRoom(ctx context.Context, in *CreateRoomRequest, opts ...grpc.CallOption) (*RoomResponse, error) {
	return invoke[RoomResponse](ctx, c.cc, "CreateRoom", in, opts)
}

func (c *GameServiceClient) JoinRoom(ctx context.Context, in *JoinRoomRequest, opts ...grpc.CallOption) (*RoomResponse, error) {
	return invoke[RoomResponse](ctx, c.cc, "JoinRoom", in, opts)
}

func (c *GameServiceClient) LeaveRoom(ctx context.Context, in *LeaveRoomRequest, opts ...grpc.CallOption) (*LeaveRoomResponse, error) {
	return invoke[LeaveRoomResponse](ctx, c.cc, "LeaveRoom", in, opts)
}

func (c *GameServiceClient) GetLeaderboard(ctx context.Context, in *GetLeaderboardRequest, opts ...grpc.CallOption) (*GetLeaderboardResponse, error) {
	return invoke[GetLeaderboardResponse](ctx, c.cc, "GetLeaderboard", in, opts)
}

func (c *GameServiceClient) RecentSessions(ctx context.Context, in *RecentSessionsRequest, opts ...grpc.CallOption) (*RecentSessionsResponse, error) {
	return invoke[RecentSessionsResponse](ctx, c.cc, "RecentSessions", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)

	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
