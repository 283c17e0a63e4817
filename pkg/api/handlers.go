package api

import (
	"context"
	"io"

	"google.golang.org/grpc"
)

// UnaryHandler adapts a typed method to a grpc.MethodDesc handler.
func UnaryHandler[S any, Req any, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// Sender is the server side of a server-streaming call.
type Sender[T any] interface {
	Send(*T) error
	Context() context.Context
}

type sender[T any] struct {
	grpc.ServerStream
}

func (s *sender[T]) Send(m *T) error {
	return s.ServerStream.SendMsg(m)
}

// ServerStreamHandler adapts a typed server-streaming method to a
// grpc.StreamDesc handler.
func ServerStreamHandler[S any, Req any, Resp any](call func(S, *Req, Sender[Resp]) error) grpc.StreamHandler {
	return func(srv interface{}, stream grpc.ServerStream) error {
		req := new(Req)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		return call(srv.(S), req, &sender[Resp]{stream})
	}
}

// Invoke performs a unary call with the JSON codec.
func Invoke[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	resp := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// Receiver is the client side of a server-streaming call.
type Receiver[T any] interface {
	// Recv returns io.EOF once the server has finished.
	Recv() (*T, error)
}

type receiver[T any] struct {
	grpc.ClientStream
}

func (r *receiver[T]) Recv() (*T, error) {
	m := new(T)
	if err := r.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// InvokeServerStream opens a server-streaming call with the JSON codec and
// sends its single request.
func InvokeServerStream[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, req *Req, opts ...grpc.CallOption) (Receiver[Resp], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	// io.EOF means the server already finished; Recv reports its status.
	if err := stream.SendMsg(req); err != nil && err != io.EOF {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &receiver[Resp]{stream}, nil
}

// Collect drains a receiver until io.EOF.
func Collect[T any](r Receiver[T]) ([]*T, error) {
	var items []*T
	for {
		item, err := r.Recv()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}
