// Package grpcsink implements a MetadataSink (spec §6) that streams
// per-frame telemetry to connected clients over gRPC, grounded on the
// teacher's visualiser Publisher/Publish pattern
// (internal/lidar/visualiser/publisher.go) but without a project-specific
// generated service: the wire message is the well-known
// google.golang.org/protobuf/types/known/structpb.Struct type, so no local
// .proto/codegen step is needed to exercise the grpc/protobuf stack.
package grpcsink

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// serviceName is the gRPC service name this sink registers under.
const serviceName = "rift.debugsink.Telemetry"

// clientBuffer bounds how many pending envelopes a slow client may
// accumulate before new ones are dropped for it (spec §6, sinks "never
// block the pipeline").
const clientBuffer = 64

// Sink streams telemetry envelopes to any number of connected gRPC clients.
type Sink struct {
	listener net.Listener
	server   *grpc.Server

	mu      sync.RWMutex
	clients map[int]chan *structpb.Struct
	nextID  int
}

// New starts a gRPC server listening on addr and returns a Sink ready to
// accept PushJSON calls.
func New(addr string) (*Sink, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpcsink: listen on %s: %w", addr, err)
	}
	s := &Sink{
		listener: lis,
		server:   grpc.NewServer(),
		clients:  make(map[int]chan *structpb.Struct),
	}
	s.server.RegisterService(&telemetryServiceDesc, s)
	go s.server.Serve(lis)
	return s, nil
}

// Addr returns the listener's bound address, useful when addr was ":0".
func (s *Sink) Addr() net.Addr {
	return s.listener.Addr()
}

// Connected reports whether at least one client is currently streaming
// (spec §6, "connectivity-checked before use").
func (s *Sink) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients) > 0
}

// PushJSON encodes v as a protobuf Struct and fans it out to every
// connected client's channel, dropping the message for any client whose
// buffer is full rather than blocking the caller.
func (s *Sink) PushJSON(ts time.Time, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("grpcsink: marshal payload: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Payload isn't a JSON object (e.g. a bare slice/scalar); wrap it so
		// structpb can still represent it.
		fields = map[string]interface{}{"value": json.RawMessage(raw)}
	}
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("grpcsink: build struct: %w", err)
	}
	envelope, err := structpb.NewStruct(map[string]interface{}{
		"ts_unix_nano": ts.UnixNano(),
		"payload":      payload.AsMap(),
	})
	if err != nil {
		return fmt.Errorf("grpcsink: build envelope: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- envelope:
		default:
			// buffer full; drop for this client rather than block the pipeline
		}
	}
	return nil
}

// Close stops the gRPC server and disconnects all clients.
func (s *Sink) Close() {
	s.server.Stop()
}

// subscribe registers a new client channel and returns it along with a
// function to unregister it.
func (s *Sink) subscribe() (ch chan *structpb.Struct, unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch = make(chan *structpb.Struct, clientBuffer)
	s.clients[id] = ch
	s.mu.Unlock()
	return ch, func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
	}
}

// stream is the server-streaming RPC handler: it forwards every envelope
// pushed via PushJSON to this client until the stream errors or closes.
func (s *Sink) stream(grpcStream grpc.ServerStream) error {
	ch, unsubscribe := s.subscribe()
	defer unsubscribe()
	for msg := range ch {
		if err := grpcStream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(*Sink).stream(stream)
}

var telemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Sink)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
}
