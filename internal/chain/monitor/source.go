package monitor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// LogEvent 一条日志通知
type LogEvent struct {
	Signature string
	Logs      []string
	Failed    bool
}

// LogSource opens log subscriptions for the monitored program.
type LogSource interface {
	Subscribe(ctx context.Context) (LogStream, error)
}

type LogStream interface {
	Recv(ctx context.Context) (*LogEvent, error)
	Close()
}

// WSSource subscribes over the Solana websocket API.
type WSSource struct {
	url    string
	target solana.PublicKey
}

func NewWSSource(url, target string) (*WSSource, error) {
	key, err := solana.PublicKeyFromBase58(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target address: %w", err)
	}
	return &WSSource{url: url, target: key}, nil
}

func (s *WSSource) Subscribe(ctx context.Context) (LogStream, error) {
	client, err := ws.Connect(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect websocket: %w", err)
	}

	sub, err := client.LogsSubscribeMentions(s.target, rpc.CommitmentConfirmed)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to subscribe logs: %w", err)
	}

	return &wsStream{client: client, sub: sub}, nil
}

type wsStream struct {
	client *ws.Client
	sub    *ws.LogSubscription
}

func (s *wsStream) Recv(ctx context.Context) (*LogEvent, error) {
	res, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return &LogEvent{
		Signature: res.Value.Signature.String(),
		Logs:      res.Value.Logs,
		Failed:    res.Value.Err != nil,
	}, nil
}

func (s *wsStream) Close() {
	s.sub.Unsubscribe()
	s.client.Close()
}
