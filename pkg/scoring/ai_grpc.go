package scoring

import (
	"context"
	"fmt"

	curatorv1 "github.com/kbforge/curator/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCAIAdapter implements AIAdapter by calling the external AI
// service over gRPC.
type GRPCAIAdapter struct {
	conn   *grpc.ClientConn
	client curatorv1.AIServiceClient
}

// NewGRPCAIAdapter connects to the AI service at addr.
func NewGRPCAIAdapter(addr string) (*GRPCAIAdapter, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to AI service at %s: %w", addr, err)
	}
	return &GRPCAIAdapter{
		conn:   conn,
		client: curatorv1.NewAIServiceClient(conn),
	}, nil
}

// Close releases the underlying connection.
func (a *GRPCAIAdapter) Close() error {
	return a.conn.Close()
}

// Summarize implements AIAdapter.
func (a *GRPCAIAdapter) Summarize(ctx context.Context, content string) (string, error) {
	resp, err := a.client.Summarize(ctx, &curatorv1.SummarizeRequest{Content: content})
	if err != nil {
		return "", fmt.Errorf("%w: summarize: %v", ErrAIUnavailable, err)
	}
	return resp.GetSummary(), nil
}

// Classify implements AIAdapter.
func (a *GRPCAIAdapter) Classify(ctx context.Context, content string) (string, error) {
	resp, err := a.client.Classify(ctx, &curatorv1.ClassifyRequest{Content: content})
	if err != nil {
		return "", fmt.Errorf("%w: classify: %v", ErrAIUnavailable, err)
	}
	return resp.GetClassification(), nil
}

// Rationalize implements AIAdapter.
func (a *GRPCAIAdapter) Rationalize(ctx context.Context, scores Scores, content string) (string, error) {
	resp, err := a.client.Rationalize(ctx, &curatorv1.RationalizeRequest{
		Content:      content,
		Credibility:  scores.Credibility,
		Relevance:    scores.Relevance,
		Freshness:    scores.Freshness,
		Completeness: scores.Completeness,
		Overall:      scores.Overall,
	})
	if err != nil {
		return "", fmt.Errorf("%w: rationalize: %v", ErrAIUnavailable, err)
	}
	return resp.GetRationale(), nil
}
