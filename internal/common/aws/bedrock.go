// internal/common/aws/bedrock.go
package aws

import (
	"context"
	"errors"
	"io"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/smithy-go"

	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/pipeline/invoke"
	"bedrock-router/internal/pipeline/route"
)

// BedrockClient wraps the Bedrock agent runtime. It satisfies
// invoke.AgentAPI and translates SDK failures into the error taxonomy so the
// invoker's retry policy can act on them.
type BedrockClient struct {
	client *bedrockagentruntime.Client
}

func NewBedrockClient(ctx context.Context, region string) (*BedrockClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &BedrockClient{client: bedrockagentruntime.NewFromConfig(cfg)}, nil
}

func (b *BedrockClient) InvokeAgent(ctx context.Context, ref route.ResourceRef, sessionID, inputText string) (invoke.ChunkStream, error) {
	out, err := b.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      awssdk.String(ref.AgentID),
		AgentAliasId: awssdk.String(ref.AgentAliasID),
		SessionId:    awssdk.String(sessionID),
		InputText:    awssdk.String(inputText),
	})
	if err != nil {
		return nil, mapInvokeError(err)
	}

	stream := out.GetStream()
	return &agentStream{stream: stream, events: stream.Events()}, nil
}

// agentStream adapts the SDK event stream to invoke.ChunkStream. Non-chunk
// events (traces) are skipped.
type agentStream struct {
	stream *bedrockagentruntime.InvokeAgentEventStream
	events <-chan types.ResponseStream
}

func (s *agentStream) Next(ctx context.Context) ([]byte, error) {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				if err := s.stream.Err(); err != nil {
					return nil, mapInvokeError(err)
				}
				return nil, io.EOF
			}
			if chunk, ok := ev.(*types.ResponseStreamMemberChunk); ok {
				return chunk.Value.Bytes, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *agentStream) Close() error {
	return s.stream.Close()
}

// mapInvokeError sorts SDK failures into the taxonomy. Context errors pass
// through untouched so deadline handling stays with the caller.
func mapInvokeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var (
		throttled  *types.ThrottlingException
		denied     *types.AccessDeniedException
		notFound   *types.ResourceNotFoundException
		invalid    *types.ValidationException
		internal   *types.InternalServerException
		dependency *types.DependencyFailedException
		gateway    *types.BadGatewayException
		quota      *types.ServiceQuotaExceededException
	)
	switch {
	case errors.As(err, &throttled):
		return apperrors.NewInvokeThrottled(err)
	case errors.As(err, &denied):
		return apperrors.NewInvokePermission(err)
	case errors.As(err, &notFound), errors.As(err, &invalid):
		return apperrors.NewInvokeBadReference(err)
	case errors.As(err, &internal), errors.As(err, &dependency),
		errors.As(err, &gateway), errors.As(err, &quota):
		return apperrors.NewInvokeBackend(err)
	}

	// Unmodeled API errors: client faults will not improve on retry.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return apperrors.NewInvokeBadReference(err)
	}

	// Transport-level failures (connection reset, DNS) are worth a retry.
	return apperrors.NewInvokeBackend(err)
}
