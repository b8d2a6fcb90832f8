package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/kunthar/zops-audience/internal/audience"
	"github.com/kunthar/zops-audience/pkg/logger"
	serverErrors "github.com/kunthar/zops-audience/pkg/server/errors"
	"github.com/kunthar/zops-audience/pkg/types"
)

// ResolveSegmentQuery resolves a residency definition to the client ids it
// matches, without dispatching anything.
type ResolveSegmentQuery struct {
	resolver *audience.Resolver
	logger   logger.Logger
}

type ResolveSegmentRequest struct {
	Project   string          `json:"project"`
	Residency types.Residency `json:"residency"`
}

type ResolveSegmentResponse struct {
	ClientIDs []string `json:"clients"`
}

func NewResolveSegmentQuery(resolver *audience.Resolver, logger logger.Logger) *ResolveSegmentQuery {
	return &ResolveSegmentQuery{resolver: resolver, logger: logger}
}

func (q *ResolveSegmentQuery) Execute(ctx context.Context, req *ResolveSegmentRequest) (*ResolveSegmentResponse, error) {
	clientIDs, err := q.resolver.Resolve(ctx, req.Project, &req.Residency)
	if err != nil {
		return nil, serverErrors.FromError(err)
	}

	q.logger.Debug("resolved segment",
		zap.String("project", req.Project),
		zap.Int("clients", len(clientIDs)))

	return &ResolveSegmentResponse{ClientIDs: clientIDs}, nil
}
