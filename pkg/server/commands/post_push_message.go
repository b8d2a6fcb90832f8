package commands

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kunthar/zops-audience/internal/audience"
	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/push"
	"github.com/kunthar/zops-audience/pkg/rpc"
	serverErrors "github.com/kunthar/zops-audience/pkg/server/errors"
	"github.com/kunthar/zops-audience/pkg/types"
)

// Dispatcher is the push fan-out PostPushMessageCommand hands its grouped
// tokens to.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification push.Notification, groups map[string][]string) error
}

// PostPushMessageCommand resolves a message's audience and dispatches the
// notification per device type.
type PostPushMessageCommand struct {
	resolver   *audience.Resolver
	dispatcher Dispatcher
	logger     logger.Logger
}

type PostPushMessageRequest struct {
	Project  string           `json:"project"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Audience *types.Residency `json:"audience"`
}

type PostPushMessageResponse struct {
	MessageID string         `json:"message_id"`
	Delivered map[string]int `json:"delivered"`
}

func NewPostPushMessageCommand(resolver *audience.Resolver, dispatcher Dispatcher, logger logger.Logger) *PostPushMessageCommand {
	return &PostPushMessageCommand{
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (c *PostPushMessageCommand) Execute(ctx context.Context, req *PostPushMessageRequest) (*PostPushMessageResponse, error) {
	if req.Audience == nil {
		return nil, rpc.NewError(rpc.CodeInvalidParams, "audience is required")
	}
	if req.Message == "" {
		return nil, rpc.NewError(rpc.CodeInvalidParams, "message is required")
	}

	clientIDs, err := c.resolver.Resolve(ctx, req.Project, req.Audience)
	if err != nil {
		return nil, serverErrors.FromError(err)
	}

	groups, err := c.resolver.GroupByDevice(ctx, req.Project, clientIDs)
	if err != nil {
		return nil, serverErrors.FromError(err)
	}

	messageID := ulid.Make().String()

	if err := c.dispatcher.Dispatch(ctx, push.Notification{Title: req.Title, Message: req.Message}, groups); err != nil {
		return nil, err
	}

	delivered := make(map[string]int, len(groups))
	for deviceType, tokens := range groups {
		delivered[deviceType] = len(tokens)
	}

	c.logger.Info("push message dispatched",
		zap.String("project", req.Project),
		zap.String("message_id", messageID),
		zap.Int("clients", len(clientIDs)))

	return &PostPushMessageResponse{MessageID: messageID, Delivered: delivered}, nil
}
