// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/app/admission"
	"github.com/osa030/requestbox/internal/app/venue"
	"github.com/osa030/requestbox/internal/domain/request"
	"github.com/osa030/requestbox/internal/infra/config"
)

// ListenerService implements the public ListenerService RPC.
type ListenerService struct {
	venue  *venue.Service
	config *config.Config
}

// NewListenerService creates a new ListenerService.
func NewListenerService(v *venue.Service, cfg *config.Config) *ListenerService {
	return &ListenerService{
		venue:  v,
		config: cfg,
	}
}

// SubmitRequest handles song request submissions. A business-rule rejection
// is a successful call with Success=false and the reason code.
func (s *ListenerService) SubmitRequest(
	ctx context.Context,
	req *connect.Request[SubmitRequestRequest],
) (*connect.Response[SubmitRequestResponse], error) {
	payment, err := request.ParsePaymentState(req.Msg.PaymentState)
	if err != nil {
		return nil, toConnectError(err)
	}

	r, err := s.venue.SubmitRequest(ctx, req.Msg.Title, req.Msg.RequesterRef, payment)
	var rejected *admission.RejectedError
	if errors.As(err, &rejected) {
		zlog.Info().Msgf("request rejected: request_id=%s code=%s", rejected.Request.ID, rejected.Code)
		return connect.NewResponse(&SubmitRequestResponse{
			Success:   false,
			Code:      rejected.Code,
			Message:   s.config.GetMessage(rejected.Code),
			Retryable: rejected.Retryable(),
			Request:   toRequestInfoPtr(&rejected.Request),
		}), nil
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SubmitRequestResponse{
		Success: true,
		Message: s.config.GetMessage("success"),
		Request: toRequestInfoPtr(r),
	}), nil
}

// ListQueue returns the playing request and the queue in playback order.
func (s *ListenerService) ListQueue(
	ctx context.Context,
	req *connect.Request[ListQueueRequest],
) (*connect.Response[ListQueueResponse], error) {
	return connect.NewResponse(toQueueResponse(s.venue.ListQueue())), nil
}

// CurrentDisplay returns what the display shows right now.
func (s *ListenerService) CurrentDisplay(
	ctx context.Context,
	req *connect.Request[CurrentDisplayRequest],
) (*connect.Response[CurrentDisplayResponse], error) {
	return connect.NewResponse(&CurrentDisplayResponse{
		Display: toDisplayInfo(s.venue.CurrentDisplay()),
	}), nil
}

// WatchDisplay streams the current display followed by every change.
func (s *ListenerService) WatchDisplay(
	ctx context.Context,
	req *connect.Request[WatchDisplayRequest],
	stream *connect.ServerStream[DisplayNotification],
) error {
	sub := s.venue.WatchDisplay()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case n := <-sub.C():
			if err := stream.Send(toNotification(n)); err != nil {
				return err
			}
		}
	}
}
