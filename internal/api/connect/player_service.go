package connect

import (
	"context"

	"connectrpc.com/connect"

	"github.com/osa030/requestbox/internal/app/venue"
)

// PlayerService implements the PlayerService RPC used by the playback device.
type PlayerService struct {
	venue *venue.Service
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(v *venue.Service) *PlayerService {
	return &PlayerService{venue: v}
}

// ReportFinished reports that a song finished playing. Reports for a request
// that is no longer playing are accepted and ignored.
func (s *PlayerService) ReportFinished(
	ctx context.Context,
	req *connect.Request[ReportFinishedRequest],
) (*connect.Response[ReportFinishedResponse], error) {
	if err := s.venue.ReportFinished(ctx, req.Msg.RequestID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ReportFinishedResponse{}), nil
}
