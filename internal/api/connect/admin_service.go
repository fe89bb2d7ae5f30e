package connect

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/requestbox/internal/app/settings"
	"github.com/osa030/requestbox/internal/app/venue"
)

// AdminService implements the AdminService RPC.
type AdminService struct {
	venue *venue.Service
}

// NewAdminService creates a new AdminService.
func NewAdminService(v *venue.Service) *AdminService {
	return &AdminService{venue: v}
}

// GetStatus returns the current venue status.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[GetStatusRequest],
) (*connect.Response[GetStatusResponse], error) {
	status := s.venue.Status()

	resp := &GetStatusResponse{
		State:       status.State.String(),
		Display:     toDisplayInfo(status.Display),
		Current:     toRequestInfoPtr(status.Current),
		QueueSize:   status.QueueSize,
		Played:      status.Played,
		Skipped:     status.Skipped,
		Subscribers: status.Subscribers,
	}
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.Format(time.RFC3339)
	}

	return connect.NewResponse(resp), nil
}

// CancelRequest removes a queued request.
func (s *AdminService) CancelRequest(
	ctx context.Context,
	req *connect.Request[CancelRequestRequest],
) (*connect.Response[CancelRequestResponse], error) {
	r, err := s.venue.CancelRequest(ctx, req.Msg.RequestID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CancelRequestResponse{Request: toRequestInfo(r)}), nil
}

// Skip force-finishes the playing request.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[SkipRequest],
) (*connect.Response[SkipResponse], error) {
	if err := s.venue.SkipCurrent(ctx, req.Msg.RequestID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SkipResponse{}), nil
}

// GetSetting returns one setting.
func (s *AdminService) GetSetting(
	ctx context.Context,
	req *connect.Request[GetSettingRequest],
) (*connect.Response[GetSettingResponse], error) {
	e, ok := s.venue.GetSetting(req.Msg.Key)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errors.Newf("setting %q not found", req.Msg.Key))
	}
	return connect.NewResponse(&GetSettingResponse{Setting: toSettingInfo(e)}), nil
}

// SetSetting upserts a setting.
func (s *AdminService) SetSetting(
	ctx context.Context,
	req *connect.Request[SetSettingRequest],
) (*connect.Response[SetSettingResponse], error) {
	kind, err := settings.ParseKind(req.Msg.Kind)
	if err != nil {
		return nil, toConnectError(err)
	}
	e, err := s.venue.SetSetting(req.Msg.Key, req.Msg.Value, kind)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SetSettingResponse{Setting: toSettingInfo(e)}), nil
}

// ListSettings returns every setting.
func (s *AdminService) ListSettings(
	ctx context.Context,
	req *connect.Request[ListSettingsRequest],
) (*connect.Response[ListSettingsResponse], error) {
	entries := s.venue.ListSettings()
	infos := make([]SettingInfo, len(entries))
	for i, e := range entries {
		infos[i] = toSettingInfo(e)
	}
	return connect.NewResponse(&ListSettingsResponse{Settings: infos}), nil
}
