package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// ListenerClient calls the ListenerService.
type ListenerClient struct {
	submit  *connect.Client[SubmitRequestRequest, SubmitRequestResponse]
	queue   *connect.Client[ListQueueRequest, ListQueueResponse]
	display *connect.Client[CurrentDisplayRequest, CurrentDisplayResponse]
	watch   *connect.Client[WatchDisplayRequest, DisplayNotification]
}

// NewListenerClient creates a ListenerService client for the server at baseURL.
func NewListenerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ListenerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &ListenerClient{
		submit:  connect.NewClient[SubmitRequestRequest, SubmitRequestResponse](httpClient, baseURL+SubmitRequestProcedure, opts...),
		queue:   connect.NewClient[ListQueueRequest, ListQueueResponse](httpClient, baseURL+ListQueueProcedure, opts...),
		display: connect.NewClient[CurrentDisplayRequest, CurrentDisplayResponse](httpClient, baseURL+CurrentDisplayProcedure, opts...),
		watch:   connect.NewClient[WatchDisplayRequest, DisplayNotification](httpClient, baseURL+WatchDisplayProcedure, opts...),
	}
}

// SubmitRequest submits a song request.
func (c *ListenerClient) SubmitRequest(ctx context.Context, req *SubmitRequestRequest) (*SubmitRequestResponse, error) {
	resp, err := c.submit.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ListQueue returns the current queue.
func (c *ListenerClient) ListQueue(ctx context.Context) (*ListQueueResponse, error) {
	resp, err := c.queue.CallUnary(ctx, connect.NewRequest(&ListQueueRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// CurrentDisplay returns the current display.
func (c *ListenerClient) CurrentDisplay(ctx context.Context) (*DisplayInfo, error) {
	resp, err := c.display.CallUnary(ctx, connect.NewRequest(&CurrentDisplayRequest{}))
	if err != nil {
		return nil, err
	}
	return &resp.Msg.Display, nil
}

// WatchDisplay opens a display stream. The caller must Close it.
func (c *ListenerClient) WatchDisplay(ctx context.Context) (*connect.ServerStreamForClient[DisplayNotification], error) {
	return c.watch.CallServerStream(ctx, connect.NewRequest(&WatchDisplayRequest{}))
}

// PlayerClient calls the PlayerService.
type PlayerClient struct {
	finished *connect.Client[ReportFinishedRequest, ReportFinishedResponse]
}

// NewPlayerClient creates a PlayerService client authenticated with token.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlayerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON(), WithToken(PlayerTokenHeader, token)}, opts...)
	return &PlayerClient{
		finished: connect.NewClient[ReportFinishedRequest, ReportFinishedResponse](httpClient, baseURL+ReportFinishedProcedure, opts...),
	}
}

// ReportFinished reports that requestID finished playing.
func (c *PlayerClient) ReportFinished(ctx context.Context, requestID string) error {
	_, err := c.finished.CallUnary(ctx, connect.NewRequest(&ReportFinishedRequest{RequestID: requestID}))
	return err
}

// AdminClient calls the AdminService.
type AdminClient struct {
	cancel       *connect.Client[CancelRequestRequest, CancelRequestResponse]
	skip         *connect.Client[SkipRequest, SkipResponse]
	status       *connect.Client[GetStatusRequest, GetStatusResponse]
	getSetting   *connect.Client[GetSettingRequest, GetSettingResponse]
	setSetting   *connect.Client[SetSettingRequest, SetSettingResponse]
	listSettings *connect.Client[ListSettingsRequest, ListSettingsResponse]
}

// NewAdminClient creates an AdminService client authenticated with token.
func NewAdminClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *AdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON(), WithToken(AdminTokenHeader, token)}, opts...)
	return &AdminClient{
		cancel:       connect.NewClient[CancelRequestRequest, CancelRequestResponse](httpClient, baseURL+CancelRequestProcedure, opts...),
		skip:         connect.NewClient[SkipRequest, SkipResponse](httpClient, baseURL+SkipProcedure, opts...),
		status:       connect.NewClient[GetStatusRequest, GetStatusResponse](httpClient, baseURL+GetStatusProcedure, opts...),
		getSetting:   connect.NewClient[GetSettingRequest, GetSettingResponse](httpClient, baseURL+GetSettingProcedure, opts...),
		setSetting:   connect.NewClient[SetSettingRequest, SetSettingResponse](httpClient, baseURL+SetSettingProcedure, opts...),
		listSettings: connect.NewClient[ListSettingsRequest, ListSettingsResponse](httpClient, baseURL+ListSettingsProcedure, opts...),
	}
}

// CancelRequest removes a queued request.
func (c *AdminClient) CancelRequest(ctx context.Context, requestID string) (*RequestInfo, error) {
	resp, err := c.cancel.CallUnary(ctx, connect.NewRequest(&CancelRequestRequest{RequestID: requestID}))
	if err != nil {
		return nil, err
	}
	return &resp.Msg.Request, nil
}

// Skip force-finishes the playing request. An empty requestID skips whatever is playing.
func (c *AdminClient) Skip(ctx context.Context, requestID string) error {
	_, err := c.skip.CallUnary(ctx, connect.NewRequest(&SkipRequest{RequestID: requestID}))
	return err
}

// GetStatus returns the venue status.
func (c *AdminClient) GetStatus(ctx context.Context) (*GetStatusResponse, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&GetStatusRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GetSetting returns one setting.
func (c *AdminClient) GetSetting(ctx context.Context, key string) (*SettingInfo, error) {
	resp, err := c.getSetting.CallUnary(ctx, connect.NewRequest(&GetSettingRequest{Key: key}))
	if err != nil {
		return nil, err
	}
	return &resp.Msg.Setting, nil
}

// SetSetting upserts a setting.
func (c *AdminClient) SetSetting(ctx context.Context, key, value, kind string) (*SettingInfo, error) {
	resp, err := c.setSetting.CallUnary(ctx, connect.NewRequest(&SetSettingRequest{Key: key, Value: value, Kind: kind}))
	if err != nil {
		return nil, err
	}
	return &resp.Msg.Setting, nil
}

// ListSettings returns every setting.
func (c *AdminClient) ListSettings(ctx context.Context) ([]SettingInfo, error) {
	resp, err := c.listSettings.CallUnary(ctx, connect.NewRequest(&ListSettingsRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Settings, nil
}
