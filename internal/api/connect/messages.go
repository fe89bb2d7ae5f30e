package connect

import (
	"time"

	"github.com/osa030/requestbox/internal/app/notification"
	"github.com/osa030/requestbox/internal/app/playback"
	"github.com/osa030/requestbox/internal/app/settings"
	"github.com/osa030/requestbox/internal/app/venue"
	"github.com/osa030/requestbox/internal/domain/request"
)

// RequestInfo describes one request on the wire.
type RequestInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RequesterRef string `json:"requester_ref"`
	SubmittedAt  string `json:"submitted_at"`
	PaymentState string `json:"payment_state"`
	Status       string `json:"status"`
}

// DisplayInfo describes what the display shows.
type DisplayInfo struct {
	Mode    string       `json:"mode"`
	Request *RequestInfo `json:"request,omitempty"`
	IdleURL string       `json:"idle_url,omitempty"`
}

// SettingInfo describes one settings entry.
type SettingInfo struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Kind  string `json:"kind"`
}

// ListenerService messages.
type (
	SubmitRequestRequest struct {
		Title        string `json:"title"`
		RequesterRef string `json:"requester_ref"`
		PaymentState string `json:"payment_state"`
	}
	SubmitRequestResponse struct {
		Success   bool         `json:"success"`
		Code      string       `json:"code,omitempty"`
		Message   string       `json:"message,omitempty"`
		Retryable bool         `json:"retryable,omitempty"`
		Request   *RequestInfo `json:"request,omitempty"`
	}

	ListQueueRequest  struct{}
	ListQueueResponse struct {
		Current *RequestInfo  `json:"current,omitempty"`
		Queued  []RequestInfo `json:"queued"`
	}

	CurrentDisplayRequest  struct{}
	CurrentDisplayResponse struct {
		Display DisplayInfo `json:"display"`
	}

	WatchDisplayRequest struct{}
	DisplayNotification struct {
		SequenceNo uint64      `json:"sequence_no"`
		Display    DisplayInfo `json:"display"`
		At         string      `json:"at"`
	}
)

// PlayerService messages.
type (
	ReportFinishedRequest struct {
		RequestID string `json:"request_id"`
	}
	ReportFinishedResponse struct{}
)

// AdminService messages.
type (
	CancelRequestRequest struct {
		RequestID string `json:"request_id"`
	}
	CancelRequestResponse struct {
		Request RequestInfo `json:"request"`
	}

	SkipRequest struct {
		RequestID string `json:"request_id,omitempty"`
	}
	SkipResponse struct{}

	GetStatusRequest  struct{}
	GetStatusResponse struct {
		State       string       `json:"state"`
		Display     DisplayInfo  `json:"display"`
		Current     *RequestInfo `json:"current,omitempty"`
		QueueSize   int          `json:"queue_size"`
		Played      uint64       `json:"played"`
		Skipped     uint64       `json:"skipped"`
		Subscribers int          `json:"subscribers"`
		StartedAt   string       `json:"started_at"`
	}

	GetSettingRequest struct {
		Key string `json:"key"`
	}
	GetSettingResponse struct {
		Setting SettingInfo `json:"setting"`
	}

	SetSettingRequest struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		Kind  string `json:"kind"`
	}
	SetSettingResponse struct {
		Setting SettingInfo `json:"setting"`
	}

	ListSettingsRequest  struct{}
	ListSettingsResponse struct {
		Settings []SettingInfo `json:"settings"`
	}
)

func toRequestInfo(r request.Request) RequestInfo {
	return RequestInfo{
		ID:           r.ID,
		Title:        r.Title,
		RequesterRef: r.RequesterRef,
		SubmittedAt:  r.SubmittedAt.Format(time.RFC3339Nano),
		PaymentState: string(r.PaymentState),
		Status:       r.Status.String(),
	}
}

func toRequestInfoPtr(r *request.Request) *RequestInfo {
	if r == nil {
		return nil
	}
	info := toRequestInfo(*r)
	return &info
}

func toDisplayInfo(d playback.Display) DisplayInfo {
	return DisplayInfo{
		Mode:    d.Mode.String(),
		Request: toRequestInfoPtr(d.Request),
		IdleURL: d.IdleURL,
	}
}

func toSettingInfo(e settings.Entry) SettingInfo {
	return SettingInfo{Key: e.Key, Value: e.Value, Kind: string(e.Kind)}
}

func toNotification(n notification.Notification) *DisplayNotification {
	return &DisplayNotification{
		SequenceNo: n.SequenceNo,
		Display:    toDisplayInfo(n.Display),
		At:         n.At.Format(time.RFC3339Nano),
	}
}

func toQueueResponse(v venue.QueueView) *ListQueueResponse {
	queued := make([]RequestInfo, len(v.Queued))
	for i, r := range v.Queued {
		queued[i] = toRequestInfo(r)
	}
	return &ListQueueResponse{
		Current: toRequestInfoPtr(v.Current),
		Queued:  queued,
	}
}
