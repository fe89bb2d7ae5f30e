package connect

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/osa030/requestbox/internal/app/venue"
	"github.com/osa030/requestbox/internal/infra/config"
)

// Service names.
const (
	ListenerServiceName = "requestbox.v1.ListenerService"
	PlayerServiceName   = "requestbox.v1.PlayerService"
	AdminServiceName    = "requestbox.v1.AdminService"
)

// Procedures.
const (
	SubmitRequestProcedure  = "/" + ListenerServiceName + "/SubmitRequest"
	ListQueueProcedure      = "/" + ListenerServiceName + "/ListQueue"
	CurrentDisplayProcedure = "/" + ListenerServiceName + "/CurrentDisplay"
	WatchDisplayProcedure   = "/" + ListenerServiceName + "/WatchDisplay"

	ReportFinishedProcedure = "/" + PlayerServiceName + "/ReportFinished"

	CancelRequestProcedure = "/" + AdminServiceName + "/CancelRequest"
	SkipProcedure          = "/" + AdminServiceName + "/Skip"
	GetStatusProcedure     = "/" + AdminServiceName + "/GetStatus"
	GetSettingProcedure    = "/" + AdminServiceName + "/GetSetting"
	SetSettingProcedure    = "/" + AdminServiceName + "/SetSetting"
	ListSettingsProcedure  = "/" + AdminServiceName + "/ListSettings"
)

// NewHandler registers the listener, player and admin services on a mux.
func NewHandler(v *venue.Service, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	listener := NewListenerService(v, cfg)
	player := NewPlayerService(v)
	admin := NewAdminService(v)

	codec := WithJSON()
	playerAuth := connect.WithInterceptors(NewTokenAuthInterceptor(PlayerTokenHeader, cfg.Player.Token))
	adminAuth := connect.WithInterceptors(NewTokenAuthInterceptor(AdminTokenHeader, cfg.Admin.Token))

	// ListenerService
	mux.Handle(SubmitRequestProcedure, connect.NewUnaryHandler(SubmitRequestProcedure, listener.SubmitRequest, codec))
	mux.Handle(ListQueueProcedure, connect.NewUnaryHandler(ListQueueProcedure, listener.ListQueue, codec))
	mux.Handle(CurrentDisplayProcedure, connect.NewUnaryHandler(CurrentDisplayProcedure, listener.CurrentDisplay, codec))
	mux.Handle(WatchDisplayProcedure, connect.NewServerStreamHandler(WatchDisplayProcedure, listener.WatchDisplay, codec))

	// PlayerService
	mux.Handle(ReportFinishedProcedure, connect.NewUnaryHandler(ReportFinishedProcedure, player.ReportFinished, codec, playerAuth))

	// AdminService
	mux.Handle(CancelRequestProcedure, connect.NewUnaryHandler(CancelRequestProcedure, admin.CancelRequest, codec, adminAuth))
	mux.Handle(SkipProcedure, connect.NewUnaryHandler(SkipProcedure, admin.Skip, codec, adminAuth))
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, admin.GetStatus, codec, adminAuth))
	mux.Handle(GetSettingProcedure, connect.NewUnaryHandler(GetSettingProcedure, admin.GetSetting, codec, adminAuth))
	mux.Handle(SetSettingProcedure, connect.NewUnaryHandler(SetSettingProcedure, admin.SetSetting, codec, adminAuth))
	mux.Handle(ListSettingsProcedure, connect.NewUnaryHandler(ListSettingsProcedure, admin.ListSettings, codec, adminAuth))

	return mux
}
