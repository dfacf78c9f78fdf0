package web

import "net/http"

// NewServeMux 注册所有接口，events 为空时不提供事件推送
func NewServeMux(api *UpdateAPI, events *EventHub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/login", AuthAssert(Login))
	mux.HandleFunc("/logout", AuthAssert(Logout))
	mux.HandleFunc("/settings", Auth(Settings))
	mux.HandleFunc("/webhook", Auth(Webhook))
	mux.HandleFunc("/webhook/test", Auth(WebhookTest))
	mux.HandleFunc("/logs", Auth(Logs))

	mux.HandleFunc("/api/version", Auth(api.Version))
	mux.HandleFunc("/api/update/state", Auth(api.State))
	mux.HandleFunc("/api/update/check", Auth(api.Check))
	mux.HandleFunc("/api/update/download", Auth(api.Download))
	mux.HandleFunc("/api/update/install", Auth(api.Install))
	if events != nil {
		mux.HandleFunc("/api/update/events", Auth(events.ServeHTTP))
	}
	return mux
}
