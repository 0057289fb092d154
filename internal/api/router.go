package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)
	mux.HandleFunc("GET /v1/books", h.Books)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("GET /v1/messages", h.ListMessages)

	mux.HandleFunc("POST /v1/schedules", h.CreateSchedule)
	mux.HandleFunc("GET /v1/schedules", h.ListSchedules)
	mux.HandleFunc("DELETE /v1/schedules/{id}", h.DeleteSchedule)

	mux.HandleFunc("POST /v1/verses/send", h.SendVerse)

	mux.HandleFunc("GET /v1/state", h.GetAllState)
	// Literal segment takes precedence over the {key} wildcard.
	mux.HandleFunc("GET /v1/state/selection", h.GetVerseSelection)
	mux.HandleFunc("PUT /v1/state/selection", h.PutVerseSelection)
	mux.HandleFunc("GET /v1/state/{key}", h.GetState)
	mux.HandleFunc("PUT /v1/state/{key}", h.PutState)

	mux.HandleFunc("POST /webhook/sms", h.SMSWebhook)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("scripture-messaging"))
	})

	return mux
}
