package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all HTTP routes.
func NewRouter(campaigns *CampaignHandler, contacts *ContactHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/campaigns", campaigns.CreateCampaign)
	r.Get("/campaigns", campaigns.ListCampaigns)
	r.Get("/campaigns/{id}", campaigns.GetCampaign)
	r.Put("/campaigns/{id}", campaigns.UpdateCampaign)
	r.Delete("/campaigns/{id}", campaigns.DeleteCampaign)
	r.Post("/campaigns/{id}/send", campaigns.SendCampaign)

	r.Post("/contacts", contacts.CreateContact)
	r.Get("/contacts", contacts.ListContacts)
	r.Get("/contacts/{id}", contacts.GetContact)
	r.Put("/contacts/{id}", contacts.UpdateContact)
	r.Delete("/contacts/{id}", contacts.DeleteContact)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
