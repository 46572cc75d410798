package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/staffbridge/staffbridge/pkg/application"
	"github.com/staffbridge/staffbridge/pkg/httpapi"
)

type healthController struct{}

func newHealthController() application.Controller {
	return &healthController{}
}

func (c *healthController) Key() string {
	return "/health"
}

func (c *healthController) Register(r *mux.Router) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}
