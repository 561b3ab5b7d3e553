package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	reg = append(reg, func() APIHandler { return &metricsApi{} })
}

type metricsApi struct{}

func (m *metricsApi) Setup(a *Api, r *mux.Router) error {
	r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return nil
}
