package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/response"
)

// GatewayHandler lists the registered gateways
type GatewayHandler struct {
	registry *gateway.Registry
}

// GatewayDetail describes a gateway together with the configuration it needs
type GatewayDetail struct {
	gateway.Info
	Config []gateway.ConfigField `json:"config"`
}

// NewGatewayHandler creates a new gateway handler; a nil registry uses the default one
func NewGatewayHandler(registry *gateway.Registry) *GatewayHandler {
	if registry == nil {
		registry = gateway.DefaultRegistry
	}
	return &GatewayHandler{registry: registry}
}

// ListGateways returns the info of every registered gateway
func (h *GatewayHandler) ListGateways(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	gateways := make([]gateway.Info, 0, len(names))
	for _, name := range names {
		gw, err := h.registry.New(name)
		if err != nil {
			continue
		}
		gateways = append(gateways, gw.Info())
	}

	response.Success(w, http.StatusOK, "Gateways retrieved", gateways)
}

// GetGateway returns the info and required configuration of one gateway
func (h *GatewayHandler) GetGateway(w http.ResponseWriter, r *http.Request) {
	gw, err := h.registry.New(chi.URLParam(r, "gateway"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown gateway", err)
		return
	}

	response.Success(w, http.StatusOK, "Gateway retrieved", GatewayDetail{
		Info:   gw.Info(),
		Config: gw.GetRequiredConfig(),
	})
}
