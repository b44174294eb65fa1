package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gomerchant/gateway"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/mstgnz/gomerchant/infra/middle"
	"github.com/mstgnz/gomerchant/infra/response"
)

const maskedValue = "********"

// AccountStore manages the per-account gateway credentials
type AccountStore interface {
	SetConfig(account, gatewayName string, config map[string]string) error
	GetConfig(account, gatewayName string) (map[string]string, error)
	DeleteConfig(account, gatewayName string) error
	Gateways(account string) []string
}

// Invalidator drops cached gateway instances of an account
type Invalidator interface {
	Invalidate(account, gatewayName string)
}

// ConfigHandler handles account configuration related HTTP requests
type ConfigHandler struct {
	accounts AccountStore
	registry *gateway.Registry
	cache    Invalidator
}

// NewConfigHandler creates a new config handler; cache may be nil
func NewConfigHandler(accounts AccountStore, registry *gateway.Registry, cache Invalidator) *ConfigHandler {
	if registry == nil {
		registry = gateway.DefaultRegistry
	}
	return &ConfigHandler{
		accounts: accounts,
		registry: registry,
		cache:    cache,
	}
}

// AccountGateways lists the gateways an account has credentials for
type AccountGateways struct {
	Account  string   `json:"account"`
	Gateways []string `json:"gateways"`
}

// GatewayConfig is an account's configuration for one gateway, secrets masked
type GatewayConfig struct {
	Account string            `json:"account"`
	Gateway string            `json:"gateway"`
	Config  map[string]string `json:"config"`
}

// SetConfig validates and stores the credentials of an account for a gateway
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	account, gatewayName := chi.URLParam(r, "account"), chi.URLParam(r, "gateway")

	gw, err := h.registry.New(gatewayName)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown gateway", err)
		return
	}

	var cfg map[string]string
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if cfg["environment"] == "" {
		if cfg == nil {
			cfg = make(map[string]string)
		}
		cfg["environment"] = gateway.EnvSandbox
	}

	if err := gw.ValidateConfig(cfg); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid gateway configuration", err)
		return
	}

	if err := h.accounts.SetConfig(account, gatewayName, cfg); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save configuration", err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(account, gatewayName)
	}

	logger.Info("Account configuration saved", logger.LogContext{
		Account:   account,
		Gateway:   gatewayName,
		RequestID: middle.GetRequestID(r.Context()),
		Fields:    map[string]any{"environment": cfg["environment"]},
	})

	response.Success(w, http.StatusOK, "Configuration saved", GatewayConfig{
		Account: account,
		Gateway: gatewayName,
		Config:  maskSecrets(gw, cfg),
	})
}

// GetConfig returns the stored configuration with secret fields masked
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	account, gatewayName := chi.URLParam(r, "account"), chi.URLParam(r, "gateway")

	gw, err := h.registry.New(gatewayName)
	if err != nil {
		response.Error(w, http.StatusNotFound, "Unknown gateway", err)
		return
	}

	cfg, err := h.accounts.GetConfig(account, gatewayName)
	if err != nil {
		writeConfigError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Configuration retrieved", GatewayConfig{
		Account: account,
		Gateway: gatewayName,
		Config:  maskSecrets(gw, cfg),
	})
}

// DeleteConfig removes the credentials of an account for a gateway
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	account, gatewayName := chi.URLParam(r, "account"), chi.URLParam(r, "gateway")

	if err := h.accounts.DeleteConfig(account, gatewayName); err != nil {
		writeConfigError(w, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(account, gatewayName)
	}

	logger.Info("Account configuration deleted", logger.LogContext{
		Account:   account,
		Gateway:   gatewayName,
		RequestID: middle.GetRequestID(r.Context()),
	})

	response.Success(w, http.StatusOK, "Configuration deleted", nil)
}

// ListAccountGateways lists the gateways configured for an account
func (h *ConfigHandler) ListAccountGateways(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	gateways := h.accounts.Gateways(account)
	if gateways == nil {
		gateways = []string{}
	}

	response.Success(w, http.StatusOK, "Account gateways retrieved", AccountGateways{
		Account:  account,
		Gateways: gateways,
	})
}

func writeConfigError(w http.ResponseWriter, err error) {
	if errors.Is(err, config.ErrConfigNotFound) {
		response.Error(w, http.StatusNotFound, "Configuration not found", err)
		return
	}
	if strings.Contains(err.Error(), "cannot be empty") {
		response.Error(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	response.Error(w, http.StatusInternalServerError, "Failed to access configuration", err)
}

func maskSecrets(gw gateway.Gateway, cfg map[string]string) map[string]string {
	secrets := gateway.SecretKeys(gw.GetRequiredConfig())
	masked := make(map[string]string, len(cfg))
	for k, v := range cfg {
		if secrets[k] && v != "" {
			v = maskedValue
		}
		masked[k] = v
	}
	return masked
}
