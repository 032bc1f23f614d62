package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/rzbill/seglog/internal/runtime"
)

// ControllerRegistry groups the controllers mounted under /v1.
type ControllerRegistry struct {
	general *GeneralController
	log     *LogController
	kv      *KVController
}

// NewControllerRegistry creates all controllers over rt.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		log:     NewLogController(rt),
		kv:      NewKVController(rt),
	}
}

// RegisterAllRoutes mounts every controller on r.
func (c *ControllerRegistry) RegisterAllRoutes(r chi.Router) {
	c.general.RegisterRoutes(r)
	r.Route("/log", c.log.RegisterRoutes)
	r.Route("/kv", c.kv.RegisterRoutes)
}
