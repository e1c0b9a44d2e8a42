package handlers

import (
	"github.com/openwatch/netmon-server/internal/dcc"
)

type Handler struct {
	core *dcc.Core
}

func New(core *dcc.Core) *Handler {
	return &Handler{core: core}
}
