package probes

import (
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/models"
	srvErrors "github.com/openwatch/netmon-server/pkg/errors"
	"github.com/openwatch/netmon-server/pkg/scriptenv"
)

// ScriptProbe serves script-sourced items from the embedded script
// environment's library.
type ScriptProbe struct {
	Env scriptenv.Environment
}

// Read runs the named library script. A missing script is not-supported;
// a runtime failure is a collection error for the sample.
func (p *ScriptProbe) Read(name string, bindings map[string]any) (string, models.ProbeResult) {
	result, err := p.Env.RunNamed(name, bindings)
	if err != nil {
		if srvErrors.IsNotFoundError(err) {
			return "", models.ProbeNotSupported
		}
		zap.S().Named("script_probe").Debugw("script metric failed", "script", name, "error", err)
		return "", models.ProbeCollectionError
	}
	return scriptenv.ToString(result), models.ProbeSuccess
}
