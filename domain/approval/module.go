package approval

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/domain/incidents"
	"github.com/incidentwire/incidentwire/internal/config"
)

var Module = fx.Module("approval",
	fx.Provide(func(cfg *config.Config, repo *incidents.Repository, log *slog.Logger) *Decider {
		dc := DefaultConfig()
		dc.AutoApproveEnabled = cfg.Approval.AutoApproveEnabled
		dc.AutoRejectEnabled = cfg.Approval.AutoRejectEnabled
		if cfg.Approval.AutoRejectBelow > 0 {
			dc.AutoRejectBelow = cfg.Approval.AutoRejectBelow
		}
		return NewDecider(dc, repo, log)
	}),
)
