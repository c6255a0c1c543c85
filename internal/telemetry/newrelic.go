package telemetry

import (
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/mci/services/delivery/config"
)

const connectTimeout = 5 * time.Second

// Init builds the New Relic application when telemetry is configured.
// A nil application means telemetry is off; callers must handle that.
func Init(cfg config.NewRelicConfig, log *logrus.Logger) (*newrelic.Application, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		log.Debug("Telemetry disabled")
		return nil, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, err
	}

	if err := app.WaitForConnection(connectTimeout); err != nil {
		return nil, err
	}

	log.WithField("app_name", cfg.AppName).Info("Telemetry connected")
	return app, nil
}
