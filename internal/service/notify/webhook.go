package notify

import (
	"context"
	"time"

	"CollarPulse/internal/domain/models"
	pkghttp "CollarPulse/pkg/http"
	applogger "CollarPulse/pkg/logger"
)

// Notifier delivers optimization outcomes to interested parties.
type Notifier interface {
	OptimizationFinished(ctx context.Context, report *models.OptimizationReport)
}

// WebhookNotifier POSTs optimization reports to a configured webhook URL.
// Delivery is best effort; a failed webhook never fails the run.
type WebhookNotifier struct {
	url    string
	client *pkghttp.Client
	l      *applogger.Logger
}

func NewWebhookNotifier(url string, l *applogger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: pkghttp.NewClient(pkghttp.WithTimeout(10 * time.Second)),
		l:      l,
	}
}

func (n *WebhookNotifier) OptimizationFinished(ctx context.Context, report *models.OptimizationReport) {
	if n.url == "" || report == nil {
		return
	}
	err := n.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    n.url,
		Body:   report,
	}, nil)
	if err != nil {
		if n.l != nil {
			n.l.Warn("optimization webhook failed",
				applogger.String("url", n.url),
				applogger.Error(err),
			)
		}
		return
	}
	if n.l != nil {
		n.l.Info("optimization webhook delivered",
			applogger.Int("behaviors", len(report.Behaviors)),
		)
	}
}

// NopNotifier discards reports. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) OptimizationFinished(context.Context, *models.OptimizationReport) {}
