// internal/notify/dispatcher.go
package notify

import (
	"bytes"
	"context"
	"text/template"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/models"
	"poultry-review/pkg/registry"
)

// Dispatcher renders notification requests against the template registry and
// delivers them over the enabled channels. Delivery failures are logged and
// counted but never propagated: the workflow state that triggered the
// notification has already committed.
type Dispatcher struct {
	registry     *registry.TemplateRegistry
	email        EmailSender
	sms          SMSSender
	emailEnabled bool
	smsEnabled   bool
	logger       logger.Logger
}

type DispatcherOptions struct {
	Registry     *registry.TemplateRegistry
	Email        EmailSender
	SMS          SMSSender
	EmailEnabled bool
	SMSEnabled   bool
	Logger       logger.Logger
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		registry:     opts.Registry,
		email:        opts.Email,
		sms:          opts.SMS,
		emailEnabled: opts.EmailEnabled && opts.Email != nil,
		smsEnabled:   opts.SMSEnabled && opts.SMS != nil,
		logger:       opts.Logger.WithFields(map[string]interface{}{"component": "notification-dispatcher"}),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *models.NotificationRequest) {
	tmpl := d.registry.Lookup(string(req.TemplateKind))
	if tmpl == nil {
		d.logger.Error("no template registered for notification", map[string]interface{}{
			"templateKind":  req.TemplateKind,
			"applicationId": req.ApplicationID,
		})
		metrics.NotificationsDispatched.WithLabelValues(string(req.TemplateKind), "no_template").Inc()
		return
	}

	data := d.templateData(req)

	if d.emailEnabled && tmpl.HasChannel("email") && req.Recipient.Email != "" {
		d.deliver(ctx, req, "email", func() error {
			subject, err := render(tmpl.ID+":subject", tmpl.Subject, data)
			if err != nil {
				return err
			}
			body, err := render(tmpl.ID+":email", tmpl.EmailBody, data)
			if err != nil {
				return err
			}
			return d.email.SendEmail(ctx, req.Recipient.Email, subject, body)
		})
	}

	if d.smsEnabled && tmpl.HasChannel("sms") && req.Recipient.Phone != "" {
		d.deliver(ctx, req, "sms", func() error {
			body, err := render(tmpl.ID+":sms", tmpl.SMSBody, data)
			if err != nil {
				return err
			}
			return d.sms.SendSMS(ctx, req.Recipient.Phone, body)
		})
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req *models.NotificationRequest, channel string, send func() error) {
	if err := send(); err != nil {
		sendErr := apperrors.NewNotificationSendFailedError(string(req.TemplateKind), err)
		d.logger.WithError(sendErr).Error("notification delivery failed", map[string]interface{}{
			"channel":       channel,
			"templateKind":  req.TemplateKind,
			"applicationId": req.ApplicationID,
			"recipientId":   req.Recipient.ID,
		})
		metrics.NotificationsDispatched.WithLabelValues(string(req.TemplateKind), "failed").Inc()
		return
	}

	d.logger.Info("notification delivered", map[string]interface{}{
		"channel":       channel,
		"templateKind":  req.TemplateKind,
		"applicationId": req.ApplicationID,
	})
	metrics.NotificationsDispatched.WithLabelValues(string(req.TemplateKind), "sent").Inc()
}

// templateData flattens the request into the map the template bodies render
// against. Context keys win over the built-ins on collision.
func (d *Dispatcher) templateData(req *models.NotificationRequest) map[string]interface{} {
	data := map[string]interface{}{
		"applicationId": req.ApplicationID,
		"reviewLevel":   string(req.Level),
		"recipientId":   req.Recipient.ID,
	}
	for k, v := range req.Context {
		data[k] = v
	}
	return data
}

func render(name, text string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
