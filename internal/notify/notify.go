// Package notify sends order-confirmed notifications: an SMS to the
// customer over SNS and an email to the kitchen over SES. Notification
// failures are logged and swallowed; the finalized order is already
// persisted and must not be affected.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/models"
)

type smsAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type emailAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Notifier fans one finalized order out to the configured channels.
type Notifier struct {
	cfg   config.NotificationConfig
	sms   smsAPI
	email emailAPI
	log   logger.Logger
}

// New builds a Notifier with real AWS clients. Channels left disabled in
// the config are skipped entirely.
func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{cfg: cfg, log: log}
	if !cfg.SMS.Enabled && !cfg.Email.Enabled {
		return n, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.SMS.Enabled {
		n.sms = sns.NewFromConfig(awsCfg)
	}
	if cfg.Email.Enabled {
		n.email = ses.NewFromConfig(awsCfg)
	}
	return n, nil
}

// NewWithClients wires explicit clients, used by tests.
func NewWithClients(cfg config.NotificationConfig, sms smsAPI, email emailAPI, log logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, sms: sms, email: email, log: log}
}

// OrderFinalized sends the confirmation SMS and the kitchen email.
// Each channel fails independently; neither failure propagates.
func (n *Notifier) OrderFinalized(ctx context.Context, sess *models.Session) {
	if n.sms != nil && sess.Phone != "" {
		n.sendSMS(ctx, sess)
	}
	if n.email != nil && n.cfg.Email.KitchenEmail != "" {
		n.sendKitchenEmail(ctx, sess)
	}
}

func (n *Notifier) sendSMS(ctx context.Context, sess *models.Session) {
	message := fmt.Sprintf("Pedido confirmado! Total: R$ %.2f. Entrega em: %s. Obrigado, %s!",
		sess.Total(), sess.Address, sess.Name)

	input := &sns.PublishInput{
		Message:     aws.String(message),
		PhoneNumber: aws.String("+55" + sess.Phone),
	}
	if n.cfg.SMS.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.cfg.SMS.SenderID),
			},
		}
	}

	if _, err := n.sms.Publish(ctx, input); err != nil {
		n.log.WithError(err).Error("order sms failed", map[string]interface{}{
			"sessionId": sess.ID,
		})
		return
	}
	n.log.Info("order sms sent", map[string]interface{}{"sessionId": sess.ID})
}

func (n *Notifier) sendKitchenEmail(ctx context.Context, sess *models.Session) {
	input := &ses.SendEmailInput{
		Source: aws.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.Email.KitchenEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data: aws.String(fmt.Sprintf("Novo pedido %s", sess.ID)),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data: aws.String(kitchenBody(sess)),
				},
			},
		},
	}

	if _, err := n.email.SendEmail(ctx, input); err != nil {
		n.log.WithError(err).Error("kitchen email failed", map[string]interface{}{
			"sessionId": sess.ID,
		})
		return
	}
	n.log.Info("kitchen email sent", map[string]interface{}{"sessionId": sess.ID})
}

func kitchenBody(sess *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s\nTelefone: %s\nEndereço: %s\n\nItens:\n", sess.Name, sess.Phone, sess.Address)
	for i := range sess.Items {
		item := &sess.Items[i]
		fmt.Fprintf(&b, "- %dx %s", item.Quantity, item.Name)
		if len(item.RemovedIngredients) > 0 {
			fmt.Fprintf(&b, " (sem %s)", strings.Join(item.RemovedIngredients, ", "))
		}
		fmt.Fprintf(&b, " - R$ %.2f\n", item.Subtotal())
	}
	fmt.Fprintf(&b, "\nTotal: R$ %.2f\n", sess.Total())
	return b.String()
}
