package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/models"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, input *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, f.err
}

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, input *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, f.err
}

func finalizedSession() *models.Session {
	return &models.Session{
		ID:      "abc",
		Phone:   "11987654321",
		Name:    "João",
		Address: "Rua A, 1",
		Status:  models.StatusFinalized,
		Items: []models.OrderLineItem{
			{ProductID: "001", Name: "Big Mac", Quantity: 2, UnitPrice: 15, RemovedIngredients: []string{"Cebola"}},
			{ProductID: "002", Name: "Coca-Cola 350ml", Quantity: 1, UnitPrice: 5},
		},
	}
}

func notifierConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.SMS.Enabled = true
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "pedidos@example.com"
	cfg.Email.KitchenEmail = "cozinha@example.com"
	return cfg
}

func TestOrderFinalizedSendsBothChannels(t *testing.T) {
	sms := &fakeSNS{}
	email := &fakeSES{}
	n := NewWithClients(notifierConfig(), sms, email, logger.NewTestLogger(t))

	n.OrderFinalized(context.Background(), finalizedSession())

	require.Len(t, sms.inputs, 1)
	assert.Equal(t, "+5511987654321", *sms.inputs[0].PhoneNumber)
	assert.Contains(t, *sms.inputs[0].Message, "R$ 35.00")
	assert.Contains(t, *sms.inputs[0].Message, "Rua A, 1")

	require.Len(t, email.inputs, 1)
	assert.Equal(t, "cozinha@example.com", email.inputs[0].Destination.ToAddresses[0])
	body := *email.inputs[0].Message.Body.Text.Data
	assert.Contains(t, body, "2x Big Mac (sem Cebola)")
	assert.Contains(t, body, "Total: R$ 35.00")
}

// A failed channel logs and returns; it never panics or blocks the
// other channel.
func TestOrderFinalizedSwallowsFailures(t *testing.T) {
	sms := &fakeSNS{err: errors.New("throttled")}
	email := &fakeSES{}
	n := NewWithClients(notifierConfig(), sms, email, logger.NewTestLogger(t))

	n.OrderFinalized(context.Background(), finalizedSession())

	assert.Len(t, sms.inputs, 1)
	assert.Len(t, email.inputs, 1)
}

func TestOrderFinalizedSkipsMissingTargets(t *testing.T) {
	sms := &fakeSNS{}
	email := &fakeSES{}

	cfg := notifierConfig()
	cfg.Email.KitchenEmail = ""
	n := NewWithClients(cfg, sms, email, logger.NewTestLogger(t))

	sess := finalizedSession()
	sess.Phone = ""
	n.OrderFinalized(context.Background(), sess)

	assert.Empty(t, sms.inputs)
	assert.Empty(t, email.inputs)
}
