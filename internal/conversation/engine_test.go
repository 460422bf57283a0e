package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbyvoice/internal/catalog"
	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/errors"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/extract"
	"orderbyvoice/internal/models"
	"orderbyvoice/internal/store"
)

const testPhone = "11987654321"

func newTestEngine(t *testing.T) (*Engine, *store.MemorySessionStore, *store.MemoryCustomerStore) {
	sessions := store.NewMemorySessionStore()
	customers := store.NewMemoryCustomerStore()
	demo := catalog.DemoCatalog()

	engine := NewEngine(
		sessions,
		customers,
		catalog.NewDirect(demo, demo, logger.NewNoOpLogger()),
		NewRegexExtractor(extract.New(extract.Config{})),
		config.ConversationConfig{},
		nil,
		logger.NewTestLogger(t),
	)
	return engine, sessions, customers
}

// advance runs one turn pinned to the session and fails the test on
// infrastructure errors.
func advance(t *testing.T, e *Engine, chatID, utterance string) *TurnResult {
	t.Helper()
	result, err := e.ProcessTurn(context.Background(), TurnInput{ChatID: chatID, Utterance: utterance})
	require.NoError(t, err)
	return result
}

func TestFullOrderFlow(t *testing.T) {
	engine, sessions, customers := newTestEngine(t)
	ctx := context.Background()

	// First contact: phone creates the session and asks for the name.
	result, err := engine.ProcessTurn(ctx, TurnInput{Utterance: "olá, meu telefone é " + testPhone})
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Equal(t, models.StatusStarted, result.Status)
	assert.Contains(t, result.Response, "Qual é o seu nome?")

	chatID := result.SessionID

	result = advance(t, engine, chatID, "meu nome é joão")
	assert.Equal(t, models.StatusAwaitingAddress, result.Status)
	assert.Equal(t, "Obrigado, João. Agora, informe seu endereço completo.", result.Response)

	result = advance(t, engine, chatID, "meu endereço é rua das flores, 123")
	assert.Equal(t, models.StatusInProgress, result.Status)
	assert.Equal(t, "Endereço confirmado! Agora, qual é o seu pedido?", result.Response)

	result = advance(t, engine, chatID, "quero 2 hamburguer sem cebola e 1 coca")
	assert.Equal(t, models.StatusAwaitingConfirmation, result.Status)
	require.NotNil(t, result.Summary)
	assert.InDelta(t, 35.00, result.Summary.Total, 0.001)
	assert.Contains(t, result.Response, "Confirmando seu pedido: 2 Big Mac sem Cebola, 1 Coca-Cola 350ml")
	assert.Contains(t, result.Response, "Total: R$ 35.00")

	result = advance(t, engine, chatID, "confirmar")
	assert.Equal(t, models.StatusFinalized, result.Status)
	assert.Equal(t, "Pedido confirmado com sucesso! Obrigado por usar nossos serviços.", result.Response)
	require.NotNil(t, result.Summary)
	assert.InDelta(t, 35.00, result.Summary.Total, 0.001)

	// Finalized data stays retrievable outside the dialog.
	sess, err := sessions.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, sess.Status)
	assert.Equal(t, "João", sess.Name)
	assert.Equal(t, "Rua das flores, 123", sess.Address)
	require.Len(t, sess.Items, 2)
	assert.Equal(t, []string{"Cebola"}, sess.Items[0].RemovedIngredients)

	// The customer record was upserted on finalize.
	customer, ok := customers.Get(testPhone)
	require.True(t, ok)
	assert.Equal(t, "João", customer.Name)
}

func TestTurnWithoutPhoneOpensSession(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProcessTurn(ctx, TurnInput{Utterance: "olá, bom dia"})
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Equal(t, msgWelcome, result.Response)
	assert.Equal(t, models.StatusStarted, result.Status)

	sess, err := sessions.GetByID(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.Phone)

	// The phone arrives on a later turn addressed by the chat id.
	result = advance(t, engine, result.SessionID, "meu telefone é "+testPhone)
	assert.Equal(t, msgAskName, result.Response)

	sess, err = sessions.GetByID(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, testPhone, sess.Phone)
}

func TestEmptyUtteranceReprompts(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	result, err := engine.ProcessTurn(context.Background(), TurnInput{Utterance: "   "})
	require.NoError(t, err)
	assert.Equal(t, msgCouldNotUnderstand, result.Response)
}

func TestUnknownChatIDFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.ProcessTurn(context.Background(), TurnInput{ChatID: "nope", Utterance: "oi"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSessionNotFound))
}

// A session waiting on an address must stay put until one is heard.
func TestAwaitingAddressIsStable(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.ProcessTurn(ctx, TurnInput{Utterance: testPhone})
	require.NoError(t, err)
	chatID := result.SessionID
	advance(t, engine, chatID, "me chamo Maria")

	for i := 0; i < 3; i++ {
		result = advance(t, engine, chatID, "hã? não entendi nada")
		assert.Equal(t, msgAddressRetry, result.Response)
	}

	sess, err := sessions.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAddress, sess.Status)
}

func TestUnrecognizedOrderReprompts(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	chatID := startInProgress(t, engine)
	result := advance(t, engine, chatID, "quero um sorvete de chocolate")
	assert.Equal(t, msgOrderRetry, result.Response)
	assert.Equal(t, models.StatusInProgress, result.Status)
}

// awaiting_confirmation accepts more items, merges them and re-quotes.
func TestAddItemsWhileAwaitingConfirmation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	chatID := startInProgress(t, engine)
	result := advance(t, engine, chatID, "quero 1 hamburguer")
	assert.Equal(t, models.StatusAwaitingConfirmation, result.Status)

	result = advance(t, engine, chatID, "quero mais 1 hamburguer e 1 pizza")
	assert.Equal(t, models.StatusAwaitingConfirmation, result.Status)
	require.NotNil(t, result.Summary)
	require.Len(t, result.Summary.Items, 2)
	assert.Equal(t, 2, result.Summary.Items[0].Quantity)
	assert.InDelta(t, 55.00, result.Summary.Total, 0.001)
}

func TestConfirmationPromptRepeats(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	chatID := startInProgress(t, engine)
	advance(t, engine, chatID, "1 pizza")

	result := advance(t, engine, chatID, "hmm deixa eu pensar")
	assert.Equal(t, msgConfirmOrAdd, result.Response)
	assert.Equal(t, models.StatusAwaitingConfirmation, result.Status)
}

func TestCancellationFromAnyState(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)
	ctx := context.Background()

	states := []struct {
		name  string
		setup func(t *testing.T, e *Engine) string
	}{
		{
			name: "started",
			setup: func(t *testing.T, e *Engine) string {
				result, err := e.ProcessTurn(ctx, TurnInput{Utterance: testPhone})
				require.NoError(t, err)
				return result.SessionID
			},
		},
		{
			name: "in progress",
			setup: func(t *testing.T, e *Engine) string {
				return startInProgress(t, e)
			},
		},
		{
			name: "awaiting confirmation",
			setup: func(t *testing.T, e *Engine) string {
				id := startInProgress(t, e)
				advance(t, e, id, "1 pizza")
				return id
			},
		},
	}

	for _, tt := range states {
		t.Run(tt.name, func(t *testing.T) {
			chatID := tt.setup(t, engine)
			result := advance(t, engine, chatID, "quero cancelar tudo")
			assert.Equal(t, models.StatusCancelled, result.Status)
			assert.Equal(t, msgOrderCancelled, result.Response)

			sess, err := sessions.GetByID(ctx, chatID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, sess.Status)
		})
	}
}

// Terminal sessions answer with the closed message and never mutate.
func TestTerminalSessionIsLocked(t *testing.T) {
	engine, sessions, _ := newTestEngine(t)
	ctx := context.Background()

	chatID := startInProgress(t, engine)
	advance(t, engine, chatID, "1 pizza")
	advance(t, engine, chatID, "confirmar")

	before, err := sessions.GetByID(ctx, chatID)
	require.NoError(t, err)

	result := advance(t, engine, chatID, "quero mais 1 pizza")
	assert.Equal(t, msgSessionClosed, result.Response)
	assert.Equal(t, models.StatusFinalized, result.Status)

	after, err := sessions.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

// A finalized order keeps its quoted total even if the catalog price
// changes afterwards.
func TestFinalizedTotalImmuneToPriceChanges(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	customers := store.NewMemoryCustomerStore()

	products := []models.Product{{ID: "004", Name: "Pizza", Price: 25.00}}
	static := catalog.NewStaticCatalog(products, nil)
	direct := catalog.NewDirect(static, static, logger.NewNoOpLogger())

	engine := NewEngine(sessions, customers, direct, NewRegexExtractor(extract.New(extract.Config{})),
		config.ConversationConfig{}, nil, logger.NewTestLogger(t))

	chatID := startInProgress(t, engine)
	result := advance(t, engine, chatID, "2 pizza")
	assert.InDelta(t, 50.00, result.Summary.Total, 0.001)

	// Reprice and force the engine onto a fresh snapshot.
	repriced := catalog.NewStaticCatalog([]models.Product{{ID: "004", Name: "Pizza", Price: 99.00}}, nil)
	fresh := catalog.NewDirect(repriced, repriced, logger.NewNoOpLogger())
	engine.catalog = fresh

	result = advance(t, engine, chatID, "confirmar")
	assert.InDelta(t, 50.00, result.Summary.Total, 0.001)
}

// Sessions for different phones never interfere.
func TestSessionsAreIndependent(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.ProcessTurn(ctx, TurnInput{Utterance: "meu telefone é 11911111111"})
	require.NoError(t, err)
	second, err := engine.ProcessTurn(ctx, TurnInput{Utterance: "meu telefone é 11922222222"})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestResumeByPhone(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.ProcessTurn(ctx, TurnInput{Utterance: "meu telefone é " + testPhone})
	require.NoError(t, err)

	// A later turn carrying the same phone lands on the open session.
	resumed, err := engine.ProcessTurn(ctx, TurnInput{
		Utterance: fmt.Sprintf("sou a ana, telefone %s", testPhone),
	})
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, resumed.SessionID)
	assert.Equal(t, models.StatusAwaitingAddress, resumed.Status)
}

// startInProgress walks a fresh session to em_progresso.
func startInProgress(t *testing.T, e *Engine) string {
	t.Helper()
	result, err := e.ProcessTurn(context.Background(), TurnInput{Utterance: "meu telefone é " + testPhone})
	require.NoError(t, err)
	chatID := result.SessionID
	advance(t, e, chatID, "me chamo Maria")
	advance(t, e, chatID, "moro na rua a, 10")
	return chatID
}
