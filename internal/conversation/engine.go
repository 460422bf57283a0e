// Package conversation drives the order dialog as a finite state
// machine over persisted sessions. Every transition writes its fields
// and the new status through the store's atomic update.
package conversation

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderbyvoice/internal/catalog"
	"orderbyvoice/internal/common/config"
	"orderbyvoice/internal/common/errors"
	"orderbyvoice/internal/common/logger"
	"orderbyvoice/internal/common/metrics"
	"orderbyvoice/internal/common/observability"
	"orderbyvoice/internal/extract"
	"orderbyvoice/internal/models"
	"orderbyvoice/internal/orderparse"
	"orderbyvoice/internal/store"
)

// Response texts of the dialog. The customer hears these verbatim.
const (
	msgWelcome            = "Bem-vindo ao OrderByVoice! Por favor, informe seu nome e número de telefone."
	msgWelcomeAskName     = "Bem-vindo ao OrderByVoice! Qual é o seu nome?"
	msgAskPhone           = "Por favor, informe seu número de telefone para começarmos."
	msgAskName            = "Por favor, diga seu nome para continuar."
	msgAskAddress         = "Agora, informe seu endereço completo."
	msgAddressRetry       = "Desculpe, não consegui entender seu endereço. Pode repetir?"
	msgAddressConfirmed   = "Endereço confirmado! Agora, qual é o seu pedido?"
	msgOrderRetry         = "Não consegui identificar os itens do seu pedido. Pode repetir, por favor?"
	msgConfirmOrAdd       = "Você deseja confirmar o pedido ou adicionar mais itens?"
	msgOrderFinalized     = "Pedido confirmado com sucesso! Obrigado por usar nossos serviços."
	msgOrderCancelled     = "Pedido cancelado. Obrigado por usar nossos serviços."
	msgSessionClosed      = "Este pedido já foi encerrado. Para fazer um novo pedido, inicie outra conversa."
	msgCouldNotUnderstand = "Desculpe, não consegui entender. Pode repetir por favor?"
)

// InfoExtractor pulls customer fields out of an utterance. The context
// bounds implementations that call out of process.
type InfoExtractor interface {
	Extract(ctx context.Context, utterance string) (extract.Info, error)
}

// RegexExtractor adapts the in-process extractor to InfoExtractor.
type RegexExtractor struct {
	inner *extract.Extractor
}

func NewRegexExtractor(e *extract.Extractor) *RegexExtractor {
	return &RegexExtractor{inner: e}
}

func (r *RegexExtractor) Extract(_ context.Context, utterance string) (extract.Info, error) {
	return r.inner.Extract(utterance), nil
}

// Catalog supplies the snapshot the parser matches against.
type Catalog interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// TurnInput is one customer utterance plus optional session addressing.
// ChatID, when set, pins the turn to an existing session.
type TurnInput struct {
	ChatID    string
	Utterance string
}

// OrderSummary is the quoted order attached to confirmation responses.
type OrderSummary struct {
	Items []models.OrderLineItem `json:"itens"`
	Total float64                `json:"total"`
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	SessionID string        `json:"chat_id"`
	Response  string        `json:"message"`
	Status    models.Status `json:"status"`
	Summary   *OrderSummary `json:"pedido,omitempty"`
}

// Engine is the conversation state machine. Turns for the same session
// key are serialized; distinct keys run in parallel.
type Engine struct {
	sessions  store.SessionStore
	customers store.CustomerStore
	catalog   Catalog
	extractor InfoExtractor
	cfg       config.ConversationConfig
	obs       *observability.Observability
	log       logger.Logger

	locks sync.Map // session key → *sync.Mutex

	mu       sync.Mutex
	snapshot *catalog.Snapshot
	parser   *orderparse.Parser
}

func NewEngine(sessions store.SessionStore, customers store.CustomerStore, cat Catalog, extractor InfoExtractor, cfg config.ConversationConfig, obs *observability.Observability, log logger.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		customers: customers,
		catalog:   cat,
		extractor: extractor,
		cfg:       cfg,
		obs:       obs,
		log:       log,
	}
}

// ProcessTurn runs one utterance through the state machine and returns
// the response to speak back. Conversational misses (nothing extracted,
// no products recognized) come back as re-prompt responses, never as
// errors; only infrastructure failures return a non-nil error.
func (e *Engine) ProcessTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	start := time.Now()
	result, err := e.processTurn(ctx, input)
	elapsed := time.Since(start)

	if err != nil {
		code := "unknown"
		var se *errors.StandardError
		if stderrors.As(err, &se) {
			code = string(se.Code)
		}
		metrics.TurnFailures.WithLabelValues(code).Inc()
		return nil, err
	}

	status := string(result.Status)
	metrics.TurnsProcessed.WithLabelValues(status).Inc()
	metrics.TurnDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	if e.obs != nil {
		e.obs.RecordTurnProcessed(ctx, status)
		e.obs.RecordTurnDuration(ctx, elapsed, status)
	}
	return result, nil
}

func (e *Engine) processTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	utterance := strings.TrimSpace(input.Utterance)
	if utterance == "" {
		e.log.Warn("empty utterance", map[string]interface{}{"chatId": input.ChatID})
		return &TurnResult{SessionID: input.ChatID, Response: msgCouldNotUnderstand}, nil
	}

	info, err := e.extractor.Extract(ctx, utterance)
	if err != nil {
		// Extraction problems degrade to "nothing extracted"; the
		// dialog re-prompts instead of failing the turn.
		e.log.WithError(err).Warn("extraction failed, continuing without fields", map[string]interface{}{
			"chatId": input.ChatID,
		})
		info = extract.Info{}
	}

	key := input.ChatID
	if key == "" {
		key = info.Phone
	}
	if key != "" {
		unlock := e.lock(key)
		defer unlock()
	}

	sess, created, err := e.resolveSession(ctx, input.ChatID, info)
	if err != nil {
		return nil, err
	}
	if created {
		if info.Phone != "" {
			return &TurnResult{SessionID: sess.ID, Response: msgWelcomeAskName, Status: sess.Status}, nil
		}
		return &TurnResult{SessionID: sess.ID, Response: msgWelcome, Status: sess.Status}, nil
	}

	if sess.Status.IsTerminal() {
		return &TurnResult{SessionID: sess.ID, Response: msgSessionClosed, Status: sess.Status}, nil
	}

	if e.wantsCancel(utterance) {
		return e.cancel(ctx, sess)
	}

	switch sess.Status {
	case models.StatusStarted:
		return e.handleStarted(ctx, sess, info)
	case models.StatusAwaitingAddress:
		return e.handleAwaitingAddress(ctx, sess, info)
	case models.StatusInProgress:
		return e.handleInProgress(ctx, sess, utterance)
	case models.StatusAwaitingConfirmation:
		return e.handleAwaitingConfirmation(ctx, sess, utterance)
	}
	return nil, errors.NewInvalidTransitionError(sess.ID, string(sess.Status))
}

// resolveSession finds or creates the session for this turn. The bool
// is true when a session was created, in which case the caller answers
// with the welcome prompt and processes nothing else.
func (e *Engine) resolveSession(ctx context.Context, chatID string, info extract.Info) (*models.Session, bool, error) {
	if chatID != "" {
		sess, err := e.sessions.GetByID(ctx, chatID)
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, false, errors.NewSessionNotFoundError(chatID)
		}
		if err != nil {
			return nil, false, errors.NewStoreUnavailableError(err)
		}
		return sess, false, nil
	}

	if info.Phone != "" {
		sess, err := e.sessions.GetLatestActiveByPhone(ctx, info.Phone)
		if err == nil {
			return sess, false, nil
		}
		if !stderrors.Is(err, store.ErrNotFound) {
			return nil, false, errors.NewStoreUnavailableError(err)
		}
	}

	// Nothing to resume; the turn opens a fresh session. Without a phone
	// the session is reachable only through the returned chat id.
	sess, err := e.createSession(ctx, info.Phone)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (e *Engine) createSession(ctx context.Context, phone string) (*models.Session, error) {
	now := time.Now().UTC()
	sess := &models.Session{
		ID:        uuid.New().String(),
		Phone:     phone,
		Status:    models.StatusStarted,
		Items:     []models.OrderLineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	sess.ChatID = sess.ID
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, errors.NewStoreUnavailableError(err)
	}
	e.log.Info("session created", map[string]interface{}{
		"sessionId": sess.ID,
		"phone":     phone,
	})
	return sess, nil
}

func (e *Engine) handleStarted(ctx context.Context, sess *models.Session, info extract.Info) (*TurnResult, error) {
	update := store.SessionUpdate{}
	if sess.Phone == "" {
		if info.Phone == "" {
			return &TurnResult{SessionID: sess.ID, Response: msgAskPhone, Status: sess.Status}, nil
		}
		update.Phone = &info.Phone
		sess.Phone = info.Phone
	}
	if info.Name == "" {
		if update.Phone != nil {
			if err := e.apply(ctx, sess, update); err != nil {
				return nil, err
			}
		}
		return &TurnResult{SessionID: sess.ID, Response: msgAskName, Status: sess.Status}, nil
	}

	next := models.StatusAwaitingAddress
	update.Name = &info.Name
	update.Status = &next
	if err := e.apply(ctx, sess, update); err != nil {
		return nil, err
	}
	sess.Name = info.Name
	sess.Status = next
	return &TurnResult{
		SessionID: sess.ID,
		Response:  fmt.Sprintf("Obrigado, %s. %s", info.Name, msgAskAddress),
		Status:    next,
	}, nil
}

func (e *Engine) handleAwaitingAddress(ctx context.Context, sess *models.Session, info extract.Info) (*TurnResult, error) {
	if info.Address == "" {
		return &TurnResult{SessionID: sess.ID, Response: msgAddressRetry, Status: sess.Status}, nil
	}
	next := models.StatusInProgress
	if err := e.apply(ctx, sess, store.SessionUpdate{Address: &info.Address, Status: &next}); err != nil {
		return nil, err
	}
	sess.Address = info.Address
	sess.Status = next
	return &TurnResult{SessionID: sess.ID, Response: msgAddressConfirmed, Status: next}, nil
}

func (e *Engine) handleInProgress(ctx context.Context, sess *models.Session, utterance string) (*TurnResult, error) {
	parser, err := e.parserFor(ctx)
	if err != nil {
		return nil, err
	}
	items := parser.Parse(utterance)
	if len(items) == 0 {
		metrics.ParserEmptyResults.Inc()
		return &TurnResult{SessionID: sess.ID, Response: msgOrderRetry, Status: sess.Status}, nil
	}

	sess.MergeItems(items)
	next := models.StatusAwaitingConfirmation
	if err := e.apply(ctx, sess, store.SessionUpdate{Items: &sess.Items, Status: &next}); err != nil {
		return nil, err
	}
	sess.Status = next
	return e.quote(sess), nil
}

func (e *Engine) handleAwaitingConfirmation(ctx context.Context, sess *models.Session, utterance string) (*TurnResult, error) {
	if e.wantsConfirm(utterance) {
		return e.finalize(ctx, sess)
	}

	// The customer may still add items; anything parseable merges into
	// the order and the quote is repeated.
	parser, err := e.parserFor(ctx)
	if err != nil {
		return nil, err
	}
	items := parser.Parse(utterance)
	if len(items) == 0 {
		return &TurnResult{SessionID: sess.ID, Response: msgConfirmOrAdd, Status: sess.Status}, nil
	}

	sess.MergeItems(items)
	if err := e.apply(ctx, sess, store.SessionUpdate{Items: &sess.Items}); err != nil {
		return nil, err
	}
	return e.quote(sess), nil
}

func (e *Engine) finalize(ctx context.Context, sess *models.Session) (*TurnResult, error) {
	next := models.StatusFinalized
	if err := e.apply(ctx, sess, store.SessionUpdate{Status: &next}); err != nil {
		return nil, err
	}
	sess.Status = next

	total := sess.Total()
	metrics.OrdersFinalized.Inc()
	metrics.OrderTotals.Observe(total)

	if e.customers != nil && sess.Phone != "" {
		customer := &models.Customer{Name: sess.Name, Phone: sess.Phone, Address: sess.Address}
		if err := e.customers.Upsert(ctx, customer); err != nil {
			e.log.WithError(err).Error("customer upsert failed", map[string]interface{}{
				"sessionId": sess.ID,
				"phone":     sess.Phone,
			})
		}
	}

	e.log.Info("order finalized", map[string]interface{}{
		"sessionId": sess.ID,
		"itemCount": len(sess.Items),
		"total":     total,
	})
	return &TurnResult{
		SessionID: sess.ID,
		Response:  msgOrderFinalized,
		Status:    next,
		Summary:   &OrderSummary{Items: sess.Items, Total: total},
	}, nil
}

func (e *Engine) cancel(ctx context.Context, sess *models.Session) (*TurnResult, error) {
	next := models.StatusCancelled
	if err := e.apply(ctx, sess, store.SessionUpdate{Status: &next}); err != nil {
		return nil, err
	}
	sess.Status = next
	e.log.Info("order cancelled", map[string]interface{}{"sessionId": sess.ID})
	return &TurnResult{SessionID: sess.ID, Response: msgOrderCancelled, Status: next}, nil
}

// apply writes one transition. A concurrent finalize or cancel that won
// the race surfaces as ErrTerminal and is reported as an invalid
// transition.
func (e *Engine) apply(ctx context.Context, sess *models.Session, update store.SessionUpdate) error {
	err := e.sessions.UpdateByID(ctx, sess.ID, update)
	if stderrors.Is(err, store.ErrTerminal) {
		return errors.NewInvalidTransitionError(sess.ID, string(sess.Status))
	}
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewSessionNotFoundError(sess.ID)
	}
	if err != nil {
		return errors.NewStoreUnavailableError(err)
	}
	return nil
}

func (e *Engine) quote(sess *models.Session) *TurnResult {
	parts := make([]string, 0, len(sess.Items))
	for i := range sess.Items {
		item := &sess.Items[i]
		part := fmt.Sprintf("%d %s", item.Quantity, item.Name)
		if len(item.RemovedIngredients) > 0 {
			part += " sem " + strings.Join(item.RemovedIngredients, ", ")
		}
		parts = append(parts, part)
	}
	total := sess.Total()
	return &TurnResult{
		SessionID: sess.ID,
		Response: fmt.Sprintf("Confirmando seu pedido: %s. Total: R$ %.2f. Deseja confirmar ou fazer alterações?",
			strings.Join(parts, ", "), total),
		Status:  sess.Status,
		Summary: &OrderSummary{Items: sess.Items, Total: total},
	}
}

// parserFor returns a parser built from the current catalog snapshot,
// rebuilding only when the snapshot changed.
func (e *Engine) parserFor(ctx context.Context) (*orderparse.Parser, error) {
	snap, err := e.catalog.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewCatalogUnavailableError(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.parser == nil || e.snapshot != snap {
		e.parser = orderparse.New(snap.Products, snap.Aliases, orderparse.Config{
			RemovalTriggers: e.cfg.RemovalTriggers,
		})
		e.snapshot = snap
	}
	return e.parser, nil
}

func (e *Engine) wantsConfirm(utterance string) bool {
	keywords := e.cfg.ConfirmationKeywords
	if len(keywords) == 0 {
		keywords = []string{"confirmar"}
	}
	return containsAny(utterance, keywords)
}

func (e *Engine) wantsCancel(utterance string) bool {
	keywords := e.cfg.CancellationKeywords
	if len(keywords) == 0 {
		keywords = []string{"cancelar", "desistir"}
	}
	return containsAny(utterance, keywords)
}

func containsAny(utterance string, keywords []string) bool {
	lowered := strings.ToLower(utterance)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (e *Engine) lock(key string) func() {
	m, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
