package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService. Every balance mutation
// runs inside one store transaction that also inserts the idempotency
// record, so a request either commits all of its effects and its replayable
// response or none of them.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	guard      *IdempotencyGuard
	publisher  ports.EventPublisher
	metrics    ports.EngineMetrics
	validate   *validator.Validate
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures optional collaborators of the engine.
type Option func(*WalletServiceImpl)

// WithEventPublisher announces committed operations through p.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *WalletServiceImpl) { s.publisher = p }
}

// WithMetrics reports operation outcomes to m.
func WithMetrics(m ports.EngineMetrics) Option {
	return func(s *WalletServiceImpl) { s.metrics = m }
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	guard *IdempotencyGuard,
	log zerolog.Logger,
	opts ...Option,
) *WalletServiceImpl {
	s := &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		guard:      guard,
		metrics:    nopMetrics{},
		validate:   newValidator(),
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type createWalletInput struct {
	OwnerName string `json:"owner_name" validate:"required,max=255"`
	Currency  string `json:"currency" validate:"required,len=3,alpha"`
}

// CreateWallet opens a wallet with a zero balance.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	input := createWalletInput{
		OwnerName: strings.TrimSpace(req.OwnerName),
		Currency:  strings.TrimSpace(req.Currency),
	}
	if appErr := check(s.validate, input); appErr != nil {
		return nil, appErr
	}

	w := &domain.Wallet{OwnerName: input.OwnerName, Currency: input.Currency}
	if err := s.walletRepo.Create(ctx, w); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", w.ID.String()).
		Str("currency", w.Currency).
		Msg("wallet created")
	return w, nil
}

type movementInput struct {
	WalletID    string `json:"wallet_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,amount"`
	Description string `json:"description" validate:"max=255"`
}

// Deposit credits a wallet.
func (s *WalletServiceImpl) Deposit(ctx context.Context, req ports.MovementRequest) (*ports.OperationResult, error) {
	return s.movement(ctx, domain.OperationDeposit, req)
}

// Withdraw debits a wallet. The balance never goes below zero.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.MovementRequest) (*ports.OperationResult, error) {
	return s.movement(ctx, domain.OperationWithdraw, req)
}

func (s *WalletServiceImpl) movement(ctx context.Context, op domain.Operation, req ports.MovementRequest) (*ports.OperationResult, error) {
	input := movementInput{WalletID: canonicalID(req.WalletID), Amount: req.Amount, Description: req.Description}

	endpoint := domain.DepositEndpoint(input.WalletID)
	typ, dir := domain.TransactionTypeDeposit, domain.Credit
	if op == domain.OperationWithdraw {
		endpoint = domain.WithdrawEndpoint(input.WalletID)
		typ, dir = domain.TransactionTypeWithdraw, domain.Debit
	}

	c := call{op: op, key: req.IdempotencyKey, endpoint: endpoint, payload: payloadOf(req.Payload, input)}
	return s.execute(ctx, c, func(ctx context.Context) (mutation, *apperror.AppError, error) {
		if appErr := check(s.validate, input); appErr != nil {
			return nil, appErr, nil
		}
		walletID := uuid.MustParse(input.WalletID)
		amount, _ := parseAmount(input.Amount)

		wallet, err := s.walletRepo.GetByID(ctx, walletID)
		if err != nil {
			return nil, nil, err
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("Wallet").WithID(input.WalletID), nil
		}

		return func(ctx context.Context, tx ports.Tx, key string) (any, []domain.Transaction, error) {
			updated, err := s.walletRepo.UpdateBalance(ctx, tx, walletID, amount, dir)
			if err != nil {
				return nil, nil, err
			}
			entry := &domain.Transaction{
				WalletID:     walletID,
				Type:         typ,
				Amount:       amount,
				BalanceAfter: updated.Balance,
				ReferenceID:  key,
				Description:  input.Description,
				CreatedAt:    s.timestamp(),
			}
			if err := s.txRepo.Create(ctx, tx, entry); err != nil {
				return nil, nil, err
			}
			return ports.MovementResult{Wallet: updated, Transaction: entry}, []domain.Transaction{*entry}, nil
		}, nil, nil
	})
}

// canonicalID returns the lowercase hyphenated form of a wallet id so the
// endpoint fingerprint does not depend on how the client spelled it. Ids
// that do not parse are kept as given and fail validation later.
func canonicalID(s string) string {
	if id, err := uuid.Parse(s); err == nil {
		return id.String()
	}
	return s
}

// canonicalIDFields rewrites the named wallet id fields of a JSON object body
// to their canonical form. Bodies that are not objects, or that need no
// rewrite, are returned as they are.
func canonicalIDFields(raw []byte, fields ...string) []byte {
	if len(raw) == 0 {
		return raw
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return raw
	}

	changed := false
	for _, f := range fields {
		s, ok := body[f].(string)
		if !ok {
			continue
		}
		if id := canonicalID(s); id != s {
			body[f] = id
			changed = true
		}
	}
	if !changed {
		return raw
	}
	out, err := json.Marshal(body)
	if err != nil {
		return raw
	}
	return out
}

type transferInput struct {
	FromWalletID string `json:"from_wallet_id" validate:"required,uuid"`
	ToWalletID   string `json:"to_wallet_id" validate:"required,uuid"`
	Amount       string `json:"amount" validate:"required,amount"`
	Description  string `json:"description" validate:"max=255"`
}

// Transfer moves amount between two wallets of the same currency. Both
// wallets are locked in ascending id order so opposite transfers between
// the same pair cannot deadlock.
func (s *WalletServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.OperationResult, error) {
	input := transferInput{
		FromWalletID: canonicalID(req.FromWalletID),
		ToWalletID:   canonicalID(req.ToWalletID),
		Amount:       req.Amount,
		Description:  req.Description,
	}
	c := call{
		op:       domain.OperationTransfer,
		key:      req.IdempotencyKey,
		endpoint: domain.TransferEndpoint(input.FromWalletID, input.ToWalletID),
		payload:  payloadOf(canonicalIDFields(req.Payload, "from_wallet_id", "to_wallet_id"), input),
	}

	return s.execute(ctx, c, func(ctx context.Context) (mutation, *apperror.AppError, error) {
		if appErr := check(s.validate, input); appErr != nil {
			return nil, appErr, nil
		}
		fromID := uuid.MustParse(input.FromWalletID)
		toID := uuid.MustParse(input.ToWalletID)
		amount, _ := parseAmount(input.Amount)

		if fromID == toID {
			return nil, apperror.ErrSameWalletTransfer(), nil
		}

		from, err := s.walletRepo.GetByID(ctx, fromID)
		if err != nil {
			return nil, nil, err
		}
		if from == nil {
			return nil, apperror.ErrNotFound("Source wallet").WithID(input.FromWalletID), nil
		}
		to, err := s.walletRepo.GetByID(ctx, toID)
		if err != nil {
			return nil, nil, err
		}
		if to == nil {
			return nil, apperror.ErrNotFound("Destination wallet").WithID(input.ToWalletID), nil
		}
		if !domain.SameCurrency(from.Currency, to.Currency) {
			return nil, apperror.ErrCurrencyMismatch(), nil
		}

		return func(ctx context.Context, tx ports.Tx, key string) (any, []domain.Transaction, error) {
			for _, id := range domain.LockOrder(fromID, toID) {
				w, err := s.walletRepo.GetByIDForUpdate(ctx, tx, id)
				if err != nil {
					return nil, nil, err
				}
				if w == nil {
					return nil, nil, fmt.Errorf("lock wallet %s: %w", id, domain.ErrWalletNotFound)
				}
			}

			debited, err := s.walletRepo.UpdateBalance(ctx, tx, fromID, amount, domain.Debit)
			if err != nil {
				return nil, nil, err
			}
			credited, err := s.walletRepo.UpdateBalance(ctx, tx, toID, amount, domain.Credit)
			if err != nil {
				return nil, nil, err
			}

			now := s.timestamp()
			debit := &domain.Transaction{
				WalletID:        fromID,
				Type:            domain.TransactionTypeTransferDebit,
				Amount:          amount,
				BalanceAfter:    debited.Balance,
				RelatedWalletID: &toID,
				ReferenceID:     key,
				Description:     input.Description,
				CreatedAt:       now,
			}
			credit := &domain.Transaction{
				WalletID:        toID,
				Type:            domain.TransactionTypeTransferCredit,
				Amount:          amount,
				BalanceAfter:    credited.Balance,
				RelatedWalletID: &fromID,
				ReferenceID:     key,
				Description:     input.Description,
				CreatedAt:       now,
			}
			if err := s.txRepo.Create(ctx, tx, debit); err != nil {
				return nil, nil, err
			}
			if err := s.txRepo.Create(ctx, tx, credit); err != nil {
				return nil, nil, err
			}

			data := ports.TransferResult{
				ReferenceID: key,
				FromWallet:  debited,
				ToWallet:    credited,
				Debit:       debit,
				Credit:      credit,
			}
			return data, []domain.Transaction{*debit, *credit}, nil
		}, nil, nil
	})
}

func (s *WalletServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// payloadOf returns the bytes the request hash covers: the raw request body
// when the caller has one, otherwise the JSON form of the input.
func payloadOf(raw []byte, input any) []byte {
	if len(raw) > 0 {
		return raw
	}
	b, _ := json.Marshal(input)
	return b
}

// call identifies one idempotent invocation.
type call struct {
	op       domain.Operation
	key      string
	endpoint string
	payload  []byte
}

// prepareFunc runs the validation, existence and business-rule checks. It
// returns the mutation to run, or a rejection, or a store failure.
type prepareFunc func(ctx context.Context) (mutation, *apperror.AppError, error)

// mutation performs the locked balance changes and ledger appends inside tx.
type mutation func(ctx context.Context, tx ports.Tx, key string) (data any, entries []domain.Transaction, err error)

// execute drives one operation through idempotency check, preparation,
// atomic mutation and recording.
func (s *WalletServiceImpl) execute(ctx context.Context, c call, prepare prepareFunc) (res *ports.OperationResult, err error) {
	start := s.now()
	defer func() { s.observe(c.op, start, res, err) }()
	log := s.log.With().Str("operation", string(c.op)).Str("idempotency_key", c.key).Logger()

	if strings.TrimSpace(c.key) == "" {
		return s.unrecorded(apperror.ErrIdempotencyKeyRequired())
	}
	if utf8.RuneCountInString(c.key) > domain.MaxIdempotencyKeyLength {
		return s.unrecorded(apperror.ErrIdempotencyKeyTooLong(domain.MaxIdempotencyKeyLength))
	}
	hash := domain.HashPayload(c.payload)

	if res, done, err := s.replay(ctx, c, hash); done {
		return res, err
	}

	plan, rejection, err := prepare(ctx)
	if err != nil {
		return nil, s.fatal(log, "prepare", err)
	}
	if rejection != nil {
		return s.reject(ctx, c, hash, rejection)
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, s.fatal(log, "begin tx", err)
	}
	rollback := func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("rollback failed")
		}
	}

	data, entries, err := plan(ctx, tx, c.key)
	if err != nil {
		rollback()
		if rejection := businessRejection(err); rejection != nil {
			log.Info().Str("error_code", rejection.Code).Msg("operation rejected")
			return s.reject(ctx, c, hash, rejection)
		}
		return nil, s.fatal(log, "mutate", err)
	}

	body, err := response.Marshal(response.Success(http.StatusOK, data))
	if err != nil {
		rollback()
		return nil, s.fatal(log, "marshal response", err)
	}

	rec, err := s.guard.Record(ctx, tx, c.key, c.endpoint, hash, http.StatusOK, body)
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		rollback()
		if errors.Is(err, domain.ErrIdempotencyKeyExists) {
			return s.lostRace(ctx, c, hash)
		}
		return nil, s.fatal(log, "commit", err)
	}

	s.afterCommit(ctx, c, rec, entries)
	log.Info().Int("entries", len(entries)).Msg("operation committed")
	return &ports.OperationResult{StatusCode: http.StatusOK, Body: body}, nil
}

// replay answers from a stored record. done is false on a miss.
func (s *WalletServiceImpl) replay(ctx context.Context, c call, hash string) (*ports.OperationResult, bool, error) {
	rec, rejection, err := s.guard.Lookup(ctx, c.key, c.endpoint, hash)
	if err != nil {
		return nil, true, apperror.ErrDatabaseError(err)
	}
	if rejection != nil {
		res, err := s.unrecorded(rejection)
		return res, true, err
	}
	if rec == nil {
		return nil, false, nil
	}
	return &ports.OperationResult{StatusCode: rec.ResponseCode, Body: rec.ResponseBody, Replayed: true}, true, nil
}

// reject records a deterministic failure so retries replay it.
func (s *WalletServiceImpl) reject(ctx context.Context, c call, hash string, appErr *apperror.AppError) (*ports.OperationResult, error) {
	body, err := response.Marshal(response.Failure(appErr))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}

	rec, err := s.guard.Record(ctx, nil, c.key, c.endpoint, hash, appErr.HTTPStatus, body)
	if errors.Is(err, domain.ErrIdempotencyKeyExists) {
		return s.lostRace(ctx, c, hash)
	}
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("record rejection: %w", err))
	}
	s.guard.Cache(ctx, rec)

	return &ports.OperationResult{StatusCode: appErr.HTTPStatus, Body: body, Err: appErr}, nil
}

// lostRace replays the response of the request that recorded the key first.
func (s *WalletServiceImpl) lostRace(ctx context.Context, c call, hash string) (*ports.OperationResult, error) {
	s.metrics.IdempotencyConflict(c.op)
	s.log.Info().Str("idempotency_key", c.key).Msg("idempotency key recorded concurrently, replaying winner")

	res, done, err := s.replay(ctx, c, hash)
	if !done {
		return nil, apperror.InternalError(fmt.Errorf("idempotency key %q vanished after conflict", c.key))
	}
	return res, err
}

func (s *WalletServiceImpl) unrecorded(appErr *apperror.AppError) (*ports.OperationResult, error) {
	body, err := response.Marshal(response.Failure(appErr))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	return &ports.OperationResult{StatusCode: appErr.HTTPStatus, Body: body, Err: appErr}, nil
}

func (s *WalletServiceImpl) afterCommit(ctx context.Context, c call, rec *domain.IdempotencyRecord, entries []domain.Transaction) {
	s.guard.Cache(ctx, rec)
	if s.publisher == nil {
		return
	}

	ev := domain.NewLedgerEvent(c.op, c.key, entries, s.now())
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.metrics.PublishFailed()
		s.log.Warn().Err(err).Str("event_id", ev.EventID.String()).Msg("failed to publish ledger event")
	}
}

func (s *WalletServiceImpl) fatal(log zerolog.Logger, stage string, err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, domain.ErrLockTimeout):
		appErr = apperror.ErrLockTimeout(err)
	default:
		appErr = apperror.ErrDatabaseError(fmt.Errorf("%s: %w", stage, err))
	}
	log.Error().Err(err).Str("stage", stage).Int("status", appErr.HTTPStatus).Msg("operation failed")
	return appErr
}

func (s *WalletServiceImpl) observe(op domain.Operation, start time.Time, res *ports.OperationResult, err error) {
	status := http.StatusInternalServerError
	var appErr *apperror.AppError
	switch {
	case res != nil:
		status = res.StatusCode
	case errors.As(err, &appErr):
		status = appErr.HTTPStatus
	}
	s.metrics.ObserveOperation(op, status, res != nil && res.Replayed, s.now().Sub(start))
}

// businessRejection maps store outcomes that are deterministic for the
// request to their user-facing error.
func businessRejection(err error) *apperror.AppError {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrBalanceOverflow):
		return apperror.ErrBalanceOverflow()
	case errors.Is(err, domain.ErrWalletNotFound):
		return apperror.ErrNotFound("Wallet")
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(domain.Operation, int, bool, time.Duration) {}
func (nopMetrics) IdempotencyConflict(domain.Operation)                        {}
func (nopMetrics) PublishFailed()                                              {}
