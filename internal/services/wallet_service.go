package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kharidari/api/internal/domain"
	"github.com/kharidari/api/internal/repositories"
)

// ErrWalletInvalidInput indicates the caller supplied invalid input.
var ErrWalletInvalidInput = errors.New("wallet service: invalid input")

// ErrWalletInsufficientBalance indicates a debit would push the balance below zero.
var ErrWalletInsufficientBalance = errors.New("wallet service: insufficient balance")

// ErrWalletUnavailable indicates the wallet backend cannot fulfil the request.
var ErrWalletUnavailable = errors.New("wallet service: unavailable")

const maxWalletReasonLength = 300

// WalletServiceDeps wires the ledger repository and ambient dependencies.
type WalletServiceDeps struct {
	Repository  repositories.WalletRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type walletService struct {
	repo   repositories.WalletRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
	newID  func() string
}

// NewWalletService constructs a WalletService enforcing dependency validation.
func NewWalletService(deps WalletServiceDeps) (WalletService, error) {
	if deps.Repository == nil {
		return nil, errors.New("wallet service: repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("wallet service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &walletService{
		repo:   deps.Repository,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
		newID:  idGen,
	}, nil
}

func (s *walletService) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	if s == nil || s.repo == nil {
		return Wallet{}, ErrWalletUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Wallet{}, ErrWalletInvalidInput
	}
	wallet, err := s.repo.GetWallet(ctx, uid)
	if err != nil {
		return Wallet{}, s.translateRepoError(err)
	}
	return wallet, nil
}

func (s *walletService) ListEntries(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[WalletEntry], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[WalletEntry]{}, ErrWalletUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[WalletEntry]{}, ErrWalletInvalidInput
	}
	page, err := s.repo.ListEntries(ctx, uid, pager)
	if err != nil {
		return domain.CursorPage[WalletEntry]{}, s.translateRepoError(err)
	}
	return page, nil
}

// Credit adds store credit, typically for refunds on cancelled orders.
func (s *walletService) Credit(ctx context.Context, cmd WalletCreditCommand) (WalletEntry, error) {
	if s == nil || s.repo == nil {
		return WalletEntry{}, ErrWalletUnavailable
	}
	entry, err := s.buildEntry(cmd.UserID, cmd.Amount, cmd.Reason, cmd.OrderRef)
	if err != nil {
		return WalletEntry{}, err
	}

	_, saved, err := s.repo.Append(ctx, entry)
	if err != nil {
		return WalletEntry{}, s.translateRepoError(err)
	}

	s.logger(ctx, "wallet_credited", map[string]any{
		"userId":  saved.UserID,
		"entryId": saved.ID,
		"amount":  saved.Amount,
	})
	return saved, nil
}

// Debit spends store credit. The repository rejects debits that would push
// the balance below zero.
func (s *walletService) Debit(ctx context.Context, cmd WalletDebitCommand) (WalletEntry, error) {
	if s == nil || s.repo == nil {
		return WalletEntry{}, ErrWalletUnavailable
	}
	entry, err := s.buildEntry(cmd.UserID, cmd.Amount, cmd.Reason, cmd.OrderRef)
	if err != nil {
		return WalletEntry{}, err
	}
	entry.Amount = -entry.Amount

	_, saved, err := s.repo.Append(ctx, entry)
	if err != nil {
		if isRepoConflict(err) {
			return WalletEntry{}, ErrWalletInsufficientBalance
		}
		return WalletEntry{}, s.translateRepoError(err)
	}

	s.logger(ctx, "wallet_debited", map[string]any{
		"userId":  saved.UserID,
		"entryId": saved.ID,
		"amount":  saved.Amount,
	})
	return saved, nil
}

func (s *walletService) buildEntry(userID string, amount int64, reason string, orderRef *string) (domain.WalletEntry, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.WalletEntry{}, ErrWalletInvalidInput
	}
	if amount <= 0 {
		return domain.WalletEntry{}, fmt.Errorf("%w: amount must be positive", ErrWalletInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.WalletEntry{}, fmt.Errorf("%w: reason is required", ErrWalletInvalidInput)
	}
	if len(reason) > maxWalletReasonLength {
		return domain.WalletEntry{}, fmt.Errorf("%w: reason exceeds %d characters", ErrWalletInvalidInput, maxWalletReasonLength)
	}

	entry := domain.WalletEntry{
		ID:        s.newID(),
		UserID:    uid,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.now(),
	}
	if orderRef != nil {
		ref := strings.TrimSpace(*orderRef)
		if ref != "" {
			entry.OrderRef = &ref
		}
	}
	return entry, nil
}

func (s *walletService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return ErrWalletInsufficientBalance
		case repoErr.IsUnavailable():
			return ErrWalletUnavailable
		}
	}
	return ErrWalletUnavailable
}
