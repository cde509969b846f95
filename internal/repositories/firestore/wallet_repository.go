package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/kharidari/api/internal/domain"
	pfirestore "github.com/kharidari/api/internal/platform/firestore"
	"github.com/kharidari/api/internal/repositories"
)

const (
	walletsCollection       = "wallets"
	walletEntriesCollection = "wallet_entries"
)

// WalletRepository stores the per-user store-credit balance and its ledger.
// The balance document and the ledger entry always move in one transaction.
type WalletRepository struct {
	provider *pfirestore.Provider
	wallets  *pfirestore.BaseRepository[walletDocument]
	entries  *pfirestore.BaseRepository[walletEntryDocument]
}

// NewWalletRepository constructs a Firestore-backed wallet repository.
func NewWalletRepository(provider *pfirestore.Provider) (*WalletRepository, error) {
	if provider == nil {
		return nil, errors.New("wallet repository: firestore provider is required")
	}
	return &WalletRepository{
		provider: provider,
		wallets:  pfirestore.NewBaseRepository[walletDocument](provider, walletsCollection, nil, nil),
		entries:  pfirestore.NewBaseRepository[walletEntryDocument](provider, walletEntriesCollection, nil, nil),
	}, nil
}

// GetWallet returns the balance document, or a zero balance when none exists.
func (r *WalletRepository) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	if r == nil || r.wallets == nil {
		return domain.Wallet{}, errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Wallet{}, errors.New("wallet repository: user id is required")
	}

	doc, err := r.wallets.Get(ctx, uid)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Wallet{UserID: uid}, nil
		}
		return domain.Wallet{}, err
	}
	return domain.Wallet{
		UserID:    uid,
		Balance:   doc.Data.Balance,
		UpdatedAt: doc.UpdateTime,
	}, nil
}

// ListEntries pages through the user's ledger, newest first.
func (r *WalletRepository) ListEntries(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.WalletEntry], error) {
	if r == nil || r.entries == nil {
		return domain.CursorPage[domain.WalletEntry]{}, errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.WalletEntry]{}, errors.New("wallet repository: user id is required")
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.WalletEntry]{}, fmt.Errorf("wallet repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.entries.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", uid).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.WalletEntry]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeListToken(tokenTime, last.ID)
		docs = docs[:limit]
	}

	entries := make([]domain.WalletEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, decodeWalletEntry(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.WalletEntry]{Items: entries, NextPageToken: nextToken}, nil
}

// Append records the ledger entry and adjusts the balance atomically. A debit
// that would push the balance below zero aborts with a conflict error.
func (r *WalletRepository) Append(ctx context.Context, entry domain.WalletEntry) (domain.Wallet, domain.WalletEntry, error) {
	if r == nil || r.provider == nil {
		return domain.Wallet{}, domain.WalletEntry{}, errors.New("wallet repository not initialised")
	}
	uid := strings.TrimSpace(entry.UserID)
	if uid == "" {
		return domain.Wallet{}, domain.WalletEntry{}, errors.New("wallet repository: user id is required")
	}
	entryID := strings.TrimSpace(entry.ID)
	if entryID == "" {
		return domain.Wallet{}, domain.WalletEntry{}, errors.New("wallet repository: entry id is required")
	}
	if entry.Amount == 0 {
		return domain.Wallet{}, domain.WalletEntry{}, errors.New("wallet repository: entry amount must be non-zero")
	}

	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var wallet domain.Wallet
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		walletRef, err := r.wallets.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		entryRef, err := r.entries.DocumentRef(ctx, entryID)
		if err != nil {
			return err
		}

		balance := int64(0)
		exists := true
		snapshot, err := tx.Get(walletRef)
		switch status.Code(err) {
		case codes.NotFound:
			exists = false
		case codes.OK:
			var doc walletDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore wallets decode %s: %w", uid, err)
			}
			balance = doc.Balance
		default:
			return err
		}

		newBalance := balance + entry.Amount
		if newBalance < 0 {
			return status.Errorf(codes.FailedPrecondition, "wallet %s balance would fall below zero", uid)
		}

		entryDoc := walletEntryDocument{
			UserID:    uid,
			Amount:    entry.Amount,
			Reason:    strings.TrimSpace(entry.Reason),
			CreatedAt: createdAt,
		}
		if entry.OrderRef != nil {
			ref := strings.TrimSpace(*entry.OrderRef)
			if ref != "" {
				entryDoc.OrderRef = &ref
			}
		}
		if err := tx.Create(entryRef, entryDoc); err != nil {
			return err
		}

		walletDoc := walletDocument{Balance: newBalance, UpdatedAt: createdAt}
		if exists {
			if err := tx.Set(walletRef, walletDoc); err != nil {
				return err
			}
		} else {
			if err := tx.Create(walletRef, walletDoc); err != nil {
				return err
			}
		}

		wallet = domain.Wallet{UserID: uid, Balance: newBalance, UpdatedAt: createdAt}
		return nil
	})
	if err != nil {
		return domain.Wallet{}, domain.WalletEntry{}, pfirestore.WrapError("wallets.append", err)
	}

	saved := entry
	saved.ID = entryID
	saved.UserID = uid
	saved.CreatedAt = createdAt
	return wallet, saved, nil
}

func decodeWalletEntry(id string, doc walletEntryDocument) domain.WalletEntry {
	entry := domain.WalletEntry{
		ID:        id,
		UserID:    doc.UserID,
		Amount:    doc.Amount,
		Reason:    doc.Reason,
		CreatedAt: doc.CreatedAt,
	}
	if doc.OrderRef != nil {
		ref := *doc.OrderRef
		entry.OrderRef = &ref
	}
	return entry
}

type walletDocument struct {
	Balance   int64     `firestore:"balance"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type walletEntryDocument struct {
	UserID    string    `firestore:"userId"`
	Amount    int64     `firestore:"amount"`
	Reason    string    `firestore:"reason,omitempty"`
	OrderRef  *string   `firestore:"orderRef,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

var _ repositories.WalletRepository = (*WalletRepository)(nil)
