package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/shared"
)

// TxRepository exposes the ledger operations available inside a transaction. Domain
// modules embed it in their own transactional ports so a business change and its
// journal entry commit or roll back together.
type TxRepository interface {
	NextEntryNumber(ctx context.Context) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	DeleteLines(ctx context.Context, entryID int64) error
	UpdateDraft(ctx context.Context, entry JournalEntry) error
	DeleteEntry(ctx context.Context, entryID int64) error
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	UpdateEntryState(ctx context.Context, entry JournalEntry) error
	GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
}

// Post writes a balanced entry and applies it to account balances. It must run inside
// the caller's transaction; any error leaves nothing behind once the caller rolls back.
func Post(ctx context.Context, tx TxRepository, in EntryInput, now time.Time) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := CheckBalanced(in.Lines); err != nil {
		return JournalEntry{}, err
	}
	entry, err := insertDraft(ctx, tx, in)
	if err != nil {
		return JournalEntry{}, err
	}
	return applyPosting(ctx, tx, entry, now)
}

// AccountIDs resolves account codes to ids inside the transaction.
func AccountIDs(ctx context.Context, tx TxRepository, codes ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	for _, code := range codes {
		acc, err := tx.GetAccountByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("accounting: resolve account %s: %w", code, err)
		}
		out[code] = acc.ID
	}
	return out, nil
}

// RequireCash locks the cash account and fails with MsgInsufficientCash unless its
// balance covers amount.
func RequireCash(ctx context.Context, tx TxRepository, amount decimal.Decimal) (Account, error) {
	cash, err := tx.GetAccountByCode(ctx, CodeCash)
	if err != nil {
		return Account{}, fmt.Errorf("accounting: resolve cash account: %w", err)
	}
	locked, err := tx.GetAccountsForUpdate(ctx, []int64{cash.ID})
	if err != nil {
		return Account{}, err
	}
	cash, ok := locked[cash.ID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if cash.CurrentBalance.LessThan(amount) {
		return Account{}, shared.Rule(MsgInsufficientCash)
	}
	return cash, nil
}

// SourceID derives a deterministic source id for a business record, e.g.
// SourceID(SourceLoans, "12:disbursement").
func SourceID(module, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(module+":"+key))
}

func insertDraft(ctx context.Context, tx TxRepository, in EntryInput) (JournalEntry, error) {
	number, err := tx.NextEntryNumber(ctx)
	if err != nil {
		return JournalEntry{}, err
	}
	module := in.SourceModule
	if module == "" {
		module = SourceManual
	}
	sourceID := in.SourceID
	if sourceID == uuid.Nil {
		sourceID = uuid.New()
	}
	debit, credit := Totals(in.Lines)
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		Number:         number,
		Date:           in.Date,
		Description:    in.Description,
		Reference:      in.Reference,
		Status:         EntryStatusDraft,
		TotalDebit:     debit,
		TotalCredit:    credit,
		SourceModule:   module,
		SourceID:       sourceID,
		ReversalOfID:   in.ReversalOfID,
		ReversalReason: in.ReversalReason,
		CreatedBy:      in.CreatedBy,
	})
	if errors.Is(err, ErrSourceConflict) {
		return JournalEntry{}, shared.Rule(MsgSourceAlreadyPosted)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := tx.InsertLines(ctx, entry.ID, in.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// applyPosting locks every affected account in id order, applies the signed deltas and
// flips the entry to posted.
func applyPosting(ctx context.Context, tx TxRepository, entry JournalEntry, now time.Time) (JournalEntry, error) {
	deltaByAccount := make(map[int64]decimal.Decimal)
	ids := make([]int64, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		if _, seen := deltaByAccount[line.AccountID]; !seen {
			deltaByAccount[line.AccountID] = decimal.Zero
			ids = append(ids, line.AccountID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts, err := tx.GetAccountsForUpdate(ctx, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	for _, line := range entry.Lines {
		acc, ok := accounts[line.AccountID]
		if !ok {
			return JournalEntry{}, fmt.Errorf("accounting: line %d: %w", line.LineNo, ErrAccountNotFound)
		}
		if !acc.IsActive {
			return JournalEntry{}, shared.Rule(fmt.Sprintf("Account %s is inactive", acc.Code))
		}
		deltaByAccount[acc.ID] = deltaByAccount[acc.ID].Add(acc.SignedDelta(line.Debit, line.Credit))
	}
	for _, id := range ids {
		if err := tx.AdjustBalance(ctx, id, deltaByAccount[id]); err != nil {
			return JournalEntry{}, err
		}
	}
	postedAt := now
	entry.Status = EntryStatusPosted
	entry.PostedAt = &postedAt
	if err := tx.UpdateEntryState(ctx, entry); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}
