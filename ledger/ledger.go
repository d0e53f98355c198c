// Package ledger owns portfolio accounting: positions, the append-only
// cash ledger, and dividend bookings. It is the only mutator of account
// state, and it enforces cash and share conservation after every
// mutation.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twaquant/etfengine/journal"
)

var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrInsufficientCash    = errors.New("insufficient cash")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type EntryType string

const (
	EntryDeposit  EntryType = "DEPOSIT"
	EntryWithdraw EntryType = "WITHDRAW"
	EntryTrade    EntryType = "TRADE"
	EntryDividend EntryType = "DIVIDEND"
	EntryFee      EntryType = "FEE"
	EntryTax      EntryType = "TAX"
)

// Account identity and risk settings. The cash balance is not stored
// here; it is a projection of the account's ledger entries.
type Account struct {
	ID             string
	Currency       string
	Precision      int32 // currency minor-unit decimals (TWD: 0)
	MaxUsableRatio decimal.Decimal
}

// CashEntry is one append-only ledger row. BalanceAfter of entry n must
// equal BalanceAfter of entry n-1 plus Amount of entry n.
type CashEntry struct {
	AccountID    string
	Seq          int64
	Time         time.Time
	Type         EntryType
	Ref          string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
}

// Trade is the immutable record of one fill. Once constructed it is
// never mutated; it is the audit trail the ledger applies.
type Trade struct {
	ID         string
	OrderID    string
	AccountID  string
	Symbol     string
	Side       Side
	Price      decimal.Decimal
	Qty        int64
	Gross      decimal.Decimal
	Commission decimal.Decimal
	Tax        decimal.Decimal
	Time       time.Time
}

// ApplyResult reports the outcome of one applied trade.
type ApplyResult struct {
	Entry      CashEntry
	Position   Position
	RealizedPL decimal.Decimal // non-zero only on sells
}

type accountState struct {
	mu        sync.Mutex
	acct      Account
	balance   decimal.Decimal
	entries   []CashEntry
	positions map[string]*Position
	dividends map[string]Booking
	frozen    bool
}

// Ledger serializes all mutations per account; operations on different
// accounts proceed independently.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*accountState
	journal  journal.Journal
	runID    string
}

func New(j journal.Journal) *Ledger {
	if j == nil {
		j = journal.Discard
	}
	return &Ledger{
		accounts: make(map[string]*accountState),
		journal:  j,
	}
}

// SetRun tags subsequent journal records with a backtest run ID.
func (l *Ledger) SetRun(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = runID
}

// Open registers an account with a zero balance.
func (l *Ledger) Open(acct Account) error {
	if acct.ID == "" {
		return fmt.Errorf("open account: id required")
	}
	if acct.MaxUsableRatio.IsNegative() || acct.MaxUsableRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("open account %s: max usable ratio %s outside [0,1]", acct.ID, acct.MaxUsableRatio)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.accounts[acct.ID]; dup {
		return fmt.Errorf("open account %s: already exists", acct.ID)
	}
	l.accounts[acct.ID] = &accountState{
		acct:      acct,
		positions: make(map[string]*Position),
		dividends: make(map[string]Booking),
	}
	return nil
}

func (l *Ledger) state(accountID string) (*accountState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return st, nil
}

// Deposit credits cash into an account.
func (l *Ledger) Deposit(accountID string, amount decimal.Decimal, at time.Time) (CashEntry, error) {
	if !amount.IsPositive() {
		return CashEntry{}, fmt.Errorf("deposit: amount %s must be positive", amount)
	}
	st, err := l.state(accountID)
	if err != nil {
		return CashEntry{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.frozen {
		return CashEntry{}, frozenErr(accountID)
	}
	return l.appendLocked(st, EntryDeposit, amount, "", at)
}

// Withdraw debits cash. The amount is capped by the full balance; the
// usable-cash floor constrains buys, not withdrawals.
func (l *Ledger) Withdraw(accountID string, amount decimal.Decimal, at time.Time) (CashEntry, error) {
	if !amount.IsPositive() {
		return CashEntry{}, fmt.Errorf("withdraw: amount %s must be positive", amount)
	}
	st, err := l.state(accountID)
	if err != nil {
		return CashEntry{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.frozen {
		return CashEntry{}, frozenErr(accountID)
	}
	if amount.GreaterThan(st.balance) {
		return CashEntry{}, fmt.Errorf("%w: withdraw %s exceeds balance %s", ErrInsufficientCash, amount, st.balance)
	}
	return l.appendLocked(st, EntryWithdraw, amount.Neg(), "", at)
}

// Apply posts one fill to the account: position update plus exactly one
// TRADE cash entry, committed together. Capacity checks happen before
// any mutation; a failure after mutation began freezes the account.
func (l *Ledger) Apply(t Trade) (ApplyResult, error) {
	if t.Qty <= 0 {
		return ApplyResult{}, fmt.Errorf("%w: trade qty %d", ErrInvalidQuantity, t.Qty)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return ApplyResult{}, fmt.Errorf("apply trade %s: unknown side %q", t.ID, t.Side)
	}
	st, err := l.state(t.AccountID)
	if err != nil {
		return ApplyResult{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.frozen {
		return ApplyResult{}, frozenErr(t.AccountID)
	}

	costs := t.Commission.Add(t.Tax)

	var delta decimal.Decimal
	switch t.Side {
	case SideBuy:
		delta = t.Gross.Add(costs).Neg()
		// Only MaxUsableRatio of cash may be deployed; the rest is the
		// reserve floor.
		usable := st.balance.Mul(st.acct.MaxUsableRatio)
		if delta.Neg().GreaterThan(usable) {
			return ApplyResult{}, fmt.Errorf("%w: buy costs %s, usable cash %s (balance %s, ratio %s)",
				ErrInsufficientCash, delta.Neg(), usable, st.balance, st.acct.MaxUsableRatio)
		}
	case SideSell:
		delta = t.Gross.Sub(costs)
		pos := st.positions[t.Symbol]
		if pos == nil || pos.Qty < t.Qty {
			held := int64(0)
			if pos != nil {
				held = pos.Qty
			}
			return ApplyResult{}, fmt.Errorf("%w: sell %d %s, held %d", ErrInsufficientShares, t.Qty, t.Symbol, held)
		}
	}

	// Mutation begins. Position first, then the cash entry; the chain
	// check below catches a half-applied state.
	var realized decimal.Decimal
	pos := st.positions[t.Symbol]
	if pos == nil {
		pos = &Position{AccountID: t.AccountID, Symbol: t.Symbol}
		st.positions[t.Symbol] = pos
	}
	switch t.Side {
	case SideBuy:
		pos.buy(t.Qty, t.Price)
	case SideSell:
		realized = pos.sell(t.Qty, t.Price)
	}

	entry, err := l.appendLocked(st, EntryTrade, delta, t.ID, t.Time)
	if err != nil {
		st.frozen = true
		return ApplyResult{}, fmt.Errorf("%w: account %s: position mutated but cash entry failed: %v",
			ErrLedgerInconsistency, t.AccountID, err)
	}

	return ApplyResult{Entry: entry, Position: *pos, RealizedPL: realized}, nil
}

// appendLocked verifies the balance chain, journals the entry, and only
// then commits it to the in-memory ledger. A journal failure commits
// nothing, so the caller can retry without double-posting.
func (l *Ledger) appendLocked(st *accountState, typ EntryType, amount decimal.Decimal, ref string, at time.Time) (CashEntry, error) {
	prev := st.balance
	next := prev.Add(amount)

	entry := CashEntry{
		AccountID:    st.acct.ID,
		Seq:          int64(len(st.entries)) + 1,
		Time:         at,
		Type:         typ,
		Ref:          ref,
		Amount:       amount,
		BalanceAfter: next,
	}

	if n := len(st.entries); n > 0 {
		last := st.entries[n-1]
		if !last.BalanceAfter.Equal(prev) {
			st.frozen = true
			return CashEntry{}, fmt.Errorf("%w: account %s: cached balance %s != last entry balance %s",
				ErrLedgerInconsistency, st.acct.ID, prev, last.BalanceAfter)
		}
	} else if !prev.IsZero() {
		st.frozen = true
		return CashEntry{}, fmt.Errorf("%w: account %s: non-zero balance %s with empty ledger",
			ErrLedgerInconsistency, st.acct.ID, prev)
	}

	if err := l.journal.RecordEntry(journal.EntryRecord{
		RunID:        l.runID,
		AccountID:    entry.AccountID,
		Seq:          entry.Seq,
		Type:         string(entry.Type),
		Ref:          entry.Ref,
		Amount:       entry.Amount,
		BalanceAfter: entry.BalanceAfter,
		Time:         entry.Time,
	}); err != nil {
		return CashEntry{}, fmt.Errorf("journal entry: %w", err)
	}

	st.entries = append(st.entries, entry)
	st.balance = next

	return entry, nil
}

// Reconcile recomputes the balance from the full entry sequence. A
// matching sum unfreezes the account; a mismatch reports exactly which
// invariant is violated.
func (l *Ledger) Reconcile(accountID string) error {
	st, err := l.state(accountID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	sum := decimal.Zero
	for i, e := range st.entries {
		sum = sum.Add(e.Amount)
		if !e.BalanceAfter.Equal(sum) {
			return fmt.Errorf("%w: account %s: entry %d balance_after %s != running sum %s",
				ErrLedgerInconsistency, accountID, i+1, e.BalanceAfter, sum)
		}
	}
	if !st.balance.Equal(sum) {
		return fmt.Errorf("%w: account %s: cash balance %s != entry sum %s",
			ErrLedgerInconsistency, accountID, st.balance, sum)
	}
	st.frozen = false
	return nil
}

// Balance returns the account's cash balance.
func (l *Ledger) Balance(accountID string) (decimal.Decimal, error) {
	st, err := l.state(accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.balance, nil
}

// Account returns the account's static settings.
func (l *Ledger) Account(accountID string) (Account, error) {
	st, err := l.state(accountID)
	if err != nil {
		return Account{}, err
	}
	return st.acct, nil
}

// Position returns the (account, symbol) position; a zero Position if
// none was ever held.
func (l *Ledger) Position(accountID, symbol string) (Position, error) {
	st, err := l.state(accountID)
	if err != nil {
		return Position{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if p := st.positions[symbol]; p != nil {
		return *p, nil
	}
	return Position{AccountID: accountID, Symbol: symbol}, nil
}

// Positions returns the account's positions in symbol order, including
// zeroed ones that carry realized P/L.
func (l *Ledger) Positions(accountID string) ([]Position, error) {
	st, err := l.state(accountID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Position, 0, len(st.positions))
	for _, p := range st.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Entries returns a copy of the account's cash ledger.
func (l *Ledger) Entries(accountID string) ([]CashEntry, error) {
	st, err := l.state(accountID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]CashEntry, len(st.entries))
	copy(out, st.entries)
	return out, nil
}

func frozenErr(accountID string) error {
	return fmt.Errorf("%w: account %s frozen pending reconciliation", ErrLedgerInconsistency, accountID)
}
