package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process append-only ledger. Each entry commits to the
// previous one by hash so tampering is detectable with Verify. Used for
// development and tests when no gateway is configured.
type MemoryLedger struct {
	mu       sync.Mutex
	entries  []Entry
	created  map[string]bool
	resolved map[string]bool
}

// Entry is one committed ledger write.
type Entry struct {
	Seq             uint64
	Op              string
	LedgerID        string
	Category        string
	LocationHash    string
	DescriptionHash string
	PrevHash        string
	Hash            string
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		created:  make(map[string]bool),
		resolved: make(map[string]bool),
	}
}

// CreateGrievance implements Ledger.
func (l *MemoryLedger) CreateGrievance(ctx context.Context, category, locationHash, descriptionHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: OpCreate, Kind: KindUnavailable, Err: err}
	}
	if category == "" {
		return "", &Error{Op: OpCreate, Kind: KindReverted, Err: errors.New("empty category")}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.NewString()
	l.append(Entry{Op: OpCreate, LedgerID: id, Category: category, LocationHash: locationHash, DescriptionHash: descriptionHash})
	l.created[id] = true
	return id, nil
}

// ResolveGrievance implements Ledger. Unknown and already resolved ids revert.
func (l *MemoryLedger) ResolveGrievance(ctx context.Context, ledgerID string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: OpResolve, Kind: KindUnavailable, Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.created[ledgerID] {
		return nil, &Error{Op: OpResolve, Kind: KindReverted, Err: fmt.Errorf("unknown grievance %s", ledgerID)}
	}
	if l.resolved[ledgerID] {
		return nil, &Error{Op: OpResolve, Kind: KindReverted, Err: fmt.Errorf("grievance %s already resolved", ledgerID)}
	}
	e := l.append(Entry{Op: OpResolve, LedgerID: ledgerID})
	l.resolved[ledgerID] = true
	return &Receipt{TxHash: "0x" + e.Hash, BlockNumber: e.Seq}, nil
}

// IsResolved reports whether ledgerID has a resolve entry.
func (l *MemoryLedger) IsResolved(ledgerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved[ledgerID]
}

// Entries returns a copy of the chain.
func (l *MemoryLedger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Verify re-walks the chain and reports the first entry whose hash or link is wrong.
func (l *MemoryLedger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := ""
	for i, e := range l.entries {
		if e.PrevHash != prev {
			return fmt.Errorf("entry %d: broken link", i)
		}
		if e.Hash != hashEntry(e) {
			return fmt.Errorf("entry %d: hash mismatch", i)
		}
		prev = e.Hash
	}
	return nil
}

// append must be called with mu held.
func (l *MemoryLedger) append(e Entry) Entry {
	e.Seq = uint64(len(l.entries)) + 1
	if n := len(l.entries); n > 0 {
		e.PrevHash = l.entries[n-1].Hash
	}
	e.Hash = hashEntry(e)
	l.entries = append(l.entries, e)
	return e
}

func hashEntry(e Entry) string {
	h := sha256.New()
	for _, part := range []string{strconv.FormatUint(e.Seq, 10), e.Op, e.LedgerID, e.Category, e.LocationHash, e.DescriptionHash, e.PrevHash} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
