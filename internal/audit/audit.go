// Package audit implements the append-only violation/exit journal (C9):
// a badger-backed side channel the sandbox backend writes to whenever it
// rejects a path or blocks an operation, independent of the violation
// observer callback (which is for in-process notification, not
// persistence).
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Entry is one audit record.
type Entry struct {
	Time      int64  `json:"time"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// Log is an append-only journal backed by badger. Keys are a monotonic
// sequence number so iteration naturally yields insertion order.
type Log struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (creating if necessary) a badger database at dir for the
// audit journal.
func Open(dir string) (*Log, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	seq, err := db.GetSequence([]byte("audit_seq"), 1000)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit sequence: %w", err)
	}
	return &Log{db: db, seq: seq}, nil
}

func (l *Log) Close() error {
	_ = l.seq.Release()
	return l.db.Close()
}

// Append writes one entry. Append-only failures are logged by the caller,
// not surfaced: an audit log outage must never fail the semihosting
// operation that triggered the violation.
func (l *Log) Append(e Entry) error {
	n, err := l.seq.Next()
	if err != nil {
		return fmt.Errorf("next audit sequence: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	key := fmt.Appendf(nil, "entry:%020d", n)
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Recent returns up to limit of the most recently appended entries.
func (l *Log) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte("entry:\xff")); it.ValidForPrefix([]byte("entry:")) && len(entries) < limit; it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}
