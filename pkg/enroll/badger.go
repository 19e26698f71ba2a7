package enroll

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for the database files. Required unless
	// InMemory is set.
	Dir string

	// InMemory keeps the database in memory only.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// OpenBadger opens or creates a BadgerDB profile store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("enroll: BadgerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("enroll: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, speaker string) (Profile, error) {
	if err := validSpeaker(speaker); err != nil {
		return Profile{}, err
	}
	key := profileKey(speaker)
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, speaker)
	}
	if err != nil {
		return Profile{}, err
	}
	return decodeProfile(key, val)
}

func (b *Badger) Put(_ context.Context, p Profile) error {
	if err := validSpeaker(p.Speaker); err != nil {
		return err
	}
	val, err := encodeProfile(p)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(p.Speaker), val)
	})
}

func (b *Badger) Delete(_ context.Context, speaker string) error {
	if err := validSpeaker(speaker); err != nil {
		return err
	}
	key := profileKey(speaker)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, speaker)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (b *Badger) List(_ context.Context) iter.Seq2[Profile, error] {
	prefix := []byte(profilePrefix)
	return func(yield func(Profile, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err == nil {
					var p Profile
					p, err = decodeProfile(item.Key(), val)
					if err == nil {
						if !yield(p, nil) {
							return nil
						}
						continue
					}
				}
				if !yield(Profile{}, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Profile{}, err)
		}
	}
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's logging to slog, dropping info and debug
// messages.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, v ...any)   { b.l.Error(fmt.Sprintf("badger: "+f, v...)) }
func (b badgerLogger) Warningf(f string, v ...any) { b.l.Warn(fmt.Sprintf("badger: "+f, v...)) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}
