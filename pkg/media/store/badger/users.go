package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/marmos91/mediaforge/pkg/account"
)

// Users live under "user/<name>", disjoint from the media prefix.
const userPrefix = "user/"

func keyUser(name string) []byte {
	return []byte(userPrefix + name)
}

type userEntry struct {
	Username     string `cbor:"1,keyasint"`
	PasswordHash string `cbor:"2,keyasint"`
	CreatedAt    int64  `cbor:"3,keyasint"`
}

func (s *Store) CreateUser(ctx context.Context, u *account.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	data, err := encMode.Marshal(userEntry{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyUser(u.Username))
		if err == nil {
			return account.ErrDuplicateUser
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(keyUser(u.Username), data)
	})
}

func (s *Store) GetUser(ctx context.Context, username string) (*account.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var e userEntry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyUser(username))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return account.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := cbor.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode user entry: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &account.User{
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		CreatedAt:    time.Unix(0, e.CreatedAt).UTC(),
	}, nil
}

var _ account.Store = (*Store)(nil)
