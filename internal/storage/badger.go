// Package storage implements the persistence bridge on BadgerDB. Every
// document is a JSON value under a prefixed key; the in-memory directory
// mirrors nothing until a call here has returned without error.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Meloken/voicehub/internal/domain"
)

const (
	accountPrefix = "acct:"
	groupPrefix   = "group:"
	membersPrefix = "gmembers:"
	roomPrefix    = "room:"
	msgPrefix     = "msg:"
)

type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	log.Info().Str("module", "storage").Str("dir", dir).Msg("store opened")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func accountKey(username string) []byte { return []byte(accountPrefix + username) }
func groupKey(id domain.GroupID) []byte { return []byte(groupPrefix + string(id)) }
func membersKey(id domain.GroupID) []byte {
	return []byte(membersPrefix + string(id))
}
func roomKey(g domain.GroupID, r domain.RoomID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", roomPrefix, g, r))
}
func msgKey(r domain.RoomID, unixNano int64) []byte {
	// Zero-padded timestamp keeps messages in append order under the prefix.
	return []byte(fmt.Sprintf("%s%s:%020d", msgPrefix, r, unixNano))
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error { return json.Unmarshal(val, v) })
}

func (s *Store) AllGroups(_ context.Context) ([]domain.Group, error) {
	var out []domain.Group
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(groupPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var g domain.Group
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				return err
			}
			out = append(out, g)
		}
		return nil
	})
	return out, err
}

func (s *Store) FindGroup(_ context.Context, id domain.GroupID) (*domain.Group, error) {
	var g domain.Group
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, groupKey(id), &g)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &g, nil
}

func (s *Store) FindRoomsOfGroup(_ context.Context, id domain.GroupID) ([]domain.Room, error) {
	var out []domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(roomPrefix + string(id) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r domain.Room
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *Store) FindGroupMembers(_ context.Context, id domain.GroupID) ([]string, error) {
	var members []string
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getJSON(txn, membersKey(id), &members)
		return err
	})
	return members, err
}

func (s *Store) CreateGroup(_ context.Context, g domain.Group) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, groupKey(g.ID), g); err != nil {
			return err
		}
		if err := setJSON(txn, membersKey(g.ID), []string{g.Owner}); err != nil {
			return err
		}
		return addAccountGroup(txn, g.Owner, g.ID)
	})
}

func (s *Store) RenameGroup(_ context.Context, id domain.GroupID, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var g domain.Group
		found, err := getJSON(txn, groupKey(id), &g)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUnknownGroup
		}
		g.Name = name
		return setJSON(txn, groupKey(id), g)
	})
}

// DeleteGroup removes the group, its member list, its rooms and their
// message backlogs, and the group reference in each member's account.
func (s *Store) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	rooms, err := s.FindRoomsOfGroup(ctx, id)
	if err != nil {
		return err
	}
	members, err := s.FindGroupMembers(ctx, id)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range rooms {
			if err := deletePrefix(txn, []byte(msgPrefix+string(r.ID)+":")); err != nil {
				return err
			}
			if err := txn.Delete(roomKey(id, r.ID)); err != nil {
				return err
			}
		}
		for _, username := range members {
			if err := removeAccountGroup(txn, username, id); err != nil {
				return err
			}
		}
		if err := txn.Delete(membersKey(id)); err != nil {
			return err
		}
		return txn.Delete(groupKey(id))
	})
}

func (s *Store) AddGroupMember(_ context.Context, id domain.GroupID, username string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var members []string
		found, err := getJSON(txn, membersKey(id), &members)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUnknownGroup
		}
		if !lo.Contains(members, username) {
			if err := setJSON(txn, membersKey(id), append(members, username)); err != nil {
				return err
			}
		}
		return addAccountGroup(txn, username, id)
	})
}

func (s *Store) GroupsOfUser(_ context.Context, username string) ([]domain.Group, error) {
	var out []domain.Group
	err := s.db.View(func(txn *badger.Txn) error {
		var acc domain.Account
		found, err := getJSON(txn, accountKey(username), &acc)
		if err != nil || !found {
			return err
		}
		for _, gid := range acc.Groups {
			var g domain.Group
			ok, err := getJSON(txn, groupKey(gid), &g)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, g)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) CreateRoom(_ context.Context, group domain.GroupID, r domain.Room) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(group)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrUnknownGroup
		} else if err != nil {
			return err
		}
		return setJSON(txn, roomKey(group, r.ID), r)
	})
}

func (s *Store) RenameRoom(_ context.Context, group domain.GroupID, room domain.RoomID, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var r domain.Room
		found, err := getJSON(txn, roomKey(group, room), &r)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUnknownRoom
		}
		r.Name = name
		return setJSON(txn, roomKey(group, room), r)
	})
}

func (s *Store) DeleteRoom(_ context.Context, group domain.GroupID, room domain.RoomID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, []byte(msgPrefix+string(room)+":")); err != nil {
			return err
		}
		return txn.Delete(roomKey(group, room))
	})
}

func (s *Store) CreateAccount(_ context.Context, a domain.Account) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(accountKey(a.Username)); err == nil {
			return domain.ErrUsernameTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, accountKey(a.Username), a)
	})
}

func (s *Store) FindAccount(_ context.Context, username string) (*domain.Account, error) {
	var acc domain.Account
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, accountKey(username), &acc)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) AppendMessage(_ context.Context, m domain.StoredMessage) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, msgKey(m.Room, m.Timestamp.UnixNano()), m)
	})
}

// RecentMessages returns the newest messages of a room in chronological
// order, at most limit of them.
func (s *Store) RecentMessages(_ context.Context, room domain.RoomID, limit int) ([]domain.StoredMessage, error) {
	var out []domain.StoredMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(msgPrefix + string(room) + ":")
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var m domain.StoredMessage
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	lo.Reverse(out)
	return out, nil
}

func addAccountGroup(txn *badger.Txn, username string, id domain.GroupID) error {
	var acc domain.Account
	found, err := getJSON(txn, accountKey(username), &acc)
	if err != nil {
		return err
	}
	if !found {
		// Identities without a durable account can still hold live
		// membership; there is just nothing to update here.
		return nil
	}
	if lo.Contains(acc.Groups, id) {
		return nil
	}
	acc.Groups = append(acc.Groups, id)
	return setJSON(txn, accountKey(username), acc)
}

func removeAccountGroup(txn *badger.Txn, username string, id domain.GroupID) error {
	var acc domain.Account
	found, err := getJSON(txn, accountKey(username), &acc)
	if err != nil || !found {
		return err
	}
	acc.Groups = lo.Filter(acc.Groups, func(g domain.GroupID, _ int) bool { return g != id })
	return setJSON(txn, accountKey(username), acc)
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
