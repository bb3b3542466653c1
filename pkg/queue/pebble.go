package queue

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	cacheSize = 1 << 20 * 16

	tableSep byte = ':'
)

type recordKeyType byte

const (
	messageTPrefix recordKeyType = iota + 1
)

var (
	_ Store = (*PebbleStore)(nil)
)

// PebbleStore persists queue records in an embedded pebble database,
// serialised as msgpack
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	c := pebble.NewCache(cacheSize)
	tc := pebble.NewTableCache(c, 16, 100)

	db, err := pebble.Open(path, &pebble.Options{Cache: c, TableCache: tc})
	if err != nil {
		return nil, errors.Wrap(err, "opening queue store")
	}

	return &PebbleStore{db: db}, nil
}

func typedKey(kType recordKeyType, parts ...string) []byte {
	n := 1
	for _, p := range parts {
		n += len(p) + 1 //add sep as well
	}

	k := make([]byte, 0, n)
	k = append(k, byte(kType))
	for _, p := range parts {
		k = append(k, []byte(p)...)
		k = append(k, tableSep)
	}

	return k
}

func (p *PebbleStore) Insert(_ context.Context, m *Message) error {
	key := typedKey(messageTPrefix, m.ID)

	_, done, err := p.db.Get(key)
	if err == nil {
		done.Close()
		return errors.Errorf("duplicate record %s", m.ID)
	} else if err != pebble.ErrNotFound {
		return errors.Wrap(err, "checking for existing record")
	}

	return p.set(key, m)
}

func (p *PebbleStore) Get(_ context.Context, id string) (*Message, error) {
	d, done, err := p.db.Get(typedKey(messageTPrefix, id))
	if err == pebble.ErrNotFound {
		return nil, errors.Wrap(ErrNotFound, id)
	} else if err != nil {
		return nil, errors.Wrap(err, "reading record")
	}
	defer done.Close()

	m := &Message{}
	if err := msgpack.Unmarshal(d, m); err != nil {
		return nil, errors.Wrap(err, "unmarshalling record")
	}

	return m, nil
}

func (p *PebbleStore) Update(ctx context.Context, m *Message) error {
	if _, err := p.Get(ctx, m.ID); err != nil {
		return err
	}

	return p.set(typedKey(messageTPrefix, m.ID), m)
}

func (p *PebbleStore) Delete(_ context.Context, id string) error {
	return p.db.Delete(typedKey(messageTPrefix, id), &pebble.WriteOptions{Sync: true})
}

func (p *PebbleStore) List(_ context.Context, q Query) ([]*Message, error) {
	iter := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(messageTPrefix)},
		UpperBound: []byte{byte(messageTPrefix) + 1},
	})
	defer iter.Close()

	var out []*Message

	for iter.First(); iter.Valid(); iter.Next() {
		m := &Message{}
		if err := msgpack.Unmarshal(iter.Value(), m); err != nil {
			return nil, errors.Wrap(err, "unmarshalling record")
		}

		if !q.matches(m) {
			continue
		}

		out = append(out, m)

		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}

	return out, nil
}

func (p *PebbleStore) Count(_ context.Context, status Status) (int, error) {
	iter := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(messageTPrefix)},
		UpperBound: []byte{byte(messageTPrefix) + 1},
	})
	defer iter.Close()

	var n int

	for iter.First(); iter.Valid(); iter.Next() {
		m := &Message{}
		if err := msgpack.Unmarshal(iter.Value(), m); err != nil {
			return 0, errors.Wrap(err, "unmarshalling record")
		}

		if m.Status == status {
			n++
		}
	}

	return n, nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func (p *PebbleStore) set(key []byte, m *Message) error {
	d, err := msgpack.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshalling record")
	}

	return p.db.Set(key, d, &pebble.WriteOptions{Sync: true})
}
