package directcache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"time"

	"github.com/mo-open/direct-cache-sub001/cache"
)

// Codec converts values to bytes and back.
// Codec errors are returned by Store unchanged.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// GobCodec encodes every value with new gob encoder, so values are self describing.
type GobCodec struct{}

func (GobCodec) Marshal(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := gob.NewEncoder(buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Store is map of encoded values.
type Store struct {
	m     *cache.Map
	codec Codec
}

// NewStore returns store over map. Nil codec means GobCodec.
func NewStore(m *cache.Map, codec Codec) *Store {
	if codec == nil {
		codec = GobCodec{}
	}
	return &Store{m: m, codec: codec}
}

func (s *Store) Map() *cache.Map { return s.m }

func (s *Store) Put(key string, v interface{}, expiry time.Duration) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}
	return s.m.Put(key, data, expiry)
}

// PutIfAbsent stores v, if key is absent. Otherwise present value is decoded into actual,
// if it is not nil.
func (s *Store) PutIfAbsent(key string, v interface{}, expiry time.Duration, actual interface{}) (loaded bool, err error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return false, err
	}
	present, loaded, err := s.m.PutIfAbsent(key, data, expiry)
	if err != nil || !loaded || actual == nil {
		return
	}
	err = s.codec.Unmarshal(present, actual)
	return
}

// Get decodes value into v. It returns false, if key is missing.
func (s *Store) Get(key string, v interface{}) (ok bool, err error) {
	data, ok, err := s.m.Get(key)
	if !ok || err != nil {
		return false, err
	}
	if err = s.codec.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Remove(key string) (bool, error) { return s.m.Remove(key) }
