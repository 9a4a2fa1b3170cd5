package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBProfile remembers who the local user is and which room they were
// in last, so the client can resume where it left off.
type DBProfile struct {
	UserName  string `msgpack:"userName"`
	LastRoom  string `msgpack:"lastRoom"`
	UpdatedAt int64  `msgpack:"updatedAt"`
}

// Single profile per database file.
var profileKey = []byte("profile")

func (p *DBProfile) Key() []byte {
	return profileKey
}

func (p *DBProfile) MarshalBinary() (data []byte, err error) {
	type alias DBProfile
	return msgpack.Marshal((*alias)(p))
}

func (p *DBProfile) UnmarshalBinary(data []byte) error {
	type alias DBProfile
	return msgpack.Unmarshal(data, (*alias)(p))
}

// DBSubscription is one web-push delivery target for the local user.
type DBSubscription struct {
	ID        string `msgpack:"id"`
	Endpoint  string `msgpack:"endpoint"`
	P256dh    string `msgpack:"p256dh"`
	Auth      string `msgpack:"auth"`
	CreatedAt int64  `msgpack:"createdAt"`
}

func (s *DBSubscription) Key() []byte {
	return []byte(s.ID)
}

func (s *DBSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSubscription) UnmarshalBinary(data []byte) error {
	type alias DBSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
