package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
const (
	bucketProfiles = "profiles"
	bucketMembers  = "members"
	bucketHashes   = "hashes"
)

// ErrNotFound - Record does not exist
var ErrNotFound = errors.New("record not found")

// Store - Bolt db connection
type Store struct {
	db *bolt.DB
}

// Open - Open the db file and make sure all buckets exist
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketProfiles, bucketMembers, bucketHashes} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close - Close the db connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetGuildProfile - Get the profile record for a guild
func (s *Store) GetGuildProfile(gid string) (p GuildProfile, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketProfiles)).Get([]byte(gid))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &p)
	})
	return p, err
}

// PutGuildProfile - Update the profile record for a guild
func (s *Store) PutGuildProfile(p GuildProfile) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketProfiles)).Put([]byte(p.ID), bts)
	})
}

// DeleteGuildProfile - Remove the profile record for a guild
func (s *Store) DeleteGuildProfile(gid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketProfiles))
		if b.Get([]byte(gid)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(gid))
	})
}

func memberKey(gid, mid string) []byte {
	return []byte(gid + "/" + mid)
}

// GetMemberState - Get the admission record for a guild member
func (s *Store) GetMemberState(gid, mid string) (ms MemberState, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketMembers)).Get(memberKey(gid, mid))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &ms)
	})
	return ms, err
}

// PutMemberState - Update the admission record for a guild member
func (s *Store) PutMemberState(ms MemberState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(ms)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketMembers)).Put(memberKey(ms.GuildID, ms.MemberID), bts)
	})
}

// DeleteMemberState - Remove the admission record for a guild member
func (s *Store) DeleteMemberState(gid, mid string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketMembers)).Delete(memberKey(gid, mid))
	})
}

func hashKey(r HashRecord) []byte {
	return []byte(fmt.Sprintf("%016x/%s/%d", r.Hash, r.MessageID, r.Attachment))
}

// PutHashRecord - Store or update a hash record
func (s *Store) PutHashRecord(r HashRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketHashes)).Put(hashKey(r), bts)
	})
}

// DeleteHashRecord - Remove a hash record
func (s *Store) DeleteHashRecord(r HashRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketHashes)).Delete(hashKey(r))
	})
}

// LoadHashRecords - Read every stored hash record, used to warm the index on start
func (s *Store) LoadHashRecords() (records []HashRecord, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketHashes)).ForEach(func(_, v []byte) error {
			var r HashRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}
