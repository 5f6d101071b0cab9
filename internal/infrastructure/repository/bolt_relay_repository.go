package repository

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/util"
)

const (
	relaysBucket   = "relays"
	metadataBucket = "metadata"
	versionKey     = "version"
	cacheVersion   = 0
)

// BoltRelayRepository persists descriptors in a bbolt file, CBOR encoded
// and keyed by fingerprint, so a client can restart without its catalog.
type BoltRelayRepository struct {
	db  *bolt.DB
	log *logging.Logger
}

var _ repository.RelayRepository = (*BoltRelayRepository)(nil)

// NewBoltRelayRepository opens or creates the cache at path.
func NewBoltRelayRepository(path string, log *logging.Logger) (*BoltRelayRepository, error) {
	if log == nil {
		log = logging.MustGetLogger("catalog")
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(relaysBucket)); err != nil {
			return err
		}
		if b := meta.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != cacheVersion {
				return fmt.Errorf("relay cache: incompatible version: %v", b)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{cacheVersion})
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltRelayRepository{db: db, log: log}, nil
}

func (r *BoltRelayRepository) Save(d *entity.RelayDescriptor) error {
	b, err := util.EncodePayload(entity.RelayInfoFrom(d))
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.Fingerprint(), err)
	}
	fp := d.Fingerprint()
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(relaysBucket)).Put(fp[:], b)
	})
}

func (r *BoltRelayRepository) FindByFingerprint(fp vo.Fingerprint) (*entity.RelayDescriptor, error) {
	var d *entity.RelayDescriptor
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(relaysBucket)).Get(fp[:])
		if raw == nil {
			return repository.ErrNotFound
		}
		var err error
		d, err = decodeRelay(raw)
		return err
	})
	return d, err
}

func (r *BoltRelayRepository) FindByFlags(f vo.RelayFlags) ([]*entity.RelayDescriptor, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	var out []*entity.RelayDescriptor
	for _, d := range all {
		if d.HasFlags(f) {
			out = append(out, d)
		}
	}
	return out, nil
}

// All returns every cached relay. Entries that no longer validate are
// skipped.
func (r *BoltRelayRepository) All() ([]*entity.RelayDescriptor, error) {
	var out []*entity.RelayDescriptor
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(relaysBucket)).ForEach(func(k, v []byte) error {
			d, err := decodeRelay(v)
			if err != nil {
				r.log.Warningf("relay cache: skipping %x: %v", k, err)
				return nil
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

// Delete removes a relay from the cache.
func (r *BoltRelayRepository) Delete(fp vo.Fingerprint) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(relaysBucket))
		if bkt.Get(fp[:]) == nil {
			return repository.ErrNotFound
		}
		return bkt.Delete(fp[:])
	})
}

func (r *BoltRelayRepository) Close() error {
	r.db.Sync()
	return r.db.Close()
}

func decodeRelay(raw []byte) (*entity.RelayDescriptor, error) {
	info, err := util.DecodePayload[entity.RelayInfo](raw)
	if err != nil {
		return nil, err
	}
	return info.Descriptor()
}
