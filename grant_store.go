package tenauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arlox-io/tenauth/internal"
)

const grantRecordVersionV1 = 1

var (
	errGrantNotFound         = errors.New("grant record not found")
	errGrantRedisUnavailable = errors.New("grant redis unavailable")
)

// grantRecord is the server-side state behind an authorization code: a
// snapshot of the user at code creation plus the issuing client and the
// exchange deadline. The code itself never appears in Redis; records are
// keyed by the code's SHA-256 digest.
type grantRecord struct {
	ClientID    string
	UserID      string
	TenantID    string
	Authorities []string
	Scopes      []string
	ExpiresAt   int64
}

type grantStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newGrantStore(redisClient redis.UniversalClient, prefix string) *grantStore {
	return &grantStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *grantStore) key(code string) string {
	digest := internal.HashGrantCode(code)
	return s.prefix + ":gc:" + internal.EncodeDigest(digest)
}

func (s *grantStore) Save(ctx context.Context, code string, record *grantRecord, ttl time.Duration) error {
	encoded, err := encodeGrantRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(code), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errGrantRedisUnavailable, err)
	}

	return nil
}

// Consume atomically redeems a code: the record is read and deleted in
// one transaction so a code can never be exchanged twice, even under
// concurrent redemption. Expired records are deleted and reported as
// not found.
func (s *grantStore) Consume(ctx context.Context, code string) (*grantRecord, error) {
	const maxRetries = 4
	key := s.key(code)

	for i := 0; i < maxRetries; i++ {
		var matched *grantRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeGrantRecord(data)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				return errGrantNotFound
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, errGrantNotFound):
				return nil, errGrantNotFound
			default:
				return nil, fmt.Errorf("%w: %v", errGrantRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, errGrantNotFound
}

func encodeGrantRecord(record *grantRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(grantRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ClientID, record.UserID, record.TenantID} {
		if err := writeGrantString(&buf, field); err != nil {
			return nil, err
		}
	}
	if err := writeGrantList(&buf, record.Authorities); err != nil {
		return nil, err
	}
	if err := writeGrantList(&buf, record.Scopes); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeGrantRecord(data []byte) (*grantRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != grantRecordVersionV1 {
		return nil, errors.New("invalid grant record version")
	}

	record := &grantRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	for _, target := range []*string{&record.ClientID, &record.UserID, &record.TenantID} {
		value, err := readGrantString(reader)
		if err != nil {
			return nil, err
		}
		*target = value
	}

	if record.Authorities, err = readGrantList(reader); err != nil {
		return nil, err
	}
	if record.Scopes, err = readGrantList(reader); err != nil {
		return nil, err
	}

	return record, nil
}

func writeGrantString(buf *bytes.Buffer, value string) error {
	if len(value) > 65535 {
		return errors.New("grant record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(value))); err != nil {
		return err
	}
	buf.WriteString(value)
	return nil
}

func readGrantString(reader *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return "", err
	}

	value := make([]byte, length)
	if _, err := io.ReadFull(reader, value); err != nil {
		return "", err
	}
	return string(value), nil
}

func writeGrantList(buf *bytes.Buffer, values []string) error {
	if len(values) > 255 {
		return errors.New("grant record list too long")
	}
	buf.WriteByte(byte(len(values)))
	for _, value := range values {
		if err := writeGrantString(buf, value); err != nil {
			return err
		}
	}
	return nil
}

func readGrantList(reader *bytes.Reader) ([]string, error) {
	count, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	values := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		value, err := readGrantString(reader)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
