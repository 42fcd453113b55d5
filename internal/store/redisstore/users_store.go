package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/store"
)

// Key layout: one hash holding serialized records keyed by stringified id,
// one hash mapping email -> id, and one scalar holding the last assigned id
// (INCR hands out the next one).
const (
	usersKey  = "users"
	emailsKey = "users:by_email"
	nextIDKey = "users:next_id"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// UsersStore persists the directory in redis. Uniqueness-check-and-insert is
// a single server-side script, so concurrent creates with the same email
// cannot race.
type UsersStore struct {
	rdb *redis.Client
	log *slog.Logger
}

// record is the persisted form of a User; unlike the API projection it
// carries the stored credential.
type record struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Credential string `json:"credential"`
	Avatar     string `json:"avatar,omitempty"`
}

func (r record) user() user.User {
	return user.User(r)
}

var createScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return 0
end
local id = redis.call('INCR', KEYS[3])
local rec = cjson.decode(ARGV[2])
rec['id'] = id
redis.call('HSET', KEYS[1], tostring(id), cjson.encode(rec))
redis.call('HSET', KEYS[2], ARGV[1], tostring(id))
return id
`)

var updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
if ARGV[2] ~= ARGV[3] then
  if redis.call('HEXISTS', KEYS[2], ARGV[3]) == 1 then
    return -1
  end
  redis.call('HDEL', KEYS[2], ARGV[2])
  redis.call('HSET', KEYS[2], ARGV[3], ARGV[1])
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[4])
return 1
`)

var deleteScript = redis.NewScript(`
local rec = redis.call('HGET', KEYS[1], ARGV[1])
if not rec then
  return 0
end
local u = cjson.decode(rec)
redis.call('HDEL', KEYS[1], ARGV[1])
if u['email'] then
  redis.call('HDEL', KEYS[2], u['email'])
end
return 1
`)

var seedScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], '1') == 1 then
  return 0
end
redis.call('HSET', KEYS[1], '1', ARGV[1])
redis.call('HSET', KEYS[2], ARGV[2], '1')
redis.call('SET', KEYS[3], '1')
return 1
`)

// New connects, verifies connectivity and seeds the super admin record if the
// collection is empty. A connection failure surfaces immediately so the
// caller can decide to fall back.
func New(ctx context.Context, cfg Config, seed store.SeedAdmin, log *slog.Logger) (*UsersStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	s := &UsersStore{rdb: rdb, log: log}

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if err := s.seedAdmin(ctx, seed); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	return s, nil
}

func (s *UsersStore) seedAdmin(ctx context.Context, seed store.SeedAdmin) error {
	rec := record{
		ID:         1,
		Name:       seed.Name,
		Email:      seed.Email,
		Role:       user.RoleSuperAdmin,
		Credential: seed.Credential,
	}

	raw, err := json.Marshal(rec)

	if err != nil {
		return err
	}

	created, err := seedScript.Run(ctx, s.rdb, []string{usersKey, emailsKey, nextIDKey}, raw, seed.Email).Int()

	if err != nil {
		return err
	}

	if created == 1 {
		s.log.Info("seeded super admin record", "email", seed.Email)
	}

	return nil
}

func (s *UsersStore) FindByEmail(ctx context.Context, email string) (user.User, error) {
	id, err := s.rdb.HGet(ctx, emailsKey, email).Result()

	if err == redis.Nil {
		return user.User{}, store.ErrNotFound
	}

	if err != nil {
		return user.User{}, s.unavailable("find_by_email", err)
	}

	raw, err := s.rdb.HGet(ctx, usersKey, id).Result()

	if err == redis.Nil {
		// index points at a record that no longer exists
		return user.User{}, store.ErrNotFound
	}

	if err != nil {
		return user.User{}, s.unavailable("find_by_email", err)
	}

	return decode(raw)
}

func (s *UsersStore) FindByID(ctx context.Context, id int64) (user.User, error) {
	raw, err := s.rdb.HGet(ctx, usersKey, strconv.FormatInt(id, 10)).Result()

	if err == redis.Nil {
		return user.User{}, store.ErrNotFound
	}

	if err != nil {
		return user.User{}, s.unavailable("find_by_id", err)
	}

	return decode(raw)
}

func (s *UsersStore) List(ctx context.Context) ([]user.User, error) {
	raws, err := s.rdb.HGetAll(ctx, usersKey).Result()

	if err != nil {
		return nil, s.unavailable("list", err)
	}

	out := make([]user.User, 0, len(raws))

	for field, raw := range raws {
		u, err := decode(raw)

		if err != nil {
			s.log.Warn("skipping undecodable user record", "field", field)
			continue
		}

		out = append(out, u)
	}

	// hash iteration order is arbitrary; sort by id for a stable listing
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *UsersStore) Create(ctx context.Context, params user.CreateUserParams) (user.User, error) {
	rec := record{
		Name:       params.Name,
		Email:      params.Email,
		Role:       params.Role,
		Credential: params.Credential,
		Avatar:     params.Avatar,
	}

	raw, err := json.Marshal(rec)

	if err != nil {
		return user.User{}, err
	}

	id, err := createScript.Run(ctx, s.rdb, []string{usersKey, emailsKey, nextIDKey}, params.Email, raw).Int64()

	if err != nil {
		return user.User{}, s.unavailable("create", err)
	}

	if id == 0 {
		return user.User{}, store.ErrDuplicateEmail
	}

	rec.ID = id

	return rec.user(), nil
}

func (s *UsersStore) Update(ctx context.Context, id int64, patch user.UpdateUserParams) (user.User, error) {
	existing, err := s.FindByID(ctx, id)

	if err != nil {
		return user.User{}, err
	}

	oldEmail := existing.Email
	patch.Apply(&existing)

	raw, err := json.Marshal(record(existing))

	if err != nil {
		return user.User{}, err
	}

	res, err := updateScript.Run(ctx, s.rdb,
		[]string{usersKey, emailsKey},
		strconv.FormatInt(id, 10), oldEmail, existing.Email, raw,
	).Int()

	if err != nil {
		return user.User{}, s.unavailable("update", err)
	}

	switch res {
	case 0:
		return user.User{}, store.ErrNotFound
	case -1:
		return user.User{}, store.ErrDuplicateEmail
	}

	return existing, nil
}

func (s *UsersStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := deleteScript.Run(ctx, s.rdb,
		[]string{usersKey, emailsKey},
		strconv.FormatInt(id, 10),
	).Int()

	if err != nil {
		return false, s.unavailable("delete", err)
	}

	return res == 1, nil
}

func (s *UsersStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *UsersStore) Close() error {
	return s.rdb.Close()
}

func (s *UsersStore) unavailable(op string, err error) error {
	s.log.Error("redis store error", "op", op, "err", err)
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

func decode(raw string) (user.User, error) {
	var rec record

	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return user.User{}, fmt.Errorf("decode user record: %w", err)
	}

	return rec.user(), nil
}
