package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/redis/go-redis/v9"
)

// consumeNonceScript checks and marks a nonce in one round trip. The reply is
// the status followed, on success, by the field/value pairs of the marked nonce.
// KEYS[1] nonce hash, ARGV[1] candidate message, ARGV[2] now in unix millis.
var consumeNonceScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'message', 'expires_at', 'consumed')
if not v[1] then return {'not_found'} end
if tonumber(v[2]) <= tonumber(ARGV[2]) then return {'expired'} end
if v[3] == '1' then return {'consumed'} end
if v[1] ~= ARGV[1] then return {'mismatch'} end
redis.call('HSET', KEYS[1], 'consumed', '1')
local reply = redis.call('HGETALL', KEYS[1])
table.insert(reply, 1, 'ok')
return reply
`)

// saveCredentialScript writes a credential and appends it to its owner's index.
// A credential saved again keeps its position.
// KEYS[1] credential hash, KEYS[2] owner index, KEYS[3] owner sequence,
// ARGV[1] token hash, ARGV[2..] field/value pairs.
var saveCredentialScript = redis.NewScript(`
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
if not redis.call('ZSCORE', KEYS[2], ARGV[1]) then
  local seq = redis.call('INCR', KEYS[3])
  redis.call('ZADD', KEYS[2], seq, ARGV[1])
end
return 1
`)

// deleteCredentialScript removes a credential only if it belongs to the account.
// KEYS[1] credential hash, KEYS[2] owner index, ARGV[1] account id, ARGV[2] token hash.
var deleteCredentialScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'account_id')
if not owner or owner ~= ARGV[1] then return 0 end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`)

// RedisNonceStore is a Redis implementation of ports.NonceStore
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "warden:nonce:",
	}
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// PutNonce replaces the nonce for an address and lets Redis evict it after the retention window
func (s *RedisNonceStore) PutNonce(ctx context.Context, nonce *core.Nonce) error {
	key := s.prefix + core.NormalizeAddress(nonce.Address)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"address", core.NormalizeAddress(nonce.Address),
			"value", nonce.Value,
			"message", nonce.Message,
			"issued_at", nonce.IssuedAt.UnixMilli(),
			"expires_at", nonce.ExpiresAt.UnixMilli(),
			"consumed", boolFlag(nonce.Consumed),
		)
		pipe.PExpireAt(ctx, key, nonce.ExpiresAt.Add(nonceRetention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// GetNonce returns the stored nonce for an address
func (s *RedisNonceStore) GetNonce(ctx context.Context, address string) (*core.Nonce, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+core.NormalizeAddress(address)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load nonce: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNonceNotFound
	}
	return nonceFromFields(fields)
}

// ConsumeNonce runs the check-and-mark script
func (s *RedisNonceStore) ConsumeNonce(ctx context.Context, address, message string, now time.Time) (*core.Nonce, error) {
	key := s.prefix + core.NormalizeAddress(address)

	reply, err := consumeNonceScript.Run(ctx, s.client, []string{key}, message, now.UnixMilli()).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if len(reply) == 0 {
		return nil, errors.New("empty consume reply")
	}

	switch status := reply[0]; status {
	case "ok":
	case "not_found":
		return nil, core.ErrNonceNotFound
	case "expired":
		return nil, core.ErrNonceExpired
	case "consumed":
		return nil, core.ErrNonceAlreadyConsumed
	case "mismatch":
		return nil, core.ErrNonceMismatch
	default:
		return nil, fmt.Errorf("unexpected consume status %q", status)
	}

	pairs := reply[1:]
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return nonceFromFields(fields)
}

func nonceFromFields(fields map[string]string) (*core.Nonce, error) {
	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt nonce issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt nonce expires_at: %w", err)
	}

	return &core.Nonce{
		Address:   fields["address"],
		Value:     fields["value"],
		Message:   fields["message"],
		IssuedAt:  time.UnixMilli(issuedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
		Consumed:  fields["consumed"] == "1",
	}, nil
}

// RedisCredentialStore is a Redis implementation of ports.CredentialStore.
// Each credential is a hash; a sorted set per account scored by a per-account
// save sequence keeps listing in the order credentials were saved.
type RedisCredentialStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCredentialStore creates a new Redis credential store
func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{
		client: client,
		prefix: "warden:",
	}
}

var _ ports.CredentialStore = (*RedisCredentialStore)(nil)

func (s *RedisCredentialStore) credentialKey(tokenHash string) string {
	return s.prefix + "credential:" + tokenHash
}

func (s *RedisCredentialStore) indexKey(accountID string) string {
	return s.prefix + "credentials:" + accountID
}

func (s *RedisCredentialStore) sequenceKey(accountID string) string {
	return s.prefix + "credentials_seq:" + accountID
}

// SaveCredential stores the credential and indexes it under its owner
func (s *RedisCredentialStore) SaveCredential(ctx context.Context, cred *core.Credential) error {
	expiresAt := ""
	if cred.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(cred.ExpiresAt.UnixNano(), 10)
	}

	keys := []string{
		s.credentialKey(cred.TokenHash),
		s.indexKey(cred.AccountID),
		s.sequenceKey(cred.AccountID),
	}
	err := saveCredentialScript.Run(ctx, s.client, keys,
		cred.TokenHash,
		"id", cred.ID,
		"token_hash", cred.TokenHash,
		"account_id", cred.AccountID,
		"label", cred.Label,
		"created_at", cred.CreatedAt.UnixNano(),
		"expires_at", expiresAt,
		"is_session", boolFlag(cred.IsSession),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// GetCredential looks a credential up by token hash
func (s *RedisCredentialStore) GetCredential(ctx context.Context, tokenHash string) (*core.Credential, error) {
	fields, err := s.client.HGetAll(ctx, s.credentialKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrCredentialNotFound
	}
	return credentialFromFields(fields)
}

// ListCredentials returns the account's credentials in the order they were saved
func (s *RedisCredentialStore) ListCredentials(ctx context.Context, accountID string) ([]*core.Credential, error) {
	hashes, err := s.client.ZRange(ctx, s.indexKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	for i, hash := range hashes {
		cmds[i] = pipe.HGetAll(ctx, s.credentialKey(hash))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	creds := make([]*core.Credential, 0, len(hashes))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Deleted between ZRANGE and HGETALL
			continue
		}
		cred, err := credentialFromFields(fields)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// DeleteCredential removes a credential owned by accountID
func (s *RedisCredentialStore) DeleteCredential(ctx context.Context, accountID, tokenHash string) (bool, error) {
	keys := []string{s.credentialKey(tokenHash), s.indexKey(accountID)}
	n, err := deleteCredentialScript.Run(ctx, s.client, keys, accountID, tokenHash).Int()
	if err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}
	return n == 1, nil
}

func credentialFromFields(fields map[string]string) (*core.Credential, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt credential created_at: %w", err)
	}

	cred := &core.Credential{
		ID:        fields["id"],
		TokenHash: fields["token_hash"],
		AccountID: fields["account_id"],
		Label:     fields["label"],
		CreatedAt: time.Unix(0, createdAt),
		IsSession: fields["is_session"] == "1",
	}

	if raw := fields["expires_at"]; raw != "" {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt credential expires_at: %w", err)
		}
		t := time.Unix(0, expiresAt)
		cred.ExpiresAt = &t
	}
	return cred, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
