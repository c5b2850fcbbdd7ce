package memory

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository in memory.
type APIKeyRepository struct {
	s *Store
}

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	var (
		info auth.APIKeyInfo
		ok   bool
	)
	r.s.read(func(st *state) { info, ok = st.apiKeys[hash] })
	if !ok {
		return nil, errors.New("api key not found")
	}
	info.Scopes = slices.Clone(info.Scopes)
	return &info, nil
}

func (r *APIKeyRepository) Upsert(_ context.Context, key auth.APIKeyInfo) error {
	r.s.write(func(st *state) {
		for hash, k := range st.apiKeys {
			if k.ID == key.ID {
				delete(st.apiKeys, hash)
			}
		}
		key.Scopes = slices.Clone(key.Scopes)
		st.apiKeys[key.KeyHash] = key
	})
	return nil
}
