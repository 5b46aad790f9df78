package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAdvisoryLockKey_Stable(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, AdvisoryLockKey(id), AdvisoryLockKey(id))
}

func TestAdvisoryLockKey_NonNegative(t *testing.T) {
	for i := 0; i < 1000; i++ {
		key := AdvisoryLockKey(uuid.New())
		assert.GreaterOrEqual(t, key, int64(0))
	}
}

func TestAdvisoryLockKey_DistinctUsersDistinctKeys(t *testing.T) {
	a := AdvisoryLockKey(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	b := AdvisoryLockKey(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
	assert.NotEqual(t, a, b)
}
