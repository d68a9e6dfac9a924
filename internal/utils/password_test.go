package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltsEachHash(t *testing.T) {
	first, err := HashPassword("same-password", bcrypt.MinCost)
	require.NoError(t, err)
	second, err := HashPassword("same-password", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCheckPasswordHash_RejectsGarbageHash(t *testing.T) {
	assert.False(t, CheckPasswordHash("anything", "not-a-bcrypt-hash"))
}

func TestDummyHash_MatchesRequestedCost(t *testing.T) {
	BurnPasswordCheck("whatever", bcrypt.MinCost+1)

	cost, err := bcrypt.Cost(dummyHash(bcrypt.MinCost + 1))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	assert.Equal(t, dummyHash(bcrypt.MinCost+1), dummyHash(bcrypt.MinCost+1))
}
