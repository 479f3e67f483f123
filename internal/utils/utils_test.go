package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-tenant-auth/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	a, err := utils.RandomToken(32)
	require.NoError(t, err)
	b, err := utils.RandomToken(32)
	require.NoError(t, err)

	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}

func TestHashToken(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", utils.HashToken(""))
	require.Len(t, utils.HashToken("abc"), 64)
	require.Equal(t, utils.HashToken("abc"), utils.HashToken("abc"))
}

func TestPtr_CopiesValue(t *testing.T) {
	v := 1
	p := utils.Ptr(v)
	v = 2
	require.Equal(t, 1, *p)
	require.NotSame(t, utils.Ptr(v), utils.Ptr(v))
}
