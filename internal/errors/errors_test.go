package errors_test

import (
	stderrors "errors"
	"testing"

	autherrors "github.com/jrsteele09/go-tenant-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestNewf_KeepsKind(t *testing.T) {
	err := autherrors.Newf(autherrors.ErrConflict, "email %s already registered", "a@x.com")
	require.ErrorIs(t, err, autherrors.ErrConflict)
	require.Equal(t, "email a@x.com already registered: conflict", err.Error())
	require.Equal(t, autherrors.ErrConflict, autherrors.Kind(err))
}

func TestWrapf_NilPassthrough(t *testing.T) {
	require.NoError(t, autherrors.Wrapf(nil, "ignored"))
}

func TestWrapf_KeepsKind(t *testing.T) {
	err := autherrors.Wrapf(autherrors.ErrNotFound, "[Store GetUser] %s", "u-1")
	require.Equal(t, autherrors.ErrNotFound, autherrors.Kind(err))
	require.Contains(t, err.Error(), "u-1")
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := autherrors.Unavailable(cause, "redis get")

	require.ErrorIs(t, err, autherrors.ErrStoreUnavailable)
	require.ErrorIs(t, err, cause)
	require.Equal(t, autherrors.ErrStoreUnavailable, autherrors.Kind(err))
}

func TestKind_Unknown(t *testing.T) {
	require.Nil(t, autherrors.Kind(stderrors.New("boom")))
	require.Nil(t, autherrors.Kind(nil))
}
