package cerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := Wrap(KindLoadFailed, "fetch failed", errors.New("boom"))
	assert.True(t, Is(err, KindLoadFailed))
	assert.False(t, Is(err, KindConflict))
}

func TestNotFound(t *testing.T) {
	err := NotFound("TABLE", "d.t")
	assert.True(t, Is(err, KindNotFound))
	assert.Contains(t, err.Error(), "d.t")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindInternal, "wrapping", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIs_NonCerrError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindNotFound))
}
