package efberr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(FetchFailed, "op", nil))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	base := Wrap(StorageUnavailable, "sqlite: get airport", errors.New("disk I/O error"))

	viaFmt := fmt.Errorf("lookup: %w", base)
	assert.Equal(t, StorageUnavailable, KindOf(viaFmt))
	assert.True(t, IsStorageUnavailable(viaFmt))
	assert.False(t, IsFetchFailed(viaFmt))

	// eris context underneath the kind is preserved in the message.
	tagged := Wrap(FetchFailed, "fetch: metar", eris.New("dial tcp: connection refused"))
	assert.True(t, IsFetchFailed(tagged))
	assert.Contains(t, tagged.Error(), "connection refused")
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("build: %w", ErrInsufficientWaypoints)
	assert.ErrorIs(t, err, ErrInsufficientWaypoints)
	assert.NotErrorIs(t, err, ErrInvalidPerformance)
	assert.True(t, IsInvalidInput(err))

	assert.True(t, IsFetchFailed(ErrTimeout))
	assert.True(t, IsFetchFailed(ErrNetworkUnavailable))
}

func TestIs_KindTarget(t *testing.T) {
	err := Wrap(NotFound, "charts: region", errors.New("no region KSFO-1"))
	assert.ErrorIs(t, err, &Error{Kind: NotFound})
	assert.NotErrorIs(t, err, &Error{Kind: InvalidInput})
}

func TestIsKind_Nested(t *testing.T) {
	inner := Wrap(FetchFailed, "fetch: metar", ErrTimeout)
	outer := Wrap(Stale, "weather: refresh", inner)
	assert.True(t, IsStale(outer))
	assert.True(t, IsFetchFailed(outer))
	assert.Equal(t, Stale, KindOf(outer))
}

func TestError_Message(t *testing.T) {
	err := New(InvalidInput, "geoindex: nearest", "count must be positive")
	assert.Equal(t, "geoindex: nearest: invalid_input: count must be positive", err.Error())
}
