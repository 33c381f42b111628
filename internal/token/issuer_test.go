package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "APItestkey"
	testSecret = "test-secret-that-is-long-enough"
)

func TestIssue_ScopeAndGrants(t *testing.T) {
	issuer := NewIssuer(testKey, testSecret, time.Hour)

	for _, tc := range []struct{ room, participant string }{
		{"r1", "Alice"},
		{"remi-voice-demo", "Customer"},
		{"room with spaces", "Bob Smith"},
	} {
		cred, err := issuer.Issue(tc.room, tc.participant, "")
		require.NoError(t, err)
		require.NotEmpty(t, cred.Token)

		claims, err := issuer.Verify(cred.Token)
		require.NoError(t, err)

		assert.Equal(t, tc.participant, claims.Subject)
		assert.Equal(t, tc.participant, claims.Name)
		assert.Equal(t, testKey, claims.Issuer)
		require.NotNil(t, claims.Video)
		assert.Equal(t, tc.room, claims.Video.Room)
		assert.True(t, claims.Video.RoomJoin)
		require.NotNil(t, claims.Video.CanPublish)
		require.NotNil(t, claims.Video.CanSubscribe)
		assert.True(t, *claims.Video.CanPublish)
		assert.True(t, *claims.Video.CanSubscribe)
	}
}

func TestIssue_EncodesExactlyThreeGrants(t *testing.T) {
	issuer := NewIssuer(testKey, testSecret, time.Hour)
	cred, err := issuer.Issue("r1", "Alice", "")
	require.NoError(t, err)

	parsed := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(cred.Token, parsed)
	require.NoError(t, err)

	video, ok := parsed["video"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, video, 4)
	assert.Equal(t, "r1", video["room"])
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, true, video["canPublish"])
	assert.Equal(t, true, video["canSubscribe"])
}

func TestIssue_MissingKeyMaterial(t *testing.T) {
	for _, tc := range []struct{ key, secret string }{
		{"", testSecret},
		{testKey, ""},
		{"", ""},
	} {
		cred, err := NewIssuer(tc.key, tc.secret, time.Hour).Issue("r1", "Alice", "")
		assert.Nil(t, cred)
		assert.True(t, errors.Is(err, ErrConfiguration))
	}
}

func TestIssue_CarriesMetadataAndExpiry(t *testing.T) {
	issuer := NewIssuer(testKey, testSecret, 10*time.Minute)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	cred, err := issuer.Issue("r1", "Alice", `{"agentName":"Ava"}`)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(10*time.Minute), cred.ExpiresAt)

	claims, err := issuer.Verify(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, `{"agentName":"Ava"}`, claims.Metadata)
}

func TestVerify_RejectsExpired(t *testing.T) {
	issuer := NewIssuer(testKey, testSecret, time.Minute)
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }
	cred, err := issuer.Issue("r1", "Alice", "")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(cred.Token)
	assert.Error(t, err)
}

func TestVerify_RejectsForeignKey(t *testing.T) {
	cred, err := NewIssuer(testKey, testSecret, time.Hour).Issue("r1", "Alice", "")
	require.NoError(t, err)

	_, err = NewIssuer(testKey, "another-secret-entirely", time.Hour).Verify(cred.Token)
	assert.Error(t, err)

	_, err = NewIssuer("APIother", testSecret, time.Hour).Verify(cred.Token)
	assert.Error(t, err)
}

func TestVideoGrant_AllowsOnlyItsRoom(t *testing.T) {
	g := &VideoGrant{RoomJoin: true, Room: "r1"}
	assert.True(t, g.Allows("r1"))
	assert.False(t, g.Allows("r2"))
	assert.False(t, (&VideoGrant{Room: "r1"}).Allows("r1"))

	var nilGrant *VideoGrant
	assert.False(t, nilGrant.Allows("r1"))
}

func TestIssuanceError_HidesKeyMaterial(t *testing.T) {
	err := &IssuanceError{Err: errors.New("boom " + testSecret)}
	assert.False(t, strings.Contains(err.Error(), testSecret))
}
