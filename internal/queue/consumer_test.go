package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	line := FormatEvent(SessionEvent{Type: EventLogin, PrincipalID: "p-1", OccurredAt: at})
	assert.Equal(t, "[2026-04-01T10:00:00Z] session.login | principal_id=p-1\n", line)

	line = FormatEvent(SessionEvent{Type: EventReuseDetected, PrincipalID: "p-1", Reason: "stale refresh token", Revoked: true, OccurredAt: at})
	assert.Equal(t, "[2026-04-01T10:00:00Z] session.reuse_detected | principal_id=p-1 | reason=\"stale refresh token\" | revoked=true\n", line)
}

func TestHandleMessageAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	for _, typ := range []string{EventLogin, EventRevoked} {
		body, err := json.Marshal(SessionEvent{Type: typ, PrincipalID: "p-1", OccurredAt: at})
		require.NoError(t, err)
		require.NoError(t, HandleMessage(dir, body))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "security.log"))
	require.NoError(t, err)
	assert.Equal(t,
		"[2026-04-01T10:00:00Z] session.login | principal_id=p-1\n"+
			"[2026-04-01T10:00:00Z] session.revoked | principal_id=p-1\n",
		string(raw))
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, HandleMessage(dir, []byte("{not json")))
	assert.Error(t, HandleMessage(dir, []byte(`{"type":"session.login"}`)))
}
