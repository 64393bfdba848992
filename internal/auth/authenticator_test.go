package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tgpulse/internal/apperr"
	"github.com/Veraticus/tgpulse/internal/auth"
	"github.com/Veraticus/tgpulse/internal/mocks"
	"github.com/Veraticus/tgpulse/internal/session"
	"github.com/Veraticus/tgpulse/internal/telegram"
)

type recordingAttacher struct {
	err    error
	tokens []string
	mu     sync.Mutex
}

func (r *recordingAttacher) Attach(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return r.err
}

type fixture struct {
	auth     *auth.Authenticator
	registry *session.Registry
	dialer   *mocks.MockDialer
	attacher *recordingAttacher
}

func newFixture(conns ...*mocks.MockConn) *fixture {
	f := &fixture{
		registry: session.NewRegistry(),
		dialer:   mocks.NewMockDialer(conns...),
		attacher: &recordingAttacher{},
	}
	f.auth = auth.NewAuthenticator(f.dialer, f.registry, f.attacher)
	return f
}

func TestPasswordLoginScenario(t *testing.T) {
	ctx := context.Background()
	conn := mocks.NewMockConn()
	conn.SetCodeHash("H1")
	conn.SignInFunc = func(context.Context, string, string, string) error {
		return telegram.ErrPasswordNeeded
	}
	conn.CheckPasswordFunc = func(_ context.Context, pw string) error {
		if pw != "hunter2" {
			return telegram.ErrPasswordInvalid
		}
		return nil
	}
	f := newFixture(conn)

	hash, err := f.auth.SendCode(ctx, "+1555")
	require.NoError(t, err)
	assert.Equal(t, "H1", hash)

	res, err := f.auth.SignIn(ctx, "+1555", "000000", "H1")
	require.NoError(t, err)
	assert.True(t, res.NeedsPassword)
	assert.Empty(t, res.Token)

	res, err = f.auth.SignInWithPassword(ctx, "+1555", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.False(t, res.NeedsPassword)

	s, ok := f.registry.Session(res.Token)
	require.True(t, ok)
	assert.Same(t, conn, s.Conn, "the login connection becomes the session connection")
	assert.Equal(t, "session-blob", s.Blob)
	assert.Empty(t, f.registry.Activities(res.Token))
	assert.Equal(t, 0, f.registry.PendingLen())
	assert.Equal(t, []string{res.Token}, f.attacher.tokens)
	assert.Len(t, f.dialer.Dialed(), 1, "one connection for the whole handshake")
	assert.False(t, conn.IsDisconnected())
}

func TestSignIn_Direct(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.auth.SendCode(ctx, "+1 (555) 123-4567")
	require.NoError(t, err)

	res, err := f.auth.SignIn(ctx, "+15551234567", "11111", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.False(t, res.NeedsPassword)

	calls := f.dialer.Last().SignInCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hash-123", calls[0].CodeHash, "empty hash falls back to the stored one")
}

func TestSignIn_SessionExpiredVersusInvalidCode(t *testing.T) {
	ctx := context.Background()
	conn := mocks.NewMockConn()
	conn.SignInFunc = func(_ context.Context, _, code, _ string) error {
		if code != "12345" {
			return telegram.ErrCodeInvalid
		}
		return nil
	}
	f := newFixture(conn)

	_, err := f.auth.SignIn(ctx, "+1555", "12345", "H")
	assert.True(t, apperr.Is(err, apperr.KindSessionExpired), "no pending login: %v", err)

	_, err = f.auth.SendCode(ctx, "+1555")
	require.NoError(t, err)

	_, err = f.auth.SignIn(ctx, "+1555", "00000", "H")
	assert.True(t, apperr.Is(err, apperr.KindInvalidCode), "wrong code: %v", err)
	assert.Equal(t, 1, f.registry.PendingLen(), "pending login retained after a wrong code")

	res, err := f.auth.SignIn(ctx, "+1555", "12345", "H")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestSignIn_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"expired code", telegram.ErrCodeExpired, apperr.KindInvalidCode},
		{"flood wait", &telegram.RPCError{Code: 420, Message: "FLOOD_WAIT_30"}, apperr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := mocks.NewMockConn()
			conn.SignInFunc = func(context.Context, string, string, string) error { return tt.err }
			f := newFixture(conn)

			_, err := f.auth.SendCode(context.Background(), "+1555")
			require.NoError(t, err)

			_, err = f.auth.SignIn(context.Background(), "+1555", "1", "")
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, 1, f.registry.PendingLen())
		})
	}
}

func TestSendCode_InvalidPhone(t *testing.T) {
	f := newFixture()

	_, err := f.auth.SendCode(context.Background(), "5551234")
	assert.True(t, apperr.Is(err, apperr.KindInvalidPhone))
	assert.Empty(t, f.dialer.Dialed(), "no connection for an invalid phone")
}

func TestSendCode_UpstreamFailures(t *testing.T) {
	t.Run("dial fails", func(t *testing.T) {
		f := newFixture()
		f.dialer.SetDialError(errors.New("bridge unreachable"))

		_, err := f.auth.SendCode(context.Background(), "+1555")
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
		assert.Contains(t, err.Error(), "bridge unreachable")
	})

	t.Run("send fails", func(t *testing.T) {
		conn := mocks.NewMockConn()
		conn.SendCodeFunc = func(context.Context, string) (*telegram.SentCode, error) {
			return nil, &telegram.RPCError{Code: 400, Message: "PHONE_NUMBER_INVALID"}
		}
		f := newFixture(conn)

		_, err := f.auth.SendCode(context.Background(), "+1555")
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
		assert.Contains(t, err.Error(), "PHONE_NUMBER_INVALID")
		assert.True(t, conn.IsDisconnected())
		assert.Equal(t, 0, f.registry.PendingLen())
	})
}

func TestSendCode_ReplacesPendingLogin(t *testing.T) {
	first := mocks.NewMockConn()
	second := mocks.NewMockConn()
	f := newFixture(first, second)

	_, err := f.auth.SendCode(context.Background(), "+1555")
	require.NoError(t, err)
	_, err = f.auth.SendCode(context.Background(), "+1555")
	require.NoError(t, err)

	assert.True(t, first.IsDisconnected())
	assert.False(t, second.IsDisconnected())

	p, ok := f.registry.Pending("+1555")
	require.True(t, ok)
	assert.Same(t, second, p.Conn)
}

func TestSignInWithPassword_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no pending login", func(t *testing.T) {
		f := newFixture()
		_, err := f.auth.SignInWithPassword(ctx, "+1555", "pw")
		assert.True(t, apperr.Is(err, apperr.KindSessionExpired))
	})

	t.Run("password not requested", func(t *testing.T) {
		f := newFixture()
		_, err := f.auth.SendCode(ctx, "+1555")
		require.NoError(t, err)

		_, err = f.auth.SignInWithPassword(ctx, "+1555", "pw")
		assert.True(t, apperr.Is(err, apperr.KindSessionExpired))
	})

	t.Run("wrong password", func(t *testing.T) {
		conn := mocks.NewMockConn()
		conn.SignInFunc = func(context.Context, string, string, string) error { return telegram.ErrPasswordNeeded }
		conn.CheckPasswordFunc = func(context.Context, string) error { return telegram.ErrPasswordInvalid }
		f := newFixture(conn)

		_, err := f.auth.SendCode(ctx, "+1555")
		require.NoError(t, err)
		_, err = f.auth.SignIn(ctx, "+1555", "1", "")
		require.NoError(t, err)

		_, err = f.auth.SignInWithPassword(ctx, "+1555", "nope")
		assert.True(t, apperr.Is(err, apperr.KindInvalidPassword))
		assert.Equal(t, 1, f.registry.PendingLen())
	})
}

func TestFinalize_AttachFailureDestroysSession(t *testing.T) {
	conn := mocks.NewMockConn()
	f := newFixture(conn)
	f.attacher.err = errors.New("subscribe failed")

	_, err := f.auth.SendCode(context.Background(), "+1555")
	require.NoError(t, err)

	_, err = f.auth.SignIn(context.Background(), "+1555", "1", "")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, 0, f.registry.Len())
	assert.True(t, conn.IsDisconnected())
}

func TestLogout(t *testing.T) {
	conn := mocks.NewMockConn()
	f := newFixture(conn)

	_, err := f.auth.SendCode(context.Background(), "+1555")
	require.NoError(t, err)
	res, err := f.auth.SignIn(context.Background(), "+1555", "1", "")
	require.NoError(t, err)

	f.auth.Logout(context.Background(), res.Token)
	f.auth.Logout(context.Background(), res.Token)

	_, ok := f.registry.Session(res.Token)
	assert.False(t, ok)
	assert.Equal(t, 1, conn.DisconnectCount())
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to auth.State
		want     bool
	}{
		{auth.StateNoSession, auth.StateCodeRequested, true},
		{auth.StateNoSession, auth.StateAuthenticated, false},
		{auth.StateCodeRequested, auth.StatePasswordRequired, true},
		{auth.StateCodeRequested, auth.StateAuthenticated, true},
		{auth.StatePasswordRequired, auth.StateAuthenticated, true},
		{auth.StateAuthenticated, auth.StatePasswordRequired, false},
		{auth.StateAuthenticated, auth.StateNoSession, true},
		{auth.State(99), auth.StateNoSession, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := auth.IsValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
