package auth

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/pkg/common"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.SysOpr{}))
	return db
}

func TestSessions(t *testing.T) {
	bus := events.NewBus()
	var signals []string
	require.NoError(t, bus.Subscribe(events.TopicAuth, func(c events.Change) { signals = append(signals, c.Op+":"+c.Key) }))

	sessions := NewSessions("secret", time.Hour, bus)
	opr := &domain.SysOpr{ID: 42, Username: "ani", Level: "cashier"}

	token, issued, err := sessions.Issue(opr)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.OperatorID)
	assert.Equal(t, "ani", claims.Username)
	assert.Equal(t, "cashier", claims.Level)

	_, err = NewSessions("other", time.Hour, nil).Parse(token)
	assert.Error(t, err)

	sessions.Revoke(claims)
	assert.False(t, sessions.Present(claims.ID))
	_, err = sessions.Parse(token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.Equal(t, 0, sessions.Purge(time.Now()))
	assert.Equal(t, 1, sessions.Purge(time.Now().Add(2*time.Hour)))
	assert.Equal(t, []string{"signin:ani", "signout:ani"}, signals)
}

func TestExpiredToken(t *testing.T) {
	sessions := NewSessions("secret", -time.Minute, nil)
	token, _, err := sessions.Issue(&domain.SysOpr{ID: 1, Username: "ani"})
	require.NoError(t, err)
	_, err = sessions.Parse(token)
	assert.Error(t, err)
}

func TestLocalProvider(t *testing.T) {
	db := newTestDB(t)
	hash, err := common.HashPassword("rahasia")
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.SysOpr{ID: 1, Username: "ani", Password: hash, Level: "cashier", Status: common.ENABLED}).Error)
	require.NoError(t, db.Create(&domain.SysOpr{ID: 2, Username: "budi", Password: hash, Level: "cashier", Status: common.DISABLED}).Error)

	p := NewLocalProvider(db)
	opr, err := p.Authenticate(context.Background(), "ani", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, int64(1), opr.ID)
	assert.False(t, opr.LastLogin.IsZero())

	_, err = p.Authenticate(context.Background(), "ani", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.Authenticate(context.Background(), "nobody", "rahasia")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.Authenticate(context.Background(), "budi", "rahasia")
	assert.ErrorIs(t, err, ErrOperatorDisabled)
}

func TestRadiusProviderProvisionsOperator(t *testing.T) {
	db := newTestDB(t)
	secret := []byte("testing123")

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	server := radius.PacketServer{
		SecretSource: radius.StaticSecretSource(secret),
		Handler: radius.HandlerFunc(func(w radius.ResponseWriter, r *radius.Request) {
			code := radius.CodeAccessReject
			if rfc2865.UserName_GetString(r.Packet) == "kasir1" && rfc2865.UserPassword_GetString(r.Packet) == "benar" {
				code = radius.CodeAccessAccept
			}
			_ = w.Write(r.Response(code))
		}),
	}
	go func() { _ = server.Serve(conn) }()
	defer server.Shutdown(context.Background())

	p := &RadiusProvider{Addr: conn.LocalAddr().String(), Secret: string(secret), db: db}

	_, err = p.Authenticate(context.Background(), "kasir1", "keliru")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	opr, err := p.Authenticate(context.Background(), "kasir1", "benar")
	require.NoError(t, err)
	assert.Equal(t, "radius", opr.Source)
	assert.Equal(t, "cashier", opr.Level)

	again, err := p.Authenticate(context.Background(), "kasir1", "benar")
	require.NoError(t, err)
	assert.Equal(t, opr.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&domain.SysOpr{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
