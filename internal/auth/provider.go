package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

// Provider verifies operator credentials
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, username, password string) (*domain.SysOpr, error)
}

// NewProvider returns the provider selected by cfg.Provider
func NewProvider(cfg config.AuthConfig, db *gorm.DB) Provider {
	switch strings.ToLower(cfg.Provider) {
	case "ldap":
		return &LDAPProvider{
			URL:      cfg.LdapURL,
			BaseDN:   cfg.LdapBaseDN,
			BindDN:   cfg.LdapBindDN,
			BindPass: cfg.LdapBindPass,
			Filter:   cfg.LdapFilter,
			db:       db,
		}
	case "radius":
		return &RadiusProvider{Addr: cfg.RadiusAddr, Secret: cfg.RadiusSecret, db: db}
	default:
		return &LocalProvider{db: db}
	}
}

// LocalProvider checks the bcrypt hash stored in sys_opr
type LocalProvider struct {
	db *gorm.DB
}

func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{db: db}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Authenticate(ctx context.Context, username, password string) (*domain.SysOpr, error) {
	var opr domain.SysOpr
	err := p.db.WithContext(ctx).Where("username = ?", username).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if opr.Status != common.ENABLED {
		return nil, ErrOperatorDisabled
	}
	if !common.CheckPassword(opr.Password, password) {
		return nil, ErrInvalidCredentials
	}
	touchLogin(ctx, p.db, &opr)
	return &opr, nil
}

// LDAPProvider searches the user entry with a service account and binds as it
type LDAPProvider struct {
	URL      string
	BaseDN   string
	BindDN   string
	BindPass string
	Filter   string
	db       *gorm.DB
}

func (p *LDAPProvider) Name() string { return "ldap" }

func (p *LDAPProvider) Authenticate(ctx context.Context, username, password string) (*domain.SysOpr, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	conn, err := ldap.DialURL(p.URL)
	if err != nil {
		return nil, errors.Wrap(err, "ldap dial")
	}
	defer conn.Close()

	if p.BindDN != "" {
		if err := conn.Bind(p.BindDN, p.BindPass); err != nil {
			return nil, errors.Wrap(err, "ldap service bind")
		}
	}
	filter := p.Filter
	if filter == "" {
		filter = "(uid=%s)"
	}
	req := ldap.NewSearchRequest(
		p.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 10, false,
		fmt.Sprintf(filter, ldap.EscapeFilter(username)),
		[]string{"dn", "cn", "mail"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, errors.Wrap(err, "ldap search")
	}
	if len(result.Entries) != 1 {
		return nil, ErrInvalidCredentials
	}
	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		zap.L().Info("ldap bind rejected", zap.String("namespace", "auth"), zap.String("username", username))
		return nil, ErrInvalidCredentials
	}
	return provision(ctx, p.db, username, p.Name(), entry.GetAttributeValue("cn"), entry.GetAttributeValue("mail"))
}

// RadiusProvider sends a PAP Access-Request for each sign-in
type RadiusProvider struct {
	Addr   string
	Secret string
	db     *gorm.DB
}

func (p *RadiusProvider) Name() string { return "radius" }

func (p *RadiusProvider) Authenticate(ctx context.Context, username, password string) (*domain.SysOpr, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	packet := radius.New(radius.CodeAccessRequest, []byte(p.Secret))
	if err := rfc2865.UserName_SetString(packet, username); err != nil {
		return nil, err
	}
	if err := rfc2865.UserPassword_SetString(packet, password); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	response, err := radius.Exchange(ctx, packet, p.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "radius exchange")
	}
	if response.Code != radius.CodeAccessAccept {
		return nil, ErrInvalidCredentials
	}
	return provision(ctx, p.db, username, p.Name(), username, "")
}

// provision returns the operator row of an externally verified user,
// creating a cashier account on first sign-in
func provision(ctx context.Context, db *gorm.DB, username, source, realname, email string) (*domain.SysOpr, error) {
	var opr domain.SysOpr
	err := db.WithContext(ctx).Where("username = ?", username).First(&opr).Error
	switch {
	case err == nil:
		if opr.Status != common.ENABLED {
			return nil, ErrOperatorDisabled
		}
		touchLogin(ctx, db, &opr)
		return &opr, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	opr = domain.SysOpr{
		ID:        common.UUIDint64(),
		Realname:  common.If(realname != "", realname, username),
		Email:     common.If(email != "", email, common.NA),
		Username:  username,
		Level:     "cashier",
		Source:    source,
		Status:    common.ENABLED,
		Remark:    "provisioned by " + source,
		LastLogin: time.Now(),
	}
	if err := db.WithContext(ctx).Create(&opr).Error; err != nil {
		return nil, err
	}
	zap.L().Info("provisioned operator", zap.String("namespace", "auth"),
		zap.String("username", username), zap.String("source", source))
	return &opr, nil
}

func touchLogin(ctx context.Context, db *gorm.DB, opr *domain.SysOpr) {
	opr.LastLogin = time.Now()
	if err := db.WithContext(ctx).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", opr.LastLogin).Error; err != nil {
		zap.L().Warn("update last login error", zap.String("namespace", "auth"), zap.Error(err))
	}
}
