package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig Database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres | sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig WEB configuration
type WebConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // hours
}

// LogConfig logger configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// AuthConfig selects the operator identity provider
type AuthConfig struct {
	Provider string `yaml:"provider"` // local | ldap | radius

	LdapURL      string `yaml:"ldap_url"`
	LdapBaseDN   string `yaml:"ldap_base_dn"`
	LdapBindDN   string `yaml:"ldap_bind_dn"`
	LdapBindPass string `yaml:"ldap_bind_pass"`
	LdapFilter   string `yaml:"ldap_filter"` // e.g. (uid=%s)

	RadiusAddr   string `yaml:"radius_addr"`
	RadiusSecret string `yaml:"radius_secret"`
}

// SmtpConfig mail delivery for receipts and stock alerts
type SmtpConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Passwd  string `yaml:"passwd"`
	From    string `yaml:"from"`
	AlertTo string `yaml:"alert_to"`
}

// PosConfig checkout settings
type PosConfig struct {
	TaxRate  float64 `yaml:"tax_rate"`
	DemoData bool    `yaml:"demo_data"`
}

type AppConfig struct {
	System   SysConfig  `yaml:"system"`
	Web      WebConfig  `yaml:"web"`
	Database DBConfig   `yaml:"database"`
	Logger   LogConfig  `yaml:"logger"`
	Auth     AuthConfig `yaml:"auth"`
	Smtp     SmtpConfig `yaml:"smtp"`
	Pos      PosConfig  `yaml:"pos"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) GetPublicDir() string {
	return path.Join(c.System.Workdir, "public")
}

// TokenTTL returns the operator session lifetime
func (c *AppConfig) TokenTTL() time.Duration {
	if c.Web.TokenTTL <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Web.TokenTTL) * time.Hour
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
	_ = os.MkdirAll(c.GetPublicDir(), 0o755)
}

func setEnvValue(name string, val *string) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = evalue
	}
}

func setEnvBoolValue(name string, val *bool) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		*val = cast.ToBool(strings.TrimSpace(evalue))
	}
}

func setEnvIntValue(name string, val *int) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	p, err := cast.ToIntE(strings.TrimSpace(evalue))
	if err == nil && p > 0 {
		*val = p
	}
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "ToughPOS",
		Location: "Asia/Jakarta",
		Workdir:  "/var/toughpos",
		Debug:    true,
	},
	Web: WebConfig{
		Host:     "0.0.0.0",
		Port:     1880,
		Secret:   "9b6de5cc-0731-4bf1-toughpos-ef7a2a0b4b33",
		TokenTTL: 12,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "toughpos",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/toughpos/toughpos.log",
	},
	Auth: AuthConfig{
		Provider:   "local",
		LdapFilter: "(uid=%s)",
	},
	Smtp: SmtpConfig{
		Port: 587,
	},
	Pos: PosConfig{
		TaxRate:  0.11,
		DemoData: false,
	},
}

// LoadConfig reads the yaml file at cfile (if any) on top of the defaults,
// then applies environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := *DefaultAppConfig
	if cfile == "" {
		cfile = "toughpos.yml"
	}
	if _, err := os.Stat(cfile); err == nil {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	setEnvValue("TOUGHPOS_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvBoolValue("TOUGHPOS_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("TOUGHPOS_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("TOUGHPOS_WEB_PORT", &cfg.Web.Port)
	setEnvValue("TOUGHPOS_JWT_SECRET", &cfg.Web.Secret)

	setEnvValue("TOUGHPOS_DB_TYPE", &cfg.Database.Type)
	setEnvValue("TOUGHPOS_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("TOUGHPOS_DB_PORT", &cfg.Database.Port)
	setEnvValue("TOUGHPOS_DB_NAME", &cfg.Database.Name)
	setEnvValue("TOUGHPOS_DB_USER", &cfg.Database.User)
	setEnvValue("TOUGHPOS_DB_PASSWD", &cfg.Database.Passwd)
	setEnvBoolValue("TOUGHPOS_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("TOUGHPOS_AUTH_PROVIDER", &cfg.Auth.Provider)
	setEnvValue("TOUGHPOS_SMTP_HOST", &cfg.Smtp.Host)
	setEnvIntValue("TOUGHPOS_SMTP_PORT", &cfg.Smtp.Port)

	if cfg.Pos.TaxRate <= 0 {
		cfg.Pos.TaxRate = DefaultAppConfig.Pos.TaxRate
	}

	cfg.initDirs()
	return &cfg, nil
}
