package db

// Config is the claims database connection block, mapped from the
// DATABASE_* environment variables by FromAppConfig.
type Config struct {
	Type     string // postgres in deployments; mysql and sqlite for dev
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int // seconds
	ConnMaxIdleTime int // seconds
}
