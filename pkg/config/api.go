package config

import "time"

// APIConfig holds runtime configuration for the CrimeSpot API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	TokenIssuer        string
	AccessTokenTTL     time.Duration
	LoginTokenTTL      time.Duration
	BcryptCost         int
	CORSAllowedOrigin  string
	UploadDir          string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
// The JWT secret default exists for local development only; deployments must
// override JWT_SECRET, and rotating it invalidates every outstanding token.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":8000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://crimespot:crimespot@db:5432/crimespot?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", "devonlysecret"),
		TokenIssuer:        GetString("TOKEN_ISSUER", "crimespot"),
		AccessTokenTTL:     GetDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		LoginTokenTTL:      GetDuration("LOGIN_TOKEN_TTL", 30*time.Minute),
		BcryptCost:         GetInt("BCRYPT_COST", 0),
		CORSAllowedOrigin:  GetString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		UploadDir:          GetString("UPLOAD_DIR", ""),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
