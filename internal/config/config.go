package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort         string
	DBDSN           string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	JWTSecret       string
	JWTExpiresMin   int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	CORSOrigins     string
	RedisAddr       string
	RedisPassword   string
	LogLevel        string
	PhoneRegion     string
	UploadDir       string
	PublicBaseURL   string

	// solicitudes
	RequestExpiry time.Duration
	// notificaciones
	NotificationExpiry   time.Duration
	NotificationImageURL string
	ExpirySweepInterval  time.Duration
}

func Load() Config {
	return Config{
		AppPort:              get("APP_PORT", "8080"),
		DBDSN:                must("DB_DSN"),
		DBMaxOpenConns:       getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:       getInt("DB_MAX_IDLE_CONNS", 5),
		JWTSecret:            must("JWT_SECRET"),
		JWTExpiresMin:        getInt("JWT_EXPIRES_MIN", 10080),
		GoogleClientID:       get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:         get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:       get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL:      get("FRONTEND_BASE_URL", "http://localhost:3000"),
		CORSOrigins:          get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),
		RedisAddr:            get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        get("REDIS_PASSWORD", ""),
		LogLevel:             get("LOG_LEVEL", "info"),
		PhoneRegion:          get("PHONE_REGION", "MX"),
		UploadDir:            get("UPLOAD_DIR", "./uploads"),
		PublicBaseURL:        get("APP_BASE_URL", ""),
		RequestExpiry:        time.Duration(getInt("SOLICITUD_EXPIRACION_MINUTOS", 10)) * time.Minute,
		NotificationExpiry:   time.Duration(getInt("NOTIFICATION_EXPIRATION_MINUTES", 60)) * time.Minute,
		NotificationImageURL: get("NOTIFICATION_IMAGE_URL", ""),
		ExpirySweepInterval:  time.Duration(getInt("EXPIRY_SWEEP_SECONDS", 60)) * time.Second,
	}
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
