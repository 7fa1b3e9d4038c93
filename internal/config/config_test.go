package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENVIRONMENT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "DB_SQLITE_PATH",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
	"MONGO_URI", "MONGO_DATABASE", "MONGO_CONNECT_TIMEOUT",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"WORKER_ENABLED", "WORKER_CONCURRENCY", "WORKER_POLL_INTERVAL", "WORKER_QUEUES",
	"JWT_SECRET", "JWT_ISSUER", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "BCRYPT_COST",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
	"CORS_ALLOWED_ORIGINS",
}

// clearConfigEnv blanks every variable LoadConfig reads for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
	}
}

func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}
	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}
	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}
	if config.Database.Driver != "postgres" {
		t.Errorf("Expected default DB driver 'postgres', got %s", config.Database.Driver)
	}
	if config.Database.Name != "taskify" {
		t.Errorf("Expected default DB name 'taskify', got %s", config.Database.Name)
	}
	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}
	if config.Mongo.Database != "taskify" {
		t.Errorf("Expected default mongo database 'taskify', got %s", config.Mongo.Database)
	}
	if !config.Redis.Enabled {
		t.Error("Expected redis to be enabled by default")
	}
	if config.Redis.PoolSize != 10 {
		t.Errorf("Expected default Redis pool size 10, got %d", config.Redis.PoolSize)
	}
	if len(config.Worker.Queues) != 1 || config.Worker.Queues[0] != "reminders" {
		t.Errorf("Expected default queue 'reminders', got %v", config.Worker.Queues)
	}
	if config.Auth.Issuer != "taskify-backend" {
		t.Errorf("Expected default issuer 'taskify-backend', got %s", config.Auth.Issuer)
	}
	if config.Auth.AccessTokenTTL != time.Hour {
		t.Errorf("Expected default access token TTL 1h, got %v", config.Auth.AccessTokenTTL)
	}
	if config.Auth.BCryptCost != 10 {
		t.Errorf("Expected default bcrypt cost 10, got %d", config.Auth.BCryptCost)
	}
	if !config.RateLimit.Enabled || config.RateLimit.RequestsPerMin != 100 {
		t.Errorf("Expected rate limiting enabled at 100 rpm, got %+v", config.RateLimit)
	}
	if len(config.CORS.AllowedOrigins) != 1 || config.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Expected default CORS origin, got %v", config.CORS.AllowedOrigins)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	clearConfigEnv(t)
	setEnvVars(t, map[string]string{
		"HOST":                 "0.0.0.0",
		"PORT":                 "9000",
		"ENVIRONMENT":          "production",
		"DB_DRIVER":            "Mongo",
		"MONGO_URI":            "mongodb://mongo.example.com:27017",
		"REDIS_HOST":           "redis.example.com",
		"REDIS_DB":             "1",
		"WORKER_CONCURRENCY":   "8",
		"WORKER_QUEUES":        "reminders, digests",
		"JWT_SECRET":           "super-secret-key",
		"RATE_LIMIT_ENABLED":   "false",
		"READ_TIMEOUT":         "45s",
		"ACCESS_TOKEN_TTL":     "30m",
		"CORS_ALLOWED_ORIGINS": "https://app.example.com,https://admin.example.com",
	})

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.GetServerAddr() != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got %s", config.GetServerAddr())
	}
	if config.Database.Driver != "mongo" {
		t.Errorf("Expected driver 'mongo', got %s", config.Database.Driver)
	}
	if config.Mongo.URI != "mongodb://mongo.example.com:27017" {
		t.Errorf("Expected custom mongo URI, got %s", config.Mongo.URI)
	}
	if config.Redis.DB != 1 {
		t.Errorf("Expected Redis DB 1, got %d", config.Redis.DB)
	}
	if config.Worker.Concurrency != 8 {
		t.Errorf("Expected worker concurrency 8, got %d", config.Worker.Concurrency)
	}
	if len(config.Worker.Queues) != 2 || config.Worker.Queues[1] != "digests" {
		t.Errorf("Expected queues [reminders digests], got %v", config.Worker.Queues)
	}
	if config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}
	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", config.Server.ReadTimeout)
	}
	if config.Auth.AccessTokenTTL != 30*time.Minute {
		t.Errorf("Expected access token TTL 30m, got %v", config.Auth.AccessTokenTTL)
	}
	if len(config.CORS.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 CORS origins, got %v", config.CORS.AllowedOrigins)
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		errorMsg string
	}{
		{
			name:     "Missing database password",
			envVars:  map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "secure-jwt-secret"},
			errorMsg: "database password is required in production",
		},
		{
			name:     "Default JWT secret",
			envVars:  map[string]string{"ENVIRONMENT": "production", "DB_PASSWORD": "secure-db-password"},
			errorMsg: "JWT secret must be set in production",
		},
		{
			name:     "Unknown driver",
			envVars:  map[string]string{"DB_DRIVER": "oracle"},
			errorMsg: `unsupported DB_DRIVER "oracle"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			setEnvVars(t, tt.envVars)

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("Expected error, got none")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Expected error '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestLoadConfig_ProductionSQLiteNeedsNoPassword(t *testing.T) {
	clearConfigEnv(t)
	setEnvVars(t, map[string]string{
		"ENVIRONMENT": "production",
		"DB_DRIVER":   "sqlite",
		"JWT_SECRET":  "secure-jwt-secret",
	})

	if _, err := LoadConfig(); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "require",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require"
	if actual := config.GetDatabaseDSN(); actual != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, actual)
	}

	config.Database.Driver = "sqlite"
	config.Database.SQLitePath = "/tmp/tasks.db"
	if actual := config.GetDatabaseDSN(); actual != "/tmp/tasks.db" {
		t.Errorf("Expected sqlite path as DSN, got '%s'", actual)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{Redis: RedisConfig{Host: "redis.example.com", Port: "6380"}}

	if actual := config.GetRedisAddr(); actual != "redis.example.com:6380" {
		t.Errorf("Expected Redis addr 'redis.example.com:6380', got '%s'", actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, test := range tests {
		config := &Config{Server: ServerConfig{Environment: test.environment}}
		if actual := config.IsProduction(); actual != test.expected {
			t.Errorf("For environment '%s', expected IsProduction() = %v, got %v",
				test.environment, test.expected, actual)
		}
	}
}

func TestGetEnvAsInt(t *testing.T) {
	key := "TEST_INT_VAR"
	os.Unsetenv(key)

	if result := getEnvAsInt(key, 42); result != 42 {
		t.Errorf("Expected default value 42, got %d", result)
	}

	t.Setenv(key, "100")
	if result := getEnvAsInt(key, 42); result != 100 {
		t.Errorf("Expected env value 100, got %d", result)
	}

	t.Setenv(key, "not-a-number")
	if result := getEnvAsInt(key, 42); result != 42 {
		t.Errorf("Expected default value 42 for invalid int, got %d", result)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	testCases := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{"invalid", true},
	}

	for _, tc := range testCases {
		t.Setenv(key, tc.value)
		if result := getEnvAsBool(key, true); result != tc.expected {
			t.Errorf("For value '%s', expected %v, got %v", tc.value, tc.expected, result)
		}
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	t.Setenv(key, "5m")
	if result := getEnvAsDuration(key, time.Second); result != 5*time.Minute {
		t.Errorf("Expected env value 5m, got %v", result)
	}

	t.Setenv(key, "not-a-duration")
	if result := getEnvAsDuration(key, time.Second); result != time.Second {
		t.Errorf("Expected default value 1s for invalid duration, got %v", result)
	}
}

func TestGetEnvAsList(t *testing.T) {
	key := "TEST_LIST_VAR"
	defaults := []string{"a"}

	t.Setenv(key, " , ,")
	if result := getEnvAsList(key, defaults); len(result) != 1 || result[0] != "a" {
		t.Errorf("Expected defaults for blank list, got %v", result)
	}

	t.Setenv(key, "x, y ,z")
	result := getEnvAsList(key, defaults)
	if len(result) != 3 || result[1] != "y" {
		t.Errorf("Expected [x y z], got %v", result)
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	os.Setenv("JWT_SECRET", "secret")
	defer os.Unsetenv("JWT_SECRET")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(); err != nil {
			b.Fatalf("Failed to load config: %v", err)
		}
	}
}
