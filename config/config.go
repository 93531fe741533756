// config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAdminSignupKey is used when ADMIN_SIGNUP_KEY is not set. Deployments must override it.
const DefaultAdminSignupKey = "pcba-admin-signup-key"

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type MongoConfig struct {
	URI                    string        `mapstructure:"uri"`
	DBName                 string        `mapstructure:"dbName"`
	MinPoolSize            uint64        `mapstructure:"minPoolSize"`
	MaxPoolSize            uint64        `mapstructure:"maxPoolSize"`
	MaxConnIdleTime        time.Duration `mapstructure:"maxConnIdleTime"`
	SocketTimeout          time.Duration `mapstructure:"socketTimeout"`
	ServerSelectionTimeout time.Duration `mapstructure:"serverSelectionTimeout"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type AuthConfig struct {
	AdminSignupKey string `mapstructure:"adminSignupKey"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allowOrigins"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

// SeedConfig describes the admin account created on first boot. Empty email disables seeding.
type SeedConfig struct {
	AdminEmail    string `mapstructure:"adminEmail"`
	AdminPassword string `mapstructure:"adminPassword"`
	AdminName     string `mapstructure:"adminName"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Redis  RedisConfig  `mapstructure:"redis"`
	S3     S3Config     `mapstructure:"s3"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Log    LogConfig    `mapstructure:"log"`
	Seed   SeedConfig   `mapstructure:"seed"`
}

// UsesDefaultAdminKey reports whether admin signup is still guarded by the built-in key.
func (c Config) UsesDefaultAdminKey() bool {
	return c.Auth.AdminSignupKey == DefaultAdminSignupKey
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "pcba_mpi")
	v.SetDefault("mongo.minPoolSize", 2)
	v.SetDefault("mongo.maxPoolSize", 10)
	v.SetDefault("mongo.maxConnIdleTime", 30*time.Second)
	v.SetDefault("mongo.socketTimeout", 45*time.Second)
	v.SetDefault("mongo.serverSelectionTimeout", 5*time.Second)

	v.SetDefault("jwt.expiration", 30*24*time.Hour)
	v.SetDefault("auth.adminSignupKey", DefaultAdminSignupKey)
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("log.mode", "development")
	v.SetDefault("seed.adminName", "System Admin")
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()
	v.BindEnv("mongo.uri", "MONGODB_URI")
	v.BindEnv("mongo.dbName", "MONGODB_DB")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("auth.adminSignupKey", "ADMIN_SIGNUP_KEY")
	v.BindEnv("log.mode", "LOG_MODE")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.ttl", "CACHE_TTL")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("cors.allowOrigins", "CORS_ALLOW_ORIGINS")
	v.BindEnv("seed.adminEmail", "SEED_ADMIN_EMAIL")
	v.BindEnv("seed.adminPassword", "SEED_ADMIN_PASSWORD")

	// Missing config.yaml is fine, env vars and defaults still apply.
	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	// CORS_ALLOW_ORIGINS arrives as a single comma separated string.
	config.CORS.AllowOrigins = splitList(strings.Join(config.CORS.AllowOrigins, ","))

	if config.JWT.Secret == "" {
		err = errors.New("jwt secret is required (JWT_SECRET)")
		return
	}

	return
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
