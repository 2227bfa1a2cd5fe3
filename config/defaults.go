// =============================================================================
// 📦 CharForge 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Gemini:     DefaultGeminiConfig(),
		Generation: DefaultGenerationConfig(),
		Storage:    DefaultStorageConfig(),
		Chat:       DefaultChatConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute, // 图像生成可能较慢
		ShutdownTimeout: 15 * time.Second,
		JWTIssuer:       "charforge",
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		MaxSessions:     1000,
	}
}

// DefaultGeminiConfig 返回默认生成服务配置
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		CredentialsPath: "credentials.json",
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta/models",
		TextModel:       "gemini-2.0-flash",
		ImageModel:      "gemini-2.0-flash-exp-image-generation",
		Timeout:         2 * time.Minute,
		Burst:           1,
	}
}

// DefaultGenerationConfig 返回默认生成配置
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MinValue:      1,
		MaxValue:      5000,
		ImageEnabled:  true,
		BaseDataPath:  "data/base_data.json",
		WatchBaseData: false,
		WatchInterval: time.Second,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{ImageDir: "generated"}
}

// DefaultChatConfig 返回默认对话配置
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Model:             "gemini-2.0-flash",
		SystemInstruction: "당신은 판타지 RPG 세계의 친절한 안내자입니다.",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		HistoryTTL:   7 * 24 * time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "charforge",
		Name:            "charforge",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "charforge",
		SampleRate:   0.1,
	}
}
