package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"fmt"
	"os"
	"strings"
)

type credentialsFile struct {
	Key string `json:"key"`
}

// LoadCredentials 读取 {"key": "..."} 格式的凭证文件
func LoadCredentials(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	var f credentialsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("failed to parse credentials file: %w", err)
	}
	key := strings.TrimSpace(f.Key)
	if key == "" {
		return "", fmt.Errorf("credentials file %s has no key", path)
	}
	return key, nil
}

// ResolveAPIKey 返回生成服务 API Key：配置值优先，否则读取凭证文件。
// 两者都不可用时返回空串，调用方在首次生成时报告 CONFIGURATION_MISSING。
func (g *GeminiConfig) ResolveAPIKey() (string, error) {
	if key := strings.TrimSpace(g.APIKey); key != "" {
		return key, nil
	}
	if g.CredentialsPath == "" {
		return "", nil
	}
	key, err := LoadCredentials(g.CredentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return key, nil
}
