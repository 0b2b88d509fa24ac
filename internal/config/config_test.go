package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigWithModelList 验证候选模型列表能按顺序加载
func TestLoadConfigWithModelList(t *testing.T) {
	yamlContent := `
gateway:
  base_url: "https://ai.example.tech"
  parse_timeout_seconds: 90
  models:
    - model: "llama3:8b"
      temperature: 0.1
      max_tokens: 1500
    - model: "deepseek-r1:8b"
      temperature: 0.1
      max_tokens: 2000
server:
  address: ":9090"
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	require.Len(t, config.Gateway.Models, 2, "候选模型数量与预期不符")
	assert.Equal(t, "llama3:8b", config.Gateway.Models[0].Model, "首个候选模型与预期不符")
	assert.Equal(t, "deepseek-r1:8b", config.Gateway.Models[1].Model, "第二个候选模型与预期不符")
	assert.Equal(t, 2000, config.Gateway.Models[1].MaxTokens)
	assert.Equal(t, ":9090", config.Server.Address)
}

// TestLoadConfigEnvOverride 验证环境变量覆盖网关令牌
func TestLoadConfigEnvOverride(t *testing.T) {
	yamlContent := `
gateway:
  base_url: "https://ai.example.tech"
  token: "yaml_token"
`
	tmpDir, err := os.MkdirTemp("", "config-test-env")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("GATEWAY_TOKEN", "env_token")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "env_token", config.Gateway.Token, "环境变量应覆盖YAML中的令牌")
}

// TestLoadConfigDefaults 验证缺省项的默认填充
func TestLoadConfigDefaults(t *testing.T) {
	yamlContent := `
gateway:
  base_url: "https://ai.example.tech"
`
	tmpDir, err := os.MkdirTemp("", "config-test-defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":8080", config.Server.Address, "服务器地址应有默认值")
	assert.Equal(t, 90, config.Gateway.ParseTimeoutSeconds)
	assert.Equal(t, 60, config.Gateway.SearchTimeoutSeconds)
	assert.NotEmpty(t, config.Gateway.Models, "默认候选模型列表不应为空")
	assert.Equal(t, "5s", config.RabbitMQ.RetryInterval)
}

// TestDefaultConfigForTests 验证测试环境下无配置文件时返回默认配置
func TestDefaultConfigForTests(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err, "测试环境中缺少配置文件不应报错")
	require.NotNil(t, config)
	assert.NotEmpty(t, config.Gateway.Models)
}
