package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockServiceConfig struct {
	calls       []string
	configDir   string
	dataDir     string
	validateErr error
}

func (m *mockServiceConfig) ApplyDefaults()     { m.calls = append(m.calls, "defaults") }
func (m *mockServiceConfig) ApplyEnvOverrides() { m.calls = append(m.calls, "env") }

func (m *mockServiceConfig) ResolvePaths(configDir, dataDir string) {
	m.calls = append(m.calls, "paths")
	m.configDir, m.dataDir = configDir, dataDir
}

func (m *mockServiceConfig) Validate() error {
	m.calls = append(m.calls, "validate")
	return m.validateErr
}

func TestApplyServiceConfigs_Order(t *testing.T) {
	a, b := &mockServiceConfig{}, &mockServiceConfig{}
	err := ApplyServiceConfigs("config", "data", a, b)
	assert.NoError(t, err)

	for _, m := range []*mockServiceConfig{a, b} {
		assert.Equal(t, []string{"defaults", "env", "paths", "validate"}, m.calls)
		assert.Equal(t, "config", m.configDir)
		assert.Equal(t, "data", m.dataDir)
	}
}

func TestApplyServiceConfigs_StopsOnError(t *testing.T) {
	a := &mockServiceConfig{validateErr: errors.New("bad section")}
	b := &mockServiceConfig{}

	err := ApplyServiceConfigs("config", "data", a, b)
	assert.EqualError(t, err, "bad section")
	assert.Empty(t, b.calls)
}

func TestApplyServiceConfigs_Empty(t *testing.T) {
	assert.NoError(t, ApplyServiceConfigs("config", "data"))
}
