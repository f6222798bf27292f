package factory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ispnexporter/internal/pkg/global"
	"ispnexporter/pkg/mbean"
	"ispnexporter/pkg/mbean/jolokia"

	"github.com/stretchr/testify/require"
)

func TestNewBackendByType(t *testing.T) {
	tests := []struct {
		name    string
		conf    global.BackendConfig
		expErr  bool
		checkFn func(t *testing.T, s mbean.Server)
	}{
		{
			name: "jolokia",
			conf: global.BackendConfig{
				Type: BackendJolokia,
				Options: map[string]interface{}{
					"url":      "http://127.0.0.1:8080/jolokia",
					"username": "admin",
					"timeout":  "3s",
					"headers":  map[string]interface{}{"X-Origin": "exporter"},
				},
			},
			checkFn: func(t *testing.T, s mbean.Server) {
				c, ok := s.(*jolokia.Client)
				require.True(t, ok)
				require.Equal(t, "http://127.0.0.1:8080/jolokia", c.URL)
				require.Equal(t, "admin", c.Username)
				require.Equal(t, 3*time.Second, c.Timeout)
				require.Equal(t, map[string]string{"X-Origin": "exporter"}, c.Headers)
			},
		},
		{
			name:   "jolokia without url",
			conf:   global.BackendConfig{Type: BackendJolokia, Options: map[string]interface{}{}},
			expErr: true,
		},
		{
			name: "jolokia unknown option",
			conf: global.BackendConfig{
				Type:    BackendJolokia,
				Options: map[string]interface{}{"url": "http://127.0.0.1:8080/jolokia", "bogus": 1},
			},
			expErr: true,
		},
		{
			name: "static",
			conf: global.BackendConfig{
				Type:    BackendStatic,
				Options: map[string]interface{}{"path": "testdata/keycloak.yml"},
			},
			checkFn: func(t *testing.T, s mbean.Server) {
				_, ok := s.(*mbean.MemoryServer)
				require.True(t, ok)
			},
		},
		{
			name: "static missing file",
			conf: global.BackendConfig{
				Type:    BackendStatic,
				Options: map[string]interface{}{"path": "testdata/nonexistent.yml"},
			},
			expErr: true,
		},
		{
			name:   "unknown type",
			conf:   global.BackendConfig{Type: "rmi"},
			expErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewBackendByType(tt.conf)
			if tt.expErr {
				require.Error(t, err)
				require.Nil(t, s)
				return
			}

			require.NoError(t, err)
			tt.checkFn(t, s)
		})
	}
}

func TestNewBackendByType_StaticIgnoresJolokiaEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exporter.yml")
	conf := "backend:\n  type: static\n  options:\n    path: testdata/keycloak.yml\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))

	t.Setenv(global.EnvJolokiaURL, "http://foobar:8080/jolokia")
	t.Setenv(global.EnvJolokiaUser, "foo")
	t.Setenv(global.EnvJolokiaPassword, "bar")

	require.NoError(t, global.LoadExporterConfig(path))

	s, err := NewBackendByType(global.ExporterConf.Backend)
	require.NoError(t, err)

	_, ok := s.(*mbean.MemoryServer)
	require.True(t, ok)
}
