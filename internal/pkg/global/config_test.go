// Copyright 2022 Metrika Inc.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package global

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), DefaultConfigName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestCreateLogFolders(t *testing.T) {
	testCases := []struct {
		paths []string
	}{
		{[]string{"/tmp/ispn-exporter/randomfile", "relativeFolder/randomfile"}},
	}

	for _, tc := range testCases {
		ExporterConf.Runtime.Log.Outputs = tc.paths
		err := createLogFolders()
		require.NoError(t, err)
		for _, path := range ExporterConf.Runtime.Log.Outputs {
			_, err := os.Create(path)
			require.NoError(t, err)
			defer func(path string) {
				pathSplit := strings.Split(path, "/")
				if len(pathSplit) == 1 {
					os.Remove(path)
				} else {
					os.RemoveAll(strings.Join(pathSplit[:len(pathSplit)-1], "/"))
				}
			}(path)
			_, err = os.Stat(path)
			require.NoError(t, err)
		}
	}

	ExporterConf.Runtime.Log.Outputs = []string{"invalid/"}
	require.Error(t, createLogFolders())
	ExporterConf.Runtime.Log.Outputs = nil
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
---
backend:
  options:
    url: http://127.0.0.1:8080/jolokia
`)

	err := LoadExporterConfig(path)
	require.NoError(t, err)

	require.Equal(t, DefaultMetricsAddr, ExporterConf.Runtime.MetricsAddr)
	require.Equal(t, DefaultCSVPath, ExporterConf.Runtime.CSVPath)
	require.False(t, *ExporterConf.Runtime.HostHeaderValidationEnabled)
	require.Equal(t, DefaultAllowedHosts, ExporterConf.Runtime.AllowedHosts)
	require.Equal(t, DefaultBackendType, ExporterConf.Backend.Type)
	require.Equal(t, DefaultStartupWait, ExporterConf.Backend.StartupWait)
	require.Equal(t, "http://127.0.0.1:8080/jolokia", ExporterConf.Backend.Options["url"])
	require.Equal(t, zapcore.InfoLevel, ExporterConf.Runtime.Log.Level())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
---
runtime:
  metrics_addr: 127.0.0.1:9500
  csv_path: /csv
  csv_content_type: text/plain; version=0.0.4
  csv_metadata: true
  host_header_validation_enabled: true
  allowed_hosts: [exporter.local]
  logging:
    level: debug
backend:
  type: static
  startup_wait: 5s
  options:
    path: testdata/fixture.yml
collector:
  skip_caches: [work]
`)

	err := LoadExporterConfig(path)
	require.NoError(t, err)

	rt := ExporterConf.Runtime
	require.Equal(t, "127.0.0.1:9500", rt.MetricsAddr)
	require.Equal(t, "/csv", rt.CSVPath)
	require.Equal(t, "text/plain; version=0.0.4", rt.CSVContentType)
	require.True(t, rt.CSVMetadata)
	require.True(t, *rt.HostHeaderValidationEnabled)
	require.Equal(t, []string{"exporter.local"}, rt.AllowedHosts)
	require.Equal(t, zapcore.DebugLevel, rt.Log.Level())

	require.Equal(t, "static", ExporterConf.Backend.Type)
	require.Equal(t, 5*time.Second, ExporterConf.Backend.StartupWait)
	require.Equal(t, "testdata/fixture.yml", ExporterConf.Backend.Options["path"])
	require.Equal(t, []string{"work"}, ExporterConf.Collector.SkipCaches)
}

func TestLoadConfig_Priority(t *testing.T) {
	path := writeConfig(t, `
---
runtime:
  metrics_addr: 127.0.0.1:9600
`)

	configFilePriorityWas := ConfigFilePriority
	ConfigFilePriority = []string{filepath.Join(t.TempDir(), "missing.yml"), path}
	defer func() { ConfigFilePriority = configFilePriorityWas }()

	err := LoadExporterConfig("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9600", ExporterConf.Runtime.MetricsAddr)

	err = LoadExporterConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
---
backend:
  type: jolokia
  options:
    url: <jolokia_url>
    username: <user>
`)

	t.Setenv(EnvJolokiaURL, "http://foobar:8080/jolokia")
	t.Setenv(EnvJolokiaUser, "foo")
	t.Setenv(EnvJolokiaPassword, "bar")

	err := LoadExporterConfig(path)
	require.NoError(t, err)

	require.Equal(t, "http://foobar:8080/jolokia", ExporterConf.Backend.Options["url"])
	require.Equal(t, "foo", ExporterConf.Backend.Options["username"])
	require.Equal(t, "bar", ExporterConf.Backend.Options["password"])
}

func TestLoadConfig_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvJolokiaPassword+"=fromfile\n"), 0o644))

	path := writeConfig(t, `
---
env_file: `+envFile+`
`)

	// godotenv does not override variables already set
	t.Setenv(EnvJolokiaPassword, "")
	os.Unsetenv(EnvJolokiaPassword)

	err := LoadExporterConfig(path)
	require.NoError(t, err)
	require.Equal(t, "fromfile", ExporterConf.Backend.Options["password"])

	os.Unsetenv(EnvJolokiaPassword)

	path = writeConfig(t, `
---
env_file: /nonexistent/.env
`)
	require.Error(t, LoadExporterConfig(path))
}

func TestLoadConfig_EnvOverrideIgnoredForStatic(t *testing.T) {
	path := writeConfig(t, `
---
backend:
  type: static
  options:
    path: testdata/keycloak.yml
`)

	t.Setenv(EnvJolokiaURL, "http://foobar:8080/jolokia")
	t.Setenv(EnvJolokiaUser, "foo")

	err := LoadExporterConfig(path)
	require.NoError(t, err)

	require.Equal(t, map[string]interface{}{"path": "testdata/keycloak.yml"}, ExporterConf.Backend.Options)
}
