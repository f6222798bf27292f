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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	yaml "gopkg.in/yaml.v3"
)

// BackendTypeJolokia backend.type taking the ISPN_JOLOKIA_* overrides
const BackendTypeJolokia = "jolokia"

var (
	// ExporterConf the exporter loaded configuration
	ExporterConf ExporterConfig

	// AppName name to use for directories
	AppName = "ispn-exporter"

	// AppEtcPath for exporter configuration files
	AppEtcPath = filepath.Join("/etc", AppName)

	// DefaultConfigName config filename
	DefaultConfigName = "exporter.yml"

	// DefaultConfigPath file path to load exporter config from
	DefaultConfigPath = filepath.Join(AppEtcPath, "configs", DefaultConfigName)

	// ConfigFilePriority paths searched for a configuration file, in order.
	ConfigFilePriority = []string{
		DefaultConfigName,
		DefaultConfigPath,
	}

	// DefaultMetricsAddr default listen address
	DefaultMetricsAddr = ":9400"

	// DefaultCSVPath default HTTP path for the CSV exposition
	DefaultCSVPath = "/metrics/csv"

	// DefaultBackendType default management backend
	DefaultBackendType = BackendTypeJolokia

	// DefaultStartupWait default time to wait for the backend at startup
	DefaultStartupWait = 30 * time.Second

	// DefaultAllowedHosts hosts accepted when host header validation is on
	DefaultAllowedHosts = []string{"127.0.0.1", "localhost"}
)

// Environment variables overriding the configuration file.
const (
	EnvJolokiaURL      = "ISPN_JOLOKIA_URL"
	EnvJolokiaUser     = "ISPN_JOLOKIA_USER"
	EnvJolokiaPassword = "ISPN_JOLOKIA_PASSWORD"
)

type RuntimeConfig struct {
	MetricsAddr                 string    `yaml:"metrics_addr"`
	CSVPath                     string    `yaml:"csv_path"`
	CSVContentType              string    `yaml:"csv_content_type"`
	CSVMetadata                 bool      `yaml:"csv_metadata"`
	HostHeaderValidationEnabled *bool     `yaml:"host_header_validation_enabled"`
	AllowedHosts                []string  `yaml:"allowed_hosts"`
	Log                         LogConfig `yaml:"logging"`
}

// BackendConfig selects the management backend. Options are specific
// to the backend type and decoded by the backend factory.
type BackendConfig struct {
	Type        string                 `yaml:"type"`
	StartupWait time.Duration          `yaml:"startup_wait"`
	Options     map[string]interface{} `yaml:"options"`
}

type CollectorConfig struct {
	// SkipCaches extends the built-in list of caches never read.
	SkipCaches []string `yaml:"skip_caches"`
}

type ExporterConfig struct {
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Backend   BackendConfig   `yaml:"backend"`
	Collector CollectorConfig `yaml:"collector"`
	EnvFile   string          `yaml:"env_file"`
}

type LogConfig struct {
	Lvl     string   `yaml:"level"`
	Outputs []string `yaml:"outputs"`
}

var zapLevelMapper = map[string]zapcore.Level{
	"debug":  zapcore.DebugLevel,
	"info":   zapcore.InfoLevel,
	"warn":   zapcore.WarnLevel,
	"error":  zapcore.ErrorLevel,
	"dpanic": zapcore.DPanicLevel,
	"panic":  zapcore.PanicLevel,
	"fatal":  zapcore.FatalLevel,
}

func (l LogConfig) Level() zapcore.Level {
	return zapLevelMapper[l.Lvl]
}

// LoadExporterConfig reads the configuration from path or, if path is
// empty, from the first file found in ConfigFilePriority. Defaults and
// environment overrides are applied afterwards.
func LoadExporterConfig(path string) error {
	var (
		content []byte
		err     error
	)

	candidates := ConfigFilePriority
	if path != "" {
		candidates = []string{path}
	}

	for _, fn := range candidates {
		content, err = os.ReadFile(fn)
		if err == nil {
			break
		}
	}

	if err != nil {
		log.Printf("configuration file %s not found", candidates[len(candidates)-1])

		return err
	}

	ExporterConf = ExporterConfig{}
	if err := yaml.Unmarshal(content, &ExporterConf); err != nil {
		return err
	}

	setDefaults()

	if err := applyEnvOverrides(); err != nil {
		return err
	}

	return createLogFolders()
}

func setDefaults() {
	if ExporterConf.Runtime.MetricsAddr == "" {
		ExporterConf.Runtime.MetricsAddr = DefaultMetricsAddr
	}

	if ExporterConf.Runtime.CSVPath == "" {
		ExporterConf.Runtime.CSVPath = DefaultCSVPath
	}

	if ExporterConf.Runtime.HostHeaderValidationEnabled == nil {
		disabled := false
		ExporterConf.Runtime.HostHeaderValidationEnabled = &disabled
	}

	if len(ExporterConf.Runtime.AllowedHosts) == 0 {
		ExporterConf.Runtime.AllowedHosts = DefaultAllowedHosts
	}

	if ExporterConf.Backend.Type == "" {
		ExporterConf.Backend.Type = DefaultBackendType
	}

	if ExporterConf.Backend.StartupWait == 0 {
		ExporterConf.Backend.StartupWait = DefaultStartupWait
	}

	if ExporterConf.Backend.Options == nil {
		ExporterConf.Backend.Options = map[string]interface{}{}
	}
}

// applyEnvOverrides loads the optional env file, then lets the process
// environment override jolokia backend credentials.
func applyEnvOverrides() error {
	if ExporterConf.EnvFile != "" {
		if err := godotenv.Load(ExporterConf.EnvFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", ExporterConf.EnvFile, err)
		}
	}

	// credentials only apply to the jolokia backend; other backends
	// reject unknown options
	if ExporterConf.Backend.Type != BackendTypeJolokia {
		return nil
	}

	overrides := map[string]string{
		EnvJolokiaURL:      "url",
		EnvJolokiaUser:     "username",
		EnvJolokiaPassword: "password",
	}
	for env, option := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			ExporterConf.Backend.Options[option] = v
		}
	}

	return nil
}

func createLogFolders() error {
	for _, logPath := range ExporterConf.Runtime.Log.Outputs {
		if strings.HasSuffix(logPath, "/") {
			return fmt.Errorf("invalid log output path ending with '/': %s", logPath)
		}
		pathSplit := strings.Split(logPath, "/")
		if len(pathSplit) == 1 {
			continue
		}
		folder := strings.Join(pathSplit[:len(pathSplit)-1], "/")
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return err
		}
	}

	return nil
}
