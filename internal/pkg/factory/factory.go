package factory

import (
	"fmt"

	"ispnexporter/internal/pkg/global"
	"ispnexporter/pkg/mbean"
	"ispnexporter/pkg/mbean/jolokia"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Backend types accepted in backend.type.
const (
	BackendJolokia = global.BackendTypeJolokia
	BackendStatic  = "static"
)

// StaticConfig options of the static backend.
type StaticConfig struct {
	Path string `mapstructure:"path"`
}

func decodeOptions(options map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	return dec.Decode(options)
}

// NewBackendByType builds the management backend selected by conf.
func NewBackendByType(conf global.BackendConfig) (mbean.Server, error) {
	switch conf.Type {
	case BackendJolokia:
		var jconf jolokia.Config
		if err := decodeOptions(conf.Options, &jconf); err != nil {
			return nil, fmt.Errorf("jolokia backend options: %w", err)
		}
		zap.S().Infow("using jolokia backend", "url", jconf.URL)

		c, err := jolokia.NewClient(jconf)
		if err != nil {
			return nil, err
		}

		return c, nil
	case BackendStatic:
		var sconf StaticConfig
		if err := decodeOptions(conf.Options, &sconf); err != nil {
			return nil, fmt.Errorf("static backend options: %w", err)
		}
		zap.S().Infow("using static backend", "path", sconf.Path)

		m, err := mbean.LoadMemoryServer(sconf.Path)
		if err != nil {
			return nil, err
		}

		return m, nil
	default:
		return nil, fmt.Errorf("unknown backend type: %q", conf.Type)
	}
}
