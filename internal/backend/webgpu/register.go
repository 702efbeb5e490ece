package webgpu

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func init() {
	backend.Register(Name, open)
}

// open builds a device from registry options "batch=N" (MaxBatchSize) and
// "pool=N" (PoolSize).
func open(options string) (tensor.Device, error) {
	cfg, err := parseOptions(options)
	if err != nil {
		return nil, err
	}
	return Open(cfg)
}

func parseOptions(options string) (Config, error) {
	var cfg Config
	opts, err := backend.Options(options)
	if err != nil {
		return cfg, err
	}
	for key, value := range opts {
		n, err := strconv.Atoi(value)
		if err != nil {
			return cfg, errors.Errorf("webgpu: %s=%q is not a number", key, value)
		}
		switch key {
		case "batch":
			cfg.MaxBatchSize = n
		case "pool":
			cfg.PoolSize = n
		default:
			return cfg, errors.Errorf("webgpu: unknown option %q", key)
		}
	}
	return cfg, nil
}
