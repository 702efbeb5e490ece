package cpu

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/backend"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func init() {
	backend.Register(Name, open)
}

// open builds a device from registry options:
//
//	sequential     run every kernel on the calling goroutine
//	workers=N      parallel loop width
//	limit=BYTES    MemoryLimit
func open(options string) (tensor.Device, error) {
	opts, err := backend.Options(options)
	if err != nil {
		return nil, err
	}
	cfg := Config{Parallel: parallel.DefaultConfig()}
	for key, value := range opts {
		switch key {
		case "sequential":
			cfg.Parallel.Enabled = false
		case "workers":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, errors.Errorf("cpu: workers=%q", value)
			}
			cfg.Parallel.NumWorkers = n
		case "limit":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, errors.Errorf("cpu: limit=%q", value)
			}
			cfg.MemoryLimit = n
		default:
			return nil, errors.Errorf("cpu: unknown option %q", key)
		}
	}
	return NewWithConfig(cfg), nil
}
