// Package backend is the registry of execution devices. Device packages
// register a constructor in their init function; programs pick one by name,
// usually through the TENSORCORE_BACKEND environment variable.
//
// A configuration string is "name" or "name:options", where options is a
// comma separated list of key=value pairs understood by that device.
package backend

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// EnvVar names the environment variable read by New.
const EnvVar = "TENSORCORE_BACKEND"

// ErrUnknownBackend is returned for names nobody registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Constructor creates a device from its option string.
type Constructor func(options string) (tensor.Device, error)

// DefaultConfig is used by New when EnvVar is unset. Empty selects the
// first registered backend, or "cpu" when it is registered.
var DefaultConfig string

var (
	mu           sync.RWMutex
	constructors = map[string]Constructor{}
	first        string
)

// Register makes a device constructor available under name.
func Register(name string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if len(constructors) == 0 {
		first = name
	}
	constructors[name] = c
}

// List returns the registered names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the device named by $TENSORCORE_BACKEND, falling back to
// DefaultConfig.
func New() (tensor.Device, error) {
	if config, found := os.LookupEnv(EnvVar); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates a device from a "name[:options]" string.
func NewWithConfig(config string) (tensor.Device, error) {
	name, options, _ := strings.Cut(config, ":")

	mu.RLock()
	if name == "" {
		name = first
		if _, ok := constructors["cpu"]; ok {
			name = "cpu"
		}
	}
	c, found := constructors[name]
	mu.RUnlock()

	if !found {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (registered: %s)", name, strings.Join(List(), ", "))
	}
	dev, err := c(options)
	if err != nil {
		return nil, errors.Wrapf(err, "backend %q", name)
	}
	klog.V(1).Infof("backend: using %s (%s)", dev.Name(), dev.Kind())
	return dev, nil
}

// Options parses "key=value,flag" option strings. A bare flag maps to "".
func Options(options string) (map[string]string, error) {
	out := map[string]string{}
	if options == "" {
		return out, nil
	}
	for _, part := range strings.Split(options, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		if key == "" {
			return nil, errors.Errorf("empty option in %q", options)
		}
		out[key] = value
	}
	return out, nil
}
