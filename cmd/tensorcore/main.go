// Package main provides the tensorcore CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/backend"
)

const version = "v0.1.0-dev"

func usage() {
	fmt.Fprintf(os.Stderr, `tensorcore %s

Usage:
  tensorcore [flags] <command>

Commands:
  version      Show version
  backends     List registered devices and whether they open
  train-demo   Fit a small MLP on random data with SGD or RMSprop

Flags:
`, version)
	flag.PrintDefaults()
}

var (
	flagBackend   = flag.String("backend", "", "device config \"name[:options]\"; empty reads $"+backend.EnvVar)
	flagOptimizer = flag.String("optimizer", "sgd", "train-demo optimizer: sgd or rmsprop")
	flagSteps     = flag.Int("steps", 5, "train-demo update steps")
	flagLR        = flag.Float64("lr", 0.1, "train-demo learning rate")
	flagSeed      = flag.Uint64("seed", 1, "train-demo random seed")
	flagSave      = flag.String("save", "", "train-demo: write parameters and optimizer state to this .safetensors file")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	switch flag.Arg(0) {
	case "version":
		fmt.Printf("tensorcore %s\n", version)
	case "backends":
		listBackends()
	case "train-demo":
		cfg := demoConfig{
			Backend:   *flagBackend,
			Optimizer: *flagOptimizer,
			Steps:     *flagSteps,
			LR:        float32(*flagLR),
			Seed:      *flagSeed,
			Save:      *flagSave,
		}
		losses, err := runDemo(cfg)
		if err != nil {
			klog.Fatalf("train-demo failed: %+v", err)
		}
		for i, l := range losses {
			fmt.Printf("loss after %d updates: %.6f\n", i, l)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func listBackends() {
	for _, name := range backend.List() {
		dev, err := backend.NewWithConfig(name)
		if err != nil {
			msg := strings.SplitN(err.Error(), "\n", 2)[0]
			fmt.Printf("  %-8s unavailable (%s)\n", name, msg)
			continue
		}
		fmt.Printf("  %-8s %s\n", name, dev.Kind())
		if err := dev.Close(); err != nil {
			klog.Warningf("closing %s: %v", name, err)
		}
	}
}
