// iml-demo trains a small interactive-ML network on a toy identity map
// (output = input) to demonstrate the facade end to end: add examples by
// demonstration, switch to Inference to train, then query the result.
//
// Usage:
//
//	iml-demo
//	iml-demo -hidden 8,8 -max-iter 3000 -lr 1.0
//	iml-demo -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/monkeyw/imlengine/internal/dataset"
	"github.com/monkeyw/imlengine/internal/iml"
	"github.com/monkeyw/imlengine/internal/mlp"
)

func main() {
	hiddenSpec := flag.String("hidden", "8,8", "comma-separated hidden layer widths")
	maxIter := flag.Int("max-iter", 3000, "max training iterations")
	lr := flag.Float64("lr", 1.0, "learning rate")
	threshold := flag.Float64("threshold", 1e-5, "convergence threshold")
	seed := flag.Uint64("seed", 1, "PRNG seed")
	flag.Parse()

	hidden, err := parseHidden(*hiddenSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -hidden: %v\n", err)
		os.Exit(1)
	}

	activations := make([]mlp.ActivationKind, len(hidden)+1)
	for i := range hidden {
		activations[i] = mlp.Tanh
	}
	activations[len(activations)-1] = mlp.Linear

	cfg := iml.Config[float64]{
		NInputs:              1,
		NOutputs:             1,
		Hidden:               hidden,
		Activations:          activations,
		Loss:                 mlp.MSE,
		MaxIter:              *maxIter,
		LR:                   *lr,
		ConvergenceThreshold: *threshold,
		MaxExamples:          64,
		ReplayEnabled:        true,
		ForgetMode:           dataset.FIFO,
	}

	facade, err := iml.New(cfg, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error constructing engine: %v\n", err)
		os.Exit(1)
	}
	facade.SetLogger(func(msg string) { log.Print(msg) })
	facade.SetProgress(func(iteration uint, loss float64) {
		log.Printf("iteration %d: loss %g", iteration, loss)
	})

	if err := facade.SetMode(iml.Training); err != nil {
		fmt.Fprintf(os.Stderr, "Error entering training mode: %v\n", err)
		os.Exit(1)
	}

	points := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	for _, x := range points {
		if err := facade.AddExample([]float64{x}, []float64{x}); err != nil {
			fmt.Fprintf(os.Stderr, "Error adding example: %v\n", err)
			os.Exit(1)
		}
	}

	log.Printf("Training on %d examples...", facade.Dataset().Size())
	if err := facade.SetMode(iml.Inference); err != nil {
		fmt.Fprintf(os.Stderr, "Error training: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(facade.MLP().Summary())
	fmt.Printf("%-10s  %-10s\n", "input", "output")
	for _, x := range append(points, 0.4) {
		if err := facade.SetInput(0, x); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting input: %v\n", err)
			os.Exit(1)
		}
		if err := facade.Process(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running inference: %v\n", err)
			os.Exit(1)
		}
		out := facade.GetOutputs()
		fmt.Printf("%-10.3f  %-10.3f\n", x, out[0])
	}
}

func parseHidden(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid width %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
