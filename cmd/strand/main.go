// Package main provides the Strand CLI.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/strand-ml/strand/backend/cpu"
	"github.com/strand-ml/strand/nn"
	"github.com/strand-ml/strand/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Strand %s\n", version)
			return
		case "demo":
			demo()
			return
		}
	}

	fmt.Println("Strand - Transformer attention blocks for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Run a small encoder-decoder forward pass")
}

// demo runs a tiny encoder-decoder forward pass and prints the shapes
// flowing through it.
func demo() {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	cfg := nn.LayerConfig{
		DModel:      128,
		Heads:       8,
		DFF:         512,
		Dropout:     0.1,
		Relative:    true,
		MaxRelative: 8,
	}

	encoder := nn.NewEncoder(cfg, 2, rng, backend)
	decoder := nn.NewDecoder(cfg, 2, rng, backend)
	encoder.SetTraining(false)
	decoder.SetTraining(false)

	batch, seqS, seqT := 2, 12, 7
	src := tensor.Randn[float32](tensor.Shape{batch, seqS, cfg.DModel}, rng, backend)
	tgt := tensor.Randn[float32](tensor.Shape{batch, seqT, cfg.DModel}, rng, backend)

	srcMask := nn.PaddingMask([]int{12, 9}, seqS, backend)
	tgtMask := nn.CausalMask(seqT, backend)

	memory := encoder.Forward(src, srcMask)
	out := decoder.Forward(tgt, memory, srcMask, tgtMask)

	fmt.Printf("source  %v\n", src.Shape())
	fmt.Printf("memory  %v\n", memory.Shape())
	fmt.Printf("target  %v\n", tgt.Shape())
	fmt.Printf("output  %v\n", out.Shape())
}
