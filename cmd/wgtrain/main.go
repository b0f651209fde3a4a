package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/openfluke/wgtrain"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: wgtrain <command> [flags]

commands:
  info      list GPU adapters and the host CPU
  train     train on a text/label dataset
  predict   score text with saved weights
  onnx      convert saved weights to an ONNX model
  bench     time training throughput on random data
`)
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(os.Args[2:])
	case "train":
		err = runTrain(os.Args[2:])
	case "predict":
		err = runPredict(os.Args[2:])
	case "onnx":
		err = runONNX(os.Args[2:])
	case "bench":
		err = runBench(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %s: %v", os.Args[1], err)
	}
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	fmt.Printf("Host: %s\n", wgtrain.Host())
	adapters, err := wgtrain.ListAdapters()
	if err != nil {
		fmt.Printf("⚠️  No WebGPU adapters: %v\n", err)
		return nil
	}
	for _, a := range adapters {
		fmt.Printf("GPU %s\n", a)
	}
	return nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to JSON config (cfg.json)")
	data := fs.String("data", "", "Override dataset path")
	epochs := fs.Int("epochs", -1, "Override number of epochs")
	nodes := fs.Int("nodes", 0, "Override hidden nodes per layer")
	weights := fs.String("weights", "", "Override weights output path (.json, .gob, .bin)")
	onnxPath := fs.String("onnx", "", "Also export an ONNX model here")
	device := fs.String("device", "", "Device: auto, webgpu, host")
	seed := fs.Int64("seed", 0, "PRNG seed")
	split := fs.Float64("split", 0, "Fraction of rows used for training")
	every := fs.Int("checkpoint-every", -1, "Save weights every N epochs")
	resume := fs.Bool("resume", false, "Start from the weights file if it exists")
	debug := fs.Bool("debug", false, "Print debug logs")
	fs.Parse(args)

	cfg := wgtrain.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = wgtrain.LoadConfig(*cfgPath); err != nil {
			return err
		}
	}
	if *data != "" {
		cfg.Data = *data
	}
	if *epochs >= 0 {
		cfg.Epochs = *epochs
	}
	if *nodes > 0 {
		cfg.NodesPerLayer = *nodes
	}
	if *weights != "" {
		cfg.Weights = *weights
	}
	if *onnxPath != "" {
		cfg.ONNX = *onnxPath
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *split > 0 {
		cfg.Split = *split
	}
	if *every >= 0 {
		cfg.CheckpointEvery = *every
	}
	cfg.Debug = cfg.Debug || *debug

	rows, err := wgtrain.LoadRecords(cfg.Data)
	if err != nil {
		return err
	}
	cfg.FitDataset(rows)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	spec := cfg.ModelSpec()
	samples, err := wgtrain.BuildSamples(rows, spec)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	train, val := wgtrain.SplitDataset(samples, cfg.Split, rng)

	dev, err := wgtrain.OpenDevice(cfg.Device)
	if err != nil {
		return err
	}
	defer dev.Release()

	t := wgtrain.NewTrainer(dev)
	t.Debug = cfg.Debug
	t.Rand = rng
	defer t.Close()

	if err := t.Init(spec); err != nil {
		return err
	}
	if *resume {
		if err := t.LoadWeights(cfg.Weights); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	fmt.Printf("🚀 Training %s on %s: %d train / %d val rows, %d epochs\n",
		spec, dev.Name(), len(train), len(val), cfg.Epochs)

	progress := func(epoch, total int) error {
		if epoch%10 == 0 || epoch == total {
			fmt.Printf("Epoch %d/%d\n", epoch, total)
		}
		return nil
	}
	if cfg.CheckpointEvery > 0 {
		progress = wgtrain.CheckpointEvery(t, cfg.CheckpointEvery, cfg.Weights, progress)
	}
	if err := t.Train(train, cfg.Epochs, progress); err != nil {
		return err
	}

	if err := t.SaveWeights(cfg.Weights); err != nil {
		return err
	}
	fmt.Printf("✅ Model saved to %s\n", cfg.Weights)
	if cfg.ONNX != "" {
		if err := t.SaveWeights(cfg.ONNX); err != nil {
			return err
		}
		fmt.Printf("✅ ONNX model saved to %s\n", cfg.ONNX)
	}

	m, err := wgtrain.Evaluate(t, train)
	if err != nil {
		return err
	}
	fmt.Printf("📊 train %s\n", m)
	if len(val) > 0 {
		if m, err = wgtrain.Evaluate(t, val); err != nil {
			return err
		}
		fmt.Printf("📊 val   %s\n", m)
	}
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	weights := fs.String("weights", wgtrain.DefaultConfig().Weights, "Weights file")
	device := fs.String("device", "host", "Device: auto, webgpu, host")
	raw := fs.Bool("raw", false, "Print output values instead of bits")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return errors.New("no text given")
	}

	dev, err := wgtrain.OpenDevice(*device)
	if err != nil {
		return err
	}
	defer dev.Release()
	t := wgtrain.NewTrainer(dev)
	defer t.Close()
	if err := t.LoadWeights(*weights); err != nil {
		return err
	}
	spec, _ := t.Spec()

	for _, text := range fs.Args() {
		out, err := t.PredictCPU(wgtrain.EncodeText(text, spec.InputSize))
		if err != nil {
			return err
		}
		if *raw {
			vals := make([]string, len(out))
			for i, v := range out {
				vals[i] = fmt.Sprintf("%.4f", v)
			}
			fmt.Printf("%q ➜ %s\n", text, strings.Join(vals, " , "))
			continue
		}
		fmt.Printf("%q ➜ %s\n", text, wgtrain.Bits(out))
	}
	return nil
}

func runONNX(args []string) error {
	fs := flag.NewFlagSet("onnx", flag.ExitOnError)
	weights := fs.String("weights", wgtrain.DefaultConfig().Weights, "Weights file")
	out := fs.String("out", "models/model.onnx", "ONNX output path")
	fs.Parse(args)

	snap, err := wgtrain.LoadSnapshot(*weights)
	if err != nil {
		return err
	}
	if err := snap.SaveONNX(*out, "converted from "+*weights); err != nil {
		return err
	}
	fmt.Printf("✅ ONNX model saved to %s\n", *out)
	return nil
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	device := fs.String("device", "auto", "Device: auto, webgpu, host")
	in := fs.Int("in", 32, "Input width")
	hidden := fs.Int("hidden", 64, "Hidden width")
	out := fs.Int("out", 16, "Output width")
	n := fs.Int("samples", 1000, "Random samples per epoch")
	epochs := fs.Int("epochs", 10, "Epochs to time")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	fs.Parse(args)

	dev, err := wgtrain.OpenDevice(*device)
	if err != nil {
		return err
	}
	defer dev.Release()
	t := wgtrain.NewTrainer(dev)
	defer t.Close()

	spec := wgtrain.ModelSpec{InputSize: *in, HiddenSize: *hidden, OutputSize: *out}
	if err := t.Init(spec); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(1))
	samples := make([]wgtrain.Sample, *n)
	for i := range samples {
		s := wgtrain.Sample{Input: make([]float32, *in), Label: make([]float32, *out)}
		for j := range s.Input {
			s.Input[j] = rng.Float32()
		}
		for j := range s.Label {
			s.Label[j] = float32(rng.Intn(2))
		}
		samples[i] = s
	}

	r, err := wgtrain.BenchmarkEpochs(t, samples, *epochs)
	if err != nil {
		return err
	}
	if *asJSON {
		fmt.Println(r.JSON())
	} else {
		fmt.Println(r)
	}
	return nil
}
