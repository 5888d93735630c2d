package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/iff/ifftext"

	_ "github.com/swgtools/swg_asset_browser/formats/ans"
	_ "github.com/swgtools/swg_asset_browser/formats/extent"
	_ "github.com/swgtools/swg_asset_browser/formats/lmg"
	_ "github.com/swgtools/swg_asset_browser/formats/sat"
	_ "github.com/swgtools/swg_asset_browser/formats/skt"
)

const textExt = ".iffsrc"

// convert compiles text sources and decompiles everything else.
func convert(in []byte, decompile bool) ([]byte, error) {
	if decompile {
		return ifftext.Decompile(in)
	}
	return ifftext.Compile(in, iff.WithEncoding(config.GetEncoding()))
}

func outputName(input string, decompile bool) string {
	if decompile {
		return input + textExt
	}
	if strings.HasSuffix(input, textExt) {
		return strings.TrimSuffix(input, textExt)
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".iff"
}

func run(input, output string, decompile bool) error {
	var in []byte
	var err error
	if input == "-" {
		in, err = io.ReadAll(os.Stdin)
	} else {
		in, err = os.ReadFile(input)
	}
	if err != nil {
		return errors.Wrapf(err, "Failed to read %q", input)
	}
	out, err := convert(in, decompile)
	if err != nil {
		return errors.Wrapf(err, "Failed to convert %q", input)
	}
	if output == "-" || (output == "" && input == "-") {
		_, err := os.Stdout.Write(out)
		return err
	}
	if output == "" {
		output = outputName(input, decompile)
	}
	return iff.WriteFileAtomic(output, out)
}

func main() {
	var output, encoding string
	var decompile bool
	flag.StringVar(&output, "o", "", "Output file, - for stdout (default derived from input)")
	flag.BoolVar(&decompile, "d", false, "Decompile binary into text source")
	flag.StringVar(&encoding, "encoding", config.EncodingUTF8, "String encoding of the binary file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: iffcompile [-d] [-o out] input")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := config.SetEncoding(encoding); err != nil {
		log.Fatal(err)
	}
	if err := run(flag.Arg(0), output, decompile); err != nil {
		log.Fatal(err)
	}
}
