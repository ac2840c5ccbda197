package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/sspace/ir"
)

// Definition formats accepted by LoadFile.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// FormatOf returns the definition format implied by a file extension,
// or "" if the extension is not recognized.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return ""
	}
}

// LoadFile reads a space definition from path.
//
// JSON and YAML files are decoded directly. A .cue file is compiled on its
// own; a directory is loaded as one CUE instance from every .cue file in it.
// Decode failures are *ir.DecodeError and CUE failures *CompileError.
func LoadFile(path string) (*ir.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch FormatOf(path) {
	case FormatJSON:
		return ir.ParseDocument(data)
	case FormatYAML:
		return ir.ParseYAML(data)
	case FormatCUE:
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		return CompileSpace(v)
	default:
		return nil, fmt.Errorf("unsupported definition format %q (want .json, .yaml, .yml or .cue)", filepath.Ext(path))
	}
}

// LoadDir builds the CUE instance in dir and compiles it.
func LoadDir(dir string) (*ir.Document, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	return CompileSpace(v)
}
