package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"ffbatch/internal/services"
)

// Arg is a single ffmpeg option-value pair. A Value of "" renders the option
// as a bare flag.
type Arg struct {
	Option string
	Value  string
}

// Preset is an immutable named pair of output extension and ffmpeg arguments.
type Preset struct {
	Name            string
	OutputExtension string
	Args            []Arg
}

// CommandArgs renders the preset arguments in file order, each option prefixed
// with a dash, ready to splice into an ffmpeg invocation.
func (p Preset) CommandArgs() []string {
	out := make([]string, 0, len(p.Args)*2)
	for _, arg := range p.Args {
		out = append(out, "-"+arg.Option)
		if arg.Value != "" {
			out = append(out, arg.Value)
		}
	}
	return out
}

// File holds every preset parsed from a presets.json file, in file order.
type File struct {
	presets []Preset
	byName  map[string]int
}

// Names returns preset names in file order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.presets))
	for _, p := range f.presets {
		names = append(names, p.Name)
	}
	return names
}

// All returns every preset in file order.
func (f *File) All() []Preset {
	return append([]Preset(nil), f.presets...)
}

// Get looks up a preset by name.
func (f *File) Get(name string) (Preset, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return Preset{}, false
	}
	return f.presets[idx], true
}

// Select resolves the named preset or returns a configuration error listing
// the available names.
func (f *File) Select(name string) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, services.Wrap(
			services.ErrConfiguration,
			"preset",
			"select",
			fmt.Sprintf("no preset specified; available: %s", strings.Join(f.Names(), ", ")),
			nil,
		)
	}
	p, ok := f.Get(name)
	if !ok {
		suggestions := f.Names()
		sort.Strings(suggestions)
		return Preset{}, services.Wrap(
			services.ErrConfiguration,
			"preset",
			"select",
			fmt.Sprintf("unknown preset %q; available: %s", name, strings.Join(suggestions, ", ")),
			nil,
		)
	}
	return p, nil
}

// Load reads and validates a presets.json file. The on-disk format maps preset
// names to {"output_file_ext": ".mp4", "ffmpeg_args": {...}}; argument order
// within ffmpeg_args is preserved.
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(
				services.ErrConfiguration,
				"preset",
				"load",
				fmt.Sprintf("preset file %q does not exist", path),
				nil,
			)
		}
		return nil, services.Wrap(services.ErrConfiguration, "preset", "load", "open preset file", err)
	}
	defer file.Close()

	parsed, err := parse(json.NewDecoder(file))
	if err != nil {
		return nil, services.Wrap(
			services.ErrConfiguration,
			"preset",
			"parse",
			fmt.Sprintf("invalid preset file %q", path),
			err,
		)
	}
	return parsed, nil
}

// parse walks the JSON token stream so that both preset order and argument
// order survive decoding.
func parse(dec *json.Decoder) (*File, error) {
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("expected object of presets: %w", err)
	}

	result := &File{byName: make(map[string]int)}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		p, err := parsePreset(dec, name)
		if err != nil {
			return nil, err
		}
		if _, dup := result.byName[name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		result.byName[name] = len(result.presets)
		result.presets = append(result.presets, p)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if len(result.presets) == 0 {
		return nil, errors.New("preset file defines no presets")
	}
	return result, nil
}

func parsePreset(dec *json.Decoder, name string) (Preset, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return Preset{}, fmt.Errorf("preset %q: expected object: %w", name, err)
	}

	p := Preset{Name: name}
	sawExt := false
	sawArgs := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return Preset{}, fmt.Errorf("preset %q: %w", name, err)
		}
		switch key {
		case "output_file_ext":
			value, err := readScalar(dec)
			if err != nil {
				return Preset{}, fmt.Errorf("preset %q: output_file_ext: %w", name, err)
			}
			p.OutputExtension = value
			sawExt = true
		case "ffmpeg_args":
			args, err := parseArgs(dec)
			if err != nil {
				return Preset{}, fmt.Errorf("preset %q: ffmpeg_args: %w", name, err)
			}
			p.Args = args
			sawArgs = true
		default:
			return Preset{}, fmt.Errorf("preset %q: unknown field %q", name, key)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Preset{}, fmt.Errorf("preset %q: %w", name, err)
	}

	if !sawExt {
		return Preset{}, fmt.Errorf("preset %q: missing required field output_file_ext", name)
	}
	if !sawArgs {
		return Preset{}, fmt.Errorf("preset %q: missing required field ffmpeg_args", name)
	}
	ext := strings.TrimSpace(p.OutputExtension)
	if ext == "" || !strings.HasPrefix(ext, ".") || ext == "." {
		return Preset{}, fmt.Errorf("preset %q: output_file_ext %q must start with a dot and name an extension", name, p.OutputExtension)
	}
	p.OutputExtension = ext
	return p, nil
}

func parseArgs(dec *json.Decoder) ([]Arg, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("expected object of option-value pairs: %w", err)
	}
	var args []Arg
	for dec.More() {
		option, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(option) == "" {
			return nil, errors.New("empty option name")
		}
		value, err := readScalar(dec)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", option, err)
		}
		args = append(args, Arg{Option: option, Value: value})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return args, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("unexpected key token %v", tok)
	}
	return key, nil
}

// readScalar accepts strings, numbers, booleans, and null. Null and empty
// strings mark bare flags.
func readScalar(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported value %v", tok)
	}
}
