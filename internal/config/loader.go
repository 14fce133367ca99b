package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a task manifest from the provided path. Environment references
// in env values, working directories and stdin file paths are expanded;
// relative paths resolve against the manifest's directory.
func Load(path string) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve task file path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	var doc File
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	baseDir := filepath.Dir(absPath)
	defaultWorkdir := resolveWorkdir(baseDir, os.ExpandEnv(doc.Defaults.Workdir))
	doc.Defaults.Workdir = defaultWorkdir

	for name, task := range doc.Tasks {
		if task == nil {
			continue
		}
		workdir := defaultWorkdir
		if task.Workdir != "" {
			workdir = resolveWorkdir(defaultWorkdir, os.ExpandEnv(task.Workdir))
		}
		task.ResolvedWorkdir = workdir

		var inlineEnv map[string]string
		if len(task.Env) > 0 {
			inlineEnv = make(map[string]string, len(task.Env))
			for k, v := range task.Env {
				inlineEnv[k] = os.ExpandEnv(v)
			}
		}

		var fileEnv map[string]string
		if task.EnvFromFile != "" {
			expanded := os.ExpandEnv(task.EnvFromFile)
			if !filepath.IsAbs(expanded) {
				expanded = filepath.Clean(filepath.Join(workdir, expanded))
			}
			task.EnvFromFile = expanded

			var err error
			fileEnv, err = loadEnvFile(expanded)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", taskField(name, "envFromFile"), err)
			}
		}

		task.Env = mergeEnvMaps(fileEnv, inlineEnv)

		if task.Stdin != nil && task.Stdin.File != "" {
			file := os.ExpandEnv(task.Stdin.File)
			if !filepath.IsAbs(file) {
				file = filepath.Clean(filepath.Join(workdir, file))
			}
			task.Stdin.File = file
		}
	}

	if err := doc.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

func resolveWorkdir(base, workdir string) string {
	if workdir == "" {
		return base
	}
	if filepath.IsAbs(workdir) {
		return filepath.Clean(workdir)
	}
	return filepath.Clean(filepath.Join(base, workdir))
}

// mergeEnvMaps overlays inline values on top of file-sourced values.
func mergeEnvMaps(fileEnv, inlineEnv map[string]string) map[string]string {
	if len(fileEnv) == 0 && len(inlineEnv) == 0 {
		return nil
	}
	merged := make(map[string]string, len(fileEnv)+len(inlineEnv))
	for k, v := range fileEnv {
		merged[k] = v
	}
	for k, v := range inlineEnv {
		merged[k] = v
	}
	return merged
}

func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	values := make(map[string]string)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if strings.HasPrefix(raw, "export ") {
			raw = strings.TrimSpace(raw[len("export "):])
		}
		sep := strings.IndexRune(raw, '=')
		if sep <= 0 {
			return nil, fmt.Errorf("load env file %q: invalid line %d", path, lineNo)
		}
		key := strings.TrimSpace(raw[:sep])
		if key == "" {
			return nil, fmt.Errorf("load env file %q: invalid key on line %d", path, lineNo)
		}
		value := strings.TrimSpace(raw[sep+1:])
		if strings.HasPrefix(value, "\"") {
			if len(value) < 2 || value[len(value)-1] != '"' {
				return nil, fmt.Errorf("load env file %q: unmatched quote on line %d", path, lineNo)
			}
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("load env file %q: parse value for %s on line %d: %w", path, key, lineNo, err)
			}
			value = unquoted
		} else if strings.HasPrefix(value, "'") {
			if len(value) < 2 || value[len(value)-1] != '\'' {
				return nil, fmt.Errorf("load env file %q: unmatched quote on line %d", path, lineNo)
			}
			value = value[1 : len(value)-1]
		} else if comment := strings.IndexRune(value, '#'); comment >= 0 {
			value = strings.TrimSpace(value[:comment])
		}
		values[key] = os.ExpandEnv(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}
