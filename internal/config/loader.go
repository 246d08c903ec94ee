package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective bootstrap Value for service by applying the
// precedence chain of spec §6, lowest to highest:
//
//	base file -> brand file -> env-specific file -> config store -> remote
//	URL -> OS environment variables
//
// Each layer is optional: a missing file, an empty LoadOptions.RemoteURL, or
// a nil store is skipped rather than failing the load.
func Load(ctx context.Context, service string, opts LoadOptions) (Value, error) {
	result := Map(map[string]Value{})

	for _, path := range opts.filePaths(service) {
		v, err := loadFile(path)
		if err != nil {
			return Value{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
		if v != nil {
			result = MergeInto(result, *v)
		}
	}

	if opts.Store != nil {
		stored, err := opts.Store.GetAll(ctx, service, opts.Brand, opts.TenantID, true)
		if err != nil {
			return Value{}, fmt.Errorf("config: reading store: %w", err)
		}
		result = MergeInto(result, stored)
	}

	if opts.RemoteURL != "" {
		v, err := loadRemote(ctx, opts.RemoteURL, opts.RemoteTimeout)
		if err != nil {
			return Value{}, fmt.Errorf("config: loading remote %s: %w", opts.RemoteURL, err)
		}
		result = MergeInto(result, v)
	}

	result = MergeInto(result, envOverrides(os.Environ(), opts.EnvPrefix))

	return result, nil
}

// LoadOptions parameterizes Load's file/store/remote/env layers.
type LoadOptions struct {
	// Dir is the directory base/brand/env config files are read from.
	// Defaults to "config" when empty.
	Dir string
	Brand    string
	Env      string // e.g. "production", "staging"
	TenantID string

	Store *Store

	RemoteURL     string
	RemoteTimeout time.Duration

	// EnvPrefix scopes which OS env vars are treated as overrides, e.g.
	// "COREledger_". Empty means every OS env var is a candidate.
	EnvPrefix string
}

func (o LoadOptions) filePaths(service string) []string {
	dir := o.Dir
	if dir == "" {
		dir = "config"
	}
	paths := []string{fmt.Sprintf("%s/%s.base.yaml", dir, service)}
	if o.Brand != "" {
		paths = append(paths, fmt.Sprintf("%s/%s.%s.yaml", dir, service, o.Brand))
	}
	if o.Env != "" {
		paths = append(paths, fmt.Sprintf("%s/%s.%s.yaml", dir, service, o.Env))
	}
	return paths
}

func loadFile(path string) (*Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	v := fromAny(raw)
	return &v, nil
}

func loadRemote(ctx context.Context, url string, timeout time.Duration) (Value, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Value{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Value{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Value{}, fmt.Errorf("remote config fetch returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

// envOverrides converts OS environment entries into a nested Value,
// splitting each key on "__" so e.g. LEDGER__ALLOW_NEGATIVE=true becomes
// {"ledger": {"allow_negative": true}}. Keys are lowercased for matching
// against file/store keys, which are conventionally lowerCamel/snake_case.
func envOverrides(environ []string, prefix string) Value {
	root := map[string]Value{}
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, raw := parts[0], parts[1]
		if prefix != "" {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			key = strings.TrimPrefix(key, prefix)
		}
		segments := strings.Split(strings.ToLower(key), "__")
		setNested(root, segments, inferScalar(raw))
	}
	return Map(root)
}

func setNested(root map[string]Value, segments []string, leaf Value) {
	if len(segments) == 1 {
		root[segments[0]] = leaf
		return
	}
	head := segments[0]
	child, ok := root[head]
	if !ok || child.Kind != KindMap {
		child = Map(map[string]Value{})
	}
	setNested(child.Map, segments[1:], leaf)
	root[head] = child
}

func inferScalar(raw string) Value {
	if b, err := strconv.ParseBool(raw); err == nil {
		return Bool(b)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Float(f)
	}
	return String(raw)
}

// fromAny converts a generic YAML/JSON-decoded value (map[string]any,
// []any, or a scalar) into a Value.
func fromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = fromAny(it)
		}
		return List(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, it := range t {
			m[k] = fromAny(it)
		}
		return Map(m)
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, it := range t {
			m[fmt.Sprintf("%v", k)] = fromAny(it)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}
