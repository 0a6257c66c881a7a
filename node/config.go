package node

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/loom-services/loom/codec"
	"github.com/loom-services/loom/gen"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Name        string         `yaml:"name"`
	LogLevel    string         `yaml:"log_level"`
	Codec       string         `yaml:"codec"`
	MailboxSize int64          `yaml:"mailbox_size"`
	Env         map[string]any `yaml:"env"`
}

// LoadOptions reads node options from a YAML file:
//
//	name: demo@localhost
//	log_level: info
//	codec: msgpack
//	mailbox_size: 0
//	env:
//	  max_heap: 104857600
func LoadOptions(path string) (gen.Atom, Options, error) {
	var options Options

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", options, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return "", options, fmt.Errorf("malformed config %s: %w", path, err)
	}
	if fc.Name == "" {
		return "", options, fmt.Errorf("config %s: node name must be defined", path)
	}

	level, err := gen.ParseLogLevel(fc.LogLevel)
	if err != nil {
		return "", options, fmt.Errorf("config %s: unknown log_level %q", path, fc.LogLevel)
	}
	options.LogLevel = level

	switch fc.Codec {
	case "", "json":
		options.Codec = codec.JSON()
	case "msgpack":
		options.Codec = codec.MessagePack()
	case "proto", "protobuf":
		options.Codec = codec.Protobuf()
	default:
		return "", options, fmt.Errorf("config %s: unknown codec %q", path, fc.Codec)
	}

	options.MailboxSize = fc.MailboxSize

	if len(fc.Env) > 0 {
		options.Env = make(map[gen.Env]any, len(fc.Env))
		for k, v := range fc.Env {
			options.Env[gen.Env(k)] = v
		}
	}

	return gen.Atom(fc.Name), options, nil
}

// WatchConfig watches the given config file and applies log-level changes
// to the node logger at runtime. Other options require a restart and are
// left untouched. The returned function stops the watcher.
func WatchConfig(path string, n gen.Node) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if ok == false {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				_, options, err := LoadOptions(path)
				if err != nil {
					n.Log().Warning("config reload skipped: %s", err)
					continue
				}
				if options.LogLevel == n.Log().Level() {
					continue
				}
				if err := n.Log().SetLevel(options.LogLevel); err != nil {
					n.Log().Warning("config reload: %s", err)
					continue
				}
				n.Log().Info("log level changed to %s", options.LogLevel)

			case err, ok := <-watcher.Errors:
				if ok == false {
					return
				}
				n.Log().Warning("config watcher: %s", err)
			}
		}
	}()

	return watcher.Close, nil
}
