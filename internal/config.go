package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read by disposable, e.g.
	// DISPOSABLE_HOST or DISPOSABLE_PULL_TIMEOUT.
	EnvPrefix = "DISPOSABLE"

	// DefaultRemotePort is the unencrypted TCP port of a remote Docker engine.
	DefaultRemotePort = 2375

	// DefaultPullTimeout bounds an image pull. Large images over slow links
	// can take minutes, so this is generous.
	DefaultPullTimeout = 10 * time.Minute

	// DefaultPortAttempts is how many host ports are tried before giving up
	// when the engine reports port conflicts.
	DefaultPortAttempts = 3

	DefaultLogLevel = "info"
)

// Configuration keys. Each is also a flag name and, upper-cased with dashes
// replaced by underscores and prefixed with EnvPrefix, an environment variable.
const (
	KeyConfig        = "config"
	KeyHost          = "host"
	KeyPort          = "port"
	KeyPrefix        = "prefix"
	KeyLogLevel      = "log-level"
	KeyPullTimeout   = "pull-timeout"
	KeyContainerPort = "container-port"
	KeyHostPort      = "host-port"
	KeyPortAttempts  = "port-attempts"
	KeyGPU           = "gpu"
	KeyExpose        = "expose"
)

var configKeys = []string{
	KeyHost,
	KeyPort,
	KeyPrefix,
	KeyLogLevel,
	KeyPullTimeout,
	KeyContainerPort,
	KeyHostPort,
	KeyPortAttempts,
	KeyGPU,
	KeyExpose,
}

type Config struct {
	// RemoteHost selects a remote engine at tcp://RemoteHost:RemotePort.
	// Empty means the local engine.
	RemoteHost string
	RemotePort uint16

	// Prefix names containers "<Prefix>-<n>". Empty means unset.
	Prefix string

	LogLevel     string
	PullTimeout  time.Duration
	PortAttempts int

	// ContainerPort overrides the image's first exposed port.
	ContainerPort uint16
	// HostPort pins the published host port. Zero allocates ephemeral ports.
	HostPort uint16

	GPU    bool
	Expose bool
}

// RegisterFlags adds the connection and logging flags shared by every command.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "path to a YAML config file")
	fs.String(KeyHost, "", "remote docker engine host (local engine when empty)")
	fs.Uint16(KeyPort, DefaultRemotePort, "remote docker engine port")
	fs.String(KeyPrefix, "", "container name prefix")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.Duration(KeyPullTimeout, DefaultPullTimeout, "maximum time to wait for an image pull (0 waits forever)")
}

// RegisterContainerFlags adds the flags that shape a created container.
func RegisterContainerFlags(fs *pflag.FlagSet) {
	fs.Uint16(KeyContainerPort, 0, "container port to publish (defaults to the image's first exposed port)")
	fs.Uint16(KeyHostPort, 0, "host port to publish on (ephemeral when 0)")
	fs.Int(KeyPortAttempts, DefaultPortAttempts, "host ports to try when the engine reports a conflict")
	fs.Bool(KeyGPU, false, "request all available GPUs")
	fs.Bool(KeyExpose, true, "publish a container port on the host")
}

// LoadConfig resolves the configuration from, in increasing precedence,
// defaults, an optional YAML config file, DISPOSABLE_* variables in
// environment, and flags explicitly set on fs.
func LoadConfig(fs *pflag.FlagSet, environment []string) (Config, error) {
	lookup := make(map[string]string)
	for _, variable := range environment {
		key, value, ok := strings.Cut(variable, "=")
		if ok && strings.HasPrefix(key, EnvPrefix+"_") {
			lookup[key] = value
		}
	}

	v := viper.New()
	v.SetDefault(KeyPort, DefaultRemotePort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyPullTimeout, DefaultPullTimeout)
	v.SetDefault(KeyPortAttempts, DefaultPortAttempts)
	v.SetDefault(KeyExpose, true)

	configFile := lookup[envName(KeyConfig)]
	if flag := fs.Lookup(KeyConfig); flag != nil && flag.Changed {
		configFile = flag.Value.String()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q: %w\nCheck that the file exists and is valid YAML", configFile, err)
		}
	}

	for _, key := range configKeys {
		flag := fs.Lookup(key)
		if flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag --%s: %w", key, err)
			}
			continue
		}

		if value, ok := lookup[envName(key)]; ok {
			v.Set(key, value)
		}
	}

	config := Config{
		RemoteHost:    v.GetString(KeyHost),
		RemotePort:    v.GetUint16(KeyPort),
		Prefix:        v.GetString(KeyPrefix),
		LogLevel:      strings.ToLower(v.GetString(KeyLogLevel)),
		PullTimeout:   v.GetDuration(KeyPullTimeout),
		PortAttempts:  v.GetInt(KeyPortAttempts),
		ContainerPort: v.GetUint16(KeyContainerPort),
		HostPort:      v.GetUint16(KeyHostPort),
		GPU:           v.GetBool(KeyGPU),
		Expose:        v.GetBool(KeyExpose),
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w\nUse one of debug, info, warn, error", c.LogLevel, err)
	}

	if c.RemoteHost != "" && c.RemotePort == 0 {
		return fmt.Errorf("invalid remote port 0 for host %q", c.RemoteHost)
	}

	if c.PortAttempts < 1 {
		return fmt.Errorf("invalid port attempts %d: must be at least 1", c.PortAttempts)
	}

	if c.PullTimeout < 0 {
		return fmt.Errorf("invalid pull timeout %s: must not be negative", c.PullTimeout)
	}

	if strings.ContainsAny(c.Prefix, " /:") {
		return fmt.Errorf("invalid container name prefix %q: must not contain spaces, slashes, or colons", c.Prefix)
	}

	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
