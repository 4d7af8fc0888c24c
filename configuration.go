package astimux

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Flags
var (
	serverAddr  = flag.String("server-addr", "", "the server addr")
	statsPeriod = flag.Duration("stats-period", 0, "the stats period")
)

// Configuration represents a muxer configuration
type Configuration struct {
	Server      ConfigurationServer `toml:"server"`
	StatsPeriod time.Duration       `toml:"stats_period"`
}

// ConfigurationServer represents a server configuration
type ConfigurationServer struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	Username string `toml:"username"`
}

// FlagConfig returns the configuration deduced from flags
func FlagConfig() (c Configuration) {
	c.Server.Addr = *serverAddr
	c.StatsPeriod = *statsPeriod
	return
}

// NewConfiguration builds the configuration from defaults, an optional toml
// file and flags, in increasing priority order
func NewConfiguration(path string, defaults Configuration) (c Configuration, err error) {
	// Defaults
	c = defaults

	// Toml file
	if path != "" {
		if _, err = toml.DecodeFile(path, &c); err != nil {
			err = fmt.Errorf("astimux: decoding toml file %s failed: %w", path, err)
			return
		}
	} else if _, errStat := os.Stat("astimux.toml"); errStat == nil {
		if _, err = toml.DecodeFile("astimux.toml", &c); err != nil {
			err = fmt.Errorf("astimux: decoding toml file astimux.toml failed: %w", err)
			return
		}
	}

	// Flags
	f := FlagConfig()
	if f.Server.Addr != "" {
		c.Server.Addr = f.Server.Addr
	}
	if f.StatsPeriod > 0 {
		c.StatsPeriod = f.StatsPeriod
	}
	return
}
