package tool

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/moyoez/snapshare/types"
)

// SetFlags parses CLI flags and returns the overrides.
func SetFlags() types.Flags {
	return ParseFlags(os.Args[1:])
}

// ParseFlags parses args with a dedicated flag set so tests can call it repeatedly.
func ParseFlags(args []string) types.Flags {
	var cfg types.Flags
	fs := pflag.NewFlagSet("snapshare", pflag.ExitOnError)
	fs.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	fs.StringVar(&cfg.ConfigPath, "config", "", "override config file path")
	fs.IntVarP(&cfg.Port, "port", "p", 0, "override listen port")
	fs.StringVarP(&cfg.SharedDir, "dir", "d", "", "override shared files directory")
	fs.BoolVar(&cfg.NoMDNS, "no-mdns", false, "do not advertise the server over mDNS")
	_ = fs.Parse(args)
	return cfg
}
