package emulator

import (
	"github.com/BurntSushi/toml"
)

// Options collects everything the command line and the optional machine
// config file can set.
type Options struct {
	RomFile      string
	LoadAddress  uint32
	MemSize      uint32
	BigEndian    bool
	Debug        bool
	DebugPort    uint16
	DebugIP      string
	InstrDump    bool
	DumpCPU      bool
	HaltDumpCPU  bool
	HaltDumpCP0  bool
	MemMap       bool
	NoHaltDevice bool
	Console      bool
	MaxInstrs    uint64
	Verbose      int
}

// DefaultOptions mirrors the defaults of the command-line flags.
func DefaultOptions() Options {
	return Options{
		LoadAddress: 0xBFC00000,
		MemSize:     1 << 20,
		DebugPort:   9001,
		DebugIP:     "127.0.0.1",
	}
}

// FileOptions is the TOML machine-file form of Options. Pointer fields
// distinguish "absent" from "set to the zero value" so that file values only
// override fields the user did not pin on the command line.
type FileOptions struct {
	LoadAddress  *uint32 `toml:"loadaddress"`
	MemSize      *uint32 `toml:"memsize"`
	BigEndian    *bool   `toml:"bigendian"`
	NoHaltDevice *bool   `toml:"nohaltdevice"`
	Console      *bool   `toml:"console"`
	MaxInstrs    *uint64 `toml:"maxinstrs"`
	DebugPort    *uint16 `toml:"debugport"`
	DebugIP      *string `toml:"debugip"`
}

// LoadFileOptions reads a TOML machine description from path.
func LoadFileOptions(path string) (FileOptions, error) {
	var f FileOptions
	_, err := toml.DecodeFile(path, &f)
	return f, err
}

// Apply copies every field present in f into o. The changed callback reports
// whether a field was set explicitly on the command line, in which case the
// flag wins over the file.
func (f FileOptions) Apply(o *Options, changed func(name string) bool) {
	if f.LoadAddress != nil && !changed("loadaddress") {
		o.LoadAddress = *f.LoadAddress
	}
	if f.MemSize != nil && !changed("memsize") {
		o.MemSize = *f.MemSize
	}
	if f.BigEndian != nil && !changed("bigendian") {
		o.BigEndian = *f.BigEndian
	}
	if f.NoHaltDevice != nil && !changed("nohaltdevice") {
		o.NoHaltDevice = *f.NoHaltDevice
	}
	if f.Console != nil && !changed("console") {
		o.Console = *f.Console
	}
	if f.MaxInstrs != nil && !changed("maxinstrs") {
		o.MaxInstrs = *f.MaxInstrs
	}
	if f.DebugPort != nil && !changed("debugport") {
		o.DebugPort = *f.DebugPort
	}
	if f.DebugIP != nil && !changed("debugip") {
		o.DebugIP = *f.DebugIP
	}
}
