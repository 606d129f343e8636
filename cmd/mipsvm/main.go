package main

import (
	goflag "flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mipsvm/internal/emulator"
	"mipsvm/internal/gdb"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := emulator.DefaultOptions()
	var configPath string

	cmd := &cobra.Command{
		Use:           "mipsvm [flags] romfile",
		Short:         "Emulator for the IDT R30xx family of 32-bit MIPS processors",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RomFile = args[0]
			setupLogging(opts.Verbose)
			defer glog.Flush()

			if configPath != "" {
				if err := applyConfigFile(configPath, &opts, cmd.Flags()); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					return err
				}
			}

			emu, err := emulator.New(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return err
			}

			if err := run(emu, opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n\n%s\n", err, emu.Crashdump())
				return err
			}
			return nil
		},
	}

	registerFlags(cmd.Flags(), &opts, &configPath)

	return cmd
}

// registerFlags binds the command-line surface to opts. Long names must
// match the keys FileOptions.Apply consults: pflag reports Changed as false
// for names that were never registered, which would let file values silently
// override explicit flags.
func registerFlags(flags *pflag.FlagSet, opts *emulator.Options, configPath *string) {
	flags.Uint32VarP(&opts.LoadAddress, "loadaddress", "l", opts.LoadAddress,
		"virtual address where the ROM will be loaded")
	flags.Uint32VarP(&opts.MemSize, "memsize", "m", opts.MemSize,
		"size of the virtual CPU's physical memory in bytes")
	flags.BoolVar(&opts.BigEndian, "bigendian", false,
		"interpret the ROM as a big-endian binary")
	flags.BoolVarP(&opts.Debug, "debug", "d", false,
		"enable GDB stub for debugging")
	flags.Uint16VarP(&opts.DebugPort, "debugport", "p", opts.DebugPort,
		"TCP port for the GDB stub to listen on")
	flags.StringVarP(&opts.DebugIP, "debugip", "i", opts.DebugIP,
		"IP address for the GDB stub to listen on")
	flags.BoolVar(&opts.InstrDump, "instrdump", false,
		"disassemble and print instructions as they are executed")
	flags.BoolVar(&opts.DumpCPU, "dumpcpu", false,
		"print the CPU register file after every instruction")
	flags.BoolVar(&opts.HaltDumpCPU, "haltdumpcpu", false,
		"print the CPU register file when the machine halts")
	flags.BoolVar(&opts.HaltDumpCP0, "haltdumpcp0", false,
		"print the CP0 and TLB state when the machine halts")
	flags.BoolVar(&opts.MemMap, "memmap", false,
		"display the memory mappings for the emulator on startup")
	flags.BoolVar(&opts.NoHaltDevice, "nohaltdevice", false,
		"do not map the halt device into physical memory")
	flags.BoolVar(&opts.Console, "console", false,
		"map the interactive console device into physical memory")
	flags.Uint64Var(&opts.MaxInstrs, "maxinstrs", 0,
		"halt after this many instructions (0 = unlimited)")
	flags.StringVar(configPath, "config", "",
		"TOML machine description file")
	flags.CountVarP(&opts.Verbose, "verbose", "v",
		"print verbose logging output (repeatable)")
}

// applyConfigFile merges the TOML machine description into opts. Flags the
// user set explicitly keep their command-line value.
func applyConfigFile(path string, opts *emulator.Options, flags *pflag.FlagSet) error {
	file, err := emulator.LoadFileOptions(path)
	if err != nil {
		return err
	}
	file.Apply(opts, flags.Changed)
	return nil
}

// setupLogging routes glog: every level goes to a log file in the host's
// temporary directory, and --verbose additionally mirrors it to stderr.
func setupLogging(verbose int) {
	goflag.Set("log_dir", os.TempDir())
	goflag.Set("v", strconv.Itoa(verbose))
	if verbose > 0 {
		goflag.Set("alsologtostderr", "true")
	}
	goflag.CommandLine.Parse(nil)
}

// run drives the machine. With --debug the GDB stub owns execution first;
// emulation resumes free-running when the debugger disconnects.
func run(emu *emulator.Emulator, opts emulator.Options) error {
	if opts.Debug {
		if err := gdb.Serve(emu, opts.DebugIP, opts.DebugPort); err != nil {
			return err
		}
	}
	return emu.Run()
}
