// Package main provides a command-line tool for Fix, Pack, Udas and
// collision geometry files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/goopsie/fixTools/pkg/archive"
	"github.com/goopsie/fixTools/pkg/collision"
	"github.com/goopsie/fixTools/pkg/fix"
	"github.com/goopsie/fixTools/pkg/pack"
	"github.com/goopsie/fixTools/pkg/udas"
)

// DefaultExtractDir is where extract mode writes when no output is given.
const DefaultExtractDir = "extract"

var (
	mode      string
	format    string
	inputPath string
	outputDir string
	extension string
	relative  bool
	verbose   bool
)

// errUsage marks invocations that should print usage instead of running.
var errUsage = errors.New("invalid arguments")

func init() {
	flag.StringVar(&mode, "mode", "", "Operation mode: extract, build, list, edit")
	flag.StringVar(&format, "format", "fix", "Container format: fix, pack, udas, collision")
	flag.StringVar(&inputPath, "input", "", "Source file (extract, list, edit) or directory (build)")
	flag.StringVar(&outputDir, "output", "", "Destination directory (extract) or file (build, edit)")
	flag.StringVar(&extension, "ext", archive.DefaultExtension, "Payload file extension")
	flag.BoolVar(&relative, "relative", false, "Fix offsets count from the end of the entry table")
	flag.BoolVar(&verbose, "v", false, "Print per-record progress")

	flag.Usage = usage
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
	fmt.Fprintln(out, "  -mode extract -input <file> [-output <dir>]   extract records (default dir: ./extract)")
	fmt.Fprintln(out, "  -mode build -input <dir> -output <file>       build a Fix file from the textures in <dir>")
	fmt.Fprintln(out, "  -mode list -input <file>                      describe the records of a file")
	fmt.Fprintln(out, "  -mode edit -input <file> [-output <file>]     edit a Fix file interactively")
	fmt.Fprintln(out, "Input and output may also be given as positional arguments.")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := validateFlags(); err != nil {
		return err
	}

	switch mode {
	case "extract":
		return runExtract()
	case "build":
		return runBuild()
	case "list":
		return runList()
	case "edit":
		return runEdit()
	default:
		return fmt.Errorf("%w: unknown mode %q", errUsage, mode)
	}
}

// validateFlags checks the invocation before any file is touched.
func validateFlags() error {
	if inputPath == "" {
		inputPath = flag.Arg(0)
	}
	if outputDir == "" {
		outputDir = flag.Arg(1)
	}

	switch format {
	case "fix", "pack", "udas", "collision":
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, format)
	}

	switch mode {
	case "extract":
		if inputPath == "" {
			return fmt.Errorf("%w: extract mode requires an input file", errUsage)
		}
		if format == "collision" {
			return fmt.Errorf("%w: collision geometry can only be listed", errUsage)
		}
		if outputDir == "" {
			outputDir = DefaultExtractDir
		}
	case "build":
		if inputPath == "" || outputDir == "" {
			return fmt.Errorf("%w: build mode requires an input directory and an output file", errUsage)
		}
		if format != "fix" {
			return fmt.Errorf("%w: only fix files can be built", errUsage)
		}
	case "list":
		if inputPath == "" {
			return fmt.Errorf("%w: list mode requires an input file", errUsage)
		}
	case "edit":
		if inputPath == "" {
			return fmt.Errorf("%w: edit mode requires an input file", errUsage)
		}
		if format != "fix" {
			return fmt.Errorf("%w: only fix files can be edited", errUsage)
		}
		if outputDir == "" {
			outputDir = inputPath
		}
	case "":
		return fmt.Errorf("%w: mode is required", errUsage)
	default:
		return fmt.Errorf("%w: mode must be 'extract', 'build', 'list' or 'edit'", errUsage)
	}

	return nil
}

func offsetBase() fix.OffsetBase {
	if relative {
		return fix.PayloadOffsets
	}
	return fix.FileOffsets
}

// printEvent renders a progress event when -v is set.
func printEvent(e fix.Event) {
	fmt.Printf("\t%s\n", e)
}

func observer() fix.Observer {
	if !verbose {
		return nil
	}
	return printEvent
}

func archiveOptions() []archive.Option {
	return []archive.Option{
		archive.WithExtension(extension),
		archive.WithOffsetBase(offsetBase()),
		archive.WithObserver(observer()),
	}
}

func runExtract() error {
	fmt.Printf("Loading %s from %s\n", format, inputPath)

	switch format {
	case "pack":
		p, err := pack.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read pack: %w", err)
		}
		fmt.Printf("Extracting %d textures to %s\n", len(p.Entries), outputDir)
		if err := p.Extract(outputDir, observer()); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	case "udas":
		u, err := udas.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read udas: %w", err)
		}
		fmt.Printf("Extracting %d segments to %s\n", len(u.Segments), outputDir)
		if err := u.Extract(outputDir, observer()); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
	default:
		c, err := archive.ExtractFile(inputPath, outputDir, archiveOptions()...)
		if err != nil {
			return err
		}
		fmt.Printf("Extracted %d textures to %s\n", c.Len(), outputDir)
		return nil
	}

	fmt.Println("Extraction complete.")
	return nil
}

func runBuild() error {
	fmt.Printf("Loading textures from %s\n", inputPath)
	c, err := archive.Build(inputPath, outputDir, archiveOptions()...)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("Build complete. %d textures (%d bytes) written to %s\n", c.Len(), c.Size(), outputDir)
	return nil
}

func runList() error {
	switch format {
	case "pack":
		p, err := pack.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read pack: %w", err)
		}
		fmt.Printf("Pack 0x%08x: %d entries\n", p.ID, len(p.Entries))
		for i, e := range p.Entries {
			fmt.Printf("%4d  id=%-6d format=%d size=%d  %s\n", i, e.ID, e.Format, e.Size, e.Extension())
		}
	case "udas":
		u, err := udas.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read udas: %w", err)
		}
		fmt.Printf("Udas: %d segments\n", len(u.Segments))
		for i, s := range u.Segments {
			fmt.Printf("%4d  %s  offset=0x%08x size=%d\n", i, s.Tag, s.Offset, len(s.Data))
		}
	case "collision":
		g, err := collision.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("read collision geometry: %w", err)
		}
		if g.Container {
			fmt.Printf("Container: %d layers\n", len(g.Layers))
		}
		for i := range g.Layers {
			fmt.Printf("%4d  %s\n", i, g.Layers[i].String())
		}
	default:
		c, err := fix.ReadFile(inputPath, fix.WithOffsetBase(offsetBase()), fix.WithObserver(observer()))
		if err != nil {
			return fmt.Errorf("read container: %w", err)
		}
		fmt.Printf("Fix: %d records, header %d bytes, %s offsets\n", c.Len(), c.HeaderSize(), c.OffsetBase())
		for _, e := range archive.Summarize(c) {
			fmt.Println(e.String())
		}
	}
	return nil
}

func runEdit() error {
	c, err := fix.ReadFile(inputPath, fix.WithOffsetBase(offsetBase()), fix.WithObserver(observer()))
	if err != nil {
		return fmt.Errorf("read container: %w", err)
	}

	fmt.Printf("Loaded %d records from %s\n", c.Len(), inputPath)
	fmt.Println("Type commands. 'help' for information or 'exit' to quit.")

	sh := newShell(c, outputDir, os.Stdin, os.Stdout)
	return sh.run()
}
