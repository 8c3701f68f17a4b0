package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/goopsie/fixTools/pkg/archive"
	"github.com/goopsie/fixTools/pkg/fix"
)

const shellHelp = `Commands:
  ls                  list records
  add <file>...       append files as new records
  rm <id>...          remove the records with the given ids
  rebuild             renumber records and recompute offsets
  extract <dir>       write every record to <dir>
  save [file]         rebuild and write the container
  exit                leave without saving`

// shell is the interactive editor behind -mode edit.
type shell struct {
	c    *fix.Container
	dest string
	in   *bufio.Scanner
	out  io.Writer
}

func newShell(c *fix.Container, dest string, in io.Reader, out io.Writer) *shell {
	return &shell{c: c, dest: dest, in: bufio.NewScanner(in), out: out}
}

func (s *shell) run() error {
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		args, err := shellquote.Split(s.in.Text())
		if err != nil {
			fmt.Fprintln(s.out, "parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}

		if err := s.exec(args[0], args[1:]); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *shell) exec(cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "ls":
		fmt.Fprintf(s.out, "%d records\n", s.c.Len())
		for _, e := range archive.Summarize(s.c) {
			fmt.Fprintln(s.out, e.String())
		}
	case "add":
		if len(args) == 0 {
			return fmt.Errorf("add needs at least one file")
		}
		for _, path := range args {
			rec, err := s.c.AppendFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "added %s (%d bytes)\n", path, len(rec.Payload()))
		}
	case "rm":
		if len(args) == 0 {
			return fmt.Errorf("rm needs at least one id")
		}
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q", arg)
			}
			if s.c.Remove(uint32(id)) {
				fmt.Fprintf(s.out, "removed %d\n", id)
			} else {
				fmt.Fprintf(s.out, "no record with id %d\n", id)
			}
		}
	case "rebuild":
		s.c.Rebuild()
		fmt.Fprintf(s.out, "rebuilt %d records\n", s.c.Len())
	case "extract":
		if len(args) != 1 {
			return fmt.Errorf("extract needs a directory")
		}
		if err := archive.Extract(s.c, args[0], archive.WithExtension(extension)); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "extracted %d records to %s\n", s.c.Len(), args[0])
	case "save":
		dest := s.dest
		if len(args) > 0 {
			dest = args[0]
		}
		if err := fix.WriteFile(dest, s.c); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "saved %d records to %s\n", s.c.Len(), dest)
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
	return nil
}
