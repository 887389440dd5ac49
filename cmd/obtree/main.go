// Command obtree builds outboard trees for files
// and verifies chunks and slices against them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/docopt/docopt-go"
	"github.com/gordian-engine/obtree"
	"github.com/gordian-engine/obtree/obdigest"
	"github.com/gordian-engine/obtree/obwire"
)

const usage = `obtree

Usage:
  obtree build [--chunk-size=<n>] <file> <outboard>
  obtree verify [--chunk-size=<n>] [--jobs=<n>] <file> <outboard> <root>
  obtree verify-chunk [--chunk-size=<n>] <chunk> <offset> <outboard> <root>
  obtree slice [--chunk-size=<n>] <file> <outboard> <offset> <length> <slice>
  obtree decode [--chunk-size=<n>] <slice> <root> <offset> <length>
  obtree digest <file>
  obtree serve [--chunk-size=<n>] [--jobs=<n>]
  obtree -h | --help

Options:
  -h --help         Show this screen.
  --chunk-size=<n>  Bytes per chunk; must match between build and verify [default: 262144].
  --jobs=<n>        Number of chunks or requests handled concurrently [default: 4].
`

type opts struct {
	Build       bool `docopt:"build"`
	Verify      bool `docopt:"verify"`
	VerifyChunk bool `docopt:"verify-chunk"`
	Slice       bool `docopt:"slice"`
	Decode      bool `docopt:"decode"`
	Digest      bool `docopt:"digest"`
	Serve       bool `docopt:"serve"`
	Help        bool `docopt:"--help"`

	ChunkSize string `docopt:"--chunk-size"`
	Jobs      string `docopt:"--jobs"`

	File      string `docopt:"<file>"`
	Outboard  string `docopt:"<outboard>"`
	Root      string `docopt:"<root>"`
	Chunk     string `docopt:"<chunk>"`
	SlicePath string `docopt:"<slice>"`
	Offset    string `docopt:"<offset>"`
	Length    string `docopt:"<length>"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is the whole command, minus process setup.
// Exit code 0 is success, 1 is a verification failure, 2 is any other error.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	level := slog.LevelInfo
	if os.Getenv("OBTREE_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// The parser reports both usage errors and explicit help requests
	// through the help handler.
	var helped bool
	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			helped = true
			if err != nil {
				fmt.Fprintln(stderr, usage)
			} else {
				fmt.Fprintln(stdout, usage)
			}
		},
	}
	parsed, err := parser.ParseArgs(usage, args, "")
	if err != nil {
		return 2
	}
	if helped {
		return 0
	}

	var o opts
	if err := parsed.Bind(&o); err != nil {
		log.Error("Failed to bind arguments", "err", err)
		return 2
	}

	c := &cli{
		log:    log,
		stdin:  stdin,
		stdout: stdout,
	}

	err = c.dispatch(ctx, o)
	switch {
	case err == nil:
		return 0
	case isRejection(err):
		log.Error("Verification failed", "err", err, "refetchable", obtree.Refetchable(err))
		return 1
	default:
		log.Error("Command failed", "err", err)
		return 2
	}
}

func isRejection(err error) bool {
	for _, target := range []error{
		obtree.ErrVerificationMismatch,
		obtree.ErrMalformedOutboard,
		obtree.ErrMisalignedOffset,
		obtree.ErrOffsetOutOfRange,
		obtree.ErrChunkLength,
		obtree.ErrMalformedSlice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type cli struct {
	log *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

func (c *cli) dispatch(ctx context.Context, o opts) error {
	if o.Digest {
		sum, err := obdigest.File(o.File)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.stdout, "%x\n", sum)
		return err
	}

	cfg, err := treeConfig(o.ChunkSize)
	if err != nil {
		return err
	}

	jobs := 1
	if o.Jobs != "" {
		if jobs, err = strconv.Atoi(o.Jobs); err != nil || jobs < 1 {
			return fmt.Errorf("--jobs must be a positive integer (got %q)", o.Jobs)
		}
	}

	switch {
	case o.Build:
		return c.build(cfg, o.File, o.Outboard)
	case o.Verify:
		return c.verify(ctx, cfg, jobs, o.File, o.Outboard, o.Root)
	case o.VerifyChunk:
		return c.verifyChunk(cfg, o.Chunk, o.Offset, o.Outboard, o.Root)
	case o.Slice:
		return c.slice(cfg, o.File, o.Outboard, o.Offset, o.Length, o.SlicePath)
	case o.Decode:
		return c.decode(cfg, o.SlicePath, o.Root, o.Offset, o.Length)
	case o.Serve:
		d := obwire.NewDispatcher(c.log, obwire.DispatcherConfig{
			Tree:          cfg,
			MaxConcurrent: jobs,
		})
		return d.Serve(ctx, c.stdin, c.stdout)
	default:
		panic(fmt.Errorf("BUG: no command selected from %#v", o))
	}
}

func treeConfig(chunkSize string) (obtree.Config, error) {
	cfg := obtree.DefaultConfig()
	if chunkSize != "" {
		n, err := strconv.Atoi(chunkSize)
		if err != nil {
			return cfg, fmt.Errorf("invalid --chunk-size: %w", err)
		}
		cfg.ChunkSize = n
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseUint(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return n, nil
}
