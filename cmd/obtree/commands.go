package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gordian-engine/obtree"
	"golang.org/x/sync/errgroup"
)

func (c *cli) build(cfg obtree.Config, file, outboardPath string) error {
	res, err := obtree.BuildFile(file, cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outboardPath, res.Outboard, 0o644); err != nil {
		return fmt.Errorf("failed to write outboard: %w", err)
	}

	c.log.Debug(
		"Built outboard",
		"file", file, "length", res.Length, "outboard_size", len(res.Outboard),
	)

	_, err = fmt.Fprintln(c.stdout, res.Root)
	return err
}

// verify checks every chunk of file against the outboard and root,
// up to jobs chunks at a time.
func (c *cli) verify(ctx context.Context, cfg obtree.Config, jobs int, file, outboardPath, rootHex string) error {
	ob, root, err := readOutboardAndRoot(outboardPath, rootHex)
	if err != nil {
		return err
	}

	pt, err := obtree.NewPartialTree(c.log, ob, root, cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return &obtree.SourceReadError{Err: err}
	}
	defer f.Close()

	var (
		mu       sync.Mutex
		firstErr error
		rejected int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	n := pt.NumChunks()
	var readErr error
	for idx := range n {
		if egCtx.Err() != nil {
			break
		}

		start, end := pt.ChunkBounds(idx)
		chunk := make([]byte, end-start)
		if _, err := io.ReadFull(f, chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = fmt.Errorf(
					"%w: content ends within chunk %d, before declared length %d",
					obtree.ErrChunkLength, idx, pt.ContentLength(),
				)
			} else {
				readErr = &obtree.SourceReadError{Err: err}
			}
			break
		}

		eg.Go(func() error {
			if err := pt.AddChunk(start, chunk); err != nil {
				c.log.Info("Chunk rejected", "idx", idx, "offset", start, "err", err)

				mu.Lock()
				defer mu.Unlock()
				rejected++
				if firstErr == nil {
					firstErr = err
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return errors.Join(readErr, err)
	}
	if readErr != nil {
		return readErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := checkNoTrailing(f, pt.ContentLength()); err != nil {
		return err
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d chunks rejected; first: %w", rejected, n, firstErr)
	}

	_, err = fmt.Fprintf(c.stdout, "ok: %d chunks, %d bytes\n", n, pt.ContentLength())
	return err
}

func (c *cli) verifyChunk(cfg obtree.Config, chunkPath, offsetStr, outboardPath, rootHex string) error {
	offset, err := parseUint("offset", offsetStr)
	if err != nil {
		return err
	}

	ob, root, err := readOutboardAndRoot(outboardPath, rootHex)
	if err != nil {
		return err
	}

	chunk, err := os.ReadFile(chunkPath)
	if err != nil {
		return &obtree.SourceReadError{Err: err}
	}

	if err := obtree.VerifyChunk(chunk, offset, ob, root, cfg); err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.stdout, "ok")
	return err
}

func (c *cli) slice(cfg obtree.Config, file, outboardPath, offsetStr, lengthStr, slicePath string) error {
	offset, err := parseUint("offset", offsetStr)
	if err != nil {
		return err
	}
	length, err := parseUint("length", lengthStr)
	if err != nil {
		return err
	}

	ob, err := os.ReadFile(outboardPath)
	if err != nil {
		return fmt.Errorf("failed to read outboard: %w", err)
	}

	start, err := obtree.SliceStart(ob, offset, cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return &obtree.SourceReadError{Err: err}
	}
	defer f.Close()

	// The extractor only reads forward, from the window's first chunk.
	if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
		return &obtree.SourceReadError{Err: err}
	}

	out, err := os.Create(slicePath)
	if err != nil {
		return fmt.Errorf("failed to create slice file: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if err := obtree.ExtractSlice(w, ob, f, offset, length, cfg); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write slice: %w", err)
	}
	return out.Close()
}

// decode verifies a slice and writes the window's content to stdout.
// Content written before a failure is still authentic.
func (c *cli) decode(cfg obtree.Config, slicePath, rootHex, offsetStr, lengthStr string) error {
	root, err := obtree.ParseHash(rootHex)
	if err != nil {
		return err
	}
	offset, err := parseUint("offset", offsetStr)
	if err != nil {
		return err
	}
	length, err := parseUint("length", lengthStr)
	if err != nil {
		return err
	}

	f, err := os.Open(slicePath)
	if err != nil {
		return fmt.Errorf("failed to open slice: %w", err)
	}
	defer f.Close()

	sr := obtree.NewSliceReader(bufio.NewReader(f), root, offset, length, cfg)
	if _, err := io.Copy(c.stdout, sr); err != nil {
		return err
	}
	return nil
}

// checkNoTrailing confirms that r, already read up to the declared length,
// has nothing more to give.
// Anything past the declared length is a mismatch.
func checkNoTrailing(r io.Reader, length uint64) error {
	var extra [1]byte
	n, err := r.Read(extra[:])
	if n > 0 {
		return fmt.Errorf(
			"%w: content is longer than declared length %d",
			obtree.ErrChunkLength, length,
		)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return &obtree.SourceReadError{Err: err}
	}
	return nil
}

func readOutboardAndRoot(outboardPath, rootHex string) ([]byte, obtree.Hash, error) {
	root, err := obtree.ParseHash(rootHex)
	if err != nil {
		return nil, root, err
	}

	ob, err := os.ReadFile(outboardPath)
	if err != nil {
		return nil, root, fmt.Errorf("failed to read outboard: %w", err)
	}
	return ob, root, nil
}
