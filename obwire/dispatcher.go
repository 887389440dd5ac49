package obwire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/gordian-engine/obtree"
	"github.com/gordian-engine/obtree/obdigest"
	"github.com/gordian-engine/obtree/obseal"
	"golang.org/x/sync/errgroup"
)

// Dispatcher handles [Request] values by calling into the core.
type Dispatcher struct {
	log *slog.Logger

	cfg obtree.Config

	// Maximum number of requests handled at once by Serve.
	maxConcurrent int
}

// DispatcherConfig is the configuration for [NewDispatcher].
type DispatcherConfig struct {
	// Tree configuration for every request.
	// The host and any peer it exchanges outboards with
	// must agree on this value.
	Tree obtree.Config

	// Maximum number of requests [*Dispatcher.Serve] handles concurrently.
	// Values below 1 are treated as 1.
	MaxConcurrent int
}

func NewDispatcher(log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if err := cfg.Tree.Validate(); err != nil {
		panic(fmt.Errorf("BUG: invalid tree config: %w", err))
	}

	return &Dispatcher{
		log: log,

		cfg: cfg.Tree,

		maxConcurrent: max(1, cfg.MaxConcurrent),
	}
}

// Handle runs a single request to completion.
func (d *Dispatcher) Handle(req Request) Response {
	resp, err := d.handle(req)
	resp.ID = req.ID
	if err != nil {
		resp = Response{
			ID:      req.ID,
			Code:    CodeOf(err),
			Message: err.Error(),
		}
		d.log.Debug(
			"Request failed",
			"id", req.ID, "op", req.Op, "code", resp.Code, "err", err,
		)
	}
	return resp
}

func (d *Dispatcher) handle(req Request) (Response, error) {
	switch req.Op {
	case OpBuild:
		res := obtree.BuildBytes(req.Data, d.cfg)
		return Response{Hash: res.Root[:], Outboard: res.Outboard}, nil

	case OpBuildFile:
		if req.Path == "" {
			return Response{}, badRequestError{msg: "missing path"}
		}
		res, err := obtree.BuildFile(req.Path, d.cfg)
		if err != nil {
			return Response{}, err
		}
		return Response{Hash: res.Root[:], Outboard: res.Outboard}, nil

	case OpVerifyChunk:
		root, err := requestRoot(req)
		if err != nil {
			return Response{}, err
		}
		return Response{}, obtree.VerifyChunk(req.Data, req.Offset, req.Outboard, root, d.cfg)

	case OpExtractSlice:
		var buf bytes.Buffer
		if err := obtree.ExtractSlice(
			&buf, req.Outboard, bytes.NewReader(req.Data), req.Offset, req.Length, d.cfg,
		); err != nil {
			return Response{}, err
		}
		return Response{Data: buf.Bytes()}, nil

	case OpVerifySlice:
		root, err := requestRoot(req)
		if err != nil {
			return Response{}, err
		}
		data, err := obtree.VerifySlice(req.Data, root, req.Offset, req.Length, d.cfg)
		if err != nil {
			return Response{}, err
		}
		return Response{Data: data}, nil

	case OpDigest:
		sum := obdigest.Sum(req.Data)
		return Response{Hash: sum[:]}, nil

	case OpDigestFile:
		if req.Path == "" {
			return Response{}, badRequestError{msg: "missing path"}
		}
		sum, err := obdigest.File(req.Path)
		if err != nil {
			return Response{}, &obtree.SourceReadError{Err: err}
		}
		return Response{Hash: sum[:]}, nil

	case OpSeal:
		ct, err := obseal.Seal(req.Key, req.Nonce, req.Data)
		if err != nil {
			return Response{}, badRequestError{msg: err.Error()}
		}
		return Response{Data: ct}, nil

	case OpOpen:
		pt, err := obseal.Open(req.Key, req.Nonce, req.Data)
		if err != nil {
			if errors.Is(err, obseal.ErrOpen) {
				return Response{}, err
			}
			return Response{}, badRequestError{msg: err.Error()}
		}
		return Response{Data: pt}, nil

	default:
		return Response{}, badRequestError{msg: fmt.Sprintf("unknown op %s", req.Op)}
	}
}

func requestRoot(req Request) (obtree.Hash, error) {
	root, err := obtree.HashFromBytes(req.Root)
	if err != nil {
		return root, badRequestError{msg: "root: " + err.Error()}
	}
	return root, nil
}

// HandleCBOR decodes a single CBOR-encoded request,
// handles it, and returns the CBOR-encoded response.
// An undecodable request still produces a [CodeBadRequest] response.
func (d *Dispatcher) HandleCBOR(b []byte) ([]byte, error) {
	var req Request
	var resp Response
	if err := cbor.Unmarshal(b, &req); err != nil {
		resp = Response{
			Code:    CodeBadRequest,
			Message: fmt.Sprintf("failed to decode request: %v", err),
		}
	} else {
		resp = d.Handle(req)
	}

	out, err := cbor.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}

// Serve reads a stream of CBOR requests from r
// and writes a CBOR response for each one to w,
// handling up to the configured number of requests concurrently.
//
// Serve returns nil when r reaches EOF and all responses are written.
// It stops reading new requests once ctx is canceled.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := cbor.NewDecoder(r)
	enc := cbor.NewEncoder(w)

	var encMu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.maxConcurrent)

	for {
		if egCtx.Err() != nil {
			// Either a response failed to write, or ctx was canceled.
			if err := eg.Wait(); err != nil {
				return err
			}
			return context.Cause(ctx)
		}

		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			// The stream framing is lost, so nothing more can be read.
			return errors.Join(
				fmt.Errorf("failed to decode request: %w", err),
				eg.Wait(),
			)
		}

		eg.Go(func() error {
			resp := d.Handle(req)

			encMu.Lock()
			defer encMu.Unlock()
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response %d: %w", req.ID, err)
			}
			return nil
		})
	}

	return eg.Wait()
}
