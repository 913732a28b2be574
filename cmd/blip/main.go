package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/blipfmt/bps"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
)

type CommonFlags struct {
	Verbose bool `subcmd:"verbose,false,verbose debug/trace information"`
}

type diffFlags struct {
	CommonFlags
	BlockSize   int    `subcmd:"block-size,,'block size used to index the source file, 0 picks a size based on the input lengths'"`
	Metadata    string `subcmd:"metadata,,'opaque metadata string to embed in the patch'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
	OutputFile  string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type applyFlags struct {
	CommonFlags
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type asmFlags struct {
	CommonFlags
	OutputFile string `subcmd:"output,,'output file or s3 path, omit for stdout'"`
}

type noFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	diffCmd := subcmd.NewCommand("diff",
		subcmd.MustRegisterFlagStruct(&diffFlags{}, nil, nil),
		diff, subcmd.ExactlyNumArguments(2))
	diffCmd.Document(`generate a binary patch from source to target. Files may be local, on S3 or a URL.`)

	applyCmd := subcmd.NewCommand("apply",
		subcmd.MustRegisterFlagStruct(&applyFlags{}, nil, nil),
		apply, subcmd.ExactlyNumArguments(2))
	applyCmd.Document(`apply a binary patch to a source file to reconstruct the target.`)

	validateCmd := subcmd.NewCommand("validate",
		subcmd.MustRegisterFlagStruct(&noFlags{}, nil, nil),
		validate, subcmd.ExactlyNumArguments(1))
	validateCmd.Document(`validate the structural invariants of a patch without applying it.`)

	bin2asmCmd := subcmd.NewCommand("bin2asm",
		subcmd.MustRegisterFlagStruct(&asmFlags{}, nil, nil),
		bin2asm, subcmd.ExactlyNumArguments(1))
	bin2asmCmd.Document(`convert a binary patch to its textual representation.`)

	asm2binCmd := subcmd.NewCommand("asm2bin",
		subcmd.MustRegisterFlagStruct(&asmFlags{}, nil, nil),
		asm2bin, subcmd.ExactlyNumArguments(1))
	asm2binCmd.Document(`convert a textual patch back to its binary representation.`)

	cmdSet = subcmd.NewCommandSet(diffCmd, applyCmd, validateCmd, bin2asmCmd, asm2binCmd)
	cmdSet.Document(`generate, apply, validate and convert blip binary patches. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func progressBar(ctx context.Context, progressBarWr io.Writer, ch chan bps.Progress, size int64) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(progressBarWr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	last := int64(0)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				fmt.Fprintf(progressBarWr, "\n")
				return
			}
			bar.Add64(p.TargetWriteOffset - last)
			last = p.TargetWriteOffset
		case <-ctx.Done():
			return
		}
	}
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body,
			resp.ContentLength,
			func(context.Context) error {
				resp.Body.Close()
				return nil
			},
			err
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout,
			func(context.Context) error {
				return nil
			},
			nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func readAll(ctx context.Context, name string) ([]byte, error) {
	rd, _, cleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return nil, err
	}
	defer cleanup(ctx)
	return io.ReadAll(rd)
}

func writeAll(ctx context.Context, name string, data []byte) error {
	wr, cleanup, err := createFile(ctx, name)
	if err != nil {
		return err
	}
	errs := &errors.M{}
	_, err = wr.Write(data)
	errs.Append(err)
	errs.Append(cleanup(ctx))
	return errs.Err()
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func diff(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*diffFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	source, err := readAll(ctx, args[0])
	if err != nil {
		return err
	}
	target, err := readAll(ctx, args[1])
	if err != nil {
		return err
	}

	var opts []bps.DiffOption
	if cl.BlockSize > 0 {
		opts = append(opts, bps.WithBlockSize(cl.BlockSize))
	}
	if len(cl.Metadata) > 0 {
		opts = append(opts, bps.WithMetadata(cl.Metadata))
	}

	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	var (
		progressBarWg sync.WaitGroup
		progressBarWr = os.Stdout
		progressCh    chan bps.Progress
	)
	if cl.ProgressBar && (len(cl.OutputFile) > 0 || !isTTY) {
		progressCh = make(chan bps.Progress, 16)
		opts = append(opts, bps.WithProgress(progressCh))
		if !isTTY {
			progressBarWr = os.Stderr
		}
		progressBarWg.Add(1)
		go func() {
			progressBar(ctx, progressBarWr, progressCh, int64(len(target)))
			progressBarWg.Done()
		}()
	}

	patch, err := bps.Diff(source, target, opts...)
	if progressCh != nil {
		close(progressCh)
		progressBarWg.Wait()
	}
	if err != nil {
		return err
	}
	return writeAll(ctx, cl.OutputFile, patch)
}

func apply(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*applyFlags)
	patch, err := readAll(ctx, args[0])
	if err != nil {
		return err
	}
	source, err := readAll(ctx, args[1])
	if err != nil {
		return err
	}
	target, err := bps.Apply(patch, source)
	if err != nil {
		return err
	}
	return writeAll(ctx, cl.OutputFile, target)
}

func validate(ctx context.Context, values interface{}, args []string) error {
	patch, err := readAll(ctx, args[0])
	if err != nil {
		return err
	}
	return bps.Validate(patch)
}

func bin2asm(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*asmFlags)
	patch, err := readAll(ctx, args[0])
	if err != nil {
		return err
	}
	text, err := bps.BinaryToText(patch)
	if err != nil {
		return err
	}
	return writeAll(ctx, cl.OutputFile, text)
}

func asm2bin(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*asmFlags)
	text, err := readAll(ctx, args[0])
	if err != nil {
		return err
	}
	patch, err := bps.TextToBinary(text)
	if err != nil {
		return err
	}
	return writeAll(ctx, cl.OutputFile, patch)
}
