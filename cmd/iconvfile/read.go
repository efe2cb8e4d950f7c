package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grokify/iconvfile"
	"github.com/grokify/iconvfile/filein"
	"github.com/grokify/iconvfile/format/ndjson"
)

var readKeys = map[string]string{
	"filename":      "filename",
	"format":        "format",
	"charset":       "charset",
	"senderror":     "senderror",
	"highwatermark": "highwatermark",
	"compression":   "compression",
	"offset":        "offset",
	"limit":         "limit",
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [file...]",
		Short: "Read files and print their records as JSON lines",
		Long: `Read each file and print one JSON record per output record.

With --filename set, that file is read once and positional files are
ignored.`,
		RunE: runRead,
	}

	f := cmd.Flags()
	f.String("filename", "", "static filename")
	f.String("format", string(filein.FormatWholeString), "whole-string, whole-buffer, lines or stream")
	f.String("charset", "utf8", "source encoding")
	f.Bool("senderror", true, "print an error record when a read fails")
	f.Int("highwatermark", filein.DefaultHighWaterMark, "read chunk size in bytes")
	f.String("compression", "none", "none, gzip or zstd")
	f.Int64("offset", 0, "start reading at this byte offset")
	f.Int64("limit", 0, "read at most this many bytes (0 reads to the end)")
	f.String("topic", "", "topic stamped on every record")
	return cmd
}

func runRead(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	config, err := filein.ConfigFromMap(configMap(cmd, readKeys))
	if err != nil {
		return err
	}
	config.Logger = logger.With("component", "filein")

	backend, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	reader, err := filein.New(backend, config)
	if err != nil {
		return err
	}

	topic, _ := cmd.Flags().GetString("topic")
	var reqs []iconvfile.Request
	if config.Filename != "" {
		reqs = append(reqs, iconvfile.Request{ID: uuid.NewString(), Topic: topic})
	} else {
		for _, name := range args {
			reqs = append(reqs, iconvfile.Request{Filename: name, ID: uuid.NewString(), Topic: topic})
		}
	}
	if len(reqs) == 0 {
		return iconvfile.ErrNoFilename
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	out := ndjson.NewWriter(cmd.OutOrStdout())
	var failed int
	for _, req := range reqs {
		session, err := reader.Open(ctx, req)
		if err != nil {
			failed++
			continue
		}
		for rec, err := range session.Records() {
			if rec != nil {
				if werr := out.Encode(rec); werr != nil {
					return werr
				}
			}
			if err != nil {
				failed++
			}
		}
	}
	if err := out.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("read: %d of %d files failed", failed, len(reqs))
	}
	return nil
}
