// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/whitaker-io/sentrytx"
	"github.com/whitaker-io/sentrytx/config"
	"github.com/whitaker-io/sentrytx/transport"
)

var (
	replayBody      string
	replayDirection string
	replayChunkSize int
	replayFields    []string
)

// replayCmd drives one captured transaction through the full engine path
// (header phases, per-chunk body notification, the edit-applying filter,
// postprocess) against the in-memory transport, so a rules file can be
// exercised end-to-end without a live intermediary.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "replay a captured body through the rules and the edit filter",
	Long: `replay loads the rules file, builds one transaction, seeds its attribute
bag from --field arguments, streams the --body file through the body filter
in --chunk-size pieces, and writes the edited output to stdout.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&rulesPath, "rules", "sentryd.rules", "path to the rules file")
	replayCmd.Flags().StringVar(&replayBody, "body", "", "file holding the raw body to replay")
	replayCmd.Flags().StringVar(&replayDirection, "direction", "request", "request or response")
	replayCmd.Flags().IntVar(&replayChunkSize, "chunk-size", 4096, "bytes per streamed chunk")
	replayCmd.Flags().StringArrayVar(&replayFields, "field", nil, "name=value pair seeded into the attribute bag (repeatable)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	log := logrus.New()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	e, err := buildAndLoad(cfg, log)
	if err != nil {
		return err
	}

	var dir sentrytx.Direction
	switch strings.ToLower(replayDirection) {
	case "request":
		dir = sentrytx.DirectionRequest
	case "response":
		dir = sentrytx.DirectionResponse
	default:
		return fmt.Errorf("unknown direction %q (want request or response)", replayDirection)
	}

	body, err := os.ReadFile(replayBody)
	if err != nil {
		return fmt.Errorf("reading body file: %w", err)
	}

	tx := sentrytx.NewTX(e)
	defer tx.Close()
	for _, f := range replayFields {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("--field wants name=value, got %q", f)
		}
		tx.Fields.Set(name, value)
	}

	tr := transport.NewMemTransport()
	fc := tx.Request
	bodyPhase := sentrytx.PhaseRequestBody
	if dir == sentrytx.DirectionResponse {
		fc = tx.Response
		bodyPhase = sentrytx.PhaseResponseBody
	}

	for _, p := range sentrytx.Phases() {
		if p == bodyPhase {
			// NotifyBody fires the body phase once per chunk, so the phase
			// loop itself must not fire it again.
			if err := streamBody(e, tx, fc, tr, dir, body); err != nil {
				return err
			}
			continue
		}
		if err := e.Fire(tx, p); err != nil {
			return err
		}
	}

	out := fc.Output().(*transport.MemBuffer).Bytes()
	entry := log.WithFields(logrus.Fields{
		"in_bytes":  len(body),
		"out_bytes": len(out),
		"blocked":   tx.Flags().Has(sentrytx.TxFlagBlocked),
	})
	if st := tx.Status(); st != 0 {
		entry = entry.WithField("status", st)
	}
	entry.Info("replay complete")
	for _, le := range tx.Log() {
		log.WithFields(logrus.Fields{"rule": le.RuleID, "phase": le.Phase.String(), "action": le.Action}).Debug("tx log")
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func streamBody(e *sentrytx.Engine, tx *sentrytx.TX, fc *sentrytx.FilterContext, tr *transport.MemTransport, dir sentrytx.Direction, body []byte) error {
	for len(body) > 0 {
		n := replayChunkSize
		if n > len(body) {
			n = len(body)
		}
		chunk := body[:n]
		body = body[n:]

		if err := e.NotifyBody(tx, dir, chunk); err != nil {
			return err
		}
		buf := transport.NewMemBuffer()
		r := buf.NewReader()
		if _, err := buf.Write(chunk); err != nil {
			return err
		}
		if err := fc.OnChunk(tr, r, int64(n)); err != nil {
			return err
		}
	}
	return fc.OnEnd(tr)
}
