// Package main reads whale alert messages from stdin, one per line, and
// writes each parsed event as a JSON line. Lines that are not whale buys
// are skipped.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"os"
	"strconv"

	"github.com/solana-scanner/internal/config"
	"github.com/solana-scanner/internal/logging"
	"github.com/solana-scanner/internal/service"
)

func main() {
	ref := flag.String("ref", "stdin", "Source reference prefix; the line number is appended")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.FormatText)
	// stdout carries the JSON output
	logging.GetGlobalLogger().SetOutput(os.Stderr)

	parser := service.NewWhaleAlertParser(cfg.Whale.KnownHosts)
	enc := json.NewEncoder(os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines, events int
	for scanner.Scan() {
		lines++
		msg := service.AlertMessage{Ref: *ref + ":" + strconv.Itoa(lines), Text: scanner.Text()}
		event := parser.ParseMessage(msg)
		if event == nil {
			continue
		}
		events++
		if err := enc.Encode(event); err != nil {
			logging.WithError(err).Fatal("Failed to write event")
		}
	}
	if err := scanner.Err(); err != nil {
		logging.WithError(err).Fatal("Failed to read input")
	}

	logging.WithFields(map[string]interface{}{
		"lines":  lines,
		"events": events,
	}).Info("Done")
}
