package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doc-assembler-be/internal/config"
	"doc-assembler-be/internal/pkg/logger"
	"doc-assembler-be/internal/repository/memory"
	"doc-assembler-be/internal/service"
	"doc-assembler-be/pkg/docevents"
	"doc-assembler-be/pkg/docx"
	"doc-assembler-be/pkg/lexical"
	"doc-assembler-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
)

// assemble feeds markup files through the same chunk pipeline as the HTTP
// endpoint, one document per input file.
func main() {
	chunkLines := flag.Int("chunk-lines", 20, "lines per chunk sent to the assembler")
	outDir := flag.String("out", "", "output directory (default DOCUMENT_OUTPUT_DIR)")
	verify := flag.Bool("verify", false, "re-read each document and compare its blocks")
	flag.Parse()

	if flag.NArg() == 0 {
		color.Red("usage: assemble [-chunk-lines n] [-out dir] [-verify] file...")
		os.Exit(2)
	}

	cfg := config.Load()
	if *outDir != "" {
		cfg.Document.OutputDir = *outDir
	}

	log := logger.NewNopLogger()
	sessions := memory.NewSessionRepository(cfg.Document.SessionTTL, memory.Naming{
		Prefix:    cfg.Document.FilenamePrefix,
		Extension: cfg.Document.Extension,
		Exists: func(filename string) bool {
			_, err := os.Stat(filepath.Join(cfg.Document.OutputDir, filename))
			return err == nil
		},
	}, nil)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	assembler := service.NewAssemblerService(
		sessions,
		docx.NewWriter(docx.Options{FontName: cfg.Document.FontName, FontSizePt: cfg.Document.FontSizePt}),
		service.NewPublisherService(cfg.Document.OpenTopic, pubSub),
		docevents.NewPublisher(nil, log),
		log,
		service.AssemblerOptions{OutputDir: cfg.Document.OutputDir},
	)

	failed := 0
	for _, input := range flag.Args() {
		color.Cyan("📄 %s", input)
		path, err := assembleFile(assembler, input, *chunkLines, *verify)
		if err != nil {
			color.Red("   failed: %v", err)
			failed++
			continue
		}
		color.Green("   ✅ %s", path)

		// filenames carry a seconds timestamp; keep consecutive files apart
		time.Sleep(time.Second)
	}

	if failed > 0 {
		color.Red("%d of %d files failed", failed, flag.NArg())
		os.Exit(1)
	}
}

func assembleFile(assembler service.IAssemblerService, input string, chunkLines int, verify bool) (string, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return "", err
	}

	session := "cli:" + input
	chunks := utils.SplitLines(string(data), chunkLines)
	if len(chunks) == 0 {
		return "", fmt.Errorf("file is empty")
	}

	for i, chunk := range chunks {
		body, err := json.Marshal(map[string]interface{}{
			"content":  chunk,
			"is_final": i == len(chunks)-1,
		})
		if err != nil {
			return "", err
		}

		res, err := assembler.Ingest(context.Background(), session, body)
		if err != nil {
			return "", fmt.Errorf("chunk %d: %w", i+1, err)
		}
		color.White("   chunk %d/%d: +%d blocks (%d total)", i+1, len(chunks), res.BlocksAdded, res.TotalBlocks)

		if !res.IsFinal {
			continue
		}
		if verify {
			if err := verifyDocument(res.Path, string(data)); err != nil {
				return "", err
			}
			color.Green("   verified %d blocks", res.TotalBlocks)
		}
		return res.Path, nil
	}
	return "", fmt.Errorf("no final chunk")
}

func verifyDocument(path, content string) error {
	got, err := docx.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	want := lexical.ClassifyContent(content)
	if len(got) != len(want) {
		return fmt.Errorf("verify: %d blocks written, %d expected", len(got), len(want))
	}
	for i := range want {
		if fmt.Sprintf("%#v", got[i]) != fmt.Sprintf("%#v", want[i]) {
			return fmt.Errorf("verify: block %d is %#v, expected %#v", i+1, got[i], want[i])
		}
	}
	return nil
}
