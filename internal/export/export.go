// Package export serializes training data to the line-delimited JSON
// formats fine-tuning providers consume: chat-format SFT lines and
// prompt/chosen/rejected DPO lines. These two serializations are the
// pipeline's only wire contract to the outside world.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/normanking/revoice/pkg/types"
)

// chatMessage is one turn in a chat-format SFT line.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// sftLine is the serialized form of one SFT example.
type sftLine struct {
	Messages []chatMessage `json:"messages"`
}

// dpoLine is the serialized form of one DPO preference example.
type dpoLine struct {
	Prompt   string `json:"prompt"`
	Chosen   string `json:"chosen"`
	Rejected string `json:"rejected"`
}

// WriteSFT writes examples to w as JSONL, one chat-format object per line.
// Order is preserved.
func WriteSFT(w io.Writer, examples []types.SFTExample) error {
	enc := json.NewEncoder(w)
	for i, ex := range examples {
		line := sftLine{Messages: []chatMessage{
			{Role: "system", Content: ex.System},
			{Role: "user", Content: ex.User},
			{Role: "assistant", Content: ex.Assistant},
		}}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode sft line %d: %w", i, err)
		}
	}
	return nil
}

// ReadSFT parses chat-format JSONL back into ordered SFT examples. A line
// must carry exactly the system/user/assistant triple.
func ReadSFT(r io.Reader) ([]types.SFTExample, error) {
	var out []types.SFTExample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line sftLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("parse sft line %d: %w", lineNo, err)
		}
		ex := types.SFTExample{}
		for _, m := range line.Messages {
			switch m.Role {
			case "system":
				ex.System = m.Content
			case "user":
				ex.User = m.Content
			case "assistant":
				ex.Assistant = m.Content
			default:
				return nil, fmt.Errorf("sft line %d: unexpected role %q", lineNo, m.Role)
			}
		}
		out = append(out, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sft data: %w", err)
	}
	return out, nil
}

// WriteDPO writes preference examples to w as JSONL. Order is preserved.
func WriteDPO(w io.Writer, examples []types.DPOExample) error {
	enc := json.NewEncoder(w)
	for i, ex := range examples {
		if err := enc.Encode(dpoLine(ex)); err != nil {
			return fmt.Errorf("encode dpo line %d: %w", i, err)
		}
	}
	return nil
}

// ReadDPO parses DPO JSONL back into ordered preference examples.
func ReadDPO(r io.Reader) ([]types.DPOExample, error) {
	var out []types.DPOExample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line dpoLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("parse dpo line %d: %w", lineNo, err)
		}
		out = append(out, types.DPOExample(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dpo data: %w", err)
	}
	return out, nil
}

// WritePackage writes a training data package to dir as revoice_sft.jsonl
// and, when DPO examples exist, revoice_dpo.jsonl. Returns the paths
// written.
func WritePackage(dir string, pkg *types.TrainingDataPackage) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	var paths []string

	sftPath := filepath.Join(dir, "revoice_sft.jsonl")
	if err := writeFile(sftPath, func(w io.Writer) error {
		return WriteSFT(w, pkg.SFT)
	}); err != nil {
		return nil, err
	}
	paths = append(paths, sftPath)

	if len(pkg.DPO) > 0 {
		dpoPath := filepath.Join(dir, "revoice_dpo.jsonl")
		if err := writeFile(dpoPath, func(w io.Writer) error {
			return WriteDPO(w, pkg.DPO)
		}); err != nil {
			return nil, err
		}
		paths = append(paths, dpoPath)
	}

	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
