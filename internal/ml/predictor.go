package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ScriptPredictor runs a serialized artifact (a joblib pipeline, for example)
// through an external interpreter. The request goes to stdin as JSON and the
// interpreter answers with one JSON object on stdout.
type ScriptPredictor struct {
	interpreter string
	script      string
	artifact    string
	columns     []string
	timeout     time.Duration
}

type scriptRequest struct {
	Columns  []string  `json:"columns"`
	Features []float64 `json:"features"`
}

type scriptResponse struct {
	Prediction    float64   `json:"prediction"`
	Label         string    `json:"label,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// ScriptConfig configures a ScriptPredictor. Empty Interpreter means
// auto-discovery; empty Script means the embedded inference script next to
// the artifact.
type ScriptConfig struct {
	Interpreter string
	Script      string
	Artifact    string
	Columns     []string
	Timeout     time.Duration
}

// NewScriptPredictor validates the artifact and resolves the interpreter and script.
func NewScriptPredictor(cfg ScriptConfig) (*ScriptPredictor, error) {
	if _, err := os.Stat(cfg.Artifact); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", cfg.Artifact, err)
	}

	interpreter := cfg.Interpreter
	if interpreter == "" {
		found, err := findPython()
		if err != nil {
			return nil, err
		}
		interpreter = found
	}

	script := cfg.Script
	if script == "" {
		script = filepath.Join(filepath.Dir(cfg.Artifact), "inference_embedded.py")
		if _, err := os.Stat(script); os.IsNotExist(err) {
			if err := createInferenceScript(script); err != nil {
				return nil, fmt.Errorf("create inference script: %w", err)
			}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &ScriptPredictor{
		interpreter: interpreter,
		script:      script,
		artifact:    cfg.Artifact,
		columns:     cfg.Columns,
		timeout:     timeout,
	}, nil
}

// PredictRaw runs one inference in a child process.
func (p *ScriptPredictor) PredictRaw(ctx context.Context, x []float64) (RawOutput, error) {
	if len(p.columns) > 0 && len(x) != len(p.columns) {
		return RawOutput{}, fmt.Errorf("expected %d features, got %d", len(p.columns), len(x))
	}

	reqJSON, err := json.Marshal(scriptRequest{Columns: p.columns, Features: x})
	if err != nil {
		return RawOutput{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.interpreter, p.script, p.artifact)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("interpreter", p.interpreter).
			Str("script", p.script).
			Str("artifact", p.artifact).
			Str("stderr", stderr.String()).
			Dur("timeout", p.timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Inference process failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return RawOutput{}, fmt.Errorf("inference timeout after %v: %w", p.timeout, ctx.Err())
		}
		if msg := parseScriptError(stdout.Bytes()); msg != "" {
			return RawOutput{}, fmt.Errorf("inference error: %s", msg)
		}
		if strings.Contains(stderr.String(), "No module named") {
			return RawOutput{}, fmt.Errorf("inference dependency missing: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
		}
		return RawOutput{}, fmt.Errorf("inference process failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp scriptResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return RawOutput{}, fmt.Errorf("failed to parse response: %w, stdout: %s", err, stdout.String())
	}
	if resp.Error != "" {
		return RawOutput{}, fmt.Errorf("inference error: %s", resp.Error)
	}

	log.Debug().
		Str("artifact", p.artifact).
		Float64("prediction", resp.Prediction).
		Floats64("probabilities", resp.Probabilities).
		Msg("Inference successful")

	return RawOutput{
		Value:         resp.Prediction,
		Label:         resp.Label,
		Probabilities: resp.Probabilities,
	}, nil
}

func parseScriptError(stdout []byte) string {
	var resp scriptResponse
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return ""
	}
	return resp.Error
}

func findPython() (string, error) {
	var candidates []string
	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates,
			filepath.Join(venv, "bin", "python3"),
			filepath.Join(venv, "bin", "python"),
			filepath.Join(venv, "Scripts", "python.exe"),
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil && hasJoblib(c) {
			log.Info().Str("python_path", c).Msg("Using virtual environment Python")
			return c, nil
		}
	}

	names := []string{"python3", "python", "python3.12", "python3.11", "python3.10"}
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err == nil && hasJoblib(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			log.Warn().Str("python_path", path).Msg("Found Python but joblib may not be installed")
			return path, nil
		}
	}

	return "", fmt.Errorf("no suitable Python 3 interpreter found for script models")
}

func hasJoblib(python string) bool {
	out, err := exec.Command(python, "-c", "import sys, joblib; print('Python', sys.version)").Output()
	return err == nil && strings.Contains(string(out), "Python 3")
}

func createInferenceScript(path string) error {
	script := `#!/usr/bin/env python3
"""Run one joblib pipeline prediction. Request on stdin, response on stdout."""
import json
import sys


def main():
    if len(sys.argv) != 2:
        print(json.dumps({"error": "usage: inference_embedded.py <artifact>"}))
        sys.exit(1)
    try:
        import joblib
        import pandas as pd
    except ImportError as exc:
        print(json.dumps({"error": "dependency missing: %s" % exc}))
        sys.exit(1)

    try:
        request = json.load(sys.stdin)
        model = joblib.load(sys.argv[1])
        frame = pd.DataFrame([request["features"]], columns=request.get("columns") or None)
        response = {"prediction": float(model.predict(frame)[0])}
        if hasattr(model, "predict_proba"):
            try:
                response["probabilities"] = [float(p) for p in model.predict_proba(frame)[0]]
            except Exception:
                pass
        print(json.dumps(response))
    except Exception as exc:
        print(json.dumps({"error": str(exc)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
	return os.WriteFile(path, []byte(script), 0o755)
}
