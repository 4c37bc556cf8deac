package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qubitpage/qbp/internal/results"
)

// Defaults applied when callers leave parameters empty.
const (
	DefaultCircuit        = "bell"
	DefaultBenchmarkShots = 4096
	DefaultQRNGBits       = 256
)

// Compile status texts written to a widget's status region.
const (
	StatusCompiling = "Compiling..."
	StatusCompiled  = "Compiled ✓"
)

// Payload is a response whose shape the service defines.
type Payload map[string]any

// OK reads the payload's success flag; payloads without one count as
// successful.
func (p Payload) OK() bool {
	v, ok := p["success"].(bool)
	return !ok || v
}

// CompileResult is the compile response. Raw keeps every field the service
// sent.
type CompileResult struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Raw     Payload `json:"-"`
}

func (r CompileResult) OK() bool { return r.Success }

func (r *CompileResult) UnmarshalJSON(data []byte) error {
	type plain CompileResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*r = CompileResult(p)
	return nil
}

// Message is the status text for a settled compile.
func (r CompileResult) Message() string {
	if r.Success {
		return StatusCompiled
	}
	msg := r.Error
	if msg == "" {
		msg = "unknown"
	}
	return "Error: " + msg
}

// SimulateResult is the simulate response. Some services put counts and
// shots at the top level instead of under data.
type SimulateResult struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
	Data    *results.Measurement `json:"data,omitempty"`
	Counts  results.Counts       `json:"counts,omitempty"`
	Shots   int                  `json:"shots,omitempty"`
}

func (r SimulateResult) OK() bool { return r.Success }

func (r *SimulateResult) UnmarshalJSON(data []byte) error {
	type plain SimulateResult
	var raw struct {
		plain
		Shots json.Number `json:"shots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = SimulateResult(raw.plain)
	if raw.Shots != "" {
		n, err := results.ParseCount(raw.Shots)
		if err != nil {
			return fmt.Errorf("shots: %w", err)
		}
		r.Shots = n
	}
	return nil
}

// Measurement returns data when present, else the top-level counts.
func (r SimulateResult) Measurement() results.Measurement {
	if r.Data != nil {
		return *r.Data
	}
	return results.Measurement{Counts: r.Counts, Shots: r.Shots}
}

type EncryptResult struct {
	CiphertextHex string `json:"ciphertext_hex"`
	KeyHex        string `json:"key_hex"`
}

type DecryptResult struct {
	Plaintext string `json:"plaintext"`
}

type QRNGResult struct {
	RandomHex string      `json:"random_hex"`
	RandomInt json.Number `json:"random_int"`
}

// ChatTurn is one prior message in an assistant conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResult struct {
	Response string `json:"response"`
}

type executeRequest struct {
	Command string         `json:"command"`
	Context map[string]any `json:"context"`
}

type tokenizeRequest struct {
	Source string `json:"source"`
}

type simulateRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type benchmarkRequest struct {
	CircuitType string `json:"circuit_type"`
	Shots       int    `json:"shots"`
}

type encryptRequest struct {
	Text string `json:"text"`
}

type decryptRequest struct {
	CiphertextHex string `json:"ciphertext_hex"`
	KeyHex        string `json:"key_hex"`
}

type qrngRequest struct {
	Bits int `json:"bits"`
}

type chatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history"`
}

// Compile sends the widget's editor text with options spread over it and
// writes the outcome to the widget's status region. An unknown widget fails
// before anything is sent.
func (c *Client) Compile(ctx context.Context, widgetID string, options map[string]any) (CompileResult, error) {
	w, err := c.circuits.Lookup(widgetID)
	if err != nil {
		return CompileResult{}, err
	}
	body := map[string]any{"source": w.Source()}
	for k, v := range options {
		body[k] = v
	}
	w.SetStatus(StatusCompiling)

	var out CompileResult
	if err := c.post(ctx, "compile", PathCompile, widgetID, body, &out); err != nil {
		w.SetStatus("Error: " + err.Error())
		return CompileResult{}, err
	}
	w.SetStatus(out.Message())
	return out, nil
}

// Execute runs one command against the server kernel.
func (c *Client) Execute(ctx context.Context, command string, execCtx map[string]any) (Payload, error) {
	if execCtx == nil {
		execCtx = map[string]any{}
	}
	var out Payload
	err := c.post(ctx, "execute", PathExecute, "", executeRequest{Command: command, Context: execCtx}, &out)
	return out, err
}

// Tokenize asks for the token stream of source without running it.
func (c *Client) Tokenize(ctx context.Context, source string) (Payload, error) {
	var out Payload
	err := c.post(ctx, "tokenize", PathTokenize, "", tokenizeRequest{Source: source}, &out)
	return out, err
}

func (c *Client) Simulate(ctx context.Context, circuitType string, params map[string]any) (SimulateResult, error) {
	if params == nil {
		params = map[string]any{}
	}
	var out SimulateResult
	err := c.post(ctx, "simulate", PathSimulate, circuitType, simulateRequest{Type: circuitType, Params: params}, &out)
	return out, err
}

// Benchmark runs the buffered/unbuffered comparison. Empty type means bell,
// shots <= 0 means 4096.
func (c *Client) Benchmark(ctx context.Context, circuitType string, shots int) (Payload, error) {
	if strings.TrimSpace(circuitType) == "" {
		circuitType = DefaultCircuit
	}
	if shots <= 0 {
		shots = DefaultBenchmarkShots
	}
	var out Payload
	err := c.post(ctx, "benchmark", PathBenchmark, circuitType, benchmarkRequest{CircuitType: circuitType, Shots: shots}, &out)
	return out, err
}

func (c *Client) Encrypt(ctx context.Context, text string) (EncryptResult, error) {
	var out EncryptResult
	err := c.post(ctx, "encrypt", PathEncrypt, "", encryptRequest{Text: text}, &out)
	return out, err
}

func (c *Client) Decrypt(ctx context.Context, ciphertextHex, keyHex string) (DecryptResult, error) {
	var out DecryptResult
	err := c.post(ctx, "decrypt", PathDecrypt, "", decryptRequest{CiphertextHex: ciphertextHex, KeyHex: keyHex}, &out)
	return out, err
}

// QRNG draws bits quantum random bits; bits <= 0 means 256.
func (c *Client) QRNG(ctx context.Context, bits int) (QRNGResult, error) {
	if bits <= 0 {
		bits = DefaultQRNGBits
	}
	var out QRNGResult
	err := c.post(ctx, "qrng", PathQRNG, "", qrngRequest{Bits: bits}, &out)
	return out, err
}

// AskAria sends a message to the research assistant with the prior turns.
func (c *Client) AskAria(ctx context.Context, message string, history []ChatTurn) (ChatResult, error) {
	if history == nil {
		history = []ChatTurn{}
	}
	var out ChatResult
	err := c.post(ctx, "chat", PathChat, "", chatRequest{Message: message, History: history}, &out)
	return out, err
}
